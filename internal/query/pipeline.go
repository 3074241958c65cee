// Package query answers natural-language questions about a dataset. A
// question becomes a generated script, the script runs in the sandbox, and
// its printed output is turned back into prose by a second model call.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/prompt"
	"github.com/kingdombarber/insight/internal/starlark"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// Pipeline stage names, as used in metrics and Answer.Stages.
const (
	StageScript    = "script"
	StageExecute   = "execute"
	StageInterpret = "interpret"
)

// Executor runs a generated script against a dataset.
type Executor interface {
	Run(ctx context.Context, script string, ds *dataset.Dataset) (starlark.Result, error)
}

// Request is one question over one dataset.
type Request struct {
	Question string
	Dataset  *dataset.Dataset
}

// Validate checks the request can start. The error is a *Error.
func (r Request) Validate() error {
	if r.Dataset.Empty() {
		return &Error{Kind: KindNoData, State: StateRequested, Message: "dataset is empty"}
	}
	if strings.TrimSpace(r.Question) == "" {
		return &Error{Kind: KindInvalidRequest, State: StateRequested, Message: "question is empty"}
	}
	return nil
}

// Answer is a completed query. Script and Output are kept for display only.
type Answer struct {
	ID       string
	Question string
	Script   string
	Output   string
	Text     string
	Trace    []State
	Steps    uint64
	Stages   map[string]time.Duration
	Duration time.Duration
}

// Options configures a Pipeline.
type Options struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Pipeline runs queries. It keeps no per-query state and may be shared.
type Pipeline struct {
	requestor   *ScriptRequestor
	executor    Executor
	interpreter *Interpreter
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewPipeline wires a pipeline. A nil builder uses the embedded prompts.
func NewPipeline(client llm.Client, builder *prompt.Builder, executor Executor, opts Options) *Pipeline {
	if builder == nil {
		builder = prompt.NewBuilder(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		requestor:   NewScriptRequestor(builder, client),
		executor:    executor,
		interpreter: NewInterpreter(builder, client),
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Ask answers req. Stages run strictly in order and nothing is retried.
// Every failure is a *Error.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		p.metrics.ObserveQuery(string(err.(*Error).Kind))
		return nil, err
	}

	run := &run{
		p:       p,
		machine: NewMachine(),
		answer: &Answer{
			ID:       uuid.NewString(),
			Question: req.Question,
			Stages:   make(map[string]time.Duration, 3),
		},
	}
	run.logger = p.logger.With("query_id", run.answer.ID)
	run.logger.Info("query started", "question", req.Question, "rows", req.Dataset.Len())

	if err := run.execute(ctx, req); err != nil {
		var qerr *Error
		if errors.As(err, &qerr) {
			p.metrics.ObserveQuery(string(qerr.Kind))
			run.logger.Warn("query failed", "kind", qerr.Kind, "state", qerr.State, "error", qerr.Err)
		}
		return nil, err
	}

	run.answer.Duration = time.Since(start)
	p.metrics.ObserveQuery("ok")
	run.logger.Info("query answered", "duration", run.answer.Duration, "steps", run.answer.Steps)
	return run.answer, nil
}

type run struct {
	p       *Pipeline
	machine *Machine
	answer  *Answer
	logger  *slog.Logger
}

func (r *run) execute(ctx context.Context, req Request) error {
	// Requested: obtain the script.
	var script string
	err := r.stage(StageScript, func() (err error) {
		script, err = r.p.requestor.RequestScript(ctx, req.Question, req.Dataset)
		return err
	})
	if errors.Is(err, ErrPromptBuild) {
		return r.fail(ctx, KindPromptInvalid, "could not build the analysis prompt", err)
	}
	if err != nil {
		return r.fail(ctx, KindModelUnavailable, "could not obtain an analysis script", err)
	}
	r.answer.Script = script
	if err := r.advance(ctx, StateScriptObtained); err != nil {
		return err
	}
	r.logger.Debug("script obtained", "script", script)

	// ScriptObtained: run it.
	if strings.TrimSpace(script) == "" {
		return r.fail(ctx, KindScriptExecutionFailed, "model returned an empty script", nil)
	}
	var res starlark.Result
	err = r.stage(StageExecute, func() (err error) {
		res, err = r.p.executor.Run(ctx, script, req.Dataset)
		return err
	})
	r.answer.Steps = res.Steps
	r.p.metrics.AddScriptSteps(res.Steps)
	if err != nil {
		var serr *starlark.ScriptError
		if errors.As(err, &serr) && serr.Kind == starlark.KindCancelled {
			return r.fail(ctx, KindCancelled, "script execution cancelled", err)
		}
		return r.fail(ctx, KindScriptExecutionFailed, "script execution failed", err)
	}
	if strings.TrimSpace(res.Output) == "" {
		return r.fail(ctx, KindScriptExecutionFailed, "script printed nothing", nil)
	}
	r.answer.Output = res.Output
	if err := r.advance(ctx, StateExecuted); err != nil {
		return err
	}

	// Executed: interpret the output.
	if err := r.advance(ctx, StateInterpreted); err != nil {
		return err
	}
	var text string
	err = r.stage(StageInterpret, func() (err error) {
		text, err = r.p.interpreter.Interpret(ctx, req.Question, res.Output)
		return err
	})
	if errors.Is(err, ErrPromptBuild) {
		return r.fail(ctx, KindPromptInvalid, "could not build the interpretation prompt", err)
	}
	if err != nil {
		return r.fail(ctx, KindInterpretationFailed, "could not interpret the result", err)
	}
	r.answer.Text = text
	if err := r.machine.Advance(StateDone); err != nil {
		return err
	}
	r.answer.Trace = r.machine.Trace()
	return nil
}

func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.answer.Stages[name] = elapsed
	r.p.metrics.ObserveStage(name, elapsed)
	return err
}

// advance honours cancellation between stages.
func (r *run) advance(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, KindCancelled, "query cancelled", err)
	}
	return r.machine.Advance(next)
}

// fail records the failure on the machine. A failure caused by the caller
// cancelling ctx is reported as cancellation whatever the stage.
func (r *run) fail(ctx context.Context, kind Kind, msg string, err error) error {
	if kind != KindCancelled && ctx.Err() != nil {
		kind, msg = KindCancelled, "query cancelled"
		if err == nil {
			err = ctx.Err()
		}
	}
	state := r.machine.State()
	if ferr := r.machine.Fail(kind); ferr != nil {
		return ferr
	}
	return &Error{
		Kind:    kind,
		State:   state,
		Message: msg,
		Err:     err,
		Script:  r.answer.Script,
		Trace:   r.machine.Trace(),
	}
}
