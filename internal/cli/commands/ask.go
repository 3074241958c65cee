package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	FilterOptions
	ShowScript bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the appointment data",
		Long: `Ask a question in natural language about the appointment data.

The language model writes a small analysis script, the script runs in a
sandbox over the filtered data, and the model explains the result.

When invoked without arguments on a terminal, enters interactive mode.
Piped input is read as a single question.`,
		Example: `  # One question
  insight ask "¿Qué barbero generó más ingresos en mayo?"

  # Restricted to one site, with the generated script
  insight ask --site Centro --show-script "¿Cuál es el servicio más vendido?"

  # Interactive mode
  insight ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	addFilterFlags(cmd, &opts.FilterOptions)
	cmd.Flags().BoolVar(&opts.ShowScript, "show-script", false, "Print the generated script and its raw output")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	f, err := opts.Filter()
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var question string
	switch {
	case len(args) > 0:
		question = strings.Join(args, " ")
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		question = string(content)
	default:
		return runAskREPL(cmd, cc, f, opts)
	}

	return askOnce(cmd.Context(), cc, question, f, opts.ShowScript)
}

// askOnce answers one question and prints the answer.
func askOnce(ctx context.Context, cc *CommandContext, question string, f dataset.Filter, showScript bool) error {
	r := cc.Renderer
	stop := r.Spinner("Analizando...")
	answer, err := cc.Service.Ask(ctx, question, f)
	if err != nil {
		stop(false, "No se pudo responder")
		cc.Logger.Debug("ask failed", "error", err)
		return presentError(err)
	}
	stop(true, "")

	return printAnswer(r, answer, showScript)
}

type answerJSON struct {
	ID       string        `json:"id"`
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Script   string        `json:"script,omitempty"`
	Output   string        `json:"output,omitempty"`
	Trace    []query.State `json:"trace"`
	Steps    uint64        `json:"steps"`
}

func printAnswer(r *output.Renderer, answer *query.Answer, showScript bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		doc := answerJSON{
			ID:       answer.ID,
			Question: answer.Question,
			Answer:   answer.Text,
			Trace:    answer.Trace,
			Steps:    answer.Steps,
		}
		if showScript {
			doc.Script, doc.Output = answer.Script, answer.Output
		}
		return r.JSON(doc)
	}

	if showScript {
		r.Header("Script")
		if err := r.Markdown("```python\n" + answer.Script + "\n```"); err != nil {
			return err
		}
		r.Header("Resultado")
		r.Muted(answer.Output)
		_, _ = fmt.Fprintln(r.Out())
	}
	r.Header("Respuesta")
	return r.Markdown(answer.Text)
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
