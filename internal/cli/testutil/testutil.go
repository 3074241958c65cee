// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/kingdombarber/insight/internal/app"
	"github.com/kingdombarber/insight/internal/cli/output"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/internal/source"
	"github.com/kingdombarber/insight/internal/starlark"
	logtest "github.com/kingdombarber/insight/internal/testutil"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// Appointments returns a small appointment dataset with two sites.
func Appointments(t testing.TB) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]string{"Nombre_Sede", "Fecha", "Nombre_Completo_Barbero", "Nombre_Completo_Cliente", "Nombre_Servicio", "Precio"},
		[][]any{
			{"Centro", "2024-05-01", "Ana Gómez", "Juan Díaz", "Corte", 25000},
			{"Centro", "2024-05-02", "Luis Pardo", "Juan Díaz", "Barba", 15000},
			{"Norte", "2024-05-08", "Luis Pardo", "Carla Mora", "Corte", 50000},
		},
	)
	require.NoError(t, err)
	return ds
}

// NewService builds a service over ds whose model is client.
func NewService(t testing.TB, client llm.Client, ds *dataset.Dataset) *app.Service {
	t.Helper()
	logger := logtest.NewTestLogger(t)
	fields := dataset.DefaultFields()
	metrics := observability.NewMetrics()
	return app.New(app.Options{
		Source:   source.StaticProvider{Dataset: ds},
		Pipeline: query.NewPipeline(client, nil, starlark.NewSandbox(starlark.DefaultLimits(), logger), query.Options{Logger: logger, Metrics: metrics}),
		Analyst:  insights.NewAnalyst(client, nil, fields, logger),
		Fields:   fields,
		Metrics:  metrics,
		Logger:   logger,
	})
}

// Result is the captured outcome of a command run.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Execute runs cmd with args and ctx, capturing both output streams. stdin
// may be nil.
func Execute(ctx context.Context, cmd *cobra.Command, stdin string, args ...string) Result {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return Result{Stdout: out.String(), Stderr: errOut.String(), Err: err}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
