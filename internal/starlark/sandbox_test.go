package starlark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingdombarber/insight/internal/testutil"
	"github.com/kingdombarber/insight/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func appointments(t testing.TB) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]string{"Nombre_Sede", "Fecha", "Nombre_Completo_Barbero", "Nombre_Servicio", "Precio"},
		[][]any{
			{"Centro", "2024-05-01", "Ana Gómez", "Corte", 25000},
			{"Centro", "2024-05-02", "Luis Pardo", "Barba", 15000},
			{"Norte", "2024-05-03", "Ana Gómez", "Corte", 25000},
		},
	)
	require.NoError(t, err)
	return ds
}

func newTestSandbox(t testing.TB, limits Limits) *Sandbox {
	t.Helper()
	return NewSandbox(limits, testutil.NewTestLogger(t))
}

func runScript(t *testing.T, script string) string {
	t.Helper()
	res, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), script, appointments(t))
	require.NoError(t, err, "script:\n%s", script)
	return res.Output
}

func requireScriptError(t *testing.T, err error, kind ErrorKind) *ScriptError {
	t.Helper()
	require.Error(t, err)
	var serr *ScriptError
	require.True(t, errors.As(err, &serr), "want *ScriptError, got %T: %v", err, err)
	assert.Equal(t, kind, serr.Kind, "error: %v", serr)
	return serr
}

func TestSandbox_PrintLiteral(t *testing.T) {
	assert.Equal(t, "42", runScript(t, `print("42")`))
}

func TestSandbox_LenOfDataset(t *testing.T) {
	assert.Equal(t, "3", runScript(t, `print(len(df))`))
}

func TestSandbox_OutputCapture(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"no prints", `x = 1`, ""},
		{"several prints", "print('a')\nprint('b', 1)", "a\nb 1"},
		{"empty print", `print("")`, ""},
		{"embedded newline", `print("a\nb")`, "a\nb"},
		{"loop", "for i in range(3):\n    print(i)", "0\n1\n2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runScript(t, tt.script))
		})
	}
}

func TestSandbox_Deterministic(t *testing.T) {
	script := `
totals = df.agg("Nombre_Completo_Barbero", "Precio", fn="sum")
counts = df.value_counts("Nombre_Servicio")
by_site = df.group_by("Nombre_Sede")
resultado = {
    "totals": totals,
    "counts": counts,
    "sites": {k: len(v) for k, v in by_site.items()},
    "best": tab.max_by(totals),
}
print(resultado)
`
	sb := newTestSandbox(t, DefaultLimits())
	ds := appointments(t)

	first, err := sb.Run(context.Background(), script, ds)
	require.NoError(t, err)
	for range 10 {
		again, err := sb.Run(context.Background(), script, ds)
		require.NoError(t, err)
		assert.Equal(t, first.Output, again.Output)
	}
	assert.Contains(t, first.Output, `"best": "Ana G`)
}

func TestSandbox_RuntimeFailure(t *testing.T) {
	res, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), "print('partial')\nfail('boom')", appointments(t))

	serr := requireScriptError(t, err, KindRuntime)
	assert.Contains(t, serr.Message, "boom")
	assert.Equal(t, 2, serr.Line)
	assert.Empty(t, res.Output, "partial output must be discarded")
}

func TestSandbox_RuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantMsg string
	}{
		{"division by zero", `print(1 // 0)`, "division by zero"},
		{"unknown column", `print(df.column("missing"))`, "unknown column"},
		{"unknown method", `df.pivot()`, "has no .pivot field or method"},
		{"mutate row", `df[0]["Precio"] = 0`, "frozen"},
		{"bad operator", `df.where("Precio", "~", 1)`, "unknown operator"},
		{"load disabled", `load("os.star", "getenv")`, "load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), tt.script, appointments(t))
			require.Error(t, err)
			var serr *ScriptError
			require.True(t, errors.As(err, &serr))
			assert.Contains(t, serr.Error(), tt.wantMsg)
		})
	}
}

func TestSandbox_OnlyAllowListedNames(t *testing.T) {
	scripts := []string{
		`print(os.getcwd())`,
		`print(open("/etc/passwd"))`,
		`print(__import__("os"))`,
		`print(secrets)`,
		`print(env["HOME"])`,
	}
	for _, script := range scripts {
		t.Run(script, func(t *testing.T) {
			_, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), script, appointments(t))
			serr := requireScriptError(t, err, KindCompile)
			assert.Contains(t, serr.Message, "undefined")
		})
	}
}

func TestSandbox_SyntaxError(t *testing.T) {
	_, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), "x = 1\nprint(x", appointments(t))
	serr := requireScriptError(t, err, KindCompile)
	assert.Equal(t, ScriptFile, serr.File)
	assert.Positive(t, serr.Line)
}

func TestSandbox_DatasetIsNotMutated(t *testing.T) {
	ds := appointments(t)
	before := ds.Records()

	_, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), `
rows = df.rows
rows.append({"Precio": 1})
print(len(rows), len(df))
`, ds)
	require.NoError(t, err)
	assert.Equal(t, before, ds.Records())
}

func TestSandbox_Timeout(t *testing.T) {
	sb := newTestSandbox(t, Limits{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := sb.Run(context.Background(), "while True:\n    pass", appointments(t))

	serr := requireScriptError(t, err, KindTimeout)
	assert.Contains(t, serr.Message, "50ms")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSandbox_StepLimit(t *testing.T) {
	sb := newTestSandbox(t, Limits{MaxSteps: 1000})

	_, err := sb.Run(context.Background(), "x = 0\nwhile True:\n    x += 1", appointments(t))
	requireScriptError(t, err, KindStepLimit)
}

func TestSandbox_OutputLimit(t *testing.T) {
	sb := newTestSandbox(t, Limits{MaxOutputBytes: 16})

	res, err := sb.Run(context.Background(), "for i in range(100):\n    print('0123456789')", appointments(t))
	requireScriptError(t, err, KindOutputLimit)
	assert.Empty(t, res.Output)

	res, err = sb.Run(context.Background(), `print("0123456789")`, appointments(t))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", res.Output)
}

func TestSandbox_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSandbox(t, DefaultLimits()).Run(ctx, `print(1)`, appointments(t))
	requireScriptError(t, err, KindCancelled)
}

func TestSandbox_CancelledWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := newTestSandbox(t, Limits{Timeout: 10 * time.Second}).Run(ctx, "while True:\n    pass", appointments(t))
	requireScriptError(t, err, KindCancelled)
}

func TestSandbox_ConcurrentRunsAreIsolated(t *testing.T) {
	sb := newTestSandbox(t, DefaultLimits())
	ds := appointments(t)

	const workers = 16
	var wg sync.WaitGroup
	outputs := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			script := fmt.Sprintf("for _ in range(50):\n    print(%d)\nprint(len(df))", i)
			res, err := sb.Run(context.Background(), script, ds)
			outputs[i], errs[i] = res.Output, err
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		want := strings.Repeat(fmt.Sprintf("%d\n", i), 50) + "3"
		assert.Equal(t, want, outputs[i], "worker %d", i)
	}
}

func TestSandbox_NilDataset(t *testing.T) {
	res, err := newTestSandbox(t, DefaultLimits()).Run(context.Background(), `print(len(df), df.columns)`, nil)
	require.NoError(t, err)
	assert.Equal(t, "0 []", res.Output)
}

func TestPredeclared(t *testing.T) {
	globals := Predeclared(appointments(t))

	assert.Len(t, globals, 2)
	assert.Contains(t, globals, DatasetBinding)
	assert.Contains(t, globals, TabularBinding)
	assert.Equal(t, []string{"df", "tab"}, Bindings())
}
