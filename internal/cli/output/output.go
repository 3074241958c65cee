// Package output renders command results for terminals, pipes and scripts.
//
// In auto mode a terminal gets styled text and rendered markdown, anything
// else gets plain markdown. JSON mode prints machine-readable documents only.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/kingdombarber/insight/pkg/dataset"
)

// Mode selects how results are printed.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode maps a config value to a Mode. Unknown values mean auto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return ModeText
	case "markdown", "md":
		return ModeMarkdown
	case "json":
		return ModeJSON
	default:
		return ModeAuto
	}
}

const defaultWidth = 100

// Renderer writes results to an output and an error stream.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	width  int
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	width := defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isTTY = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	r := NewRendererWithTTY(out, errOut, isTTY, mode)
	r.width = width
	return r
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	profile := termenv.Ascii
	if isTTY {
		profile = termenv.NewOutput(out).EnvColorProfile()
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		width:  defaultWidth,
		styles: NewStyles(out, profile),
	}
}

// Out is the result stream.
func (r *Renderer) Out() io.Writer { return r.out }

// Err is the diagnostics stream.
func (r *Renderer) Err() io.Writer { return r.errOut }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// EffectiveMode resolves auto to text on a terminal and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Markdown prints a markdown document, rendered for the terminal in text
// mode and verbatim otherwise.
func (r *Renderer) Markdown(doc string) error {
	if r.EffectiveMode() == ModeText && r.isTTY {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width),
		)
		if err == nil {
			if rendered, err := tr.Render(doc); err == nil {
				_, err = io.WriteString(r.out, rendered)
				return err
			}
		}
	}
	if !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	_, err := io.WriteString(r.out, doc)
	return err
}

// Header prints a section title.
func (r *Renderer) Header(title string) {
	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintf(r.out, "## %s\n\n", title)
		return
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render(title))
}

// Muted prints secondary information, such as a generated script.
func (r *Renderer) Muted(text string) {
	_, _ = fmt.Fprintln(r.out, r.styles.Muted.Render(text))
}

// Success prints a confirmation.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.out, r.styles.Success.Render("✓ "+msg))
}

// Warning prints a warning to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error prints an error to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+msg))
}

// Status prints a check result line. status is pass, warn or error.
func (r *Renderer) Status(status, line string) {
	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintf(r.out, "- **[%s]** %s\n", strings.ToUpper(status), line)
		return
	}
	var icon string
	switch status {
	case "warn":
		icon = r.styles.Warning.Render("!")
	case "error":
		icon = r.styles.Error.Render("✗")
	default:
		icon = r.styles.Success.Render("✓")
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n", icon, line)
}

// Dataset prints ds as table, json, csv or md. An empty format follows the
// output mode.
func (r *Renderer) Dataset(ds *dataset.Dataset, format string) error {
	if format == "" {
		switch r.EffectiveMode() {
		case ModeJSON:
			format = "json"
		case ModeMarkdown:
			format = "md"
		default:
			format = "table"
		}
	}
	switch strings.ToLower(format) {
	case "json":
		return r.JSON(ds.Records())
	case "csv":
		_, err := fmt.Fprintln(r.out, dataset.RenderCSV(ds))
		return err
	case "md", "markdown":
		if ds.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(0 rows)")
			return err
		}
		_, err := fmt.Fprintln(r.out, dataset.RenderMarkdown(ds))
		return err
	case "table":
		if ds.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(0 rows)")
			return err
		}
		_, err := fmt.Fprintf(r.out, "%s\n(%d rows)\n", dataset.RenderText(ds), ds.Len())
		return err
	default:
		return fmt.Errorf("unknown format %q (want table, json, csv or md)", format)
	}
}

// Spinner shows progress on a terminal. stop reports the outcome and is
// safe to call when no spinner was shown.
func (r *Renderer) Spinner(msg string) (stop func(success bool, text string)) {
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return func(bool, string) {}
	}
	sp, err := pterm.DefaultSpinner.WithWriter(r.errOut).WithRemoveWhenDone(true).Start(msg)
	if err != nil {
		return func(bool, string) {}
	}
	return func(success bool, text string) {
		if success {
			_ = sp.Stop()
			return
		}
		sp.Fail(text)
	}
}

// Styles are the lipgloss styles used by the renderer.
type Styles struct {
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles for w with the given colour profile. termenv.Ascii
// yields plain text.
func NewStyles(w io.Writer, profile termenv.Profile) *Styles {
	lr := lipgloss.NewRenderer(w)
	lr.SetColorProfile(profile)
	return &Styles{
		Header:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#D4A017")),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("#808080")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("#2E8B57")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("#DAA520")),
		Error:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#CD5C5C")),
	}
}
