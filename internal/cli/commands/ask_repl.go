package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/pkg/dataset"
)

const replPrompt = "insight> "

// historyFile is the REPL history path under ~/.insight.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".insight", "ask_history")
}

func runAskREPL(cmd *cobra.Command, cc *CommandContext, f dataset.Filter, opts *AskOptions) error {
	ctx := cmd.Context()

	hist := historyFile()
	if hist != "" {
		_ = os.MkdirAll(filepath.Dir(hist), 0o750)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     hist,
		AutoComplete:    newAskCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Kingdom Barber insight: pregunta lo que quieras sobre tus citas")
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	state := &replState{filter: f, showScript: opts.ShowScript}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := state.handleDotCommand(cmd, cc, line); quit {
				break
			}
			continue
		}

		// Each question is independent: nothing from earlier answers is
		// carried into the next one.
		if err := askOnce(ctx, cc, line, state.filter, state.showScript); err != nil {
			cc.Renderer.Error(err.Error())
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

type replState struct {
	filter     dataset.Filter
	showScript bool
}

// handleDotCommand runs a REPL command and reports whether to quit.
func (s *replState) handleDotCommand(cmd *cobra.Command, cc *CommandContext, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".schema":
		ds, err := cc.Service.Dataset(cmd.Context(), s.filter)
		if err != nil {
			cc.Renderer.Error(presentError(err).Error())
			return false
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), ds.Schema())

	case ".script":
		s.showScript = !s.showScript
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "show script: %v\n", s.showScript)

	case ".site":
		s.filter.Site = arg
	case ".barber":
		s.filter.Barber = arg
	case ".service":
		s.filter.Service = arg

	case ".filter":
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "site=%q barber=%q service=%q from=%s to=%s\n",
			s.filter.Site, s.filter.Barber, s.filter.Service, formatDay(s.filter.From), formatDay(s.filter.To))

	case ".examples":
		for _, q := range insights.ExampleQuestions {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", q)
		}

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .schema           Show the columns of the filtered data
  .script           Toggle printing the generated script
  .site <name>      Restrict to a site (empty clears)
  .barber <name>    Restrict to a barber (empty clears)
  .service <name>   Restrict to a service (empty clears)
  .filter           Show the current filter
  .examples         Show example questions
  .quit / .exit     Exit

Every question is answered on its own; earlier answers are not remembered.
`
	_, _ = fmt.Fprintln(w, help)
}

func newAskCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".script"),
		readline.PcItem(".site"),
		readline.PcItem(".barber"),
		readline.PcItem(".service"),
		readline.PcItem(".filter"),
		readline.PcItem(".examples"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
