// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/psibatch/internal/app"
	"github.com/law-makers/psibatch/internal/config"
	"github.com/law-makers/psibatch/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "psibatch",
	Short: "Batch PageSpeed Insights collector",
	Long: `psibatch drives a real browser through the PageSpeed Insights analysis page
for every URL in a list, one at a time, and records the mobile and desktop
Lighthouse scores and metrics.

Results are appended to CSV as each URL finishes, so an interrupted run keeps
everything analyzed so far.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the CLI and returns the process exit code. The
// application is initialized lazily in PersistentPreRunE.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, ui.Warn("Interrupted."))
		return 130
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ui.Error("Error:"), err)
	return 1
}

func init() {
	// Avoid starting the app for -h/help
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		appCtx, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		SetApp(cmd, appCtx)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		appCtx := GetAppFromCmd(cmd)
		if appCtx == nil {
			return nil
		}
		if err := appCtx.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Shutdown failed")
		}
		SetApp(cmd, nil)
		return nil
	}

	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for psibatch")
	rootCmd.Flags().Bool("version", false, "Version for psibatch")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(os.Stdout, cmd, true)
	})
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		renderHelp(os.Stderr, cmd, false)
		return nil
	})
}

// renderHelp prints colorized help. The short form used for usage errors
// omits descriptions and examples.
func renderHelp(w io.Writer, cmd *cobra.Command, full bool) {
	heading := func(s string) { fmt.Fprintf(w, "\n%s\n", ui.Bold(s)) }

	if full {
		fmt.Fprintf(w, "\n%s\n", ui.Bold(ui.Accent(strings.ToUpper(cmd.Name()))))
		if cmd.Short != "" {
			fmt.Fprintln(w, cmd.Short)
		}
		if cmd.Long != "" && cmd.Long != cmd.Short {
			fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
		}
	}

	heading("Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Accent(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Accent(cmd.CommandPath()), ui.Warn("<command>"), ui.Dim("[flags]"))
	}

	if full && cmd.HasExample() {
		heading("Examples")
		for _, line := range strings.Split(cmd.Example, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintf(w, "  %s\n", ui.Dim(trimmed))
			default:
				fmt.Fprintf(w, "  %s\n", ui.Success("$ "+trimmed))
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		heading("Commands")
		var cmds []*cobra.Command
		width := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				cmds = append(cmds, c)
				width = max(width, len(c.Name()))
			}
		}
		for _, c := range cmds {
			fmt.Fprintf(w, "  %s%s%s\n", ui.Accent(c.Name()), strings.Repeat(" ", width-len(c.Name())+2), ui.Dim(c.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		heading("Flags")
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if full && cmd.HasAvailableInheritedFlags() {
		heading("Global Flags")
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\n%s\n\n", ui.Dim(fmt.Sprintf("Use \"%s --help\" for more information.", cmd.CommandPath())))
}

// printFlags re-aligns pflag's usage block with colored flag names.
func printFlags(w io.Writer, usages string) {
	const minWidth = 28

	type row struct{ flag, desc string }
	var rows []row
	width := minWidth
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") {
			rows = append(rows, row{desc: trimmed})
			continue
		}
		parts := strings.SplitN(trimmed, "  ", 2)
		r := row{flag: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			r.desc = strings.TrimSpace(parts[1])
		}
		width = max(width, len(r.flag))
		rows = append(rows, r)
	}

	for _, r := range rows {
		if r.flag == "" {
			// continuation of the previous description
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", width+4), ui.Dim(r.desc))
			continue
		}
		fmt.Fprintf(w, "  %s%s%s\n", ui.Success(r.flag), strings.Repeat(" ", width-len(r.flag)+2), ui.Dim(r.desc))
	}
}

// wrapText wraps text at the specified width while preserving paragraphs
func wrapText(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var lines []string
		var current strings.Builder
		for _, word := range strings.Fields(para) {
			if current.Len() > 0 && current.Len()+1+len(word) > width {
				lines = append(lines, current.String())
				current.Reset()
			}
			if current.Len() > 0 {
				current.WriteByte(' ')
			}
			current.WriteString(word)
		}
		if current.Len() > 0 {
			lines = append(lines, current.String())
		}
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
