// internal/cli/run.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/psibatch/internal/app"
	"github.com/law-makers/psibatch/internal/batch"
	"github.com/law-makers/psibatch/internal/config"
	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/internal/report"
	"github.com/law-makers/psibatch/internal/ui"
	"github.com/law-makers/psibatch/internal/urllist"
	"github.com/law-makers/psibatch/pkg/models"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [urls-file]",
	Short: "Analyze every URL in a list",
	Long: `Reads one URL per line (blank lines and lines starting with # are skipped),
analyzes each on PageSpeed Insights in order and records mobile and desktop
results.

Every finished URL is appended to the CSV files in the output directory right
away. JSON, HTML and Markdown reports are written when the run ends, including
after Ctrl+C.`,
	Example: `  # Analyze urls.txt in the current directory
  psibatch run

  # Use another list and write everything under ./out
  psibatch run sites.txt -o out

  # Watch the browser and keep screenshots
  psibatch run sites.txt --headless=false --screenshots

  # Keep raw results for 'psibatch replay'
  psibatch run sites.txt --debug`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	path := a.Config.URLFile
	if len(args) == 1 {
		path = args[0]
	}

	res, err := urllist.LoadFile(path)
	if err != nil {
		return err
	}
	printDiagnostics(cmd.ErrOrStderr(), res.Diagnostics)
	if len(res.URLs) == 0 {
		return fmt.Errorf("no valid URLs in %s", path)
	}

	launcher, err := a.EnsureLauncher()
	if err != nil {
		return err
	}

	log.Info().Str("file", path).Int("urls", len(res.URLs)).Msg("Starting batch")
	_, err = executeBatch(cmd.Context(), a, launcher, res.URLs, cmd.OutOrStdout())
	return err
}

// executeBatch runs urls through opener, appending CSV rows as items finish
// and writing the configured reports at the end. Reports are written for
// whatever finished even when the run stops early.
func executeBatch(ctx context.Context, a *app.Application, opener engine.Opener, urls []models.ValidatedURL, out io.Writer, extra ...batch.Option) (*models.BatchRun, error) {
	cfg := a.Config

	csvOut, err := report.NewCSVAppender(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	bar := newProgressBar(cfg, len(urls))
	if bar != nil {
		prev := zerolog.GlobalLevel()
		if prev <= zerolog.InfoLevel {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
		defer zerolog.SetGlobalLevel(prev)
	}

	onStart := func(index, total int, url string) {
		if bar != nil {
			bar.Describe(fmt.Sprintf("[%d/%d] %s", index, total, url))
		}
	}
	onResult := func(item models.Item) {
		if err := csvOut.Append(item); err != nil {
			log.Error().Err(err).Str("url", item.URL).Msg("Failed to append CSV rows")
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	options := append([]batch.Option{batch.WithProgress(onStart, onResult)}, extra...)
	run, runErr := a.NewRunner(opener, options...).Run(ctx, urls)
	if bar != nil {
		_ = bar.Finish()
	}

	reportErr := writeReports(run, cfg)
	printSummary(out, run, cfg.OutputDir)

	return run, errors.Join(runErr, reportErr)
}

// newProgressBar returns nil when logs are the primary output: JSON logs,
// debug logging or quiet mode.
func newProgressBar(cfg *config.Config, total int) *progressbar.ProgressBar {
	level := app.ParseLevel(cfg.LogLevel)
	if cfg.JSONLog || level < zerolog.InfoLevel || level >= zerolog.ErrorLevel {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

func writeReports(run *models.BatchRun, cfg *config.Config) error {
	if run == nil || len(run.Items) == 0 {
		return nil
	}

	var errs []error
	write := func(format, name string, fn func(*models.BatchRun, string) error) {
		if !slices.Contains(cfg.Formats, format) {
			return
		}
		path := filepath.Join(cfg.OutputDir, name)
		if err := fn(run, path); err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", format, err))
			return
		}
		log.Info().Str("path", path).Msg("Report written")
	}

	write(config.FormatJSON, report.JSONFile, report.WriteJSON)
	write(config.FormatHTML, report.HTMLFile, report.WriteHTML)
	write(config.FormatMarkdown, report.MarkdownFile, report.WriteMarkdown)
	return errors.Join(errs...)
}

func printDiagnostics(w io.Writer, diags []models.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s line %d: %s (%s)\n", ui.Warn(string(d.Kind)), d.Line, d.Content, d.Message)
	}
}
