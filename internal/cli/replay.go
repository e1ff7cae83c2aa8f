// internal/cli/replay.go
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/psibatch/internal/batch"
	"github.com/law-makers/psibatch/internal/engine/replay"
	"github.com/law-makers/psibatch/internal/wait"
	"github.com/law-makers/psibatch/pkg/models"
)

var replayCmd = &cobra.Command{
	Use:   "replay <dump.js|dir>...",
	Short: "Re-run extraction on saved debug dumps",
	Long: `Loads dumps written by 'run --debug' and feeds them through the same
extraction and report pipeline without opening a browser. Directories are
expanded to the .js files they contain.

Replays never pause between URLs, do not wait for a device missing from a
dump and never write screenshots or new dumps.`,
	Example: `  # Re-process every dump from a debug run
  psibatch replay debug/ -o replayed

  # A single page
  psibatch replay debug/003_example.com.js --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	paths, err := expandDumps(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no dump files found")
	}

	opener, targets, err := replay.NewOpener(paths)
	if err != nil {
		return err
	}

	urls := make([]models.ValidatedURL, len(targets))
	for i, t := range targets {
		urls[i] = models.ValidatedURL{URL: t}
	}

	cfg := a.Config
	cfg.DelayMin, cfg.DelayMax = 0, 0
	cfg.Screenshots = false
	cfg.Debug = false
	// a dump never gains the missing device
	cfg.PollInterval, cfg.CompletionTimeout = wait.MinInterval, wait.MinInterval

	log.Info().Int("dumps", len(urls)).Msg("Replaying")
	_, err = executeBatch(cmd.Context(), a, opener, urls, cmd.OutOrStdout(), batch.WithLimiter(nil, ""))
	return err
}

// expandDumps resolves directories to their .js files in name order.
func expandDumps(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.js"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}
