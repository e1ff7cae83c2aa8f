// internal/cli/validate.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/psibatch/internal/ui"
	"github.com/law-makers/psibatch/internal/urllist"
)

var validateCmd = &cobra.Command{
	Use:   "validate [urls-file]",
	Short: "Check a URL list without analyzing it",
	Long: `Reads a URL list the same way 'run' does and prints the URLs that would be
analyzed together with every rejected or duplicate line. No browser is started.`,
	Example: `  psibatch validate sites.txt`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		out := cmd.OutOrStdout()
		for _, u := range res.URLs {
			fmt.Fprintf(out, "%s %s\n", ui.Dim(fmt.Sprintf("%4d", u.Line)), u.URL)
		}
		printDiagnostics(cmd.ErrOrStderr(), res.Diagnostics)
		fmt.Fprintf(out, "\n%s valid, %s rejected\n",
			ui.Success(fmt.Sprint(len(res.URLs))), ui.Warn(fmt.Sprint(len(res.Diagnostics))))

		if len(res.URLs) == 0 {
			return fmt.Errorf("no valid URLs in %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
