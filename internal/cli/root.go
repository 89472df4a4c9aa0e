package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/logging"
)

// NewRootCommand builds the console command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "console",
		Short: "Lonage AI platform console",
		Long: `Chat with the language models registered on a Lonage AI backend.

Log in once with 'console login', register credentials with
'console models add', then start a conversation with 'console chat'.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logging.Configure(logLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override CONSOLE_LOG_LEVEL (debug, info, warning, error)")

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newModelsCmd(app),
		newAssistantsCmd(app),
		newChatCmd(app),
	)
	return root
}

// explain adds a next step to backend auth failures
func explain(err error) error {
	if backend.IsAuth(err) {
		return fmt.Errorf("%w (run 'console login' to sign in again)", err)
	}
	return err
}
