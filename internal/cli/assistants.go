package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asedra/lonage-ai-platform/internal/auth"
	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/models"
)

func newAssistantsCmd(app *App) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "List or define assistant personas",
	}
	cmd.PersistentFlags().StringVar(&userID, "user-id", "", "owner id (defaults to the id in the access token)")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your assistants",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := app.resolveUserID(cmd.Context(), userID)
			if err != nil {
				return err
			}
			assistants, err := app.Client.ListAssistants(cmd.Context(), owner)
			if err != nil {
				return explain(err)
			}
			printAssistants(cmd.OutOrStdout(), assistants)
			return nil
		},
	}

	var req models.NewAssistant
	add := &cobra.Command{
		Use:   "add",
		Short: "Define a new assistant",
		Long: `Define a reusable assistant persona.

  console assistants add --name "Support" --role "Answers customer tickets" \
      --prompt "You are a patient support agent..."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := app.resolveUserID(cmd.Context(), userID)
			if err != nil {
				return err
			}
			req.Name = strings.TrimSpace(req.Name)
			req.UserID = json.Number(owner)
			if err := req.Validate(); err != nil {
				return fmt.Errorf("invalid assistant: %w", err)
			}

			created, err := app.Client.CreateAssistant(cmd.Context(), req)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created assistant %s (%s)\n", created.ID, created.Name)
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "assistant name")
	add.Flags().StringVar(&req.RoleDescription, "role", "", "what the assistant is for")
	add.Flags().StringVar(&req.BasePrompt, "prompt", "", "base prompt")

	cmd.AddCommand(list, add)
	return cmd
}

// resolveUserID returns explicit when set, otherwise the id claim of the
// current access token.
func (a *App) resolveUserID(ctx context.Context, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}

	token, err := a.Source.Token(ctx)
	if err != nil {
		return "", explain(&backend.Error{Kind: backend.ErrAuth, Op: "resolve user", Err: err})
	}
	claims, err := auth.InspectToken(token)
	if err != nil || claims.UserID == "" {
		return "", errors.New("the access token carries no user id; pass --user-id")
	}
	return claims.UserID, nil
}

func printAssistants(w io.Writer, list []models.Assistant) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No assistants defined. Add one with 'console assistants add'.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, a.RoleDescription)
	}
	tw.Flush()
}
