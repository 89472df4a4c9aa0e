package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/asedra/lonage-ai-platform/internal/backend"
)

var errLoginCancelled = errors.New("login cancelled")

func newLoginCmd(app *App) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Long: `Exchange an email and password for an access token and save it to the
token file (CONSOLE_TOKEN_FILE). The file is written with mode 0600 and is
encrypted when CONSOLE_TOKEN_PASSPHRASE is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var password string
			if passwordStdin {
				p, err := readSecretLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			if email == "" || !passwordStdin {
				reader := app.NewReader()
				defer reader.Close()

				if email == "" {
					e, err := reader.Prompt("Email: ")
					if err != nil {
						return promptError(err)
					}
					email = e
				}
				if !passwordStdin {
					p, err := reader.PasswordPrompt("Password: ")
					if err != nil {
						return promptError(err)
					}
					password = p
				}
			}

			email = strings.TrimSpace(email)
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			result, err := app.Client.Login(cmd.Context(), email, password)
			if err != nil {
				var berr *backend.Error
				if errors.As(err, &berr) && berr.Detail != "" {
					return fmt.Errorf("login failed: %s: %w", berr.Detail, err)
				}
				return fmt.Errorf("login failed: %w", err)
			}

			saveAs := result.User.Email
			if saveAs == "" {
				saveAs = email
			}
			if err := app.Tokens.Save(result.AccessToken, saveAs); err != nil {
				return err
			}

			who := saveAs
			if result.User.Name != "" {
				who = fmt.Sprintf("%s <%s>", result.User.Name, saveAs)
			}
			fmt.Fprintf(out, "Logged in as %s\n", who)
			fmt.Fprintf(out, "Token saved to %s\n", app.Tokens.Path())
			if app.Config.Auth.Token != "" {
				fmt.Fprintln(out, "Note: CONSOLE_TOKEN is set and takes precedence over the saved token.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Tokens.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return errLoginCancelled
	}
	return err
}
