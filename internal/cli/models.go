package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asedra/lonage-ai-platform/internal/models"
	"github.com/asedra/lonage-ai-platform/internal/ollama"
)

var errNoModelChosen = errors.New("no ollama model selected")

func newModelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or register model credentials",
	}
	cmd.AddCommand(newModelsListCmd(app), newModelsAddCmd(app))
	return cmd
}

func newModelsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the model credentials registered on the backend",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.Registry.ListModels(cmd.Context())
			if err != nil {
				return explain(err)
			}
			printModels(cmd.OutOrStdout(), list, "")
			return nil
		},
	}
}

func newModelsAddCmd(app *App) *cobra.Command {
	var req models.NewModelCredential
	var kind string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a model credential",
		Long: `Register a model credential on the backend.

  console models add --name prod-gpt --type openai --api-key sk-...
  console models add --name local --type ollama --ollama-url http://localhost:11434 --ollama-model llama3

For ollama the endpoint's /api/tags is read first. Without --ollama-model the
only model is used, or a choice is offered when there are several.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Kind = models.ProviderKind(kind)
			if req.Kind == models.ProviderSelfHosted && req.EndpointURL != "" {
				name, err := app.discoverOllamaModel(cmd.Context(), cmd.OutOrStdout(), req.EndpointURL, req.ModelName)
				if err != nil {
					return err
				}
				req.ModelName = name
			}
			created, err := app.Registry.CreateModel(cmd.Context(), req)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered model %s (%s)\n", created.ID, created.Label())
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&kind, "type", string(models.ProviderHostedAPI), "provider type: openai or ollama")
	cmd.Flags().StringVar(&req.APIKey, "api-key", "", "API key (openai)")
	cmd.Flags().StringVar(&req.EndpointURL, "ollama-url", "", "endpoint base URL (ollama)")
	cmd.Flags().StringVar(&req.ModelName, "ollama-model", "", "model name (ollama)")
	return cmd
}

// discoverOllamaModel checks name against the models served at endpoint, asking
// the user to pick one when name is empty and the choice is ambiguous.
func (a *App) discoverOllamaModel(ctx context.Context, out io.Writer, endpoint, name string) (string, error) {
	if err := models.ValidateEndpointURL(endpoint); err != nil {
		return "", err
	}

	resolved, names, err := ollama.NewClient(endpoint, 0).Resolve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("cannot use %s: %w", endpoint, err)
	}
	if resolved != "" {
		if name == "" {
			fmt.Fprintf(out, "Using %s, the only model on %s\n", resolved, endpoint)
		}
		return resolved, nil
	}

	fmt.Fprintf(out, "Models on %s:\n", endpoint)
	for i, n := range names {
		fmt.Fprintf(out, "  %d) %s\n", i+1, n)
	}

	reader := a.NewReader()
	defer reader.Close()

	line, err := reader.Prompt(fmt.Sprintf("Model [1-%d or name]: ", len(names)))
	if err != nil {
		return "", errNoModelChosen
	}
	return pickModel(names, line)
}

func pickModel(names []string, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errNoModelChosen
	}
	if i, err := strconv.Atoi(input); err == nil {
		if i < 1 || i > len(names) {
			return "", fmt.Errorf("choose a number between 1 and %d", len(names))
		}
		return names[i-1], nil
	}
	if found, ok := ollama.Match(names, input); ok {
		return found, nil
	}
	return "", fmt.Errorf("%w: %q", ollama.ErrModelNotServed, input)
}

// printModels writes one row per credential; selectedID is marked with '*'.
func printModels(w io.Writer, list []models.ModelCredential, selectedID string) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No models registered. Add one with 'console models add'.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tMODEL\tNAME")
	for _, m := range list {
		mark := ""
		if m.ID == selectedID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, m.ID, m.Label(), m.Name)
	}
	tw.Flush()
}
