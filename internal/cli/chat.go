package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/asedra/lonage-ai-platform/internal/chat"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/models"
	"github.com/asedra/lonage-ai-platform/internal/registry"
)

const chatHelp = `Commands:
  /models       list the registered models
  /use <id>     chat with the model that has this id
  /history      show the conversation so far
  /clear        start a new conversation
  /quit         leave the chat (also Ctrl+D)
Anything else is sent to the selected model.`

func newChatCmd(app *App) *cobra.Command {
	var modelID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &repl{
				app:        app,
				out:        cmd.OutOrStdout(),
				dispatcher: app.NewDispatcher(),
			}
			if err := r.start(cmd.Context(), modelID); err != nil {
				return err
			}

			reader := app.NewReader()
			defer reader.Close()

			r.loadHistory(reader)
			defer r.saveHistory(reader)

			return r.run(cmd.Context(), reader)
		},
	}

	cmd.Flags().StringVar(&modelID, "model", "", "id of the model to chat with")
	return cmd
}

// repl drives one interactive chat. Sends are synchronous, so no prompt is
// offered while a reply is awaited.
type repl struct {
	app        *App
	out        io.Writer
	dispatcher *chat.Dispatcher
	models     []models.ModelCredential
}

// start lists the models and applies the --model selection.
func (r *repl) start(ctx context.Context, modelID string) error {
	if err := r.refreshModels(ctx); err != nil {
		return explain(err)
	}
	printModels(r.out, r.models, "")

	if modelID != "" {
		return r.use(modelID)
	}
	if len(r.models) > 0 {
		fmt.Fprintln(r.out, "Pick a model with /use <id>. Type /help for commands.")
	}
	return nil
}

func (r *repl) refreshModels(ctx context.Context) error {
	list, err := r.app.Registry.ListModels(ctx)
	if err != nil {
		return err
	}
	r.models = list
	return nil
}

func (r *repl) use(id string) error {
	m, err := registry.FindIn(r.models, id)
	if err != nil {
		return err
	}
	r.dispatcher.Session().SelectModel(m)
	fmt.Fprintf(r.out, "Using %s (%s)\n", m.Label(), m.ID)
	return nil
}

func (r *repl) prompt() string {
	if m := r.dispatcher.Session().Selected(); m != nil {
		return fmt.Sprintf("%s> ", m.Label())
	}
	return "> "
}

func (r *repl) run(ctx context.Context, reader LineReader) error {
	for {
		line, err := reader.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		// Message text stays in memory; only commands reach the history file.
		if strings.HasPrefix(input, "/") {
			reader.AppendHistory(input)
		}

		if !r.handleLine(ctx, line) {
			return nil
		}
	}
}

// handleLine runs a slash command or sends line as a message. It returns
// false when the chat should end.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if !strings.HasPrefix(input, "/") {
		r.send(ctx, line)
		return true
	}

	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return false
	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, chatHelp)
	case "/models":
		if err := r.refreshModels(ctx); err != nil {
			fmt.Fprintf(r.out, "Could not load models: %v\n", explain(err))
			return true
		}
		selected := ""
		if m := r.dispatcher.Session().Selected(); m != nil {
			selected = m.ID
		}
		printModels(r.out, r.models, selected)
	case "/use":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "Usage: /use <id>")
			return true
		}
		if _, err := registry.FindIn(r.models, fields[1]); err != nil {
			if err := r.refreshModels(ctx); err != nil {
				fmt.Fprintf(r.out, "Could not load models: %v\n", explain(err))
				return true
			}
		}
		if err := r.use(fields[1]); err != nil {
			fmt.Fprintln(r.out, err)
		}
	case "/history":
		r.printHistory()
	case "/clear":
		selected := r.dispatcher.Session().Selected()
		r.dispatcher = r.app.NewDispatcher()
		if selected != nil {
			r.dispatcher.Session().SelectModel(selected)
		}
		fmt.Fprintln(r.out, "Started a new conversation.")
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return true
}

func (r *repl) send(ctx context.Context, text string) {
	reply, err := r.dispatcher.Send(ctx, text)
	if err == nil {
		fmt.Fprintf(r.out, "assistant: %s\n", reply.Content)
		return
	}

	var verr *chat.ValidationError
	var derr *chat.DispatchError
	switch {
	case errors.As(err, &verr):
		if verr.Reason == chat.ReasonNoModel {
			fmt.Fprintln(r.out, "Select a model first with /use <id>.")
			return
		}
		fmt.Fprintf(r.out, "Not sent: %v\n", verr)
	case errors.As(err, &derr):
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out, "Cancelled.")
			return
		}
		fmt.Fprintln(r.out, derr.Notice)
	default:
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
}

func (r *repl) printHistory() {
	messages := r.dispatcher.Session().Display()
	if len(messages) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, msg := range messages {
		if msg.Pending {
			fmt.Fprintf(r.out, "%s: ...\n", msg.Role)
			continue
		}
		fmt.Fprintf(r.out, "%s: %s\n", msg.Role, msg.Content)
	}
}

func (r *repl) loadHistory(reader LineReader) {
	h, ok := reader.(historyReader)
	if !ok || r.app.HistoryFile == "" {
		return
	}
	f, err := os.Open(r.app.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := h.ReadHistory(f); err != nil {
		logging.Debugf("failed to read chat history %s: %v", r.app.HistoryFile, err)
	}
}

func (r *repl) saveHistory(reader LineReader) {
	h, ok := reader.(historyReader)
	if !ok || r.app.HistoryFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.app.HistoryFile), 0o700); err != nil {
		logging.Warningf("failed to create history directory: %v", err)
		return
	}
	f, err := os.OpenFile(r.app.HistoryFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		logging.Warningf("failed to save chat history: %v", err)
		return
	}
	defer f.Close()
	if _, err := h.WriteHistory(f); err != nil {
		logging.Warningf("failed to save chat history: %v", err)
	}
}
