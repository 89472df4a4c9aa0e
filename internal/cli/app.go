package cli

import (
	"io"
	"path/filepath"

	"github.com/peterh/liner"

	"github.com/asedra/lonage-ai-platform/internal/auth"
	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/chat"
	"github.com/asedra/lonage-ai-platform/internal/config"
	"github.com/asedra/lonage-ai-platform/internal/registry"
	"github.com/asedra/lonage-ai-platform/internal/storage"
)

// LineReader is the prompt surface of *liner.State
type LineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// historyReader is implemented by readers that can persist their history
type historyReader interface {
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
}

// NewLiner opens a terminal line editor. Ctrl+C aborts the current prompt.
func NewLiner() LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}

// App carries what every console command needs.
type App struct {
	Config    *config.Config
	Tokens    *storage.TokenStore
	Source    auth.TokenSource
	Client    *backend.Client
	Registry  *registry.Accessor
	NewReader func() LineReader

	// HistoryFile is where the chat REPL keeps input history; empty disables it
	HistoryFile string
}

// NewApp wires the backend client to the configured token sources. An
// explicit CONSOLE_TOKEN wins over the saved login.
func NewApp(cfg *config.Config) *App {
	tokens := storage.NewTokenStore(cfg.Auth.TokenFile, cfg.Auth.TokenPassphrase)
	source := auth.FirstOf(auth.StaticToken(cfg.Auth.Token), tokens)
	client := backend.NewClient(cfg.BackendURL, cfg.Chat.RequestTimeout, source)

	return &App{
		Config:      cfg,
		Tokens:      tokens,
		Source:      source,
		Client:      client,
		Registry:    registry.New(client),
		NewReader:   NewLiner,
		HistoryFile: defaultHistoryFile(cfg.Auth.TokenFile),
	}
}

// NewDispatcher starts a fresh chat session against the backend
func (a *App) NewDispatcher() *chat.Dispatcher {
	return chat.NewDispatcher(chat.NewSession(), a.Client, chat.Options{
		HostedModel:   a.Config.Chat.HostedModel,
		FallbackReply: a.Config.Chat.FallbackReply,
	})
}

func defaultHistoryFile(tokenFile string) string {
	if tokenFile == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(tokenFile), "chat_history")
}
