package chat

import (
	"strings"
	"sync"

	"github.com/asedra/lonage-ai-platform/internal/models"
)

// State is the dispatch state of a session
type State int

const (
	StateIdle State = iota
	StateAwaiting
)

func (s State) String() string {
	if s == StateAwaiting {
		return "awaiting"
	}
	return "idle"
}

// Session is one conversation: the transcript, the selected model and
// whether a reply is pending. It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	selected *models.ModelCredential
	awaiting bool
}

// NewSession returns an idle session whose transcript starts with seed.
func NewSession(seed ...models.ChatMessage) *Session {
	s := &Session{}
	if len(seed) > 0 {
		s.messages = append(make([]models.ChatMessage, 0, len(seed)), seed...)
	}
	return s
}

// SelectModel replaces the selection. Passing nil clears it. A dispatch
// already in flight keeps the credential it started with.
func (s *Session) SelectModel(m *models.ModelCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m == nil {
		s.selected = nil
		return
	}
	cp := *m
	s.selected = &cp
}

// Selected returns a copy of the selected credential, or nil
func (s *Session) Selected() *models.ModelCredential {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return nil
	}
	cp := *s.selected
	return &cp
}

// Append adds a message to the end of the transcript
func (s *Session) Append(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// BeginAwaiting marks a reply as pending. It panics if one already is.
func (s *Session) BeginAwaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAwaitingLocked()
}

func (s *Session) beginAwaitingLocked() {
	if s.awaiting {
		panic("chat: BeginAwaiting called while already awaiting")
	}
	s.awaiting = true
}

// EndAwaiting returns the session to idle
func (s *Session) EndAwaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting = false
}

// Messages returns a copy of the transcript, oldest first
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Awaiting reports whether a reply is pending
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// State returns StateAwaiting while a reply is pending
func (s *Session) State() State {
	if s.Awaiting() {
		return StateAwaiting
	}
	return StateIdle
}

// Display is the transcript as a renderer shows it: a pending assistant
// placeholder follows the messages while a reply is awaited.
func (s *Session) Display() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.messages), len(s.messages)+1)
	copy(out, s.messages)
	if s.awaiting {
		out = append(out, models.PendingPlaceholder())
	}
	return out
}

// admit checks preconditions, appends the user message and enters
// Awaiting in one critical section. It returns the credential and history
// the dispatch must use.
func (s *Session) admit(text string) (models.ModelCredential, []models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return models.ModelCredential{}, nil, &ValidationError{Reason: ReasonNoModel}
	}
	if strings.TrimSpace(text) == "" {
		return models.ModelCredential{}, nil, &ValidationError{Reason: ReasonEmptyInput}
	}
	if s.awaiting {
		return models.ModelCredential{}, nil, &ValidationError{Reason: ReasonAwaiting}
	}
	cred := *s.selected
	if err := cred.Validate(); err != nil {
		return models.ModelCredential{}, nil, &ValidationError{Reason: ReasonInvalidModel, Err: err}
	}

	s.messages = append(s.messages, models.NewUserMessage(text))
	s.beginAwaitingLocked()

	return cred, models.History(s.messages), nil
}
