package chat

import (
	"context"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/models"
)

// DefaultFallbackReply is used when a successful reply carries no text
const DefaultFallbackReply = "Sorry, I could not produce a response."

// Backend sends chat payloads
type Backend interface {
	Chat(ctx context.Context, payload any) (*backend.ChatReply, error)
}

// Options tune the dispatcher
type Options struct {
	HostedModel   string
	FallbackReply string
}

// Dispatcher sends user messages for a session and records the replies.
type Dispatcher struct {
	session     *Session
	backend     Backend
	hostedModel string
	fallback    string
}

// NewDispatcher creates a dispatcher bound to one session
func NewDispatcher(session *Session, b Backend, opts Options) *Dispatcher {
	if opts.HostedModel == "" {
		opts.HostedModel = DefaultHostedModel
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = DefaultFallbackReply
	}
	return &Dispatcher{
		session:     session,
		backend:     b,
		hostedModel: opts.HostedModel,
		fallback:    opts.FallbackReply,
	}
}

// Session returns the session this dispatcher writes to
func (d *Dispatcher) Session() *Session {
	return d.session
}

// Send appends text as a user message, posts the whole transcript to the
// selected model and appends the reply. Rejections return a
// *ValidationError; backend failures return a *DispatchError and leave the
// user message in place. The session is idle again when Send returns.
func (d *Dispatcher) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	cred, history, err := d.session.admit(text)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer d.session.EndAwaiting()

	payload, err := BuildPayload(cred, d.hostedModel, history)
	if err != nil {
		return models.ChatMessage{}, newDispatchError(err)
	}

	logging.Debugf("dispatching %d messages to %s model %s", len(history), cred.Kind.Description(), cred.ID)

	reply, err := d.backend.Chat(ctx, payload)
	if err != nil {
		logging.Errorf("chat with model %s failed: %v", cred.ID, err)
		return models.ChatMessage{}, newDispatchError(err)
	}

	content, ok := reply.Text()
	if !ok {
		logging.Warningf("chat reply from model %s had no text, using fallback", cred.ID)
		content = d.fallback
	}

	msg := models.NewAssistantMessage(content)
	d.session.Append(msg)
	return msg, nil
}
