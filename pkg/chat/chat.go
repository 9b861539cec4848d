// Package chat models the conversation with Santa shown next to the globe.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unklstewy/santa-scope/pkg/genai"
)

var (
	// ErrBusy is returned when a message is sent while a reply is pending.
	ErrBusy = errors.New("chat: waiting for a reply")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleSanta  Role = "santa"
	RoleSystem Role = "system"
)

// Message is one entry in the conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// WelcomeID identifies the greeting every conversation starts with.
const WelcomeID = "welcome"

// Welcome returns the greeting message.
func Welcome(now time.Time) Message {
	return Message{
		ID:        WelcomeID,
		Role:      RoleSanta,
		Text:      "Ho Ho Ho! Merry Christmas! I'm checking the flight schedule. How can I help you?",
		Timestamp: now,
	}
}

// Responder produces Santa's reply. It must not fail; errors are expressed
// as in-character text.
type Responder interface {
	SendMessage(ctx context.Context, history []genai.Turn, message string) string
}

// Store persists the conversation between runs.
type Store interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, msgs []Message) error
}

// Session is a single conversation. It is safe for concurrent use.
type Session struct {
	responder Responder
	store     Store
	logger    zerolog.Logger
	now       func() time.Time

	mu         sync.Mutex
	messages   []Message
	busy       bool
	generation uint64
	seq        int
}

// NewSession creates a session, restoring history from store when
// available. A nil store keeps the conversation in memory only.
func NewSession(ctx context.Context, responder Responder, store Store, logger zerolog.Logger) *Session {
	s := &Session{
		responder: responder,
		store:     store,
		logger:    logger.With().Str("component", "chat").Logger(),
		now:       time.Now,
	}

	if store != nil {
		msgs, err := store.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("could not restore chat history")
		}
		s.messages = msgs
	}
	if len(s.messages) == 0 {
		s.messages = []Message{Welcome(s.now())}
	}
	s.seq = len(s.messages)
	return s
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Busy reports whether a reply is pending.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Send posts a user message and waits for Santa's reply. The reply is
// dropped if the session is reset while it is pending.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Message{}, ErrBusy
	}
	s.busy = true
	gen := s.generation
	history := turns(s.messages)
	s.messages = append(s.messages, s.newMessage(RoleUser, text))
	s.mu.Unlock()

	defer s.release(gen)

	s.save(ctx)

	reply := s.responder.SendMessage(ctx, history, text)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("chat: conversation reset while waiting for a reply")
	}
	msg := s.newMessage(RoleSanta, reply)
	s.messages = append(s.messages, msg)
	s.busy = false
	s.mu.Unlock()

	s.save(ctx)
	return msg, nil
}

// Reset clears the conversation back to the welcome message. Pending
// replies are discarded.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.busy = false
	s.messages = []Message{Welcome(s.now())}
	s.seq = 1
	s.mu.Unlock()
	s.save(ctx)
}

// release clears the busy flag unless the conversation was reset since gen,
// in which case a newer turn may own it.
func (s *Session) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.busy = false
	}
}

// newMessage must be called with mu held.
func (s *Session) newMessage(role Role, text string) Message {
	s.seq++
	now := s.now()
	return Message{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), s.seq),
		Role:      role,
		Text:      text,
		Timestamp: now,
	}
}

func (s *Session) save(ctx context.Context) {
	if s.store == nil {
		return
	}
	msgs := s.Messages()
	if err := s.store.Save(ctx, msgs); err != nil {
		s.logger.Warn().Err(err).Int("messages", len(msgs)).Msg("could not save chat history")
	}
}

// turns converts messages to the history sent with a new message. System
// messages are not part of the dialogue.
func turns(msgs []Message) []genai.Turn {
	out := make([]genai.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, genai.Turn{FromUser: m.Role == RoleUser, Text: m.Text})
	}
	return out
}
