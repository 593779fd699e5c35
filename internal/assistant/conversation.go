package assistant

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FallbackMessage replaces the reply whenever the remote call fails.
const FallbackMessage = "Sorry, I couldn't reach the analytics assistant right now. Please try your question again in a moment."

const preamble = `You are an analytics assistant for a multi-location restaurant group.
Answer questions about revenue, orders, customers, menu items and loyalty using
only the data snapshot and metrics below. Quote dollar amounts with two decimals.
If the data cannot answer a question, say so plainly.`

var (
	ErrBusy          = errors.New("a question is already pending")
	ErrEmptyQuestion = errors.New("question is required")
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	// Fallback marks an assistant message substituted after a failure.
	Fallback bool `json:"fallback,omitempty"`
}

// SystemPrompt prefixes the serialized data context with the fixed
// instructions.
func SystemPrompt(context string) string {
	return preamble + "\n\n" + context
}

// Conversation is an append-only question log with at most one question
// in flight.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	pending  bool

	answerer Answerer
	logger   *slog.Logger
}

func NewConversation(answerer Answerer, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{answerer: answerer, logger: logger}
}

// Ask appends question, calls the answerer with the full history and appends
// exactly one assistant message. A failed call yields FallbackMessage and a
// nil error; only ErrBusy and ErrEmptyQuestion are returned.
func (c *Conversation) Ask(ctx context.Context, question, systemPrompt string) (Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Message{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}
	c.pending = true
	c.messages = append(c.messages, newMessage(RoleUser, question))
	history := slices.Clone(c.messages)
	c.mu.Unlock()

	reply := c.call(ctx, history, systemPrompt)

	c.mu.Lock()
	c.messages = append(c.messages, reply)
	c.pending = false
	c.mu.Unlock()

	return reply, nil
}

func (c *Conversation) call(ctx context.Context, history []Message, systemPrompt string) (reply Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("assistant call panicked", "panic", r, "messages", len(history))
			reply = fallback()
		}
	}()

	if c.answerer == nil {
		return fallback()
	}

	text, err := c.answerer.Answer(ctx, history, systemPrompt)
	if err != nil {
		c.logger.Warn("assistant call failed",
			"error", err,
			"messages", len(history),
		)
		return fallback()
	}
	return newMessage(RoleAssistant, text)
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func fallback() Message {
	m := newMessage(RoleAssistant, FallbackMessage)
	m.Fallback = true
	return m
}
