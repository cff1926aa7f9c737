package browsing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgellow/login-front/internal/log"
)

// MessageTypeOAuthCode tags a relayed authorization code.
const MessageTypeOAuthCode = "oauth_code"

// Message is a cross-window message. Origin is stamped by the Mailbox on
// delivery and cannot be set by the sender.
type Message struct {
	Type   string `json:"type"`
	Code   string `json:"code,omitempty"`
	State  string `json:"state,omitempty"`
	Origin string `json:"-"`
}

// OriginPolicy decides whether a message from origin is accepted.
type OriginPolicy func(origin string) bool

// SameOrigin accepts only messages from pageOrigin.
func SameOrigin(pageOrigin string) OriginPolicy {
	return func(origin string) bool {
		return origin != "" && origin == pageOrigin
	}
}

// AllowOrigins accepts pageOrigin plus the listed origins.
func AllowOrigins(pageOrigin string, extra ...string) OriginPolicy {
	allowed := append([]string{pageOrigin}, extra...)
	return func(origin string) bool {
		return origin != "" && slices.Contains(allowed, origin)
	}
}

// ErrMailboxClosed is returned when posting to a closed mailbox.
var ErrMailboxClosed = errors.New("mailbox closed")

// ErrTargetOrigin is returned when the sender's targetOrigin does not match
// the receiving context.
var ErrTargetOrigin = errors.New("target origin mismatch")

// Mailbox is the receiving end of a context's message channel.
type Mailbox struct {
	origin string
	ch     chan Message
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

// NewMailbox creates a mailbox for a context at origin.
func NewMailbox(origin string, buffer int) *Mailbox {
	if buffer <= 0 {
		buffer = 8
	}
	return &Mailbox{origin: origin, ch: make(chan Message, buffer), done: make(chan struct{})}
}

// Origin is the receiving context's origin.
func (m *Mailbox) Origin() string {
	return m.origin
}

// Deliver posts msg from a sender at senderOrigin. targetOrigin must equal
// the mailbox origin or be "*".
func (m *Mailbox) Deliver(ctx context.Context, msg Message, senderOrigin, targetOrigin string) error {
	if targetOrigin != "*" && targetOrigin != m.origin {
		log.LogDebugWithFields("browsing", "Dropped message for another origin", map[string]any{
			"target": targetOrigin,
			"origin": m.origin,
		})
		return fmt.Errorf("%w: %s", ErrTargetOrigin, targetOrigin)
	}
	msg.Origin = senderOrigin

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.senders.Add(1)
	m.mu.Unlock()
	defer m.senders.Done()

	select {
	case m.ch <- msg:
		return nil
	case <-m.done:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages is the receive channel. It is closed by Close.
func (m *Mailbox) Messages() <-chan Message {
	return m.ch
}

// Close stops delivery and fails blocked senders. Safe to call more than
// once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.senders.Wait()
	close(m.ch)
}

// MailboxRef is an OpenerRef that posts into a Mailbox from a context at
// senderOrigin.
type MailboxRef struct {
	Mailbox      *Mailbox
	SenderOrigin string
}

var _ OpenerRef = MailboxRef{}

func (r MailboxRef) Closed() bool {
	r.Mailbox.mu.Lock()
	defer r.Mailbox.mu.Unlock()
	return r.Mailbox.closed
}

// postTimeout bounds a post into a full mailbox
const postTimeout = time.Second

func (r MailboxRef) PostMessage(msg Message, targetOrigin string) error {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	return r.Mailbox.Deliver(ctx, msg, r.SenderOrigin, targetOrigin)
}
