// Package notify holds the transient success/error banners shown to operators.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-console/internal/metrics"
)

// Kind distinguishes the two banner slots.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const (
	DefaultSuccessTTL = 4 * time.Second
	DefaultErrorTTL   = 5 * time.Second
)

// Message is one visible banner.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is what is currently visible; nil slots are empty.
type State struct {
	Success *Message `json:"success,omitempty"`
	Error   *Message `json:"error,omitempty"`
}

// Channel keeps at most one message per kind. A new message replaces the previous one
// and its clear timer; timers are never stacked.
type Channel struct {
	mu       sync.Mutex
	ttl      map[Kind]time.Duration
	current  map[Kind]*Message
	timers   map[Kind]*time.Timer
	onChange func()
	closed   bool
	now      func() time.Time
}

// New builds a channel. Non-positive TTLs use the defaults. onChange, if set, is called
// outside the lock after every set or clear.
func New(successTTL, errorTTL time.Duration, onChange func()) *Channel {
	if successTTL <= 0 {
		successTTL = DefaultSuccessTTL
	}
	if errorTTL <= 0 {
		errorTTL = DefaultErrorTTL
	}
	return &Channel{
		ttl:      map[Kind]time.Duration{KindSuccess: successTTL, KindError: errorTTL},
		current:  make(map[Kind]*Message),
		timers:   make(map[Kind]*time.Timer),
		onChange: onChange,
		now:      time.Now,
	}
}

// NotifySuccess shows text in the success slot.
func (c *Channel) NotifySuccess(text string) Message { return c.set(KindSuccess, text) }

// NotifyError shows text in the error slot.
func (c *Channel) NotifyError(text string) Message { return c.set(KindError, text) }

func (c *Channel) set(kind Kind, text string) Message {
	c.mu.Lock()
	ttl := c.ttl[kind]
	msg := Message{ID: uuid.NewString(), Kind: kind, Text: text, ExpiresAt: c.now().Add(ttl)}
	if c.closed {
		c.mu.Unlock()
		return msg
	}
	if t := c.timers[kind]; t != nil {
		t.Stop()
	}
	c.current[kind] = &msg
	id := msg.ID
	c.timers[kind] = time.AfterFunc(ttl, func() { c.expire(kind, id) })
	c.mu.Unlock()

	metrics.ObserveNotification(string(kind))
	c.changed()
	return msg
}

// expire clears kind only if id is still the visible message; a replaced timer that
// already fired must not wipe its successor.
func (c *Channel) expire(kind Kind, id string) {
	c.mu.Lock()
	cur := c.current[kind]
	if cur == nil || cur.ID != id {
		c.mu.Unlock()
		return
	}
	delete(c.current, kind)
	delete(c.timers, kind)
	c.mu.Unlock()
	c.changed()
}

// Clear empties kind immediately.
func (c *Channel) Clear(kind Kind) {
	c.mu.Lock()
	if t := c.timers[kind]; t != nil {
		t.Stop()
	}
	_, had := c.current[kind]
	delete(c.current, kind)
	delete(c.timers, kind)
	c.mu.Unlock()
	if had {
		c.changed()
	}
}

// Current returns copies of the visible messages.
func (c *Channel) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	var st State
	if m := c.current[KindSuccess]; m != nil {
		cp := *m
		st.Success = &cp
	}
	if m := c.current[KindError]; m != nil {
		cp := *m
		st.Error = &cp
	}
	return st
}

// Close stops pending timers; later notifications are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for kind, t := range c.timers {
		t.Stop()
		delete(c.timers, kind)
	}
}

func (c *Channel) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
