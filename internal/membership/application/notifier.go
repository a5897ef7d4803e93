package application

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is user-facing feedback produced by an operation.
type Notification struct {
	Level   Level            `json:"level"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Message string           `json:"message"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Inbox collects notifications until drained. The CLI and the MCP server
// drain it after every operation.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

func (i *Inbox) Notify(_ context.Context, n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
}

// Drain returns and clears the collected notifications.
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	return out
}

// Navigator receives the checkout URL the user must continue to.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error { return f(ctx, url) }

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, Notification) {}

type discardNavigator struct{}

func (discardNavigator) Navigate(context.Context, string) error { return nil }
