// Package alert handles sending notifications about bracket activity.
package alert

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("notifier is closed")

// Notifier is the interface for sending alert messages.
type Notifier interface {
	Send(message string) error
	Close() error
}

// NoOpNotifier is a notifier that does nothing. It is used when alerting is disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing and returns nil.
func (n *NoOpNotifier) Send(message string) error {
	return nil
}

// Close does nothing and returns nil.
func (n *NoOpNotifier) Close() error {
	return nil
}

// LogNotifier writes alerts to a zap logger and keeps the most recent ones
// for the status endpoint.
type LogNotifier struct {
	logger *zap.Logger
	mu     sync.Mutex
	recent []string
	limit  int
	closed bool
}

// NewLogNotifier creates a LogNotifier remembering up to limit messages.
func NewLogNotifier(logger *zap.Logger, limit int) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 50
	}
	return &LogNotifier{logger: logger, limit: limit}
}

// Send logs message.
func (n *LogNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.logger.Info("alert", zap.String("message", message))
	n.recent = append(n.recent, message)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
	return nil
}

// Recent returns the remembered messages, oldest first.
func (n *LogNotifier) Recent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.recent...)
}

// Close stops accepting messages.
func (n *LogNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}
