// Package notifier delivers best-effort email notifications for project
// membership changes. Failures are logged and never surfaced to the caller.
package notifier

import (
	"context"
	"log"
	"sync"
)

// Kind identifies the notification template to use.
type Kind string

const (
	KindInvitation     Kind = "invitation"
	KindKicked         Kind = "kicked"
	KindRoleUpdated    Kind = "role_updated"
	KindProjectDeleted Kind = "project_deleted"
	KindIssueAssigned  Kind = "issue_assigned"
)

// Notification is one message addressed to one or more accounts.
type Notification struct {
	Kind        Kind
	To          []string
	ProjectName string
	Data        map[string]string
}

// Notifier is a single delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Dispatcher fans a notification out to every registered channel.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{notifiers: make(map[string]Notifier)}
}

func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Dispatch delivers to all channels. Errors are collected into the log; the
// first one is returned so tests can observe failures.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if len(n.To) == 0 {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var first error
	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			log.Printf("notifier %s: deliver %s failed: %v", notifier.Name(), n.Kind, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Go dispatches in the background; the HTTP response never waits on delivery.
func (d *Dispatcher) Go(n Notification) {
	go func() {
		_ = d.Dispatch(context.Background(), n)
	}()
}

func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for _, notifier := range d.notifiers {
		if err := notifier.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
