package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Events broadcast after an entry mutation commits. Clients react by refetching entries and links.
const (
	EventEntryCreated     = "entry:created"
	EventEntryUpdated     = "entry:updated"
	EventEntryDeleted     = "entry:deleted"
	EventEntryFileDeleted = "entry:file-deleted"
)

// Message is the notification delivered to the subscribers of an organization.
type Message struct {
	Event          string `json:"event"`
	OrganizationID string `json:"organizationId"`
	EntryID        string `json:"entryId,omitempty"`
}

// Broadcaster delivers a message to every client subscribed to the message's organization.
// Delivery is best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *Message) error
}

// Discard drops every message.
type Discard struct{}

func (Discard) Broadcast(context.Context, *Message) error {
	return nil
}

// Fanout forwards each message to all of its broadcasters.
type Fanout []Broadcaster

func (f Fanout) Broadcast(ctx context.Context, msg *Message) error {
	var errs []error
	for _, b := range f {
		if err := b.Broadcast(ctx, msg); err != nil {
			logrus.Warnf("broadcast %s to organization %s failed: %v", msg.Event, msg.OrganizationID, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
