// Package messaging defines the events published by the service and the publisher abstraction.
package messaging

import (
	"context"
)

const (
	SalesStream         = "SALES"
	SalesSubjects       = "sales.>"
	SalesCreatedSubject = "sales.created"
	SalesDeletedSubject = "sales.deleted"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}
