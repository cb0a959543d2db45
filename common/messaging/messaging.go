// Package messaging provides abstractions for message broker communication.
// It defines the publishing side used to fan enriched points and rejected
// batches out to other consumers without coupling to a specific broker.
package messaging

import (
	"context"
	"time"
)

// Message represents a message sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message is published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was built.
	Timestamp time.Time
}

// NewMessage builds a message for subject, applying opts.
func NewMessage(subject string, data []byte, opts ...PublishOption) *Message {
	o := publishOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Message{
		Subject:   subject,
		Data:      data,
		Metadata:  o.headers,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with full control over headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Client is a Publisher that reports broker connectivity.
type Client interface {
	Publisher

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}

// PublishOption configures message publishing behavior.
type PublishOption func(*publishOptions)

type publishOptions struct {
	headers map[string]string
}

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(o *publishOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}
