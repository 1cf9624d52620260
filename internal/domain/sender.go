package domain

import "context"

// SendOptions tune a single text send.
type SendOptions struct {
	// AccessHash lets the telegram gateway address users who never messaged
	// the account first. Ignored by other channels.
	AccessHash *int64
	// SuppressEcho stops the channel adapter from reflecting the send back
	// as its own outbound event. The helpdesk-originated flow sets this so
	// the message is not created in the helpdesk a second time.
	SuppressEcho bool
}

// Sender is the capability a channel adapter exposes to the routing core.
// Each sender is bound to exactly one helpdesk inbox.
type Sender interface {
	// Channel returns the channel tag this sender serves.
	Channel() string

	// InboxID returns the helpdesk inbox bound to this channel.
	InboxID() int

	// SendText delivers a text payload to the recipient.
	SendText(ctx context.Context, recipientID string, text Text, opts SendOptions) error

	// SendMedia delivers a media payload to the recipient.
	SendMedia(ctx context.Context, recipientID string, media Media) error
}

// TypingSender is optionally implemented by senders that can simulate a
// typing presence signal before a send.
type TypingSender interface {
	SetTyping(ctx context.Context, recipientID string, typing bool, accessHash *int64) error
}
