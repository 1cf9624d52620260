// Package reconcile maps raw per-network identities onto stable helpdesk
// contact records and decides which conversation thread carries each
// message. It keeps no state of its own: every decision is recomputed from
// fresh helpdesk queries.
package reconcile

import (
	"context"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
)

// ContactStore is the helpdesk contact surface the resolver needs.
type ContactStore interface {
	SearchContacts(ctx context.Context, q string) ([]chatwoot.Contact, error)
	FilterContacts(ctx context.Context, attrs map[string]any) ([]chatwoot.Contact, error)
	CreateContact(ctx context.Context, nc chatwoot.NewContact) (chatwoot.Contact, error)
	UpdateContact(ctx context.Context, contactID int, patch chatwoot.ContactPatch) (chatwoot.Contact, error)
}

// ConversationStore is the helpdesk conversation surface the resolver needs.
type ConversationStore interface {
	ListConversations(ctx context.Context, contactID int) ([]chatwoot.Conversation, error)
	CreateConversation(ctx context.Context, nc chatwoot.NewConversation) (chatwoot.Conversation, error)
}

// MessageStore is the helpdesk message surface the pipeline needs.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID int, content string, messageType chatwoot.MessageType) (int, error)
	CreateMessageWithAttachment(ctx context.Context, conversationID int, content, filePath, contentType string, messageType chatwoot.MessageType) (int, error)
}

// Store bundles the three helpdesk surfaces; *chatwoot.Client satisfies it.
type Store interface {
	ContactStore
	ConversationStore
	MessageStore
}

// Service is the identity and conversation reconciliation engine.
type Service struct {
	store Store
	locks *keyedMutex
	log   *logging.Logger
}

// NewService creates a reconciliation service over a helpdesk store.
func NewService(store Store, log *logging.Logger) *Service {
	return &Service{
		store: store,
		locks: newKeyedMutex(),
		log:   log.Sub("reconcile"),
	}
}

// CreateMessage posts a message on a conversation.
func (s *Service) CreateMessage(ctx context.Context, conversationID int, content string, messageType chatwoot.MessageType) (int, error) {
	id, err := s.store.CreateMessage(ctx, conversationID, content, messageType)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("conversation", conversationID).Int("message", id).
		Str("type", string(messageType)).Msg("message created")
	return id, nil
}

// CreateMessageWithAttachment posts a message with an uploaded file.
func (s *Service) CreateMessageWithAttachment(ctx context.Context, conversationID int, content, filePath, contentType string, messageType chatwoot.MessageType) (int, error) {
	id, err := s.store.CreateMessageWithAttachment(ctx, conversationID, content, filePath, contentType, messageType)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("conversation", conversationID).Int("message", id).
		Str("type", string(messageType)).Msg("message with attachment created")
	return id, nil
}
