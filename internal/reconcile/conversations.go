package reconcile

import (
	"context"
	"fmt"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
)

// EnsureConversation returns the id of the conversation carrying the
// thread bound to sourceID in the given inbox, creating one when no open
// or pending conversation matches. Resolved conversations are never
// reopened; a new thread is started instead.
//
// Calls for the same (contact, source) pair are serialized to keep
// concurrent duplicate inbound events from racing two creations.
func (s *Service) EnsureConversation(ctx context.Context, inboxID, contactID int, sourceID string, customAttributes map[string]any) (int, error) {
	unlock := s.locks.lock(fmt.Sprintf("%d|%s", contactID, sourceID))
	defer unlock()

	conversations, err := s.store.ListConversations(ctx, contactID)
	if err != nil {
		return 0, fmt.Errorf("listing conversations: %w", err)
	}

	// Helpdesk order is most-recent-first; first live match wins.
	for _, conv := range conversations {
		if conv.Status != chatwoot.StatusOpen && conv.Status != chatwoot.StatusPending {
			continue
		}
		if conv.ThreadSourceID() == sourceID {
			s.log.Info().Int("conversation", conv.ID).Str("source_id", sourceID).
				Msg("conversation reused")
			return conv.ID, nil
		}
	}

	created, err := s.store.CreateConversation(ctx, chatwoot.NewConversation{
		InboxID:          inboxID,
		SourceID:         sourceID,
		ContactID:        contactID,
		CustomAttributes: customAttributes,
	})
	if err != nil {
		return 0, fmt.Errorf("creating conversation: %w", err)
	}

	s.log.Info().Int("conversation", created.ID).Int("inbox", inboxID).
		Str("source_id", sourceID).Msg("conversation created")
	return created.ID, nil
}
