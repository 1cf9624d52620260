package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
)

// platformIDKeys are the custom attribute keys carrying exact, network-
// scoped user ids. Attribute-filter lookup is restricted to these.
var platformIDKeys = []string{"vk_user_id", "telegram_user_id"}

// identifierTag maps a platform id key to the network tag used in the
// derived contact identifier string.
var identifierTag = map[string]string{
	"vk_user_id":       "vk",
	"telegram_user_id": "telegram",
}

// EnsureContactParams are the inputs for identity resolution.
type EnsureContactParams struct {
	InboxID              int
	SearchKey            string
	Name                 string
	Phone                string
	Email                string
	CustomAttributes     map[string]any
	AdditionalAttributes map[string]any
}

// EnsuredContact is the result of identity resolution: the stable helpdesk
// contact id and the per-inbox source identifier.
type EnsuredContact struct {
	ContactID int
	SourceID  string
}

// MergeResult reports a best-effort attribute merge. A failed merge never
// blocks resolution; the reason only reaches the log.
type MergeResult struct {
	Applied bool
	Err     error
}

// EnsureContact finds or creates the helpdesk contact for a raw network
// identity. Lookup steps are best-effort: a failed filter or search only
// disables that step. Creation failure is the one hard failure.
func (s *Service) EnsureContact(ctx context.Context, p EnsureContactParams) (EnsuredContact, error) {
	identifier := deriveIdentifier(p.CustomAttributes)

	// 1) Exact attribute lookup on platform id keys.
	contacts := s.lookupByAttributes(ctx, p.CustomAttributes)

	// 2) Free-text fallback: derived identifier first, then the search key.
	if len(contacts) == 0 {
		contacts = s.lookupBySearch(ctx, identifier, p.SearchKey)
	}

	var contact chatwoot.Contact
	if len(contacts) > 0 {
		contact = contacts[0]

		if len(p.CustomAttributes) > 0 || p.AdditionalAttributes != nil {
			res := s.mergeAttributes(ctx, contact.ID, identifier, p.CustomAttributes, p.AdditionalAttributes)
			if res.Err != nil {
				s.log.Warn().Err(res.Err).Int("contact", contact.ID).Msg("attribute merge skipped")
			}
		}
		if p.Name != "" && strings.TrimSpace(contact.Name) == "" {
			if _, err := s.store.UpdateContact(ctx, contact.ID, chatwoot.ContactPatch{Name: p.Name}); err != nil {
				s.log.Warn().Err(err).Int("contact", contact.ID).Msg("name backfill skipped")
			}
		}
	} else {
		name := p.Name
		if name == "" {
			name = p.SearchKey
		}
		created, err := s.store.CreateContact(ctx, chatwoot.NewContact{
			InboxID:              p.InboxID,
			Name:                 name,
			PhoneNumber:          p.Phone,
			Email:                p.Email,
			Identifier:           identifier,
			CustomAttributes:     p.CustomAttributes,
			AdditionalAttributes: p.AdditionalAttributes,
		})
		if err != nil {
			return EnsuredContact{}, fmt.Errorf("creating contact: %w", err)
		}
		contact = created
	}

	sourceID := contact.SourceIDForInbox(p.InboxID)
	if sourceID == "" {
		sourceID = p.SearchKey
	}

	s.log.Info().Int("contact", contact.ID).Int("inbox", p.InboxID).
		Str("source_id", sourceID).Msg("contact ensured")
	return EnsuredContact{ContactID: contact.ID, SourceID: sourceID}, nil
}

// lookupByAttributes filters the contact store on the platform id keys
// present in attrs. Errors disable the step.
func (s *Service) lookupByAttributes(ctx context.Context, attrs map[string]any) []chatwoot.Contact {
	lookup := map[string]any{}
	for _, key := range platformIDKeys {
		if v, ok := attrs[key]; ok {
			lookup[key] = v
		}
	}
	if len(lookup) == 0 {
		return nil
	}

	contacts, err := s.store.FilterContacts(ctx, lookup)
	if err != nil {
		// Some instances reject filters on unregistered custom attributes.
		s.log.Warn().Err(err).Msg("contact filter failed")
		return nil
	}
	return contacts
}

// lookupBySearch tries each query in order and stops at the first
// non-empty result. Errors disable only the failing query.
func (s *Service) lookupBySearch(ctx context.Context, queries ...string) []chatwoot.Contact {
	seen := map[string]bool{}
	for _, q := range queries {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true

		contacts, err := s.store.SearchContacts(ctx, q)
		if err != nil {
			s.log.Warn().Err(err).Str("query", q).Msg("contact search failed")
			continue
		}
		if len(contacts) > 0 {
			return contacts
		}
	}
	return nil
}

// mergeAttributes patches new attribute maps onto an existing contact.
func (s *Service) mergeAttributes(ctx context.Context, contactID int, identifier string, custom, additional map[string]any) MergeResult {
	_, err := s.store.UpdateContact(ctx, contactID, chatwoot.ContactPatch{
		Identifier:           identifier,
		CustomAttributes:     custom,
		AdditionalAttributes: additional,
	})
	if err != nil {
		return MergeResult{Err: err}
	}
	return MergeResult{Applied: true}
}

// deriveIdentifier builds the "<network>:<user-id>" contact identifier from
// platform id attributes, preferring vk over telegram to match the
// attribute-writing order of ingestion.
func deriveIdentifier(attrs map[string]any) string {
	for _, key := range platformIDKeys {
		if v, ok := attrs[key]; ok {
			if id := payload.Stringify(v); id != "" {
				return identifierTag[key] + ":" + id
			}
		}
	}
	return ""
}
