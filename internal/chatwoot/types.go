package chatwoot

import "encoding/json"

// MessageType is the helpdesk-side direction of a message.
type MessageType string

const (
	MessageIncoming MessageType = "incoming"
	MessageOutgoing MessageType = "outgoing"
)

// Conversation statuses considered live for thread reuse.
const (
	StatusOpen    = "open"
	StatusPending = "pending"
)

// Inbox is a helpdesk channel endpoint.
type Inbox struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// ContactInbox binds a contact to an inbox through a source identifier.
type ContactInbox struct {
	SourceID string `json:"source_id"`
	Inbox    Inbox  `json:"inbox"`
}

// Contact is a helpdesk contact record.
type Contact struct {
	ID                   int            `json:"id"`
	Name                 string         `json:"name"`
	Email                string         `json:"email,omitempty"`
	PhoneNumber          string         `json:"phone_number,omitempty"`
	Identifier           string         `json:"identifier,omitempty"`
	CustomAttributes     map[string]any `json:"custom_attributes,omitempty"`
	AdditionalAttributes map[string]any `json:"additional_attributes,omitempty"`
	ContactInboxes       []ContactInbox `json:"contact_inboxes,omitempty"`
}

// SourceIDForInbox returns the source identifier binding this contact to
// the given inbox, or "" when no binding exists.
func (c Contact) SourceIDForInbox(inboxID int) string {
	for _, ci := range c.ContactInboxes {
		if ci.Inbox.ID == inboxID && ci.SourceID != "" {
			return ci.SourceID
		}
	}
	return ""
}

// NewContact holds the fields for contact creation.
type NewContact struct {
	InboxID              int
	Name                 string
	PhoneNumber          string
	Email                string
	Identifier           string
	CustomAttributes     map[string]any
	AdditionalAttributes map[string]any
}

// ContactPatch holds a partial contact update. Only non-zero fields are
// sent, so a patch never clears attributes it does not mention.
type ContactPatch struct {
	Name                 string
	Identifier           string
	CustomAttributes     map[string]any
	AdditionalAttributes map[string]any
}

// ConversationRef is the nested conversation envelope inside
// last_non_activity_message; it carries the thread-binding contact inbox.
type ConversationRef struct {
	ContactInbox ContactInbox `json:"contact_inbox"`
}

// NonActivityMessage is the last non-activity message on a conversation.
type NonActivityMessage struct {
	Conversation ConversationRef `json:"conversation"`
}

// Conversation is a helpdesk conversation scoped to one inbox and contact.
type Conversation struct {
	ID                     int                 `json:"id"`
	Status                 string              `json:"status"`
	InboxID                int                 `json:"inbox_id"`
	LastNonActivityMessage *NonActivityMessage `json:"last_non_activity_message,omitempty"`
}

// ThreadSourceID returns the source identifier binding this conversation to
// its network thread, or "" when the nested path is absent.
func (c Conversation) ThreadSourceID() string {
	if c.LastNonActivityMessage == nil {
		return ""
	}
	return c.LastNonActivityMessage.Conversation.ContactInbox.SourceID
}

// NewConversation holds the fields for conversation creation.
type NewConversation struct {
	InboxID          int
	SourceID         string
	ContactID        int
	CustomAttributes map[string]any
}

// contactsEnvelope decodes the two payload shapes the contact endpoints
// return: a bare array or a nested {"contacts": [...]} object.
type contactsEnvelope struct {
	Payload json.RawMessage `json:"payload"`
}

// createdContactEnvelope covers the shapes contact creation returns.
type createdContactEnvelope struct {
	ID      int      `json:"id"`
	Contact *Contact `json:"contact,omitempty"`
	Payload *struct {
		Contact *Contact `json:"contact,omitempty"`
	} `json:"payload,omitempty"`
}

// conversationsEnvelope wraps a conversation list.
type conversationsEnvelope struct {
	Payload []Conversation `json:"payload"`
}

// createdConversationEnvelope covers the shapes conversation creation
// returns: top-level id, payload.conversation.id, or payload.id.
type createdConversationEnvelope struct {
	ID      int `json:"id"`
	Payload *struct {
		ID           int           `json:"id"`
		Conversation *Conversation `json:"conversation,omitempty"`
	} `json:"payload,omitempty"`
}

// messageEnvelope covers message creation responses.
type messageEnvelope struct {
	ID      int `json:"id"`
	Payload *struct {
		ID int `json:"id"`
	} `json:"payload,omitempty"`
}
