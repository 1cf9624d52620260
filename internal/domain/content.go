// Package domain defines the network-agnostic message model and the
// channel sender contract shared by the gateway.
package domain

// Channel tags for the networks bridged into the helpdesk. Recipient
// derivation refuses to guess for anything outside this set.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
	ChannelVK       = "vk"
)

// ContentKind discriminates the unified content variants.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindMedia       ContentKind = "media"
	KindSticker     ContentKind = "sticker"
	KindContactCard ContentKind = "contact"
	KindLocation    ContentKind = "location"
)

// Content is a network-agnostic message payload. Values are ephemeral:
// built per event, handed to a sender, never stored.
type Content interface {
	Kind() ContentKind
}

// MediaType classifies media content.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// Text is a plain text payload.
type Text struct {
	Body string
}

func (Text) Kind() ContentKind { return KindText }

// Media references a downloadable file by URL.
type Media struct {
	Type     MediaType
	URL      string
	Caption  string
	Filename string
	MimeType string
	// Transcript of audio content, when a transcription is available.
	Transcript string
}

func (Media) Kind() ContentKind { return KindMedia }

// Sticker references a platform sticker by an opaque ref.
type Sticker struct {
	Ref string
}

func (Sticker) Kind() ContentKind { return KindSticker }

// ContactCard is a shared contact.
type ContactCard struct {
	Name  string
	Phone string
	Org   string
}

func (ContactCard) Kind() ContentKind { return KindContactCard }

// Location is a shared geographic point.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
}

func (Location) Kind() ContentKind { return KindLocation }
