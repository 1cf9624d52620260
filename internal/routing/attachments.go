package routing

import (
	"strings"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
)

// Audio attachments eligible for the telegram voice/audio send path.
var (
	audioFileTypes  = map[string]bool{"audio": true, "voice": true}
	audioExtensions = map[string]bool{
		"ogg": true, "oga": true, "m4a": true, "mp3": true, "opus": true, "wav": true,
	}
)

// extractAttachments collects the attachment list from the three webhook
// locations it may occupy: top-level, inside content_attributes, or inside
// a nested message map. First non-empty source wins.
func extractAttachments(p map[string]any) []any {
	if atts, ok := payload.Slice(p, "attachments"); ok && len(atts) > 0 {
		return atts
	}
	if atts, ok := payload.Slice(p, "content_attributes", "attachments"); ok && len(atts) > 0 {
		return atts
	}
	if atts, ok := payload.Slice(p, "message", "attachments"); ok && len(atts) > 0 {
		return atts
	}
	return nil
}

// firstAudioAttachment returns the first attachment recognized as audio by
// file type or extension, with its URL rebased against the helpdesk base
// when relative.
func firstAudioAttachment(attachments []any, helpdeskBase string) (domain.Media, bool) {
	for _, raw := range attachments {
		att, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		dataURL, ok := payload.Text(att, "data_url")
		if !ok {
			dataURL, ok = payload.Text(att, "file_url")
		}
		if !ok {
			continue
		}

		fileType, _ := payload.Text(att, "file_type")
		ext, _ := payload.Text(att, "extension")
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")

		if !audioFileTypes[strings.ToLower(fileType)] && !audioExtensions[ext] {
			continue
		}

		filename, _ := payload.Text(att, "filename")
		mimeType, _ := payload.Text(att, "content_type")
		return domain.Media{
			Type:     domain.MediaAudio,
			URL:      resolveAttachmentURL(helpdeskBase, dataURL),
			Filename: filename,
			MimeType: mimeType,
		}, true
	}
	return domain.Media{}, false
}

// resolveAttachmentURL rebases helpdesk-relative URLs (e.g.
// /rails/active_storage/...) against the instance base URL so channel
// adapters can download them.
func resolveAttachmentURL(base, u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "/") && base != "" {
		return strings.TrimRight(base, "/") + u
	}
	return u
}

// attachmentFileTypes summarizes attachment file types for warn logs.
func attachmentFileTypes(attachments []any) []string {
	types := make([]string, 0, len(attachments))
	for _, raw := range attachments {
		att, ok := raw.(map[string]any)
		if !ok {
			types = append(types, "?")
			continue
		}
		ft, _ := payload.Text(att, "file_type")
		types = append(types, ft)
	}
	return types
}
