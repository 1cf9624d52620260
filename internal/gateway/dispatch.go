package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/payload"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/routing"
)

// handleDispatch is the manual send path: bearer-token authenticated,
// telegram only, synchronous. Numeric fields arrive as numbers or numeric
// strings depending on the caller, so the body is decoded loosely.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Dispatch.Token == "" {
		writeError(w, http.StatusNotFound, "dispatch endpoint is disabled")
		return
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "Authorization: Bearer <token> header required")
		return
	}
	if strings.TrimSpace(auth[len("Bearer "):]) != s.cfg.Dispatch.Token {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recipientID, _ := payload.Text(body, "recipient_id")
	text, _ := payload.Text(body, "text")
	if recipientID == "" || text == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and text are required")
		return
	}

	typingSeconds := 2.0
	if raw, ok := payload.Get(body, "typing_seconds"); ok {
		switch v := raw.(type) {
		case float64:
			typingSeconds = v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				typingSeconds = f
			}
		}
	}
	if typingSeconds < 0 || typingSeconds > 60 {
		writeError(w, http.StatusBadRequest, "typing_seconds must be between 0 and 60")
		return
	}

	var accessHash *int64
	if raw, ok := payload.Get(body, "access_hash"); ok {
		switch v := raw.(type) {
		case float64:
			h := int64(v)
			accessHash = &h
		case string:
			if h, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				accessHash = &h
			}
		}
	}

	err := s.router.DispatchDirect(r.Context(), domain.ChannelTelegram, recipientID, text,
		time.Duration(typingSeconds*float64(time.Second)), accessHash)
	if err != nil {
		if errors.Is(err, routing.ErrUnsupportedChannel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "recipient_id": recipientID})
}
