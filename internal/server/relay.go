package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgellow/login-front/internal/browsing"
	jsonwriter "github.com/dgellow/login-front/internal/json"
	"github.com/dgellow/login-front/internal/log"
)

// maxRelayBody bounds a relayed message
const maxRelayBody = 4 << 10

// RelayHandler accepts codes relayed by a browser page into the mailbox
// the auth context serves. The sender origin is taken from the Origin
// header; the receiving side decides whether to trust it.
type RelayHandler struct {
	mailbox *browsing.Mailbox
}

func NewRelayHandler(mb *browsing.Mailbox) *RelayHandler {
	return &RelayHandler{mailbox: mb}
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		jsonwriter.WriteForbidden(w, "Origin header required")
		return
	}

	var msg browsing.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRelayBody)).Decode(&msg); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid message")
		return
	}

	err := h.mailbox.Deliver(r.Context(), msg, origin, h.mailbox.Origin())
	switch {
	case err == nil:
		log.LogDebugWithFields("relay", "Message relayed", map[string]any{
			"origin": origin,
			"type":   msg.Type,
		})
		_ = jsonwriter.WriteResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, browsing.ErrMailboxClosed):
		jsonwriter.WriteServiceUnavailable(w, "no login in progress")
	default:
		jsonwriter.WriteServiceUnavailable(w, err.Error())
	}
}
