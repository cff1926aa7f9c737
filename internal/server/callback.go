package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dgellow/login-front/internal/auth"
	"github.com/dgellow/login-front/internal/log"
)

// RedirectHandler is the part of auth.Context the callback route drives.
type RedirectHandler interface {
	HandleRedirect(ctx context.Context) (auth.Outcome, error)
}

// CallbackHandler receives the provider redirect in the loopback server.
// Callbacks are handled one at a time because they share one Page.
type CallbackHandler struct {
	auth RedirectHandler
	page *Page
	mu   sync.Mutex
}

func NewCallbackHandler(handler RedirectHandler, page *Page) *CallbackHandler {
	return &CallbackHandler{auth: handler, page: page}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.page.Visit(r.URL.Path, r.URL.RawQuery)
	// The exchange must finish even if the browser gives up on the response.
	outcome, err := h.auth.HandleRedirect(context.WithoutCancel(r.Context()))

	log.LogDebugWithFields("callback", "Callback handled", map[string]any{
		"outcome": outcome.String(),
	})

	switch outcome {
	case auth.OutcomeLoggedIn:
		renderResult(w, http.StatusOK, ResultPageData{
			Title:       "Logged in",
			MessageType: "success",
		})
	case auth.OutcomeRejected:
		renderResult(w, http.StatusOK, ResultPageData{
			Title:       "Already processed",
			Message:     "This sign-in response was already used.",
			MessageType: "success",
		})
	case auth.OutcomeNone:
		renderResult(w, http.StatusBadRequest, ResultPageData{
			Title:       "Nothing to do",
			Message:     "No authorization code was received.",
			MessageType: "error",
		})
	default:
		renderResult(w, failureStatus(err), ResultPageData{
			Title:       "Login failed",
			Message:     failureMessage(err),
			MessageType: "error",
		})
	}
}

func failureStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrStateMismatch), errors.Is(err, auth.ErrProviderError):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func failureMessage(err error) string {
	var loginErr *auth.LoginError
	switch {
	case errors.As(err, &loginErr) && errors.Is(err, auth.ErrGrantRevoked):
		return "The provider revoked access. Check the terminal to continue."
	case errors.As(err, &loginErr):
		return "Reason: " + loginErr.Reason
	case err != nil:
		return err.Error()
	default:
		return ""
	}
}

func renderResult(w http.ResponseWriter, status int, data ResultPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	if err := resultPageTemplate.Execute(w, data); err != nil {
		log.LogErrorWithFields("callback", "Failed to render result page", map[string]any{
			"error": err.Error(),
		})
	}
}
