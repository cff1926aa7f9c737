package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// LoginCall is one recorded POST /v1/login.
type LoginCall struct {
	AuthorizationCode string `json:"authorization_code"`
	RedirectURI       string `json:"redirect_uri"`
	CodeVerifier      string `json:"code_verifier"`
	DeviceID          string `json:"-"`
}

// FakeBackend is an httptest application backend.
type FakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	logins      []LoginCall
	loginStatus int
	loginBody   string
	players     int
	tokens      map[string]string

	loginGate  chan struct{}
	playerGate chan struct{}
}

// NewFakeBackend answers logins with tok-1 / p-42 until told otherwise.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		loginStatus: http.StatusOK,
		loginBody:   `{"auth_key":"tok-1","player_id":"p-42"}`,
		tokens:      map[string]string{"tok-1": "p-42"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/login", b.handleLogin)
	mux.HandleFunc("GET /v1/player", b.handlePlayer)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var call LoginCall
	_ = json.NewDecoder(r.Body).Decode(&call)
	call.DeviceID = r.Header.Get("x_client_id")

	b.mu.Lock()
	b.logins = append(b.logins, call)
	status, body, gate := b.loginStatus, b.loginBody, b.loginGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (b *FakeBackend) handlePlayer(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.players++
	id, ok := b.tokens[r.Header.Get("Authorization")]
	gate := b.playerGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"player_id": id})
}

// RespondLogin sets the login response.
func (b *FakeBackend) RespondLogin(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginStatus = status
	b.loginBody = body
}

// SetLoginGate holds login responses until gate is closed.
func (b *FakeBackend) SetLoginGate(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginGate = gate
}

// SetPlayerGate holds player responses until gate is closed.
func (b *FakeBackend) SetPlayerGate(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playerGate = gate
}

// RevokeToken makes the player probe reject token.
func (b *FakeBackend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

func (b *FakeBackend) Logins() []LoginCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LoginCall(nil), b.logins...)
}

func (b *FakeBackend) LoginCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.logins)
}

func (b *FakeBackend) PlayerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.players
}
