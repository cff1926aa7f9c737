package auth

import "github.com/dgellow/login-front/internal/storage"

var (
	keyToken     = storage.Key(storage.ScopeDurable, "auth_token")
	keyAccountID = storage.Key(storage.ScopeDurable, "account_id")

	keyState          = storage.Key(storage.ScopeSession, "oauth_state")
	keyVerifier       = storage.Key(storage.ScopeSession, "pkce_verifier")
	keyAttempt        = storage.Key(storage.ScopeSession, "oauth_attempt")
	keyCodeLock       = storage.Key(storage.ScopeSession, "code_lock")
	keyReturnPoint    = storage.Key(storage.ScopeSession, "return_point")
	keyReturnInflight = storage.Key(storage.ScopeSession, "return_inflight")
)

// pendingKeys hold one attempt's state
var pendingKeys = []string{keyState, keyVerifier, keyAttempt}

// logoutKeys are cleared on logout. The code lock survives so a code seen
// before logout still cannot be replayed after it.
var logoutKeys = []string{
	keyToken, keyAccountID,
	keyState, keyVerifier, keyAttempt,
	keyReturnPoint, keyReturnInflight,
}
