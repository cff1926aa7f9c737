package config

// ExampleConfig is written by `login-front config-init`.
const ExampleConfig = `{
  "version": "v0.1",
  "provider": {
    "kind": "linkedin",
    "clientId": {"$env": "LOGIN_FRONT_CLIENT_ID"},
    "redirectUri": "http://127.0.0.1:8765/callback",
    "scopes": ["openid", "profile", "email"]
  },
  "backend": {
    "baseUrl": {"$env": "LOGIN_FRONT_API_BASE"},
    "timeout": "15s"
  },
  "storage": {
    "kind": "sqlite",
    "cleanupInterval": "1m"
  },
  "login": {
    "pollInterval": "400ms",
    "pollTimeout": "5m",
    "attemptTtl": "10m",
    "fullNavigation": true
  }
}
`
