// Package device provisions the stable per-device fingerprint sent to the
// backend on every request.
package device

import (
	"context"
	"fmt"

	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/storage"
	"github.com/google/uuid"
)

// DefaultHeader is the request header carrying the fingerprint.
const DefaultHeader = "x_client_id"

var fingerprintKey = storage.Key(storage.ScopeDurable, "x_client_id")

// Provisioner creates the fingerprint once and returns the persisted value
// afterwards. Concurrent first uses from several contexts agree on one value.
type Provisioner struct {
	store storage.Store
	newID func() string
}

func NewProvisioner(store storage.Store) *Provisioner {
	return &Provisioner{store: store, newID: uuid.NewString}
}

// Fingerprint returns the device's id, creating it on first use.
func (p *Provisioner) Fingerprint(ctx context.Context) (string, error) {
	id, created, err := p.store.SetIfAbsent(ctx, fingerprintKey, p.newID())
	if err != nil {
		return "", fmt.Errorf("provisioning device fingerprint: %w", err)
	}
	if created {
		log.LogInfoWithFields("device", "Provisioned device fingerprint", map[string]any{
			"fingerprint": id,
		})
	}
	return id, nil
}
