package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrganizationMasterKey is a per-organization key used to produce org_master
// wraps for every survey the organization owns. It is itself protected at rest:
// the raw key is sealed by the configured KMS keeper and only the ciphertext is
// stored. During rotation the previous version is retained just long enough to
// re-wrap all dependent survey keys, then erased.
type OrganizationMasterKey struct {
	ID           uuid.UUID // Unique identifier (UUIDv7)
	OrgID        uuid.UUID // Organization this key belongs to
	EncryptedKey []byte    // Raw key sealed by the KMS keeper
	Key          []byte    // Plaintext key (populated after keeper decryption, never persisted)
	KeeperURI    string    // Keeper that sealed this key version
	Version      uint      // Incremented on rotation
	CreatedAt    time.Time
}

// Keeper seals and unseals small secrets through an external KMS. Implemented
// by gocloud.dev/secrets *secrets.Keeper.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
