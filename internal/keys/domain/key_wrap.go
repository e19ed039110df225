// Package domain defines the core domain models for the survey key hierarchy.
//
// Every survey has one 256-bit symmetric key encrypting its sensitive data. The
// plaintext key is never persisted anywhere; it exists only transiently in
// memory during wrap, unwrap and use. What is persisted are KeyWraps: AEAD
// envelopes of the survey key sealed under individual authentication factors
// (password, recovery phrase, federated identity, organization master key,
// platform escrow). For a given survey, each factor type has at most one active
// wrap, and wraps are independently decryptable.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// KDFParams holds the Argon2id parameters used to derive a wrapping key from a
// factor secret. Persisted alongside the wrap so unwrap re-derives identically.
type KDFParams struct {
	Time    uint32 `json:"time"`    // Argon2id passes
	Memory  uint32 `json:"memory"`  // memory cost in KiB
	Threads uint8  `json:"threads"` // parallelism
	Salt    []byte `json:"salt"`    // random per-wrap salt
}

// KeyWrap is an AEAD envelope of a survey key sealed under one authentication
// factor. Its ciphertext is bound (via AAD) to the survey ID and factor type,
// so a wrap cannot be replayed for a different survey or factor.
type KeyWrap struct {
	ID          uuid.UUID  // Unique identifier (UUIDv7)
	SurveyID    uuid.UUID  // Survey this wrap belongs to
	OrgID       *uuid.UUID // Owning organization, set only for org_master wraps
	FactorType  FactorType // Factor the wrap is sealed under
	Algorithm   Algorithm  // AEAD algorithm
	Ciphertext  []byte     // Sealed survey key (includes auth tag)
	Nonce       []byte     // 96-bit nonce (counter plus random salt, never reused per key)
	KDFParams   *KDFParams // Argon2id parameters, nil for direct-key factors
	WrapVersion uint       // Incremented on each rotation
	CreatedAt   time.Time
}
