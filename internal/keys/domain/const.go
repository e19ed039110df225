package domain

// Algorithm represents the AEAD algorithm used to seal a key wrap.
//
// Both supported algorithms provide authenticated encryption with associated
// data using 256-bit keys, 96-bit nonces and 128-bit authentication tags.
// AESGCM is the default; ChaCha20 is available for hosts without AES-NI.
type Algorithm string

const (
	// AESGCM is AES-256 in Galois/Counter Mode.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// FactorType identifies the authentication factor a key wrap is sealed under.
//
// Wraps are independently decryptable: compromising one factor's wrap never
// reveals the survey key protected by another factor's wrap.
type FactorType string

const (
	// FactorPassword seals the survey key under a key derived from the user's password.
	FactorPassword FactorType = "password"

	// FactorRecoveryPhrase seals the survey key under a key derived from a
	// generated recovery phrase.
	FactorRecoveryPhrase FactorType = "recovery_phrase"

	// FactorFederatedIdentity seals the survey key under key material released
	// by a federated identity provider after a successful assertion.
	FactorFederatedIdentity FactorType = "federated_identity"

	// FactorOrgMaster seals the survey key under the owning organization's
	// master key. Only valid for surveys owned by an organization.
	FactorOrgMaster FactorType = "org_master"

	// FactorPlatformEscrow seals the survey key under the platform escrow key,
	// whose reconstruction requires a custodian share quorum.
	FactorPlatformEscrow FactorType = "platform_escrow"
)

// Valid reports whether f is one of the known factor types.
func (f FactorType) Valid() bool {
	switch f {
	case FactorPassword, FactorRecoveryPhrase, FactorFederatedIdentity,
		FactorOrgMaster, FactorPlatformEscrow:
		return true
	}
	return false
}

// DerivesFromSecret reports whether the wrapping key for this factor is derived
// from a low-entropy secret via the memory-hard KDF. The remaining factor types
// supply their own 256-bit key material directly.
func (f FactorType) DerivesFromSecret() bool {
	return f == FactorPassword || f == FactorRecoveryPhrase
}

// SurveyKeySize is the size in bytes of a survey key (256 bits).
const SurveyKeySize = 32

// NonceSize is the size in bytes of an AEAD nonce (96 bits).
const NonceSize = 12
