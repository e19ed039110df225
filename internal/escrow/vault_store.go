package escrow

import (
	"context"
	"encoding/base64"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	apperrors "github.com/opensurvey/keyvault/internal/errors"

	"github.com/google/uuid"
)

// VaultStore implements Store on a HashiCorp Vault KV v2 mount. Entries are
// stored one secret per survey under <mount>/data/surveys/<survey-id>, with
// the KV version number serving as the escrow version token.
type VaultStore struct {
	kv *vaultapi.KVv2
}

// NewVaultStore creates a Store backed by the given Vault client and KV v2
// mount.
func NewVaultStore(client *vaultapi.Client, mount string) *VaultStore {
	return &VaultStore{kv: client.KVv2(mount)}
}

func entryPath(surveyID uuid.UUID) string {
	return fmt.Sprintf("surveys/%s", surveyID)
}

// Put writes an entry and returns the KV version of the write.
func (v *VaultStore) Put(ctx context.Context, entry *Entry) (int, error) {
	data := map[string]interface{}{
		"ciphertext": base64.StdEncoding.EncodeToString(entry.Ciphertext),
		"nonce":      base64.StdEncoding.EncodeToString(entry.Nonce),
	}

	secret, err := v.kv.Put(ctx, entryPath(entry.SurveyID), data)
	if err != nil {
		return 0, apperrors.Wrap(ErrEscrowUnavailable, err.Error())
	}
	return secret.VersionMetadata.Version, nil
}

// Get retrieves the latest entry for a survey.
func (v *VaultStore) Get(ctx context.Context, surveyID uuid.UUID) (*Entry, error) {
	secret, err := v.kv.Get(ctx, entryPath(surveyID))
	if err != nil {
		if apperrors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, ErrEscrowEntryNotFound
		}
		return nil, apperrors.Wrap(ErrEscrowUnavailable, err.Error())
	}

	entry, err := decodeEntry(surveyID, secret)
	if err != nil {
		return nil, apperrors.Wrap(err, "malformed escrow entry")
	}
	return entry, nil
}

// Delete destroys every version of the entry for a survey.
func (v *VaultStore) Delete(ctx context.Context, surveyID uuid.UUID) error {
	if err := v.kv.DeleteMetadata(ctx, entryPath(surveyID)); err != nil {
		return apperrors.Wrap(ErrEscrowUnavailable, err.Error())
	}
	return nil
}

func decodeEntry(surveyID uuid.UUID, secret *vaultapi.KVSecret) (*Entry, error) {
	ciphertext, err := decodeField(secret.Data, "ciphertext")
	if err != nil {
		return nil, err
	}
	nonce, err := decodeField(secret.Data, "nonce")
	if err != nil {
		return nil, err
	}
	return &Entry{
		SurveyID:   surveyID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Version:    secret.VersionMetadata.Version,
	}, nil
}

func decodeField(data map[string]interface{}, field string) ([]byte, error) {
	raw, ok := data[field].(string)
	if !ok {
		return nil, apperrors.New("missing field " + field)
	}
	return base64.StdEncoding.DecodeString(raw)
}
