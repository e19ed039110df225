package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	vaultapi "github.com/hashicorp/vault/api"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
	recoveryUseCase "github.com/opensurvey/keyvault/internal/recovery/usecase"
)

// ErrReviewPending means the evidence has been stored but no reviewer has
// recorded a verdict yet.
var ErrReviewPending = apperrors.Wrap(apperrors.ErrConflict, "identity review pending")

// VaultVerifier stores identity evidence on a HashiCorp Vault KV v2 mount and
// reads review verdicts back. Evidence is PII and deliberately kept out of the
// relational database; trust officers record their verdict on the same entry
// through Vault tooling by setting the status and reviewer_id fields.
type VaultVerifier struct {
	kv *vaultapi.KVv2
}

// NewVaultVerifier creates a Verifier backed by the given Vault client and
// KV v2 mount.
func NewVaultVerifier(client *vaultapi.Client, mount string) *VaultVerifier {
	return &VaultVerifier{kv: client.KVv2(mount)}
}

func evidencePath(requestID uuid.UUID) string {
	return fmt.Sprintf("evidence/%s", requestID)
}

// SubmitEvidence stores the evidence blob in pending state and returns the
// evidence reference.
func (v *VaultVerifier) SubmitEvidence(
	ctx context.Context,
	requestID uuid.UUID,
	evidence []byte,
) (string, error) {
	path := evidencePath(requestID)
	data := map[string]interface{}{
		"evidence": base64.StdEncoding.EncodeToString(evidence),
		"status":   "pending",
	}

	if _, err := v.kv.Put(ctx, path, data); err != nil {
		return "", apperrors.Wrap(apperrors.ErrUnavailable, err.Error())
	}
	return path, nil
}

// GetVerificationResult reads the reviewer's verdict for the stored evidence.
// Returns ErrReviewPending while the status is still pending.
func (v *VaultVerifier) GetVerificationResult(
	ctx context.Context,
	evidenceRef string,
) (*recoveryUseCase.VerificationResult, error) {
	secret, err := v.kv.Get(ctx, evidenceRef)
	if err != nil {
		if apperrors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "no evidence at "+evidenceRef)
		}
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, err.Error())
	}

	status, _ := secret.Data["status"].(string)
	reviewerID, _ := secret.Data["reviewer_id"].(string)

	switch status {
	case "approved":
		return &recoveryUseCase.VerificationResult{Approved: true, ReviewerID: reviewerID}, nil
	case "rejected":
		return &recoveryUseCase.VerificationResult{Approved: false, ReviewerID: reviewerID}, nil
	case "pending":
		return nil, ErrReviewPending
	}
	return nil, apperrors.New("unknown review status " + status)
}
