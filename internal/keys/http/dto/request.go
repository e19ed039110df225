// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// FactorRequest is one unlock factor supplied on key creation or rotation.
// Secret carries the factor secret base64-encoded: the raw password or
// recovery phrase for derived factors, the 32-byte key material for the rest.
type FactorRequest struct {
	FactorType string `json:"factor_type"`
	Secret     string `json:"secret"`
}

// Validate checks if the factor request is valid.
func (r FactorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FactorType, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Secret, validation.Required, customValidation.Base64),
	)
}

// CreateSurveyKeyRequest contains the parameters for provisioning a survey key.
// The survey ID is extracted from the URL parameter, not the request body.
type CreateSurveyKeyRequest struct {
	OrgID    string          `json:"org_id,omitempty"`
	Tier     string          `json:"tier"`
	TeamSize int             `json:"team_size,omitempty"`
	Factors  []FactorRequest `json:"factors"`
}

// Validate checks if the create survey key request is valid.
func (r *CreateSurveyKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Tier, validation.Required, customValidation.NotBlank),
		validation.Field(&r.TeamSize, validation.Min(0)),
		validation.Field(&r.Factors, validation.Required, validation.Length(1, 0)),
	)
}

// UnlockSurveyKeyRequest contains the parameters for unlocking a survey key
// with a single factor.
type UnlockSurveyKeyRequest struct {
	FactorType string `json:"factor_type"`
	Secret     string `json:"secret,omitempty"`
}

// Validate checks if the unlock request is valid. The secret is optional
// because the org_master factor resolves key material server side.
func (r *UnlockSurveyKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FactorType, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Secret, customValidation.Base64),
	)
}

// ReEscrowSurveyKeyRequest contains the parameters for restoring escrow
// coverage. CurrentKey is the base64-encoded unwrapped survey key proving
// the caller currently holds it.
type ReEscrowSurveyKeyRequest struct {
	CurrentKey string `json:"current_key"`
}

// Validate checks if the re-escrow request is valid.
func (r *ReEscrowSurveyKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentKey, validation.Required, customValidation.Base64),
	)
}

// RotateSurveyKeyRequest contains the parameters for rotating the wrap set of
// a survey key. CurrentKey is the base64-encoded unwrapped survey key proving
// the caller currently holds it.
type RotateSurveyKeyRequest struct {
	CurrentKey string          `json:"current_key"`
	OrgID      string          `json:"org_id,omitempty"`
	Tier       string          `json:"tier"`
	TeamSize   int             `json:"team_size,omitempty"`
	Factors    []FactorRequest `json:"factors"`
}

// Validate checks if the rotate request is valid.
func (r *RotateSurveyKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentKey, validation.Required, customValidation.Base64),
		validation.Field(&r.Tier, validation.Required, customValidation.NotBlank),
		validation.Field(&r.TeamSize, validation.Min(0)),
		validation.Field(&r.Factors, validation.Required, validation.Length(1, 0)),
	)
}
