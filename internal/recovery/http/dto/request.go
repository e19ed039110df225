// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// SubmitRecoveryRequest contains the parameters for opening a recovery request.
type SubmitRecoveryRequest struct {
	SurveyID           string `json:"survey_id"`
	OrgID              string `json:"org_id,omitempty"`
	SubjectUserID      string `json:"subject_user_id"`
	VerificationMethod string `json:"verification_method"`
}

// Validate checks if the submit recovery request is valid.
func (r *SubmitRecoveryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SurveyID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.SubjectUserID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.VerificationMethod, validation.Required, customValidation.NotBlank),
	)
}

// SubmitEvidenceRequest carries base64-encoded identity evidence for review.
type SubmitEvidenceRequest struct {
	Evidence string `json:"evidence"`
}

// Validate checks if the evidence request is valid.
func (r *SubmitEvidenceRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Evidence, validation.Required, customValidation.Base64),
	)
}

// ApproveRecoveryRequest records one admin approval.
type ApproveRecoveryRequest struct {
	AdminID string `json:"admin_id"`
	Role    string `json:"role"`
}

// Validate checks if the approve request is valid.
func (r *ApproveRecoveryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AdminID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Role, validation.Required, validation.In("primary", "secondary")),
	)
}

// RejectRecoveryRequest records an admin rejection.
type RejectRecoveryRequest struct {
	AdminID string `json:"admin_id"`
}

// Validate checks if the reject request is valid.
func (r *RejectRecoveryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AdminID, validation.Required, customValidation.NotBlank),
	)
}
