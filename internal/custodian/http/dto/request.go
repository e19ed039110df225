// Package dto provides data transfer objects for custodian HTTP handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// SubmitShareRequest carries one custodian's base64-encoded share.
type SubmitShareRequest struct {
	CustodianID string `json:"custodian_id"`
	Share       string `json:"share"`
}

// Validate checks if the share submission is valid.
func (r *SubmitShareRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CustodianID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Share, validation.Required, customValidation.Base64),
	)
}
