package dto

import (
	custodianUseCase "github.com/opensurvey/keyvault/internal/custodian/usecase"
)

// StatusResponse reports the quorum state of the platform escrow key holder.
type StatusResponse struct {
	Unlocked  bool `json:"unlocked"`
	Threshold int  `json:"threshold"`
}

// MapStatus builds the status response.
func MapStatus(status custodianUseCase.Status) StatusResponse {
	return StatusResponse{
		Unlocked:  status.Unlocked,
		Threshold: status.Threshold,
	}
}

// SubmitShareResponse reports the outcome of one share submission.
type SubmitShareResponse struct {
	Accepted bool `json:"accepted"`
	Unlocked bool `json:"unlocked"`
}
