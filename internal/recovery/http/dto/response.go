// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

// RecoveryRequestResponse represents a recovery request in API responses.
type RecoveryRequestResponse struct {
	ID                  string     `json:"id"`
	SurveyID            string     `json:"survey_id"`
	OrgID               string     `json:"org_id,omitempty"`
	SubjectUserID       string     `json:"subject_user_id"`
	State               string     `json:"state"`
	VerificationMethod  string     `json:"verification_method"`
	PrimaryApproverID   string     `json:"primary_approver_id,omitempty"`
	SecondaryApproverID string     `json:"secondary_approver_id,omitempty"`
	TimeDelayStart      *time.Time `json:"time_delay_start,omitempty"`
	TimeDelayEnd        *time.Time `json:"time_delay_end,omitempty"`
	ObjectionFlag       bool       `json:"objection_flag"`
	CreatedAt           time.Time  `json:"created_at"`
	TerminalAt          *time.Time `json:"terminal_at,omitempty"`
}

// MapRecoveryRequest converts a domain recovery request to an API response.
// The verification evidence reference stays internal.
func MapRecoveryRequest(request *recoveryDomain.RecoveryRequest) RecoveryRequestResponse {
	response := RecoveryRequestResponse{
		ID:                 request.ID.String(),
		SurveyID:           request.SurveyID.String(),
		SubjectUserID:      request.SubjectUserID.String(),
		State:              string(request.State),
		VerificationMethod: request.VerificationMethod,
		TimeDelayStart:     request.TimeDelayStart,
		TimeDelayEnd:       request.TimeDelayEnd,
		ObjectionFlag:      request.ObjectionFlag,
		CreatedAt:          request.CreatedAt,
		TerminalAt:         request.TerminalAt,
	}
	if request.OrgID != nil {
		response.OrgID = request.OrgID.String()
	}
	if request.PrimaryApproverID != nil {
		response.PrimaryApproverID = request.PrimaryApproverID.String()
	}
	if request.SecondaryApproverID != nil {
		response.SecondaryApproverID = request.SecondaryApproverID.String()
	}
	return response
}

// RecoveredKeyResponse carries the recovered survey key back to the subject's
// session once the request has completed.
// SECURITY: Key contains raw key material and must only be transmitted over HTTPS.
type RecoveredKeyResponse struct {
	RequestID string `json:"request_id"`
	Key       []byte `json:"key"`
}
