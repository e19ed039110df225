// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// SurveyKeyCreatedResponse is returned when a survey key has been provisioned.
// Only metadata is exposed: the survey key itself never leaves the server on
// creation.
type SurveyKeyCreatedResponse struct {
	SurveyID    string    `json:"survey_id"`
	FactorCount int       `json:"factor_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapSurveyKeyCreated builds the creation response.
func MapSurveyKeyCreated(surveyID uuid.UUID, factorCount int, createdAt time.Time) SurveyKeyCreatedResponse {
	return SurveyKeyCreatedResponse{
		SurveyID:    surveyID.String(),
		FactorCount: factorCount,
		CreatedAt:   createdAt,
	}
}

// SurveyKeyResponse carries an unwrapped survey key back to the caller.
// SECURITY: Key contains raw key material (base64-encoded on the wire) and
// must only be transmitted over HTTPS. Callers zero the source buffer after
// mapping.
type SurveyKeyResponse struct {
	SurveyID string `json:"survey_id"`
	Key      []byte `json:"key"`
}

// MapSurveyKey builds the unlock response. The key slice is copied so the
// caller can zero the original immediately after mapping.
func MapSurveyKey(surveyID uuid.UUID, key []byte) SurveyKeyResponse {
	out := make([]byte, len(key))
	copy(out, key)
	return SurveyKeyResponse{
		SurveyID: surveyID.String(),
		Key:      out,
	}
}

// OrgMasterKeyResponse is returned for organization master key operations.
// The master key itself is never exposed.
type OrgMasterKeyResponse struct {
	OrgID string `json:"org_id"`
}
