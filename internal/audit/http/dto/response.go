// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/hex"
	"encoding/json"
	"time"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
)

// AuditEntryResponse represents one hash-chained audit entry in API responses.
// Hashes are hex-encoded for readability.
type AuditEntryResponse struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	PrevHash   string          `json:"prev_hash"`
	ThisHash   string          `json:"this_hash"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	SubjectRef string          `json:"subject_ref"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MapAuditEntry converts a domain audit entry to an API response.
func MapAuditEntry(entry *auditDomain.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         entry.ID.String(),
		Seq:        entry.Seq,
		PrevHash:   hex.EncodeToString(entry.PrevHash),
		ThisHash:   hex.EncodeToString(entry.ThisHash),
		Actor:      entry.Actor,
		Action:     string(entry.Action),
		SubjectRef: entry.SubjectRef,
		Detail:     json.RawMessage(entry.Detail),
		CreatedAt:  entry.CreatedAt,
	}
}

// MapAuditEntries converts a list of domain audit entries to API responses.
func MapAuditEntries(entries []*auditDomain.Entry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, MapAuditEntry(entry))
	}
	return responses
}

// VerificationReportResponse represents the outcome of a full chain walk.
type VerificationReportResponse struct {
	Entries   uint64    `json:"entries"`
	HeadSeq   uint64    `json:"head_seq"`
	HeadHash  string    `json:"head_hash"`
	Valid     bool      `json:"valid"`
	BrokenSeq *uint64   `json:"broken_seq,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// MapVerificationReport converts a domain verification report to an API response.
func MapVerificationReport(report *auditDomain.VerificationReport) VerificationReportResponse {
	return VerificationReportResponse{
		Entries:   report.Entries,
		HeadSeq:   report.HeadSeq,
		HeadHash:  hex.EncodeToString(report.HeadHash),
		Valid:     report.Valid,
		BrokenSeq: report.BrokenSeq,
		CheckedAt: report.CheckedAt,
	}
}
