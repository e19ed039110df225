package commands

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	auditUseCase "github.com/opensurvey/keyvault/internal/audit/usecase"
)

// RunVerifyAuditChain walks the full audit ledger and verifies the hash
// chain: every entry's hash must commit to its content and its predecessor.
// Returns an error when a break is found so the exit code reflects it.
func RunVerifyAuditChain(
	ctx context.Context,
	reader auditUseCase.Reader,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("verifying audit chain")

	report, err := reader.VerifyChain(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify audit chain: %w", err)
	}

	if format == "json" {
		if err := outputChainJSON(writer, report); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputChainText(writer, report)
	}

	logger.Info("verification completed",
		slog.Uint64("entries", report.Entries),
		slog.Bool("valid", report.Valid),
	)

	if !report.Valid {
		return fmt.Errorf("audit chain broken at seq %d", *report.BrokenSeq)
	}

	return nil
}

// outputChainText outputs the verification result in human-readable text format.
func outputChainText(writer io.Writer, report *auditDomain.VerificationReport) {
	_, _ = fmt.Fprintf(writer, "Audit Chain Verification\n")
	_, _ = fmt.Fprintf(writer, "========================\n\n")
	_, _ = fmt.Fprintf(writer, "Entries:   %d\n", report.Entries)
	_, _ = fmt.Fprintf(writer, "Head Seq:  %d\n", report.HeadSeq)
	_, _ = fmt.Fprintf(writer, "Head Hash: %s\n\n", hex.EncodeToString(report.HeadHash))

	if report.Valid {
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
		return
	}

	_, _ = fmt.Fprintf(writer, "WARNING: chain broken at seq %d\n", *report.BrokenSeq)
	_, _ = fmt.Fprintf(writer, "Status: FAILED\n")
}

// outputChainJSON outputs the verification result in JSON format for machine consumption.
func outputChainJSON(writer io.Writer, report *auditDomain.VerificationReport) error {
	result := map[string]interface{}{
		"entries":   report.Entries,
		"head_seq":  report.HeadSeq,
		"head_hash": hex.EncodeToString(report.HeadHash),
		"valid":     report.Valid,
	}
	if report.BrokenSeq != nil {
		result["broken_seq"] = *report.BrokenSeq
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
