package commands

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// RunCreateCustodianShares generates a fresh 32-byte platform escrow key and
// splits it into custodian shares. The key itself is never written anywhere:
// only the shares and the verification fingerprint come out, and the key is
// zeroed before returning. Each share must go to a different custodian over a
// separate channel; any threshold of them reconstruct the key at boot.
func RunCreateCustodianShares(
	writer io.Writer,
	splitter custodianService.Splitter,
	threshold, total int,
	format string,
) error {
	key := make([]byte, keysDomain.SurveyKeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate platform escrow key: %w", err)
	}
	defer keysDomain.Zero(key)

	shareSet, err := splitter.Split(key, threshold, total)
	if err != nil {
		return fmt.Errorf("failed to split platform escrow key: %w", err)
	}
	defer func() {
		for _, share := range shareSet.Shares {
			keysDomain.Zero(share)
		}
	}()

	fingerprint := hex.EncodeToString(custodianService.Fingerprint(key))

	if format == "json" {
		return outputSharesJSON(writer, shareSet.Shares, threshold, fingerprint)
	}

	outputSharesText(writer, shareSet.Shares, threshold, fingerprint)
	return nil
}

// outputSharesText outputs the share set in human-readable text format.
func outputSharesText(writer io.Writer, shares [][]byte, threshold int, fingerprint string) {
	_, _ = fmt.Fprintf(writer, "Platform Escrow Key Custodian Shares\n")
	_, _ = fmt.Fprintf(writer, "=====================================\n\n")
	_, _ = fmt.Fprintf(writer, "Shares: %d, Threshold: %d\n\n", len(shares), threshold)

	for i, share := range shares {
		_, _ = fmt.Fprintf(writer, "Share %d: %s\n", i+1, base64.StdEncoding.EncodeToString(share))
	}

	_, _ = fmt.Fprintf(writer, "\n# Record the fingerprint in the service environment so the\n")
	_, _ = fmt.Fprintf(writer, "# reconstructed key can be verified at unlock time:\n")
	_, _ = fmt.Fprintf(writer, "CUSTODIAN_FINGERPRINT=\"%s\"\n", fingerprint)
	_, _ = fmt.Fprintf(writer, "\n# Distribute each share to a different custodian over a separate channel.\n")
	_, _ = fmt.Fprintf(writer, "# This output is the only copy; the key itself was not persisted.\n")
}

// outputSharesJSON outputs the share set in JSON format for machine consumption.
func outputSharesJSON(writer io.Writer, shares [][]byte, threshold int, fingerprint string) error {
	encoded := make([]string, len(shares))
	for i, share := range shares {
		encoded[i] = base64.StdEncoding.EncodeToString(share)
	}

	result := map[string]interface{}{
		"shares":      encoded,
		"threshold":   threshold,
		"fingerprint": fingerprint,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
