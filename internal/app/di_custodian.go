package app

import (
	"encoding/hex"
	"fmt"

	custodianHTTP "github.com/opensurvey/keyvault/internal/custodian/http"
	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
	custodianUseCase "github.com/opensurvey/keyvault/internal/custodian/usecase"
	"github.com/opensurvey/keyvault/internal/escrow"
)

// Splitter returns the Shamir secret sharing splitter.
func (c *Container) Splitter() custodianService.Splitter {
	c.splitterInit.Do(func() {
		c.splitter = custodianService.NewShamirSplitter()
	})
	return c.splitter
}

// Custodian returns the locked holder guarding the platform escrow key. It
// boots locked; custodians submit shares out of band until the quorum is
// reached.
func (c *Container) Custodian() (custodianService.Custodian, error) {
	var err error
	c.custodianInit.Do(func() {
		c.custodian, err = c.initCustodian()
		if err != nil {
			c.initErrors["custodian"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["custodian"]; exists {
		return nil, storedErr
	}
	return c.custodian, nil
}

// CustodianUseCase returns the use case driving share submission.
func (c *Container) CustodianUseCase() (*custodianUseCase.CustodianUseCase, error) {
	var err error
	c.custodianUseCaseInit.Do(func() {
		c.custodianUseCase, err = c.initCustodianUseCase()
		if err != nil {
			c.initErrors["custodianUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["custodianUseCase"]; exists {
		return nil, storedErr
	}
	return c.custodianUseCase, nil
}

// CustodianHandler returns the HTTP handler for custodian operations.
func (c *Container) CustodianHandler() (*custodianHTTP.CustodianHandler, error) {
	var err error
	c.custodianHandlerInit.Do(func() {
		c.custodianHandler, err = c.initCustodianHandler()
		if err != nil {
			c.initErrors["custodianHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["custodianHandler"]; exists {
		return nil, storedErr
	}
	return c.custodianHandler, nil
}

// EscrowStore returns the escrow store holding platform escrow wraps.
func (c *Container) EscrowStore() (escrow.Store, error) {
	var err error
	c.escrowStoreInit.Do(func() {
		c.escrowStore, err = c.initEscrowStore()
		if err != nil {
			c.initErrors["escrowStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["escrowStore"]; exists {
		return nil, storedErr
	}
	return c.escrowStore, nil
}

// initCustodian creates the locked custodian, decoding the key fingerprint
// recorded at share generation when one is configured.
func (c *Container) initCustodian() (custodianService.Custodian, error) {
	var fingerprint []byte
	if c.config.CustodianFingerprint != "" {
		decoded, err := hex.DecodeString(c.config.CustodianFingerprint)
		if err != nil {
			return nil, fmt.Errorf("invalid custodian fingerprint: %w", err)
		}
		fingerprint = decoded
	}

	return custodianService.NewLockedCustodian(c.Splitter(), c.config.CustodianThreshold, fingerprint), nil
}

func (c *Container) initCustodianUseCase() (*custodianUseCase.CustodianUseCase, error) {
	custodian, err := c.Custodian()
	if err != nil {
		return nil, fmt.Errorf("failed to get custodian for custodian use case: %w", err)
	}

	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for custodian use case: %w", err)
	}

	return custodianUseCase.NewCustodianUseCase(custodian, c.config.CustodianThreshold, auditor, c.Logger()), nil
}

func (c *Container) initCustodianHandler() (*custodianHTTP.CustodianHandler, error) {
	useCase, err := c.CustodianUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get custodian use case for custodian handler: %w", err)
	}

	return custodianHTTP.NewCustodianHandler(useCase, c.Logger()), nil
}

// initEscrowStore creates the escrow store. A configured Vault address gets
// the Vault-backed store behind the retrying wrapper; otherwise an in-memory
// store is used, which only suits development since escrowed wraps vanish on
// restart.
func (c *Container) initEscrowStore() (escrow.Store, error) {
	if c.config.EscrowVaultAddress == "" {
		c.Logger().Warn("escrow vault address not configured, using in-memory escrow store")
		return escrow.NewMemoryStore(), nil
	}

	client, err := c.VaultClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get vault client for escrow store: %w", err)
	}

	vaultStore := escrow.NewVaultStore(client, c.config.EscrowVaultMount)
	return escrow.NewRetryingStore(vaultStore, c.config.EscrowMaxRetryElapsed), nil
}
