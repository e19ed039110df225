package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierAllowsFactor(t *testing.T) {
	tests := []struct {
		name    string
		tier    Tier
		factor  FactorType
		hasOrg  bool
		allowed bool
	}{
		{"FreePassword", Tier{Kind: TierFree}, FactorPassword, false, true},
		{"FreeRecoveryPhrase", Tier{Kind: TierFree}, FactorRecoveryPhrase, false, true},
		{"FreePlatformEscrow", Tier{Kind: TierFree}, FactorPlatformEscrow, false, false},
		{"FreeFederated", Tier{Kind: TierFree}, FactorFederatedIdentity, false, false},
		{"ProPlatformEscrow", Tier{Kind: TierPro}, FactorPlatformEscrow, false, true},
		{"ProOrgMaster", Tier{Kind: TierPro}, FactorOrgMaster, true, false},
		{"TeamFederated", Tier{Kind: TierTeam, TeamSize: 8}, FactorFederatedIdentity, false, true},
		{"OrgMasterWithOrg", Tier{Kind: TierOrganization}, FactorOrgMaster, true, true},
		{"OrgMasterWithoutOrg", Tier{Kind: TierOrganization}, FactorOrgMaster, false, false},
		{"EnterpriseOrgMaster", Tier{Kind: TierEnterprise}, FactorOrgMaster, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.tier.AllowsFactor(tt.factor, tt.hasOrg))
		})
	}
}

func TestFactorTypeValid(t *testing.T) {
	for _, f := range []FactorType{
		FactorPassword, FactorRecoveryPhrase, FactorFederatedIdentity,
		FactorOrgMaster, FactorPlatformEscrow,
	} {
		assert.True(t, f.Valid(), string(f))
	}
	assert.False(t, FactorType("totp").Valid())
}

func TestFactorTypeDerivesFromSecret(t *testing.T) {
	assert.True(t, FactorPassword.DerivesFromSecret())
	assert.True(t, FactorRecoveryPhrase.DerivesFromSecret())
	assert.False(t, FactorFederatedIdentity.DerivesFromSecret())
	assert.False(t, FactorOrgMaster.DerivesFromSecret())
	assert.False(t, FactorPlatformEscrow.DerivesFromSecret())
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)

	Zero(nil) // must not panic
}
