package domain

// TierKind enumerates the closed set of account tiers the key hierarchy
// consults. The tier itself is owned by the billing side of the product; the
// key core only reads the capability table below.
type TierKind string

const (
	TierFree         TierKind = "free"
	TierPro          TierKind = "pro"
	TierTeam         TierKind = "team"
	TierOrganization TierKind = "organization"
	TierEnterprise   TierKind = "enterprise"
)

// Tier is a tagged variant: Kind selects the tier, TeamSize is meaningful only
// for TierTeam.
type Tier struct {
	Kind     TierKind
	TeamSize int
}

// tierCapabilities is the explicit capability table replacing scattered
// per-tier branching in permission checks.
var tierCapabilities = map[TierKind]struct {
	recoverViaAdmin bool
	orgMaster       bool
	federated       bool
}{
	TierFree:         {recoverViaAdmin: false, orgMaster: false, federated: false},
	TierPro:          {recoverViaAdmin: true, orgMaster: false, federated: true},
	TierTeam:         {recoverViaAdmin: true, orgMaster: false, federated: true},
	TierOrganization: {recoverViaAdmin: true, orgMaster: true, federated: true},
	TierEnterprise:   {recoverViaAdmin: true, orgMaster: true, federated: true},
}

// CanRecoverViaAdmin reports whether the tier includes platform-assisted
// recovery (and therefore a platform_escrow wrap).
func (t Tier) CanRecoverViaAdmin() bool {
	return tierCapabilities[t.Kind].recoverViaAdmin
}

// CanUseOrgMaster reports whether surveys under this tier may carry an
// org_master wrap. Requires the survey to belong to an organization.
func (t Tier) CanUseOrgMaster() bool {
	return tierCapabilities[t.Kind].orgMaster
}

// CanUseFederatedUnlock reports whether the federated_identity factor is
// available on this tier.
func (t Tier) CanUseFederatedUnlock() bool {
	return tierCapabilities[t.Kind].federated
}

// AllowsFactor reports whether the given factor type is applicable under this
// tier and ownership configuration. hasOrg indicates whether the survey belongs
// to an organization.
func (t Tier) AllowsFactor(factor FactorType, hasOrg bool) bool {
	switch factor {
	case FactorPassword, FactorRecoveryPhrase:
		return true
	case FactorFederatedIdentity:
		return t.CanUseFederatedUnlock()
	case FactorOrgMaster:
		return hasOrg && t.CanUseOrgMaster()
	case FactorPlatformEscrow:
		return t.CanRecoverViaAdmin()
	}
	return false
}
