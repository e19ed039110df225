// Package service provides production implementations of the recovery
// engine's external collaborators.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// AllowlistDirectory authorizes recovery approvers from a deployment-scoped
// allowlist. The roster is small and operator-managed; org scoping is not
// consulted because every listed admin is a platform trust officer.
type AllowlistDirectory struct {
	admins map[uuid.UUID]struct{}
}

// NewAllowlistDirectory parses a comma-separated list of admin UUIDs.
// Malformed entries are skipped.
func NewAllowlistDirectory(adminIDs string) *AllowlistDirectory {
	admins := make(map[uuid.UUID]struct{})
	for _, part := range strings.Split(adminIDs, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		admins[id] = struct{}{}
	}
	return &AllowlistDirectory{admins: admins}
}

// IsAuthorizedApprover reports whether adminID is on the allowlist.
func (d *AllowlistDirectory) IsAuthorizedApprover(
	_ context.Context,
	adminID uuid.UUID,
	_ *uuid.UUID,
) (bool, error) {
	_, ok := d.admins[adminID]
	return ok, nil
}

// Size returns the number of configured approvers.
func (d *AllowlistDirectory) Size() int {
	return len(d.admins)
}
