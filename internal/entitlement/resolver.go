// Package entitlement resolves effective quotas for an organization from
// its licenses, subscription plan and direct limits.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// Quota is a resolved entitlement limit
type Quota struct {
	Limit     int
	Unlimited bool
}

// QuotaExceededError reports a creation attempt past the resolved limit.
// Current and Limit go back to the operator for diagnostics.
type QuotaExceededError struct {
	Kind    storage.QuotaKind
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d in use", e.Kind, e.Current, e.Limit)
}

// Resolver computes effective entitlements. Construct it over a
// transaction-scoped store when the result gates a write, so the
// check-then-create sequence is serialized.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a resolver
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveQuota resolves the effective quota of one kind for an
// organization. Priority order, first non-empty source wins:
//
//  1. the maximum set (>0) value across the organization's active
//     licenses, so a tenant holding several licenses gets the most
//     generous one rather than a sum
//  2. the subscription plan's quota, if set
//  3. the organization's direct quota, if set
//  4. unlimited
func (r *Resolver) ResolveQuota(ctx context.Context, organizationID int64, kind storage.QuotaKind) (Quota, error) {
	licenses, err := r.store.ListActiveLicenses(ctx, organizationID)
	if err != nil {
		return Quota{}, err
	}

	best := 0
	for _, lic := range licenses {
		if v := licenseQuota(lic, kind); v > best {
			best = v
		}
	}
	if best > 0 {
		return Quota{Limit: best}, nil
	}

	org, err := r.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return Quota{}, err
	}

	if org.SubscriptionPlan != "" {
		plan, err := r.store.GetPlanByName(ctx, org.SubscriptionPlan)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Quota{}, err
		}
		if plan != nil {
			if v := planQuota(plan, kind); v > 0 {
				return Quota{Limit: v}, nil
			}
		}
	}

	if v := orgQuota(org, kind); v > 0 {
		return Quota{Limit: v}, nil
	}

	return Quota{Unlimited: true}, nil
}

// ResolveModules resolves the set of enabled module identifiers: the
// union across active licenses that carry a module list, else the plan's
// available modules, else none.
func (r *Resolver) ResolveModules(ctx context.Context, organizationID int64) ([]string, error) {
	licenses, err := r.store.ListActiveLicenses(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var modules []string
	for _, lic := range licenses {
		for _, mod := range lic.Modules {
			if !seen[mod] {
				seen[mod] = true
				modules = append(modules, mod)
			}
		}
	}
	if len(modules) > 0 {
		return modules, nil
	}

	org, err := r.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionPlan == "" {
		return nil, nil
	}

	plan, err := r.store.GetPlanByName(ctx, org.SubscriptionPlan)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return plan.AvailableModules, nil
}

// AssertCanCreate checks that creating one more entity of the given kind
// stays inside the resolved quota. Returns *QuotaExceededError when the
// organization is already at its limit.
func (r *Resolver) AssertCanCreate(ctx context.Context, organizationID int64, kind storage.QuotaKind) error {
	// The organization row lock serializes concurrent creations for one
	// tenant; without it two transactions could both count under the
	// limit and both insert.
	if _, err := r.store.GetOrganizationForUpdate(ctx, organizationID); err != nil {
		return err
	}

	quota, err := r.ResolveQuota(ctx, organizationID, kind)
	if err != nil {
		return err
	}
	if quota.Unlimited {
		return nil
	}

	var current int
	switch kind {
	case storage.QuotaCameras:
		current, err = r.store.CountCameras(ctx, organizationID)
	case storage.QuotaEdgeServers:
		current, err = r.store.CountEdgeServers(ctx, organizationID)
	default:
		return fmt.Errorf("unknown quota kind %q", kind)
	}
	if err != nil {
		return err
	}

	if current >= quota.Limit {
		return &QuotaExceededError{Kind: kind, Current: current, Limit: quota.Limit}
	}
	return nil
}

func licenseQuota(lic *models.License, kind storage.QuotaKind) int {
	switch kind {
	case storage.QuotaCameras:
		return lic.MaxCameras
	case storage.QuotaEdgeServers:
		return lic.MaxEdgeServers
	}
	return 0
}

func planQuota(plan *models.SubscriptionPlan, kind storage.QuotaKind) int {
	switch kind {
	case storage.QuotaCameras:
		return plan.MaxCameras
	case storage.QuotaEdgeServers:
		return plan.MaxEdgeServers
	}
	return 0
}

func orgQuota(org *models.Organization, kind storage.QuotaKind) int {
	switch kind {
	case storage.QuotaCameras:
		return org.MaxCameras
	case storage.QuotaEdgeServers:
		return org.MaxEdgeServers
	}
	return 0
}
