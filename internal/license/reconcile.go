package license

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// Reconcile aligns the cloud-side binding with what an edge server
// reports in its heartbeat. reportedKey is the license key the edge
// believes it runs under, empty when it has none.
//
// An edge reporting a valid license of its own organization takes that
// license over, detaching it from any other edge server. An edge with
// no license gets the organization's oldest unbound active license
// auto-linked. The returned license is nil when the edge ends up
// unlicensed.
func (m *Manager) Reconcile(ctx context.Context, edgeServerID int64, reportedKey string) (*models.License, error) {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lic, err := m.reconcileLocked(ctx, tx, edgeServerID, reportedKey)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lic, nil
}

func (m *Manager) reconcileLocked(ctx context.Context, tx storage.Store, edgeServerID int64, reportedKey string) (*models.License, error) {
	edge, err := tx.GetEdgeServerForUpdate(ctx, edgeServerID)
	if err != nil {
		return nil, err
	}

	if reportedKey != "" {
		lic, err := tx.GetLicenseByKey(ctx, reportedKey)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Warn().
				Str("edge_id", edge.EdgeID).
				Str("license_key", reportedKey).
				Msg("Edge server reported unknown license key")
		case err != nil:
			return nil, err
		case lic.OrganizationID != edge.OrganizationID:
			log.Warn().
				Str("edge_id", edge.EdgeID).
				Str("license_key", reportedKey).
				Msg("Edge server reported license of another organization")
		case !lic.IsActive():
			log.Warn().
				Str("edge_id", edge.EdgeID).
				Str("license_key", reportedKey).
				Str("status", string(lic.Status)).
				Msg("Edge server reported inactive license")
		default:
			// already consistent
			if lic.EdgeServerID != nil && *lic.EdgeServerID == edge.ID &&
				edge.LicenseID != nil && *edge.LicenseID == lic.ID {
				return lic, nil
			}

			// takeover: the edge holding the physical license file wins
			if lic.EdgeServerID != nil {
				log.Info().
					Str("edge_id", edge.EdgeID).
					Int64("license_id", lic.ID).
					Int64("previous_edge_server_id", *lic.EdgeServerID).
					Msg("License takeover by heartbeat")
			}
			if err := unbindLocked(ctx, tx, lic.ID); err != nil {
				return nil, err
			}
			if edge.LicenseID != nil {
				if err := unbindLocked(ctx, tx, *edge.LicenseID); err != nil {
					return nil, err
				}
			}
			if err := bindLocked(ctx, tx, lic.ID, edge.ID); err != nil {
				return nil, err
			}

			lic.EdgeServerID = &edge.ID
			return lic, nil
		}
	}

	// no usable reported key: keep the current binding if any
	if edge.LicenseID != nil {
		return tx.GetLicense(ctx, *edge.LicenseID)
	}

	lic, err := autoLinkLocked(ctx, tx, edge.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lic, nil
}
