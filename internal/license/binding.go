// Package license implements the license to edge server binding state
// machine. A license is bound to at most one edge server and an edge
// server holds at most one license; every transition updates both sides
// inside a single transaction.
package license

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

var (
	// ErrAlreadyBound is returned when either side of a requested
	// binding is already taken.
	ErrAlreadyBound = errors.New("already bound")
	// ErrWrongOrganization is returned when a license and an edge
	// server belong to different organizations.
	ErrWrongOrganization = errors.New("license and edge server belong to different organizations")
	// ErrLicenseInactive is returned when the license cannot accept a
	// binding in its current status.
	ErrLicenseInactive = errors.New("license is not active")
)

// Manager performs binding transitions
type Manager struct {
	store storage.Store
}

// NewManager creates a binding manager
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Bind binds a license to an edge server. It is strict: if either side
// is already bound, even to each other, it fails with ErrAlreadyBound
// and the caller decides whether to rebind.
func (m *Manager) Bind(ctx context.Context, licenseID, edgeServerID int64) error {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := bindLocked(ctx, tx, licenseID, edgeServerID); err != nil {
		return err
	}

	return tx.Commit()
}

// bindLocked performs the binding inside an already-open transaction
func bindLocked(ctx context.Context, tx storage.Store, licenseID, edgeServerID int64) error {
	lic, err := tx.GetLicenseForUpdate(ctx, licenseID)
	if err != nil {
		return err
	}

	edge, err := tx.GetEdgeServerForUpdate(ctx, edgeServerID)
	if err != nil {
		return err
	}

	if lic.OrganizationID != edge.OrganizationID {
		return ErrWrongOrganization
	}
	if !lic.IsActive() {
		return ErrLicenseInactive
	}
	if lic.EdgeServerID != nil || edge.LicenseID != nil {
		return ErrAlreadyBound
	}

	if err := tx.SetLicenseEdgeServer(ctx, lic.ID, &edge.ID); err != nil {
		return err
	}
	if err := tx.SetEdgeServerLicense(ctx, edge.ID, &lic.ID); err != nil {
		return err
	}

	log.Info().
		Int64("license_id", lic.ID).
		Int64("edge_server_id", edge.ID).
		Str("edge_id", edge.EdgeID).
		Msg("License bound to edge server")

	return nil
}

// Unbind releases whatever edge server a license is bound to. Unbinding
// an unbound license is a no-op.
func (m *Manager) Unbind(ctx context.Context, licenseID int64) error {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := unbindLocked(ctx, tx, licenseID); err != nil {
		return err
	}

	return tx.Commit()
}

func unbindLocked(ctx context.Context, tx storage.Store, licenseID int64) error {
	lic, err := tx.GetLicenseForUpdate(ctx, licenseID)
	if err != nil {
		return err
	}

	if lic.EdgeServerID == nil {
		return nil
	}
	edgeServerID := *lic.EdgeServerID

	if err := tx.SetLicenseEdgeServer(ctx, lic.ID, nil); err != nil {
		return err
	}
	if err := tx.SetEdgeServerLicense(ctx, edgeServerID, nil); err != nil {
		// the edge server may have been deleted out from under the
		// binding; the license side is already clean
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	log.Info().
		Int64("license_id", lic.ID).
		Int64("edge_server_id", edgeServerID).
		Msg("License unbound from edge server")

	return nil
}

// UnbindEdge releases whatever license an edge server holds. Unbinding
// an unlicensed edge server is a no-op.
func (m *Manager) UnbindEdge(ctx context.Context, edgeServerID int64) error {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	edge, err := tx.GetEdgeServerForUpdate(ctx, edgeServerID)
	if err != nil {
		return err
	}
	if edge.LicenseID != nil {
		if err := unbindLocked(ctx, tx, *edge.LicenseID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Rebind moves a license from its current edge server to a new one in a
// single transaction, so no observer ever sees the license bound to two
// servers or the target server holding two licenses.
func (m *Manager) Rebind(ctx context.Context, licenseID, edgeServerID int64) error {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := unbindLocked(ctx, tx, licenseID); err != nil {
		return err
	}

	// release the target edge server's current license too
	edge, err := tx.GetEdgeServerForUpdate(ctx, edgeServerID)
	if err != nil {
		return err
	}
	if edge.LicenseID != nil {
		if err := unbindLocked(ctx, tx, *edge.LicenseID); err != nil {
			return err
		}
	}

	if err := bindLocked(ctx, tx, licenseID, edgeServerID); err != nil {
		return err
	}

	return tx.Commit()
}

// AutoLink binds the oldest unbound active license of the edge server's
// organization to it. Returns storage.ErrNotFound when the organization
// has no license to give.
func (m *Manager) AutoLink(ctx context.Context, edgeServerID int64) (*models.License, error) {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lic, err := autoLinkLocked(ctx, tx, edgeServerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lic, nil
}

func autoLinkLocked(ctx context.Context, tx storage.Store, edgeServerID int64) (*models.License, error) {
	edge, err := tx.GetEdgeServerForUpdate(ctx, edgeServerID)
	if err != nil {
		return nil, err
	}
	if edge.LicenseID != nil {
		return nil, ErrAlreadyBound
	}

	lic, err := tx.FirstUnboundActiveLicense(ctx, edge.OrganizationID)
	if err != nil {
		return nil, err
	}

	if err := bindLocked(ctx, tx, lic.ID, edge.ID); err != nil {
		return nil, err
	}

	lic.EdgeServerID = &edge.ID
	return lic, nil
}
