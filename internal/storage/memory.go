package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// MemoryStore implements Store with in-process maps. It backs tests and
// local development; a single mutex serializes transactions, which gives
// the same effective exclusivity the Postgres store gets from row locks.
type MemoryStore struct {
	mu sync.Mutex

	data *memData

	// transaction handle state
	tx   bool
	snap *memData
	root *MemoryStore
}

type memData struct {
	seq      int64
	users    map[int64]*models.User
	orgs     map[int64]*models.Organization
	plans    map[int64]*models.SubscriptionPlan
	licenses map[int64]*models.License
	edges    map[int64]*models.EdgeServer
	cameras  map[int64]*models.Camera
	events   map[int64]*models.Event
	logs     map[int64]*models.EdgeServerLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func newMemData() *memData {
	return &memData{
		users:    make(map[int64]*models.User),
		orgs:     make(map[int64]*models.Organization),
		plans:    make(map[int64]*models.SubscriptionPlan),
		licenses: make(map[int64]*models.License),
		edges:    make(map[int64]*models.EdgeServer),
		cameras:  make(map[int64]*models.Camera),
		events:   make(map[int64]*models.Event),
		logs:     make(map[int64]*models.EdgeServerLog),
	}
}

// clone snapshots the store for rollback. Nested JSON fields are
// deep-copied so a rollback also discards in-place mutations of map and
// slice contents, not just field reassignments.
func (d *memData) clone() *memData {
	c := newMemData()
	c.seq = d.seq
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.orgs {
		o := *v
		c.orgs[k] = &o
	}
	for k, v := range d.plans {
		p := *v
		p.AvailableModules = cloneStringList(p.AvailableModules)
		c.plans[k] = &p
	}
	for k, v := range d.licenses {
		l := *v
		l.Modules = cloneStringList(l.Modules)
		c.licenses[k] = &l
	}
	for k, v := range d.edges {
		e := *v
		e.SystemInfo = cloneVariables(e.SystemInfo)
		c.edges[k] = &e
	}
	for k, v := range d.cameras {
		cam := *v
		cam.Config = cloneVariables(cam.Config)
		c.cameras[k] = &cam
	}
	for k, v := range d.events {
		e := *v
		e.Meta = cloneVariables(e.Meta)
		c.events[k] = &e
	}
	for k, v := range d.logs {
		l := *v
		l.Meta = cloneVariables(l.Meta)
		c.logs[k] = &l
	}
	return c
}

func cloneVariables(v models.Variables) models.Variables {
	if v == nil {
		return nil
	}
	c := make(models.Variables, len(v))
	for k, val := range v {
		c[k] = cloneValue(val)
	}
	return c
}

// cloneValue copies the shapes json.Unmarshal produces; scalars are
// immutable and shared as-is
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(val))
		for i, inner := range val {
			l[i] = cloneValue(inner)
		}
		return l
	default:
		return v
	}
}

func cloneStringList(l models.StringList) models.StringList {
	if l == nil {
		return nil
	}
	return append(models.StringList(nil), l...)
}

// lock acquires the store mutex unless this handle already holds it as
// an open transaction
func (s *MemoryStore) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) nextID() int64 {
	s.data.seq++
	return s.data.seq
}

// Close releases nothing; present to satisfy Store
func (s *MemoryStore) Close() error { return nil }

// BeginTx locks the store and returns a transaction-scoped handle
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) {
	s.mu.Lock()
	return &MemoryStore{data: s.data, tx: true, snap: s.data.clone(), root: s}, nil
}

// Commit releases the transaction lock, keeping all mutations
func (s *MemoryStore) Commit() error {
	if !s.tx {
		return nil
	}
	s.tx = false
	s.root.mu.Unlock()
	return nil
}

// Rollback restores the pre-transaction snapshot and releases the lock
func (s *MemoryStore) Rollback() error {
	if !s.tx {
		return nil
	}
	s.tx = false
	s.root.data = s.snap
	s.root.mu.Unlock()
	return nil
}

// ========== User methods ==========

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	for _, u := range s.data.users {
		if u.DeletedAt == nil && u.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	user.ID = s.nextID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.data.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.data.users {
		if u.DeletedAt == nil && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	existing, ok := s.data.users[user.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	s.data.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id int64) error {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok || u.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, organizationID *int64, limit, offset int) ([]*models.User, int64, error) {
	defer s.lock()()
	var all []*models.User
	for _, u := range s.data.users {
		if u.DeletedAt != nil {
			continue
		}
		if organizationID != nil && (u.OrganizationID == nil || *u.OrganizationID != *organizationID) {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Organization methods ==========

func (s *MemoryStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()
	org.ID = s.nextID()
	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now
	cp := *org
	s.data.orgs[org.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	defer s.lock()()
	o, ok := s.data.orgs[id]
	if !ok || o.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) GetOrganizationForUpdate(ctx context.Context, id int64) (*models.Organization, error) {
	return s.GetOrganization(ctx, id)
}

func (s *MemoryStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()
	existing, ok := s.data.orgs[org.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	org.UpdatedAt = time.Now()
	cp := *org
	s.data.orgs[org.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteOrganization(ctx context.Context, id int64) error {
	defer s.lock()()
	o, ok := s.data.orgs[id]
	if !ok || o.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	o.DeletedAt = &now
	for _, l := range s.data.licenses {
		if l.OrganizationID == id && l.DeletedAt == nil {
			l.DeletedAt = &now
		}
	}
	for _, e := range s.data.edges {
		if e.OrganizationID == id && e.DeletedAt == nil {
			e.DeletedAt = &now
		}
	}
	for _, c := range s.data.cameras {
		if c.OrganizationID == id && c.DeletedAt == nil {
			c.DeletedAt = &now
		}
	}
	return nil
}

func (s *MemoryStore) ListOrganizations(ctx context.Context, limit, offset int) ([]*models.Organization, int64, error) {
	defer s.lock()()
	var all []*models.Organization
	for _, o := range s.data.orgs {
		if o.DeletedAt != nil {
			continue
		}
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Subscription plan methods ==========

func (s *MemoryStore) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	defer s.lock()()
	for _, p := range s.data.plans {
		if p.DeletedAt == nil && p.Name == plan.Name {
			return ErrDuplicateKey
		}
	}
	plan.ID = s.nextID()
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	cp := *plan
	s.data.plans[plan.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, id int64) (*models.SubscriptionPlan, error) {
	defer s.lock()()
	p, ok := s.data.plans[id]
	if !ok || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	defer s.lock()()
	for _, p := range s.data.plans {
		if p.DeletedAt == nil && p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	defer s.lock()()
	existing, ok := s.data.plans[plan.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	plan.UpdatedAt = time.Now()
	cp := *plan
	s.data.plans[plan.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePlan(ctx context.Context, id int64) error {
	defer s.lock()()
	p, ok := s.data.plans[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (s *MemoryStore) ListPlans(ctx context.Context, limit, offset int) ([]*models.SubscriptionPlan, int64, error) {
	defer s.lock()()
	var all []*models.SubscriptionPlan
	for _, p := range s.data.plans {
		if p.DeletedAt != nil {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PriceMonthly < all[j].PriceMonthly })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== License methods ==========

func (s *MemoryStore) CreateLicense(ctx context.Context, license *models.License) error {
	defer s.lock()()
	for _, l := range s.data.licenses {
		if l.DeletedAt != nil {
			continue
		}
		if l.LicenseKey == license.LicenseKey {
			return ErrDuplicateKey
		}
		if license.EdgeServerID != nil && l.EdgeServerID != nil && *l.EdgeServerID == *license.EdgeServerID {
			return ErrDuplicateKey
		}
	}
	license.ID = s.nextID()
	now := time.Now()
	license.CreatedAt = now
	license.UpdatedAt = now
	cp := *license
	s.data.licenses[license.ID] = &cp
	return nil
}

func (s *MemoryStore) getLicense(id int64) (*models.License, error) {
	l, ok := s.data.licenses[id]
	if !ok || l.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) GetLicense(ctx context.Context, id int64) (*models.License, error) {
	defer s.lock()()
	return s.getLicense(id)
}

func (s *MemoryStore) GetLicenseForUpdate(ctx context.Context, id int64) (*models.License, error) {
	defer s.lock()()
	return s.getLicense(id)
}

func (s *MemoryStore) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	defer s.lock()()
	for _, l := range s.data.licenses {
		if l.DeletedAt == nil && l.LicenseKey == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetLicenseByEdgeServer(ctx context.Context, edgeServerID int64) (*models.License, error) {
	defer s.lock()()
	for _, l := range s.data.licenses {
		if l.DeletedAt == nil && l.EdgeServerID != nil && *l.EdgeServerID == edgeServerID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FirstUnboundActiveLicense(ctx context.Context, organizationID int64) (*models.License, error) {
	defer s.lock()()
	var candidates []*models.License
	for _, l := range s.data.licenses {
		if l.DeletedAt == nil && l.OrganizationID == organizationID &&
			l.Status == models.LicenseStatusActive && l.EdgeServerID == nil {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	cp := *candidates[0]
	return &cp, nil
}

func (s *MemoryStore) ListActiveLicenses(ctx context.Context, organizationID int64) ([]*models.License, error) {
	defer s.lock()()
	var all []*models.License
	for _, l := range s.data.licenses {
		if l.DeletedAt == nil && l.OrganizationID == organizationID && l.Status == models.LicenseStatusActive {
			cp := *l
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (s *MemoryStore) UpdateLicense(ctx context.Context, license *models.License) error {
	defer s.lock()()
	existing, ok := s.data.licenses[license.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	license.UpdatedAt = time.Now()
	cp := *license
	s.data.licenses[license.ID] = &cp
	return nil
}

func (s *MemoryStore) ExpireLicenses(ctx context.Context, grace time.Duration) ([]*models.License, error) {
	defer s.lock()()
	now := time.Now()
	var expired []*models.License
	for _, l := range s.data.licenses {
		if l.DeletedAt != nil {
			continue
		}
		overdue := l.Status == models.LicenseStatusActive &&
			l.ExpiresAt != nil && now.Sub(*l.ExpiresAt) > grace
		trialOver := l.Status == models.LicenseStatusTrial &&
			l.TrialEndsAt != nil && l.TrialEndsAt.Before(now)
		if !overdue && !trialOver {
			continue
		}
		l.Status = models.LicenseStatusExpired
		l.UpdatedAt = now
		cp := *l
		expired = append(expired, &cp)
	}
	return expired, nil
}

func (s *MemoryStore) SetLicenseEdgeServer(ctx context.Context, licenseID int64, edgeServerID *int64) error {
	defer s.lock()()
	l, ok := s.data.licenses[licenseID]
	if !ok || l.DeletedAt != nil {
		return ErrNotFound
	}
	l.EdgeServerID = edgeServerID
	l.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteLicense(ctx context.Context, id int64) error {
	defer s.lock()()
	l, ok := s.data.licenses[id]
	if !ok || l.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	l.DeletedAt = &now
	l.EdgeServerID = nil
	for _, e := range s.data.edges {
		if e.DeletedAt == nil && e.LicenseID != nil && *e.LicenseID == id {
			e.LicenseID = nil
		}
	}
	return nil
}

func (s *MemoryStore) ListLicenses(ctx context.Context, filters LicenseFilters, limit, offset int) ([]*models.License, int64, error) {
	defer s.lock()()
	var all []*models.License
	for _, l := range s.data.licenses {
		if l.DeletedAt != nil {
			continue
		}
		if filters.OrganizationID != nil && l.OrganizationID != *filters.OrganizationID {
			continue
		}
		if filters.Status != nil && l.Status != *filters.Status {
			continue
		}
		if filters.Plan != nil && l.Plan != *filters.Plan {
			continue
		}
		cp := *l
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Edge server methods ==========

func (s *MemoryStore) CreateEdgeServer(ctx context.Context, edge *models.EdgeServer) error {
	defer s.lock()()
	for _, e := range s.data.edges {
		if e.DeletedAt != nil {
			continue
		}
		if e.EdgeID == edge.EdgeID || e.EdgeKey == edge.EdgeKey {
			return ErrDuplicateKey
		}
	}
	edge.ID = s.nextID()
	now := time.Now()
	edge.CreatedAt = now
	edge.UpdatedAt = now
	if edge.Port == 0 {
		edge.Port = 8080
	}
	cp := *edge
	s.data.edges[edge.ID] = &cp
	return nil
}

func (s *MemoryStore) getEdgeServer(id int64) (*models.EdgeServer, error) {
	e, ok := s.data.edges[id]
	if !ok || e.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) GetEdgeServer(ctx context.Context, id int64) (*models.EdgeServer, error) {
	defer s.lock()()
	return s.getEdgeServer(id)
}

func (s *MemoryStore) GetEdgeServerForUpdate(ctx context.Context, id int64) (*models.EdgeServer, error) {
	defer s.lock()()
	return s.getEdgeServer(id)
}

func (s *MemoryStore) GetEdgeServerByEdgeID(ctx context.Context, edgeID string) (*models.EdgeServer, error) {
	defer s.lock()()
	for _, e := range s.data.edges {
		if e.DeletedAt == nil && e.EdgeID == edgeID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetEdgeServerByKey(ctx context.Context, edgeKey string) (*models.EdgeServer, error) {
	defer s.lock()()
	for _, e := range s.data.edges {
		if e.DeletedAt == nil && e.EdgeKey == edgeKey {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateEdgeServer(ctx context.Context, edge *models.EdgeServer) error {
	defer s.lock()()
	existing, ok := s.data.edges[edge.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	edge.UpdatedAt = time.Now()
	cp := *edge
	// credentials and owner are immutable after creation; the license
	// binding moves only through SetEdgeServerLicense
	cp.OrganizationID = existing.OrganizationID
	cp.EdgeKey = existing.EdgeKey
	cp.EdgeSecret = existing.EdgeSecret
	cp.LicenseID = existing.LicenseID
	s.data.edges[edge.ID] = &cp
	return nil
}

func (s *MemoryStore) SetEdgeServerLicense(ctx context.Context, edgeServerID int64, licenseID *int64) error {
	defer s.lock()()
	e, ok := s.data.edges[edgeServerID]
	if !ok || e.DeletedAt != nil {
		return ErrNotFound
	}
	e.LicenseID = licenseID
	e.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteEdgeServer(ctx context.Context, id int64) error {
	defer s.lock()()
	e, ok := s.data.edges[id]
	if !ok || e.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	e.DeletedAt = &now
	for _, l := range s.data.licenses {
		if l.DeletedAt == nil && l.EdgeServerID != nil && *l.EdgeServerID == id {
			l.EdgeServerID = nil
		}
	}
	for _, c := range s.data.cameras {
		if c.DeletedAt == nil && c.EdgeServerID != nil && *c.EdgeServerID == id {
			c.DeletedAt = &now
		}
	}
	for _, lg := range s.data.logs {
		if lg.DeletedAt == nil && lg.EdgeServerID == id {
			lg.DeletedAt = &now
		}
	}
	return nil
}

func (s *MemoryStore) ListEdgeServers(ctx context.Context, filters EdgeServerFilters, limit, offset int) ([]*models.EdgeServer, int64, error) {
	defer s.lock()()
	var all []*models.EdgeServer
	for _, e := range s.data.edges {
		if e.DeletedAt != nil {
			continue
		}
		if filters.OrganizationID != nil && e.OrganizationID != *filters.OrganizationID {
			continue
		}
		if filters.Online != nil && e.Online != *filters.Online {
			continue
		}
		cp := *e
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		ti, tj := all[i].LastSeenAt, all[j].LastSeenAt
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) MarkEdgeServersOffline(ctx context.Context, cutoff time.Time) ([]*models.EdgeServer, error) {
	defer s.lock()()
	var flipped []*models.EdgeServer
	now := time.Now()
	for _, e := range s.data.edges {
		if e.DeletedAt != nil || !e.Online {
			continue
		}
		if e.LastSeenAt != nil && !e.LastSeenAt.Before(cutoff) {
			continue
		}
		e.Online = false
		e.UpdatedAt = now
		cp := *e
		flipped = append(flipped, &cp)
	}
	return flipped, nil
}

func (s *MemoryStore) CountEdgeServers(ctx context.Context, organizationID int64) (int, error) {
	defer s.lock()()
	count := 0
	for _, e := range s.data.edges {
		if e.DeletedAt == nil && e.OrganizationID == organizationID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) EdgeServerStats(ctx context.Context, organizationID *int64) (int, int, error) {
	defer s.lock()()
	total, online := 0, 0
	for _, e := range s.data.edges {
		if e.DeletedAt != nil {
			continue
		}
		if organizationID != nil && e.OrganizationID != *organizationID {
			continue
		}
		total++
		if e.Online {
			online++
		}
	}
	return total, online, nil
}

// ========== Camera methods ==========

func (s *MemoryStore) CreateCamera(ctx context.Context, camera *models.Camera) error {
	defer s.lock()()
	for _, c := range s.data.cameras {
		if c.DeletedAt == nil && c.OrganizationID == camera.OrganizationID && c.CameraID == camera.CameraID {
			return ErrDuplicateKey
		}
	}
	camera.ID = s.nextID()
	now := time.Now()
	camera.CreatedAt = now
	camera.UpdatedAt = now
	if camera.Status == "" {
		camera.Status = models.CameraStatusOffline
	}
	cp := *camera
	s.data.cameras[camera.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCamera(ctx context.Context, id int64) (*models.Camera, error) {
	defer s.lock()()
	c, ok := s.data.cameras[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateCamera(ctx context.Context, camera *models.Camera) error {
	defer s.lock()()
	existing, ok := s.data.cameras[camera.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	camera.UpdatedAt = time.Now()
	cp := *camera
	s.data.cameras[camera.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateCameraStatus(ctx context.Context, edgeServerID int64, cameraID, status string) error {
	defer s.lock()()
	for _, c := range s.data.cameras {
		if c.DeletedAt == nil && c.EdgeServerID != nil && *c.EdgeServerID == edgeServerID && c.CameraID == cameraID {
			c.Status = status
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteCamera(ctx context.Context, id int64) error {
	defer s.lock()()
	c, ok := s.data.cameras[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	c.Status = models.CameraStatusDeleted
	return nil
}

func (s *MemoryStore) ListCameras(ctx context.Context, filters CameraFilters, limit, offset int) ([]*models.Camera, int64, error) {
	defer s.lock()()
	var all []*models.Camera
	for _, c := range s.data.cameras {
		if c.DeletedAt != nil || c.Status == models.CameraStatusDeleted {
			continue
		}
		if filters.OrganizationID != nil && c.OrganizationID != *filters.OrganizationID {
			continue
		}
		if filters.EdgeServerID != nil && (c.EdgeServerID == nil || *c.EdgeServerID != *filters.EdgeServerID) {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) ListCamerasForEdge(ctx context.Context, edgeServerID int64) ([]*models.Camera, error) {
	defer s.lock()()
	var all []*models.Camera
	for _, c := range s.data.cameras {
		if c.DeletedAt != nil || c.Status == models.CameraStatusDeleted {
			continue
		}
		if c.EdgeServerID == nil || *c.EdgeServerID != edgeServerID {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CameraID < all[j].CameraID })
	return all, nil
}

func (s *MemoryStore) CountCameras(ctx context.Context, organizationID int64) (int, error) {
	defer s.lock()()
	count := 0
	for _, c := range s.data.cameras {
		if c.DeletedAt == nil && c.Status != models.CameraStatusDeleted && c.OrganizationID == organizationID {
			count++
		}
	}
	return count, nil
}

// ========== Event methods ==========

func (s *MemoryStore) CreateEvent(ctx context.Context, event *models.Event) error {
	defer s.lock()()
	event.ID = s.nextID()
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	cp := *event
	s.data.events[event.ID] = &cp
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, int64, error) {
	defer s.lock()()
	var all []*models.Event
	for _, e := range s.data.events {
		if e.DeletedAt != nil {
			continue
		}
		if filters.OrganizationID != nil && (e.OrganizationID == nil || *e.OrganizationID != *filters.OrganizationID) {
			continue
		}
		if filters.EdgeServerID != nil && (e.EdgeServerID == nil || *e.EdgeServerID != *filters.EdgeServerID) {
			continue
		}
		if filters.EventType != nil && e.EventType != *filters.EventType {
			continue
		}
		if filters.Severity != nil && e.Severity != *filters.Severity {
			continue
		}
		if filters.StartTime != nil && e.OccurredAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && e.OccurredAt.After(*filters.EndTime) {
			continue
		}
		cp := *e
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredAt.After(all[j].OccurredAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Edge server log methods ==========

func (s *MemoryStore) CreateEdgeServerLog(ctx context.Context, entry *models.EdgeServerLog) error {
	defer s.lock()()
	entry.ID = s.nextID()
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	cp := *entry
	s.data.logs[entry.ID] = &cp
	return nil
}

func (s *MemoryStore) ListEdgeServerLogs(ctx context.Context, edgeServerID int64, level string, limit, offset int) ([]*models.EdgeServerLog, int64, error) {
	defer s.lock()()
	var all []*models.EdgeServerLog
	for _, l := range s.data.logs {
		if l.DeletedAt != nil || l.EdgeServerID != edgeServerID {
			continue
		}
		if level != "" && l.Level != level {
			continue
		}
		cp := *l
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
