package incidents

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/broadcast"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx for the in-memory repository. Only Commit and
// Rollback are ever called.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type mockRepository struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	links     map[string]map[string]bool
	updates   []domain.IncidentUpdate
	nextID    int
	now       time.Time
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		incidents: make(map[string]*domain.Incident),
		links:     make(map[string]map[string]bool),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockRepository) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *mockRepository) BeginTx(context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

func (m *mockRepository) CreateIncidentTx(_ context.Context, _ pgx.Tx, incident *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	incident.ID = fmt.Sprintf("inc-%d", m.nextID)
	incident.CreatedAt = m.tick()
	incident.UpdatedAt = incident.CreatedAt
	copied := *incident
	m.incidents[incident.ID] = &copied
	return nil
}

func (m *mockRepository) AssociateServicesTx(_ context.Context, _ pgx.Tx, incidentID string, serviceIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[incidentID] == nil {
		m.links[incidentID] = make(map[string]bool)
	}
	for _, id := range serviceIDs {
		m.links[incidentID][id] = true
	}
	return nil
}

func (m *mockRepository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	copied := *incident
	copied.ServiceIDs = m.serviceIDsLocked(id)
	return &copied, nil
}

func (m *mockRepository) serviceIDsLocked(incidentID string) []string {
	ids := make([]string, 0, len(m.links[incidentID]))
	for id := range m.links[incidentID] {
		ids = append(ids, id)
	}
	return ids
}

func (m *mockRepository) ListIncidents(_ context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Incident, 0)
	for id, incident := range m.incidents {
		if filter.PublicOnly && incident.Status == domain.IncidentStatusResolved {
			continue
		}
		if filter.Status != nil && incident.Status != *filter.Status {
			continue
		}
		if filter.ServiceID != nil && !m.links[id][*filter.ServiceID] {
			continue
		}
		copied := *incident
		copied.ServiceIDs = m.serviceIDsLocked(id)
		result = append(result, copied)
	}
	// Newest first.
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (m *mockRepository) ResolveIncidentTx(_ context.Context, _ pgx.Tx, id string, resolvedAt time.Time) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	if incident.Status == domain.IncidentStatusResolved {
		return nil, ErrAlreadyResolved
	}
	incident.Status = domain.IncidentStatusResolved
	incident.Resolved = true
	incident.ResolvedAt = &resolvedAt
	incident.UpdatedAt = m.tick()
	copied := *incident
	copied.ServiceIDs = m.serviceIDsLocked(id)
	return &copied, nil
}

func (m *mockRepository) SetIncidentStatusTx(_ context.Context, _ pgx.Tx, id string, status domain.IncidentStatus) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	if incident.Status == domain.IncidentStatusResolved {
		return nil, ErrAlreadyResolved
	}
	incident.Status = status
	incident.UpdatedAt = m.tick()
	copied := *incident
	copied.ServiceIDs = m.serviceIDsLocked(id)
	return &copied, nil
}

func (m *mockRepository) appendLocked(update *domain.IncidentUpdate) {
	m.nextID++
	update.ID = fmt.Sprintf("upd-%d", m.nextID)
	update.CreatedAt = m.tick()
	m.updates = append(m.updates, *update)
}

func (m *mockRepository) AppendUpdate(_ context.Context, update *domain.IncidentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(update)
	return nil
}

func (m *mockRepository) AppendUpdateTx(_ context.Context, _ pgx.Tx, update *domain.IncidentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(update)
	return nil
}

func (m *mockRepository) ListUpdates(_ context.Context, incidentID string) ([]domain.IncidentUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.IncidentUpdate, 0)
	for _, update := range m.updates {
		if update.IncidentID == incidentID {
			result = append(result, update)
		}
	}
	return result, nil
}

func (m *mockRepository) GetIncidentServiceIDsTx(_ context.Context, _ pgx.Tx, incidentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serviceIDsLocked(incidentID), nil
}

func (m *mockRepository) UnresolvedImpactsForServiceTx(_ context.Context, _ pgx.Tx, serviceID string) ([]domain.Impact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	impacts := make([]domain.Impact, 0)
	for id, incident := range m.incidents {
		if incident.Status == domain.IncidentStatusResolved {
			continue
		}
		if m.links[id][serviceID] {
			impacts = append(impacts, incident.Impact)
		}
	}
	return impacts, nil
}

type mockCatalog struct {
	mu       sync.Mutex
	statuses map[string]domain.ServiceStatus
}

func newMockCatalog(serviceIDs ...string) *mockCatalog {
	statuses := make(map[string]domain.ServiceStatus)
	for _, id := range serviceIDs {
		statuses[id] = domain.ServiceStatusOperational
	}
	return &mockCatalog{statuses: statuses}
}

func (m *mockCatalog) ValidateServicesExist(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := m.statuses[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *mockCatalog) UpdateServiceStatusTx(_ context.Context, _ pgx.Tx, serviceID string, status domain.ServiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[serviceID]; ok {
		m.statuses[serviceID] = status
	}
	return nil
}

func (m *mockCatalog) status(serviceID string) domain.ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[serviceID]
}

func newTestService(catalog *mockCatalog) (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, catalog, nil), repo
}

func createIncident(t *testing.T, svc *Service, impact domain.Impact, serviceIDs ...string) *domain.Incident {
	t.Helper()
	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "Elevated error rates",
		Description: "Seeing elevated 5xx responses",
		Impact:      impact,
		ServiceIDs:  serviceIDs,
	}, "user-1")
	require.NoError(t, err)
	return incident
}

func TestService_CreateIncident_SeedsUpdateLog(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	assert.Equal(t, domain.IncidentStatusInvestigating, incident.Status)
	assert.False(t, incident.Resolved)

	updates, err := svc.ListUpdates(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.InitialUpdateMessage, updates[0].Message)
	assert.Equal(t, domain.UpdateStatusUpdate, updates[0].Status)
	assert.Equal(t, "user-1", updates[0].CreatedBy)
}

func TestService_CreateIncident_DerivesServiceStatus(t *testing.T) {
	tests := []struct {
		impact domain.Impact
		want   domain.ServiceStatus
	}{
		{domain.ImpactCritical, domain.ServiceStatusMajorOutage},
		{domain.ImpactMajor, domain.ServiceStatusPartialOutage},
		{domain.ImpactMinor, domain.ServiceStatusDegraded},
		{domain.ImpactNone, domain.ServiceStatusOperational},
	}

	for _, tt := range tests {
		t.Run(string(tt.impact), func(t *testing.T) {
			catalog := newMockCatalog("svc-a")
			svc, _ := newTestService(catalog)

			createIncident(t, svc, tt.impact, "svc-a")
			assert.Equal(t, tt.want, catalog.status("svc-a"))
		})
	}
}

func TestService_CreateIncident_MaxSeverityWins(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	createIncident(t, svc, domain.ImpactMajor, "svc-a")
	createIncident(t, svc, domain.ImpactMinor, "svc-a")

	// The minor incident does not downgrade the major one's effect.
	assert.Equal(t, domain.ServiceStatusPartialOutage, catalog.status("svc-a"))
}

func TestService_CreateIncident_Validation(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	_, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "No services",
		Description: "d",
		Impact:      domain.ImpactMinor,
	}, "user-1")
	assert.ErrorIs(t, err, ErrNoAffectedServices)

	_, err = svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "Ghost service",
		Description: "d",
		Impact:      domain.ImpactMinor,
		ServiceIDs:  []string{"svc-ghost"},
	}, "user-1")
	assert.ErrorIs(t, err, ErrAffectedServiceNotFound)

	_, err = svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "Born resolved",
		Description: "d",
		Status:      domain.IncidentStatusResolved,
		Impact:      domain.ImpactMinor,
		ServiceIDs:  []string{"svc-a"},
	}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "Bad impact",
		Description: "d",
		Impact:      domain.Impact("catastrophic"),
		ServiceIDs:  []string{"svc-a"},
	}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidImpact)
}

func TestService_Resolve_LastIncidentRestoresOperational(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactCritical, "svc-a")
	require.Equal(t, domain.ServiceStatusMajorOutage, catalog.status("svc-a"))

	resolved, err := svc.Resolve(context.Background(), incident.ID, "", "user-2")
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusResolved, resolved.Status)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, domain.ServiceStatusOperational, catalog.status("svc-a"))
}

func TestService_Resolve_RemainingIncidentKeepsSeverity(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	createIncident(t, svc, domain.ImpactMinor, "svc-a")
	major := createIncident(t, svc, domain.ImpactMajor, "svc-a")
	require.Equal(t, domain.ServiceStatusPartialOutage, catalog.status("svc-a"))

	_, err := svc.Resolve(context.Background(), major.ID, "", "user-2")
	require.NoError(t, err)

	// The minor incident is still open, so the service stays degraded.
	assert.Equal(t, domain.ServiceStatusDegraded, catalog.status("svc-a"))
}

func TestService_Resolve_RecordsResolvingUpdate(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	_, err := svc.Resolve(context.Background(), incident.ID, "Root cause fixed", "user-2")
	require.NoError(t, err)

	updates, err := svc.ListUpdates(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "Root cause fixed", updates[1].Message)
	assert.Equal(t, domain.UpdateStatusResolved, updates[1].Status)
}

func TestService_Resolve_Twice(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	_, err := svc.Resolve(context.Background(), incident.ID, "", "user-2")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), incident.ID, "", "user-2")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestService_AppendUpdate_DoesNotChangeStatus(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	_, err := svc.AppendUpdate(context.Background(), incident.ID, "Still investigating", "", "user-2")
	require.NoError(t, err)

	// An entry marked resolved is just a log entry, not a resolution.
	_, err = svc.AppendUpdate(context.Background(), incident.ID, "Looks fixed", domain.UpdateStatusResolved, "user-2")
	require.NoError(t, err)

	got, err := svc.GetIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInvestigating, got.Status)
	assert.False(t, got.Resolved)
}

func TestService_AppendUpdate_UnknownIncident(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	_, err := svc.AppendUpdate(context.Background(), "missing", "hello", "", "user-1")
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestService_AppendUpdate_ConcurrentAppendsAllLand(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendUpdate(context.Background(), incident.ID, fmt.Sprintf("update %d", i), "", "user-1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	updates, err := svc.ListUpdates(context.Background(), incident.ID)
	require.NoError(t, err)
	// Seed entry plus every concurrent append.
	assert.Len(t, updates, n+1)
}

func TestService_UpdateStatus(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	got, err := svc.UpdateStatus(context.Background(), incident.ID, domain.IncidentStatusMonitoring, "Fix deployed", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusMonitoring, got.Status)

	// Stepping back from monitoring is allowed.
	got, err = svc.UpdateStatus(context.Background(), incident.ID, domain.IncidentStatusIdentified, "", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusIdentified, got.Status)

	updates, err := svc.ListUpdates(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, "Fix deployed", updates[1].Message)
	assert.Equal(t, "Status changed to identified", updates[2].Message)
}

func TestService_UpdateStatus_ResolvedTarget(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	incident := createIncident(t, svc, domain.ImpactMinor, "svc-a")

	_, err := svc.UpdateStatus(context.Background(), incident.ID, domain.IncidentStatusResolved, "", "user-1")
	assert.ErrorIs(t, err, ErrResolveViaStatus)
}

func TestService_ListPublicIncidents_ExcludesResolved(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	svc, _ := newTestService(catalog)

	first := createIncident(t, svc, domain.ImpactMinor, "svc-a")
	second := createIncident(t, svc, domain.ImpactMajor, "svc-a")
	third := createIncident(t, svc, domain.ImpactCritical, "svc-a")

	_, err := svc.Resolve(context.Background(), second.ID, "", "user-1")
	require.NoError(t, err)

	list, err := svc.ListPublicIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestService_PublishesBroadcastEvents(t *testing.T) {
	catalog := newMockCatalog("svc-a")
	repo := newMockRepository()
	pub := &capturingPublisher{}
	svc := NewService(repo, catalog, pub)

	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:       "t",
		Description: "d",
		Impact:      domain.ImpactMinor,
		ServiceIDs:  []string{"svc-a"},
	}, "user-1")
	require.NoError(t, err)

	_, err = svc.AppendUpdate(context.Background(), incident.ID, "note", "", "user-1")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), incident.ID, "", "user-1")
	require.NoError(t, err)

	require.Len(t, pub.events, 3)
	assert.Equal(t, broadcast.ActionCreated, pub.events[0].Action)
	assert.Equal(t, broadcast.ActionUpdated, pub.events[1].Action)
	assert.Equal(t, broadcast.ActionResolved, pub.events[2].Action)
	for _, event := range pub.events {
		assert.Equal(t, broadcast.KindIncident, event.Kind)
		assert.Equal(t, incident.ID, event.ID)
	}
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *capturingPublisher) Publish(event broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}
