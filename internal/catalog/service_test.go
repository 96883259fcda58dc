package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/broadcast"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	services map[string]*domain.Service
	teams    map[string]bool
	nextID   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		services: make(map[string]*domain.Service),
		teams:    make(map[string]bool),
	}
}

func (m *mockRepository) CreateService(_ context.Context, service *domain.Service) error {
	for _, existing := range m.services {
		if existing.Slug == service.Slug {
			return ErrServiceExists
		}
	}
	m.nextID++
	service.ID = fmt.Sprintf("svc-%d", m.nextID)
	m.services[service.ID] = service
	return nil
}

func (m *mockRepository) GetServiceByID(_ context.Context, id string) (*domain.Service, error) {
	service, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	copied := *service
	return &copied, nil
}

func (m *mockRepository) GetServiceBySlug(_ context.Context, slug string) (*domain.Service, error) {
	for _, service := range m.services {
		if service.Slug == slug {
			copied := *service
			return &copied, nil
		}
	}
	return nil, ErrServiceNotFound
}

func (m *mockRepository) ListServices(_ context.Context, filter ServiceFilter) ([]domain.Service, error) {
	result := make([]domain.Service, 0)
	for _, service := range m.services {
		if filter.Status != nil && service.Status != *filter.Status {
			continue
		}
		if filter.TeamID != nil && (service.TeamID == nil || *service.TeamID != *filter.TeamID) {
			continue
		}
		result = append(result, *service)
	}
	return result, nil
}

func (m *mockRepository) UpdateService(_ context.Context, service *domain.Service) error {
	if _, ok := m.services[service.ID]; !ok {
		return ErrServiceNotFound
	}
	m.services[service.ID] = service
	return nil
}

func (m *mockRepository) DeleteService(_ context.Context, id string) error {
	if _, ok := m.services[id]; !ok {
		return ErrServiceNotFound
	}
	delete(m.services, id)
	return nil
}

func (m *mockRepository) ValidateServicesExist(_ context.Context, ids []string) ([]string, error) {
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := m.services[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *mockRepository) UpdateServiceStatusTx(_ context.Context, _ pgx.Tx, serviceID string, status domain.ServiceStatus) error {
	if service, ok := m.services[serviceID]; ok {
		service.Status = status
	}
	return nil
}

func (m *mockRepository) TeamExists(_ context.Context, teamID string) (bool, error) {
	return m.teams[teamID], nil
}

type capturingPublisher struct {
	events []broadcast.Event
}

func (p *capturingPublisher) Publish(event broadcast.Event) {
	p.events = append(p.events, event)
}

func TestService_CreateService(t *testing.T) {
	repo := newMockRepository()
	pub := &capturingPublisher{}
	svc := NewService(repo, pub)

	service, err := svc.CreateService(context.Background(), CreateServiceInput{
		Name:        "API Gateway",
		Description: "Public API entry point",
	})
	require.NoError(t, err)

	assert.Equal(t, "api-gateway", service.Slug)
	assert.Equal(t, domain.ServiceStatusOperational, service.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, broadcast.KindService, pub.events[0].Kind)
	assert.Equal(t, broadcast.ActionCreated, pub.events[0].Action)
	assert.Equal(t, service.ID, pub.events[0].ID)
}

func TestService_CreateService_DuplicateSlug(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	_, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "Search"})
	require.NoError(t, err)

	_, err = svc.CreateService(context.Background(), CreateServiceInput{Name: "Search"})
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestService_CreateService_UnknownTeam(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	teamID := "team-missing"
	_, err := svc.CreateService(context.Background(), CreateServiceInput{
		Name:   "Billing",
		TeamID: &teamID,
	})
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestService_CreateService_InvalidStatus(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	_, err := svc.CreateService(context.Background(), CreateServiceInput{
		Name:   "Billing",
		Status: domain.ServiceStatus("on_fire"),
	})
	assert.Error(t, err)
}

func TestService_UpdateService(t *testing.T) {
	repo := newMockRepository()
	repo.teams["team-1"] = true
	pub := &capturingPublisher{}
	svc := NewService(repo, pub)

	created, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "Old Name"})
	require.NoError(t, err)

	teamID := "team-1"
	updated, err := svc.UpdateService(context.Background(), created.ID, UpdateServiceInput{
		Name:        "New Name",
		Description: "renamed",
		Status:      domain.ServiceStatusDegraded,
		TeamID:      &teamID,
	})
	require.NoError(t, err)

	assert.Equal(t, "new-name", updated.Slug)
	assert.Equal(t, domain.ServiceStatusDegraded, updated.Status)
	require.NotNil(t, updated.TeamID)
	assert.Equal(t, "team-1", *updated.TeamID)

	require.Len(t, pub.events, 2)
	assert.Equal(t, broadcast.ActionUpdated, pub.events[1].Action)
}

func TestService_UpdateService_NotFound(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	_, err := svc.UpdateService(context.Background(), "missing", UpdateServiceInput{
		Name:   "Anything",
		Status: domain.ServiceStatusOperational,
	})
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestService_DeleteService(t *testing.T) {
	repo := newMockRepository()
	pub := &capturingPublisher{}
	svc := NewService(repo, pub)

	created, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteService(context.Background(), created.ID))

	_, err = svc.GetService(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrServiceNotFound)

	require.Len(t, pub.events, 2)
	assert.Equal(t, broadcast.ActionDeleted, pub.events[1].Action)
}

func TestService_ValidateServicesExist(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	created, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "Known"})
	require.NoError(t, err)

	missing, err := svc.ValidateServicesExist(context.Background(), []string{created.ID, "ghost-1", "ghost-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost-1", "ghost-2"}, missing)
}

func TestService_ListServices_FilterByStatus(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	_, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "Healthy"})
	require.NoError(t, err)
	_, err = svc.CreateService(context.Background(), CreateServiceInput{
		Name:   "Broken",
		Status: domain.ServiceStatusMajorOutage,
	})
	require.NoError(t, err)

	status := domain.ServiceStatusMajorOutage
	services, err := svc.ListServices(context.Background(), ServiceFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Broken", services[0].Name)
}
