package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gartstein/companydir/internal/directory/db"
	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/events"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap/zaptest"
)

// MockRepository implements the Repository interface for testing
type MockRepository struct {
	createCompany       func(context.Context) (models.SID, error)
	findSIDByCIK        func(context.Context, models.CIK) (models.SID, error)
	upsertCompany       func(context.Context, models.CompanyRecord) (models.SID, bool, error)
	addAlias            func(context.Context, models.SID, string) error
	addTag              func(context.Context, models.SID, string) error
	addWebsite          func(context.Context, models.SID, string, bool) error
	setCareerPage       func(context.Context, models.SID, string) error
	updateCaptchaStatus func(context.Context, models.SID, string, bool) error
	recordDiscovery     func(context.Context, models.SID, []models.Website, string) error
	deleteCompany       func(context.Context, models.SID) error
	getCompany          func(context.Context, models.SID) (*models.CompanyView, error)
	getCompanyByCIK     func(context.Context, models.CIK) (*models.CompanyView, error)
	nextUndiscovered    func(context.Context) (*models.CompanyView, error)
	listCompanies       func(context.Context) ([]models.CompanyView, error)
	filterByAlias       func(context.Context, []string) ([]models.SID, error)
	stats               func(context.Context) (*db.Stats, error)
}

func (m *MockRepository) CreateCompany(ctx context.Context) (models.SID, error) {
	return m.createCompany(ctx)
}

func (m *MockRepository) FindSIDByCIK(ctx context.Context, cik models.CIK) (models.SID, error) {
	return m.findSIDByCIK(ctx, cik)
}

func (m *MockRepository) UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
	return m.upsertCompany(ctx, rec)
}

func (m *MockRepository) AddAlias(ctx context.Context, sid models.SID, alias string) error {
	return m.addAlias(ctx, sid, alias)
}

func (m *MockRepository) AddTag(ctx context.Context, sid models.SID, tag string) error {
	return m.addTag(ctx, sid, tag)
}

func (m *MockRepository) AddWebsite(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	return m.addWebsite(ctx, sid, url, hasCaptcha)
}

func (m *MockRepository) SetCareerPage(ctx context.Context, sid models.SID, url string) error {
	return m.setCareerPage(ctx, sid, url)
}

func (m *MockRepository) UpdateCaptchaStatus(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	return m.updateCaptchaStatus(ctx, sid, url, hasCaptcha)
}

func (m *MockRepository) RecordDiscovery(ctx context.Context, sid models.SID, websites []models.Website, careerPage string) error {
	return m.recordDiscovery(ctx, sid, websites, careerPage)
}

func (m *MockRepository) DeleteCompany(ctx context.Context, sid models.SID) error {
	return m.deleteCompany(ctx, sid)
}

func (m *MockRepository) GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error) {
	return m.getCompany(ctx, sid)
}

func (m *MockRepository) GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error) {
	return m.getCompanyByCIK(ctx, cik)
}

func (m *MockRepository) NextUndiscoveredCompany(ctx context.Context) (*models.CompanyView, error) {
	return m.nextUndiscovered(ctx)
}

func (m *MockRepository) ListCompanies(ctx context.Context) ([]models.CompanyView, error) {
	return m.listCompanies(ctx)
}

func (m *MockRepository) FilterByAliasSubstring(ctx context.Context, required []string) ([]models.SID, error) {
	return m.filterByAlias(ctx, required)
}

func (m *MockRepository) Stats(ctx context.Context) (*db.Stats, error) {
	return m.stats(ctx)
}

func (m *MockRepository) Close() error {
	return nil
}

type producedEvent struct {
	EventType events.EventType
	Company   *models.CompanyView
}

// MockProducer is a test double for the Kafka producer.
type MockProducer struct {
	mu             sync.Mutex
	producedEvents []producedEvent
	wg             *sync.WaitGroup
}

// Produce records the event and signals the wait group.
func (m *MockProducer) Produce(eventType events.EventType, company *models.CompanyView) {
	m.mu.Lock()
	m.producedEvents = append(m.producedEvents, producedEvent{eventType, company})
	m.mu.Unlock()
	if m.wg != nil {
		m.wg.Done()
	}
}

func cikPtr(c models.CIK) *models.CIK {
	return &c
}

func TestDirectoryService_UpsertCompany(t *testing.T) {
	tests := []struct {
		name          string
		input         models.CompanyRecord
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
		expectedEvent events.EventType
	}{
		{
			name:  "new company",
			input: models.CompanyRecord{CIK: cikPtr(100), Aliases: []string{"Acme Corp"}},
			mockSetup: func(mr *MockRepository) {
				mr.upsertCompany = func(_ context.Context, _ models.CompanyRecord) (models.SID, bool, error) {
					return 1, true, nil
				}
			},
			expectedEvent: events.CompanyCreated,
		},
		{
			name:  "merged into existing company",
			input: models.CompanyRecord{CIK: cikPtr(100), Tags: []string{"form:10-K"}},
			mockSetup: func(mr *MockRepository) {
				mr.upsertCompany = func(_ context.Context, _ models.CompanyRecord) (models.SID, bool, error) {
					return 1, false, nil
				}
			},
			expectedEvent: events.CompanyUpdated,
		},
		{
			name:          "invalid cik",
			input:         models.CompanyRecord{CIK: cikPtr(-4), Aliases: []string{"Acme Corp"}},
			mockSetup:     func(_ *MockRepository) {},
			expectError:   true,
			expectedError: e.ErrInvalidInput,
		},
		{
			name:  "duplicate cik",
			input: models.CompanyRecord{CIK: cikPtr(100), Aliases: []string{"Acme Corp"}},
			mockSetup: func(mr *MockRepository) {
				mr.upsertCompany = func(_ context.Context, _ models.CompanyRecord) (models.SID, bool, error) {
					return 0, false, e.ErrDuplicateCIK
				}
			},
			expectError:   true,
			expectedError: e.ErrDuplicateCIK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zaptest.NewLogger(t)
			mockRepo := &MockRepository{}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			tt.mockSetup(mockRepo)
			service := NewDirectoryService(mockRepo, mockProducer, logger)

			if !tt.expectError {
				mockProducer.wg.Add(1)
			}

			sid, created, err := service.UpsertCompany(context.Background(), tt.input)

			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sid != 1 {
				t.Errorf("expected sid 1, got %v", sid)
			}
			if created != (tt.expectedEvent == events.CompanyCreated) {
				t.Errorf("unexpected created flag %v", created)
			}
			if len(mockProducer.producedEvents) != 1 {
				t.Fatal("expected one event to be produced")
			}
			if got := mockProducer.producedEvents[0].EventType; got != tt.expectedEvent {
				t.Errorf("expected event %s, got %s", tt.expectedEvent, got)
			}
		})
	}
}

func TestDirectoryService_IngestRecord(t *testing.T) {
	t.Run("maps name and form type", func(t *testing.T) {
		var got models.CompanyRecord
		mockRepo := &MockRepository{
			upsertCompany: func(_ context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
				got = rec
				return 7, true, nil
			},
		}
		mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
		mockProducer.wg.Add(1)
		service := NewDirectoryService(mockRepo, mockProducer, zaptest.NewLogger(t))

		sid, created, err := service.IngestRecord(context.Background(), models.IndexRecord{
			Name:     "  ACME CORP ",
			CIK:      320193,
			FormType: "10-K",
		})
		mockProducer.wg.Wait()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sid != 7 || !created {
			t.Errorf("expected new sid 7, got %v (created %v)", sid, created)
		}
		if got.CIK == nil || *got.CIK != 320193 {
			t.Errorf("expected cik 320193, got %v", got.CIK)
		}
		if len(got.Aliases) != 1 || got.Aliases[0] != "ACME CORP" {
			t.Errorf("unexpected aliases %v", got.Aliases)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "form:10-K" {
			t.Errorf("unexpected tags %v", got.Tags)
		}
	})

	t.Run("rejects record without name", func(t *testing.T) {
		service := NewDirectoryService(&MockRepository{}, &MockProducer{}, zaptest.NewLogger(t))
		_, _, err := service.IngestRecord(context.Background(), models.IndexRecord{CIK: 1})
		if !errors.Is(err, e.ErrInvalidInput) {
			t.Errorf("expected %v, got %v", e.ErrInvalidInput, err)
		}
	})
}

func TestDirectoryService_AddFacts(t *testing.T) {
	tests := []struct {
		name          string
		call          func(*DirectoryService) error
		expectError   bool
		expectedError error
	}{
		{
			name: "add alias",
			call: func(s *DirectoryService) error {
				return s.AddAlias(context.Background(), 1, "Acme")
			},
		},
		{
			name: "add tag",
			call: func(s *DirectoryService) error {
				return s.AddTag(context.Background(), 1, "tech")
			},
		},
		{
			name: "add website",
			call: func(s *DirectoryService) error {
				return s.AddWebsite(context.Background(), 1, "https://acme.example", false)
			},
		},
		{
			name: "set career page",
			call: func(s *DirectoryService) error {
				return s.SetCareerPage(context.Background(), 1, "https://acme.example/careers")
			},
		},
		{
			name: "blank alias",
			call: func(s *DirectoryService) error {
				return s.AddAlias(context.Background(), 1, "   ")
			},
			expectError:   true,
			expectedError: e.ErrInvalidInput,
		},
		{
			name: "invalid sid",
			call: func(s *DirectoryService) error {
				return s.AddTag(context.Background(), 0, "tech")
			},
			expectError:   true,
			expectedError: e.ErrInvalidInput,
		},
		{
			name: "missing company",
			call: func(s *DirectoryService) error {
				return s.AddWebsite(context.Background(), 404, "https://gone.example", false)
			},
			expectError:   true,
			expectedError: e.ErrNotFound,
		},
	}

	attach := func(_ context.Context, sid models.SID) error {
		if sid == 404 {
			return e.ErrNotFound
		}
		return nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockRepository{
				addAlias: func(ctx context.Context, sid models.SID, _ string) error { return attach(ctx, sid) },
				addTag:   func(ctx context.Context, sid models.SID, _ string) error { return attach(ctx, sid) },
				addWebsite: func(ctx context.Context, sid models.SID, _ string, _ bool) error {
					return attach(ctx, sid)
				},
				setCareerPage: func(ctx context.Context, sid models.SID, _ string) error { return attach(ctx, sid) },
			}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			service := NewDirectoryService(mockRepo, mockProducer, zaptest.NewLogger(t))

			if !tt.expectError {
				mockProducer.wg.Add(1)
			}
			err := tt.call(service)
			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(mockProducer.producedEvents) != 1 {
				t.Error("expected update event to be produced")
			}
		})
	}
}

func TestDirectoryService_RecordDiscovery(t *testing.T) {
	websites := []models.Website{{URL: "https://acme.example"}}

	t.Run("success", func(t *testing.T) {
		mockRepo := &MockRepository{
			recordDiscovery: func(_ context.Context, _ models.SID, _ []models.Website, _ string) error {
				return nil
			},
		}
		mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
		mockProducer.wg.Add(1)
		service := NewDirectoryService(mockRepo, mockProducer, zaptest.NewLogger(t))

		err := service.RecordDiscovery(context.Background(), 3, websites, "https://acme.example/careers")
		mockProducer.wg.Wait()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mockProducer.producedEvents[0].EventType != events.CompanyDiscovered {
			t.Errorf("expected discovery event, got %s", mockProducer.producedEvents[0].EventType)
		}
	})

	t.Run("no websites", func(t *testing.T) {
		service := NewDirectoryService(&MockRepository{}, &MockProducer{}, zaptest.NewLogger(t))
		err := service.RecordDiscovery(context.Background(), 3, nil, "")
		if !errors.Is(err, e.ErrInvalidInput) {
			t.Errorf("expected %v, got %v", e.ErrInvalidInput, err)
		}
	})
}

func TestDirectoryService_GetCompany(t *testing.T) {
	existing := &models.CompanyView{SID: 5, Aliases: []string{"Existing"}}

	tests := []struct {
		name          string
		input         models.SID
		expectError   bool
		expectedError error
	}{
		{name: "successful get", input: 5},
		{name: "not found", input: 6, expectError: true, expectedError: e.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockRepository{
				getCompany: func(_ context.Context, sid models.SID) (*models.CompanyView, error) {
					if sid == existing.SID {
						return existing, nil
					}
					return nil, e.ErrNotFound
				},
			}
			service := NewDirectoryService(mockRepo, &MockProducer{}, zaptest.NewLogger(t))
			result, err := service.GetCompany(context.Background(), tt.input)

			if tt.expectError {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.SID != tt.input {
				t.Errorf("expected sid %v, got %v", tt.input, result.SID)
			}
		})
	}
}

func TestDirectoryService_GetCompanyByCIK_InvalidInput(t *testing.T) {
	service := NewDirectoryService(&MockRepository{}, &MockProducer{}, zaptest.NewLogger(t))
	_, err := service.GetCompanyByCIK(context.Background(), 0)
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected %v, got %v", e.ErrInvalidInput, err)
	}
}

func TestDirectoryService_DeleteCompany(t *testing.T) {
	snapshot := &models.CompanyView{SID: 9, Aliases: []string{"Doomed Inc"}}

	tests := []struct {
		name          string
		input         models.SID
		mockSetup     func(*MockRepository)
		expectError   bool
		expectedError error
	}{
		{
			name:  "successful deletion",
			input: 9,
			mockSetup: func(mr *MockRepository) {
				mr.getCompany = func(_ context.Context, _ models.SID) (*models.CompanyView, error) {
					return snapshot, nil
				}
				mr.deleteCompany = func(_ context.Context, _ models.SID) error {
					return nil
				}
			},
		},
		{
			name:  "not found",
			input: 9,
			mockSetup: func(mr *MockRepository) {
				mr.getCompany = func(_ context.Context, _ models.SID) (*models.CompanyView, error) {
					return nil, e.ErrNotFound
				}
			},
			expectError:   true,
			expectedError: e.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockRepository{}
			mockProducer := &MockProducer{wg: new(sync.WaitGroup)}
			tt.mockSetup(mockRepo)
			service := NewDirectoryService(mockRepo, mockProducer, zaptest.NewLogger(t))

			if !tt.expectError {
				mockProducer.wg.Add(1)
			}
			err := service.DeleteCompany(context.Background(), tt.input)
			if !tt.expectError {
				mockProducer.wg.Wait()
			}

			if tt.expectError {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := mockProducer.producedEvents[0]
			if got.EventType != events.CompanyDeleted || got.Company != snapshot {
				t.Errorf("expected deletion event carrying the snapshot, got %+v", got)
			}
		})
	}
}

func TestDirectoryService_FindNoiseCompanies(t *testing.T) {
	mockRepo := &MockRepository{
		filterByAlias: func(_ context.Context, required []string) ([]models.SID, error) {
			if len(required) == 0 {
				return nil, e.ErrInvalidInput
			}
			return []models.SID{2, 4}, nil
		},
	}
	service := NewDirectoryService(mockRepo, &MockProducer{}, zaptest.NewLogger(t))

	sids, err := service.FindNoiseCompanies(context.Background(), []string{"bank"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sids) != 2 {
		t.Errorf("expected 2 candidates, got %v", sids)
	}

	_, err = service.FindNoiseCompanies(context.Background(), nil)
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Errorf("expected %v, got %v", e.ErrInvalidInput, err)
	}
}
