// Package controller implements the service layer of the company
// directory: input validation, orchestration of store operations and
// production of lifecycle events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gartstein/companydir/internal/directory/db"
	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/events"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, company *models.CompanyView)
}

// Repository defines the storage interface of the company directory.
type Repository interface {
	CreateCompany(ctx context.Context) (models.SID, error)
	FindSIDByCIK(ctx context.Context, cik models.CIK) (models.SID, error)
	UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error)
	AddAlias(ctx context.Context, sid models.SID, alias string) error
	AddTag(ctx context.Context, sid models.SID, tag string) error
	AddWebsite(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error
	SetCareerPage(ctx context.Context, sid models.SID, url string) error
	UpdateCaptchaStatus(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error
	RecordDiscovery(ctx context.Context, sid models.SID, websites []models.Website, careerPage string) error
	DeleteCompany(ctx context.Context, sid models.SID) error
	GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error)
	GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error)
	NextUndiscoveredCompany(ctx context.Context) (*models.CompanyView, error)
	ListCompanies(ctx context.Context) ([]models.CompanyView, error)
	FilterByAliasSubstring(ctx context.Context, required []string) ([]models.SID, error)
	Stats(ctx context.Context) (*db.Stats, error)
	Close() error
}

// DirectoryService manages companies through the repository and reports
// lifecycle changes to the event producer.
type DirectoryService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewDirectoryService constructs a DirectoryService with a repository,
// an event producer, and a logger.
func NewDirectoryService(repo Repository, producer EventProducer, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("directory_service"),
	}
}

// CreateCompany allocates a bare company. It stays orphaned until an alias
// is attached.
func (s *DirectoryService) CreateCompany(ctx context.Context) (models.SID, error) {
	sid, err := s.repo.CreateCompany(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create company: %w", err)
	}
	s.emit(events.CompanyCreated, &models.CompanyView{SID: sid})
	return sid, nil
}

func (s *DirectoryService) FindSIDByCIK(ctx context.Context, cik models.CIK) (models.SID, error) {
	if cik <= 0 {
		return 0, fmt.Errorf("%w: invalid cik", e.ErrInvalidInput)
	}
	return s.repo.FindSIDByCIK(ctx, cik)
}

// UpsertCompany creates the company or merges the record into the company
// already mapped to rec.CIK. The bool reports whether a company was created.
func (s *DirectoryService) UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
	if rec.CIK != nil && *rec.CIK <= 0 {
		return 0, false, fmt.Errorf("%w: invalid cik", e.ErrInvalidInput)
	}

	sid, created, err := s.repo.UpsertCompany(ctx, rec)
	if err != nil {
		if errors.Is(err, e.ErrInvalidInput) {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("failed to upsert company: %w", err)
	}

	eventType := events.CompanyUpdated
	if created {
		eventType = events.CompanyCreated
	}
	s.emit(eventType, &models.CompanyView{
		SID:        sid,
		CIK:        rec.CIK,
		Aliases:    rec.Aliases,
		Tags:       rec.Tags,
		Websites:   rec.Websites,
		CareerPage: rec.CareerPage,
	})
	return sid, created, nil
}

// IngestRecord maps one EDGAR index row onto an upsert: the company name
// becomes an alias and the form type a "form:" tag.
func (s *DirectoryService) IngestRecord(ctx context.Context, rec models.IndexRecord) (models.SID, bool, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" || rec.CIK <= 0 {
		return 0, false, fmt.Errorf("%w: index record needs a name and a cik", e.ErrInvalidInput)
	}
	cik := rec.CIK
	record := models.CompanyRecord{CIK: &cik, Aliases: []string{name}}
	if form := strings.TrimSpace(rec.FormType); form != "" {
		record.Tags = []string{FormTag(form)}
	}
	return s.UpsertCompany(ctx, record)
}

// FormTag is the tag attached for a filing form type.
func FormTag(formType string) string {
	return "form:" + formType
}

func (s *DirectoryService) AddAlias(ctx context.Context, sid models.SID, alias string) error {
	alias = strings.TrimSpace(alias)
	if err := validateFact(sid, alias); err != nil {
		return err
	}
	if err := s.repo.AddAlias(ctx, sid, alias); err != nil {
		return s.wrap("add alias", err)
	}
	s.emit(events.CompanyUpdated, &models.CompanyView{SID: sid, Aliases: []string{alias}})
	return nil
}

func (s *DirectoryService) AddTag(ctx context.Context, sid models.SID, tag string) error {
	tag = strings.TrimSpace(tag)
	if err := validateFact(sid, tag); err != nil {
		return err
	}
	if err := s.repo.AddTag(ctx, sid, tag); err != nil {
		return s.wrap("add tag", err)
	}
	s.emit(events.CompanyUpdated, &models.CompanyView{SID: sid, Tags: []string{tag}})
	return nil
}

func (s *DirectoryService) AddWebsite(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	url = strings.TrimSpace(url)
	if err := validateFact(sid, url); err != nil {
		return err
	}
	if err := s.repo.AddWebsite(ctx, sid, url, hasCaptcha); err != nil {
		return s.wrap("add website", err)
	}
	s.emit(events.CompanyUpdated, &models.CompanyView{
		SID:      sid,
		Websites: []models.Website{{URL: url, HasCaptcha: hasCaptcha}},
	})
	return nil
}

func (s *DirectoryService) SetCareerPage(ctx context.Context, sid models.SID, url string) error {
	url = strings.TrimSpace(url)
	if err := validateFact(sid, url); err != nil {
		return err
	}
	if err := s.repo.SetCareerPage(ctx, sid, url); err != nil {
		return s.wrap("set career page", err)
	}
	s.emit(events.CompanyUpdated, &models.CompanyView{SID: sid, CareerPage: url})
	return nil
}

func (s *DirectoryService) UpdateCaptchaStatus(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	url = strings.TrimSpace(url)
	if err := validateFact(sid, url); err != nil {
		return err
	}
	if err := s.repo.UpdateCaptchaStatus(ctx, sid, url, hasCaptcha); err != nil {
		return s.wrap("update captcha status", err)
	}
	s.emit(events.CompanyUpdated, &models.CompanyView{
		SID:      sid,
		Websites: []models.Website{{URL: url, HasCaptcha: hasCaptcha}},
	})
	return nil
}

// RecordDiscovery writes the result of one discovery cycle.
func (s *DirectoryService) RecordDiscovery(ctx context.Context, sid models.SID, websites []models.Website, careerPage string) error {
	if sid <= 0 {
		return fmt.Errorf("%w: invalid sid", e.ErrInvalidInput)
	}
	if len(websites) == 0 {
		return fmt.Errorf("%w: discovery without websites", e.ErrInvalidInput)
	}
	if err := s.repo.RecordDiscovery(ctx, sid, websites, careerPage); err != nil {
		return s.wrap("record discovery", err)
	}
	s.emit(events.CompanyDiscovered, &models.CompanyView{SID: sid, Websites: websites, CareerPage: careerPage})
	return nil
}

// DeleteCompany removes a company with all its facts and fires a deletion
// event carrying the last known state.
func (s *DirectoryService) DeleteCompany(ctx context.Context, sid models.SID) error {
	company, err := s.repo.GetCompany(ctx, sid)
	if err != nil {
		return s.wrap("get company for deletion", err)
	}

	if err := s.repo.DeleteCompany(ctx, sid); err != nil {
		return s.wrap("delete company", err)
	}

	s.emit(events.CompanyDeleted, company)
	return nil
}

// GetCompany retrieves a company by sid, returning ErrNotFound if absent.
func (s *DirectoryService) GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error) {
	company, err := s.repo.GetCompany(ctx, sid)
	if err != nil {
		return nil, s.wrap("get company", err)
	}
	return company, nil
}

func (s *DirectoryService) GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error) {
	if cik <= 0 {
		return nil, fmt.Errorf("%w: invalid cik", e.ErrInvalidInput)
	}
	company, err := s.repo.GetCompanyByCIK(ctx, cik)
	if err != nil {
		return nil, s.wrap("get company by cik", err)
	}
	return company, nil
}

func (s *DirectoryService) NextUndiscoveredCompany(ctx context.Context) (*models.CompanyView, error) {
	company, err := s.repo.NextUndiscoveredCompany(ctx)
	if err != nil {
		return nil, s.wrap("get next undiscovered company", err)
	}
	return company, nil
}

func (s *DirectoryService) ListCompanies(ctx context.Context) ([]models.CompanyView, error) {
	companies, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// FindNoiseCompanies is the maintenance entry point: it returns the sids
// whose aliases contain none of the required substrings. Deleting them is
// left to the caller.
func (s *DirectoryService) FindNoiseCompanies(ctx context.Context, required []string) ([]models.SID, error) {
	sids, err := s.repo.FilterByAliasSubstring(ctx, required)
	if err != nil {
		return nil, s.wrap("filter companies", err)
	}
	s.logger.Info("Identified deletion candidates",
		zap.Strings("required", required),
		zap.Int("candidates", len(sids)),
	)
	return sids, nil
}

func (s *DirectoryService) Stats(ctx context.Context) (*db.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func (s *DirectoryService) emit(eventType events.EventType, company *models.CompanyView) {
	go func() {
		s.producer.Produce(eventType, company)
	}()
}

// wrap keeps not-found and invalid-input errors unwrapped for callers that
// map them to transport codes.
func (s *DirectoryService) wrap(op string, err error) error {
	if errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func validateFact(sid models.SID, value string) error {
	if sid <= 0 {
		return fmt.Errorf("%w: invalid sid", e.ErrInvalidInput)
	}
	if value == "" {
		return fmt.Errorf("%w: empty value", e.ErrInvalidInput)
	}
	return nil
}
