// Package db implements the directory store on top of GORM. PostgreSQL is
// the production backend; SQLite is used for tests and single-node runs.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbmodels "github.com/gartstein/companydir/internal/directory/db/models"
	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// upsertAttempts bounds how often an upsert restarts after losing a
	// race on the cik mapping.
	upsertAttempts = 3
	listBatchSize  = 1000
)

// errCIKRace signals that another writer mapped the cik first; the
// transaction is rolled back and retried against the existing sid.
var errCIKRace = errors.New("cik mapped concurrently")

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Driver   string
	DSN      string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Stats summarises how far discovery has progressed.
type Stats struct {
	Companies         int64 `json:"companies"`
	WithoutWebsite    int64 `json:"without_website"`
	WithoutCareerPage int64 `json:"without_career_page"`
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.Path)
	case DriverPostgres, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", e.ErrInvalidInput, cfg.Driver)
	}
	return Open(dialector)
}

// Open connects through the given dialector and creates any missing tables.
func Open(dialector gorm.Dialector) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// one connection keeps in-memory databases and the pragma below
		// shared by every caller
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.AutoMigrate(dbmodels.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// CreateCompany allocates a new surrogate id with no facts attached.
func (r *Repository) CreateCompany(ctx context.Context) (models.SID, error) {
	company := dbmodels.Company{}
	if err := r.db.WithContext(ctx).Create(&company).Error; err != nil {
		return 0, fmt.Errorf("create company: %w", err)
	}
	return models.SID(company.SID), nil
}

func (r *Repository) FindSIDByCIK(ctx context.Context, cik models.CIK) (models.SID, error) {
	var mapping dbmodels.CompanyCIK
	result := r.db.WithContext(ctx).Where("cik = ?", int64(cik)).Limit(1).Find(&mapping)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, e.ErrNotFound
	}
	return models.SID(mapping.SID), nil
}

// UpsertCompany resolves rec.CIK to its existing company, or creates a new
// one, and merges every supplied fact in one transaction. The returned bool
// is true when a new company was created.
func (r *Repository) UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
	aliases := cleanSet(rec.Aliases)
	if len(aliases) == 0 {
		return 0, false, fmt.Errorf("%w: at least one alias is required", e.ErrInvalidInput)
	}

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		var (
			sid     int64
			created bool
		)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sid, created = 0, false
			if rec.CIK != nil {
				var mapping dbmodels.CompanyCIK
				result := tx.Where("cik = ?", int64(*rec.CIK)).Limit(1).Find(&mapping)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected > 0 {
					sid = mapping.SID
				}
			}

			if sid == 0 {
				company := dbmodels.Company{}
				if err := tx.Create(&company).Error; err != nil {
					return err
				}
				sid, created = company.SID, true

				if rec.CIK != nil {
					result := tx.Clauses(clause.OnConflict{DoNothing: true}).
						Create(&dbmodels.CompanyCIK{CIK: int64(*rec.CIK), SID: sid})
					if result.Error != nil {
						if isUniqueViolation(result.Error) {
							return errCIKRace
						}
						return result.Error
					}
					if result.RowsAffected == 0 {
						return errCIKRace
					}
				}
			}

			return attachFacts(tx, sid, aliases, cleanSet(rec.Tags), rec.Websites, strings.TrimSpace(rec.CareerPage))
		})
		if errors.Is(err, errCIKRace) {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("upsert company: %w", translateError(err))
		}
		return models.SID(sid), created, nil
	}
	return 0, false, fmt.Errorf("%w: cik %s", e.ErrDuplicateCIK, rec.CIK)
}

func (r *Repository) AddAlias(ctx context.Context, sid models.SID, alias string) error {
	return r.attach(ctx, sid, func(tx *gorm.DB) error {
		return insertIgnore(tx, &dbmodels.CompanyAlias{SID: int64(sid), Alias: alias})
	})
}

func (r *Repository) AddTag(ctx context.Context, sid models.SID, tag string) error {
	return r.attach(ctx, sid, func(tx *gorm.DB) error {
		return insertIgnore(tx, &dbmodels.CompanyTag{SID: int64(sid), Tag: tag})
	})
}

// AddWebsite attaches url to the company. An existing (sid, url) pair is
// left untouched, including its captcha flag.
func (r *Repository) AddWebsite(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	return r.attach(ctx, sid, func(tx *gorm.DB) error {
		return insertIgnore(tx, &dbmodels.CompanyWebsite{SID: int64(sid), URL: url, HasCaptcha: hasCaptcha})
	})
}

func (r *Repository) SetCareerPage(ctx context.Context, sid models.SID, url string) error {
	return r.attach(ctx, sid, func(tx *gorm.DB) error {
		return upsertCareerPage(tx, int64(sid), url)
	})
}

func (r *Repository) UpdateCaptchaStatus(ctx context.Context, sid models.SID, url string, hasCaptcha bool) error {
	result := r.db.WithContext(ctx).Model(&dbmodels.CompanyWebsite{}).
		Where("sid = ? AND url = ?", int64(sid), url).
		Update("has_captcha", hasCaptcha)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: website %q of company %d", e.ErrNotFound, url, sid)
	}
	return nil
}

// RecordDiscovery stores the outcome of a discovery cycle: every website
// and the career page are written together or not at all.
func (r *Repository) RecordDiscovery(ctx context.Context, sid models.SID, websites []models.Website, careerPage string) error {
	return r.attach(ctx, sid, func(tx *gorm.DB) error {
		return attachFacts(tx, int64(sid), nil, nil, websites, careerPage)
	})
}

// DeleteCompany removes the company and every fact attached to it.
func (r *Repository) DeleteCompany(ctx context.Context, sid models.SID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCompany(tx, int64(sid)); err != nil {
			return err
		}
		facts := []interface{}{
			&dbmodels.CompanyCIK{},
			&dbmodels.CompanyAlias{},
			&dbmodels.CompanyTag{},
			&dbmodels.CompanyWebsite{},
			&dbmodels.CompanyCareerPage{},
		}
		for _, fact := range facts {
			if err := tx.Where("sid = ?", int64(sid)).Delete(fact).Error; err != nil {
				return err
			}
		}
		result := tx.Where("sid = ?", int64(sid)).Delete(&dbmodels.Company{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error) {
	return findView(r.db.WithContext(ctx).Where("sid = ?", int64(sid)))
}

func (r *Repository) GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error) {
	var view *models.CompanyView
	err := r.WithTransaction(ctx, func(repo *Repository) error {
		sid, err := repo.FindSIDByCIK(ctx, cik)
		if err != nil {
			return err
		}
		view, err = repo.GetCompany(ctx, sid)
		return err
	})
	return view, err
}

// NextUndiscoveredCompany returns the lowest-sid company that has an alias
// but no website yet, or ErrNotFound when there is none.
func (r *Repository) NextUndiscoveredCompany(ctx context.Context) (*models.CompanyView, error) {
	query := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM company_websites w WHERE w.sid = companies.sid)").
		Where("EXISTS (SELECT 1 FROM company_aliases a WHERE a.sid = companies.sid)").
		Order("sid")
	return findView(query)
}

// ListCompanies returns a snapshot of the whole directory ordered by sid.
func (r *Repository) ListCompanies(ctx context.Context) ([]models.CompanyView, error) {
	views := make([]models.CompanyView, 0)
	var batch []dbmodels.Company
	result := withFacts(r.db.WithContext(ctx)).FindInBatches(&batch, listBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			views = append(views, toView(&batch[i]))
		}
		return nil
	})
	if result.Error != nil {
		return nil, result.Error
	}
	return views, nil
}

// FilterByAliasSubstring returns the companies none of whose aliases
// contains any of the required substrings, compared case-insensitively.
// Companies without aliases are always returned. Nothing is deleted.
func (r *Repository) FilterByAliasSubstring(ctx context.Context, required []string) ([]models.SID, error) {
	needles := make([]string, 0, len(required))
	for _, s := range cleanSet(required) {
		needles = append(needles, strings.ToLower(s))
	}
	if len(needles) == 0 {
		return nil, fmt.Errorf("%w: no substrings given", e.ErrInvalidInput)
	}

	rows, err := r.db.WithContext(ctx).Model(&dbmodels.Company{}).
		Select("companies.sid, company_aliases.alias").
		Joins("LEFT JOIN company_aliases ON company_aliases.sid = companies.sid").
		Order("companies.sid").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flagged := make([]models.SID, 0)
	var (
		current int64
		matched bool
		started bool
	)
	for rows.Next() {
		var (
			sid   int64
			alias sql.NullString
		)
		if err := rows.Scan(&sid, &alias); err != nil {
			return nil, err
		}
		if !started || sid != current {
			if started && !matched {
				flagged = append(flagged, models.SID(current))
			}
			current, matched, started = sid, false, true
		}
		if !matched && alias.Valid && containsAny(strings.ToLower(alias.String), needles) {
			matched = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if started && !matched {
		flagged = append(flagged, models.SID(current))
	}
	return flagged, nil
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	db := r.db.WithContext(ctx)
	if err := db.Model(&dbmodels.Company{}).Count(&stats.Companies).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&dbmodels.Company{}).
		Where("NOT EXISTS (SELECT 1 FROM company_websites w WHERE w.sid = companies.sid)").
		Count(&stats.WithoutWebsite).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&dbmodels.Company{}).
		Where("NOT EXISTS (SELECT 1 FROM company_career_pages p WHERE p.sid = companies.sid)").
		Count(&stats.WithoutCareerPage).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// attach runs fn in a transaction after checking that sid exists. A
// concurrent delete that wins the race surfaces as a foreign key violation,
// which is reported as ErrNotFound as well.
func (r *Repository) attach(ctx context.Context, sid models.SID, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCompany(tx, int64(sid)); err != nil {
			return err
		}
		return fn(tx)
	})
	return translateError(err)
}

func ensureCompany(tx *gorm.DB, sid int64) error {
	var count int64
	if err := tx.Model(&dbmodels.Company{}).Where("sid = ?", sid).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: company %d", e.ErrNotFound, sid)
	}
	return nil
}

func attachFacts(tx *gorm.DB, sid int64, aliases, tags []string, websites []models.Website, careerPage string) error {
	for _, alias := range aliases {
		if err := insertIgnore(tx, &dbmodels.CompanyAlias{SID: sid, Alias: alias}); err != nil {
			return err
		}
	}
	for _, tag := range tags {
		if err := insertIgnore(tx, &dbmodels.CompanyTag{SID: sid, Tag: tag}); err != nil {
			return err
		}
	}
	for _, site := range websites {
		url := strings.TrimSpace(site.URL)
		if url == "" {
			continue
		}
		if err := insertIgnore(tx, &dbmodels.CompanyWebsite{SID: sid, URL: url, HasCaptcha: site.HasCaptcha}); err != nil {
			return err
		}
	}
	if careerPage != "" {
		return upsertCareerPage(tx, sid, careerPage)
	}
	return nil
}

// insertIgnore inserts a fact row; a row that already exists is a no-op.
func insertIgnore(tx *gorm.DB, fact interface{}) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fact).Error
}

func upsertCareerPage(tx *gorm.DB, sid int64, url string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sid"}},
		DoUpdates: clause.AssignmentColumns([]string{"url"}),
	}).Create(&dbmodels.CompanyCareerPage{SID: sid, URL: url}).Error
}

func withFacts(db *gorm.DB) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id") }
	return db.
		Preload("CIK").
		Preload("Aliases", byID).
		Preload("Tags", byID).
		Preload("Websites", byID).
		Preload("CareerPage")
}

func findView(query *gorm.DB) (*models.CompanyView, error) {
	var companies []dbmodels.Company
	result := withFacts(query).Limit(1).Find(&companies)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(companies) == 0 {
		return nil, e.ErrNotFound
	}
	view := toView(&companies[0])
	return &view, nil
}

func toView(c *dbmodels.Company) models.CompanyView {
	view := models.CompanyView{
		SID:       models.SID(c.SID),
		Aliases:   make([]string, 0, len(c.Aliases)),
		Tags:      make([]string, 0, len(c.Tags)),
		Websites:  make([]models.Website, 0, len(c.Websites)),
		CreatedAt: c.CreatedAt,
	}
	if c.CIK != nil {
		cik := models.CIK(c.CIK.CIK)
		view.CIK = &cik
	}
	for _, a := range c.Aliases {
		view.Aliases = append(view.Aliases, a.Alias)
	}
	for _, t := range c.Tags {
		view.Tags = append(view.Tags, t.Tag)
	}
	for _, w := range c.Websites {
		view.Websites = append(view.Websites, models.Website{URL: w.URL, HasCaptcha: w.HasCaptcha})
	}
	if c.CareerPage != nil {
		view.CareerPage = c.CareerPage.URL
	}
	return view
}

// cleanSet trims values, drops blanks and removes duplicates, keeping the
// first occurrence order.
func cleanSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: company deleted concurrently", e.ErrNotFound)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
