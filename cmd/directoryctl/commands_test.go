package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gartstein/companydir/internal/directory/controller"
	"github.com/gartstein/companydir/internal/directory/db"
	"github.com/gartstein/companydir/internal/directory/discovery"
	"github.com/gartstein/companydir/internal/directory/events"
	"github.com/gartstein/companydir/internal/directory/ingest"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) *controller.DirectoryService {
	t.Helper()
	repo, err := db.NewRepository(&db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "directory.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return controller.NewDirectoryService(repo, events.NopProducer{}, zaptest.NewLogger(t))
}

func indexRow(name, form string, cik int64) string {
	return fmt.Sprintf("%-62s%-12s%-12d%-12s%s", name, form, cik, "2024-04-02", "edgar/data/x.txt")
}

func indexFile(rows ...string) string {
	header := []string{
		"Description:           Master Index of EDGAR Dissemination Feed by Company Name",
		"Last Data Received:    May 24, 2024",
		"",
		"Company Name                                                  Form Type   CIK         Date Filed  File Name",
		strings.Repeat("-", 141),
	}
	return strings.Join(append(header, rows...), "\n") + "\n"
}

func TestRunIngest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	var out bytes.Buffer

	src := strings.NewReader(indexFile(
		indexRow("FIRST NATIONAL BANK", "10-K", 100),
		indexRow("FIRST NATIONAL BANK CORP", "8-K", 100),
		indexRow("ACME WIDGETS INC", "10-Q", 200),
	))
	require.NoError(t, runIngest(ctx, &out, ingest.NewIngester(svc, nil, zaptest.NewLogger(t)), src))
	assert.Equal(t, "processed 3 rows: 2 created, 1 merged, 0 failed\n", out.String())

	bank, err := svc.GetCompanyByCIK(ctx, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"FIRST NATIONAL BANK", "FIRST NATIONAL BANK CORP"}, bank.Aliases)
	assert.ElementsMatch(t, []string{"form:10-K", "form:8-K"}, bank.Tags)
}

func TestRunFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bank, _, err := svc.UpsertCompany(ctx, models.CompanyRecord{Aliases: []string{"Harbor Bank"}})
	require.NoError(t, err)
	widgets, _, err := svc.UpsertCompany(ctx, models.CompanyRecord{Aliases: []string{"Acme Widgets"}})
	require.NoError(t, err)

	t.Run("list only", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runFilter(ctx, &out, svc, []string{"BANK"}, false))
		assert.Contains(t, out.String(), "Acme Widgets")
		assert.NotContains(t, out.String(), "Harbor Bank")
		assert.Contains(t, out.String(), "1 candidate(s)")

		_, err := svc.GetCompany(ctx, widgets)
		assert.NoError(t, err, "listing must not delete")
	})

	t.Run("delete", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runFilter(ctx, &out, svc, []string{"bank"}, true))
		assert.Contains(t, out.String(), "deleted 1 company(ies)")

		_, err := svc.GetCompany(ctx, widgets)
		assert.Error(t, err)
		_, err = svc.GetCompany(ctx, bank)
		assert.NoError(t, err)
	})

	t.Run("no substrings", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, runFilter(ctx, &out, svc, nil, false))
	})
}

func TestRunExport(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runExport(ctx, &out, svc))
	assert.JSONEq(t, "[]", out.String())

	cik := models.CIK(42)
	_, _, err := svc.UpsertCompany(ctx, models.CompanyRecord{
		CIK:      &cik,
		Aliases:  []string{"Globex"},
		Websites: []models.Website{{URL: "https://globex.example"}},
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runExport(ctx, &out, svc))
	var companies []models.CompanyView
	require.NoError(t, json.Unmarshal(out.Bytes(), &companies))
	require.Len(t, companies, 1)
	assert.Equal(t, []string{"Globex"}, companies[0].Aliases)
	assert.Equal(t, "https://globex.example", companies[0].Websites[0].URL)
}

func TestDeleteAll(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sid, _, err := svc.UpsertCompany(ctx, models.CompanyRecord{Aliases: []string{"Initech"}})
	require.NoError(t, err)

	deleted, err := deleteAll(ctx, svc, []models.SID{sid, sid + 100})
	assert.Error(t, err)
	assert.Equal(t, 1, deleted)
}

type outcomeRunner []discovery.Outcome

func (r *outcomeRunner) RunCycle(context.Context) (discovery.Outcome, error) {
	next := (*r)[0]
	*r = (*r)[1:]
	return next, nil
}

func TestRunDiscover(t *testing.T) {
	runner := &outcomeRunner{discovery.OutcomeDiscovered, discovery.OutcomeDeleted, discovery.OutcomeIdle, discovery.OutcomeDiscovered}
	var out bytes.Buffer

	require.NoError(t, runDiscover(context.Background(), &out, runner, 10))
	assert.Equal(t, "1 discovered, 1 deleted, 1 idle\n", out.String())
	assert.Len(t, *runner, 1, "stops once the directory is idle")
}
