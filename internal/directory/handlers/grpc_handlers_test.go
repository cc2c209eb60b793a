package handlers

import (
	"context"
	"errors"
	"testing"

	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mockDirectoryController is a simple mock implementation of DirectoryController.
type mockDirectoryController struct {
	getCompanyFunc      func(ctx context.Context, sid models.SID) (*models.CompanyView, error)
	getCompanyByCIKFunc func(ctx context.Context, cik models.CIK) (*models.CompanyView, error)
	listCompaniesFunc   func(ctx context.Context) ([]models.CompanyView, error)
	upsertCompanyFunc   func(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error)
	deleteCompanyFunc   func(ctx context.Context, sid models.SID) error
	findNoiseFunc       func(ctx context.Context, required []string) ([]models.SID, error)
}

func (m *mockDirectoryController) GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error) {
	return m.getCompanyFunc(ctx, sid)
}

func (m *mockDirectoryController) GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error) {
	return m.getCompanyByCIKFunc(ctx, cik)
}

func (m *mockDirectoryController) ListCompanies(ctx context.Context) ([]models.CompanyView, error) {
	return m.listCompaniesFunc(ctx)
}

func (m *mockDirectoryController) UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
	return m.upsertCompanyFunc(ctx, rec)
}

func (m *mockDirectoryController) DeleteCompany(ctx context.Context, sid models.SID) error {
	return m.deleteCompanyFunc(ctx, sid)
}

func (m *mockDirectoryController) FindNoiseCompanies(ctx context.Context, required []string) ([]models.SID, error) {
	return m.findNoiseFunc(ctx, required)
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	st, _ := status.FromError(err)
	if st.Code() != want {
		t.Errorf("expected code %v, got %v", want, st.Code())
	}
}

func TestDirectoryHandler_GetCompany(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctrl := &mockDirectoryController{
		getCompanyFunc: func(_ context.Context, sid models.SID) (*models.CompanyView, error) {
			switch sid {
			case 1:
				return &models.CompanyView{SID: 1, Aliases: []string{"Acme"}}, nil
			case 2:
				return nil, errors.New("connection reset")
			default:
				return nil, e.ErrNotFound
			}
		},
	}
	handler := NewDirectoryHandler(ctrl, logger)

	t.Run("Found", func(t *testing.T) {
		resp, err := handler.GetCompany(context.Background(), &GetCompanyRequest{SID: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Company.PrimaryAlias() != "Acme" {
			t.Errorf("unexpected company %+v", resp.Company)
		}
	})

	t.Run("InvalidSID", func(t *testing.T) {
		_, err := handler.GetCompany(context.Background(), &GetCompanyRequest{SID: 0})
		assertCode(t, err, codes.InvalidArgument)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := handler.GetCompany(context.Background(), &GetCompanyRequest{SID: 9})
		assertCode(t, err, codes.NotFound)
	})

	t.Run("ServiceError", func(t *testing.T) {
		_, err := handler.GetCompany(context.Background(), &GetCompanyRequest{SID: 2})
		// mapServiceError maps unknown errors to Internal.
		assertCode(t, err, codes.Internal)
	})
}

func TestDirectoryHandler_GetCompanyByCIK(t *testing.T) {
	ctrl := &mockDirectoryController{
		getCompanyByCIKFunc: func(_ context.Context, cik models.CIK) (*models.CompanyView, error) {
			return &models.CompanyView{SID: 4, CIK: &cik}, nil
		},
	}
	handler := NewDirectoryHandler(ctrl, zaptest.NewLogger(t))

	resp, err := handler.GetCompanyByCIK(context.Background(), &GetCompanyByCIKRequest{CIK: 320193})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Company.CIK == nil || *resp.Company.CIK != 320193 {
		t.Errorf("unexpected cik %v", resp.Company.CIK)
	}

	_, err = handler.GetCompanyByCIK(context.Background(), &GetCompanyByCIKRequest{CIK: -1})
	assertCode(t, err, codes.InvalidArgument)
}

func TestDirectoryHandler_ListCompanies(t *testing.T) {
	ctrl := &mockDirectoryController{
		listCompaniesFunc: func(context.Context) ([]models.CompanyView, error) {
			return nil, nil
		},
	}
	handler := NewDirectoryHandler(ctrl, zaptest.NewLogger(t))

	resp, err := handler.ListCompanies(context.Background(), &ListCompaniesRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Companies == nil || len(resp.Companies) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", resp.Companies)
	}
}

func TestDirectoryHandler_UpsertCompany(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cik := models.CIK(100)

	tests := []struct {
		name     string
		req      *UpsertCompanyRequest
		ctrlErr  error
		wantCode codes.Code
	}{
		{name: "nil company", req: &UpsertCompanyRequest{}, wantCode: codes.InvalidArgument},
		{
			name:     "blank aliases",
			req:      &UpsertCompanyRequest{Company: &models.CompanyRecord{Aliases: []string{" "}}},
			wantCode: codes.InvalidArgument,
		},
		{
			name: "empty website url",
			req: &UpsertCompanyRequest{Company: &models.CompanyRecord{
				Aliases:  []string{"Acme"},
				Websites: []models.Website{{URL: ""}},
			}},
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "duplicate cik",
			req:      &UpsertCompanyRequest{Company: &models.CompanyRecord{CIK: &cik, Aliases: []string{"Acme"}}},
			ctrlErr:  e.ErrDuplicateCIK,
			wantCode: codes.AlreadyExists,
		},
		{
			name:     "success",
			req:      &UpsertCompanyRequest{Company: &models.CompanyRecord{CIK: &cik, Aliases: []string{" Acme "}}},
			wantCode: codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.CompanyRecord
			ctrl := &mockDirectoryController{
				upsertCompanyFunc: func(_ context.Context, rec models.CompanyRecord) (models.SID, bool, error) {
					got = rec
					if tt.ctrlErr != nil {
						return 0, false, tt.ctrlErr
					}
					return 5, true, nil
				},
			}
			handler := NewDirectoryHandler(ctrl, logger)

			resp, err := handler.UpsertCompany(context.Background(), tt.req)
			if tt.wantCode != codes.OK {
				assertCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.SID != 5 || !resp.Created {
				t.Errorf("unexpected response %+v", resp)
			}
			if got.Aliases[0] != "Acme" {
				t.Errorf("expected trimmed alias, got %q", got.Aliases[0])
			}
		})
	}
}

func TestDirectoryHandler_DeleteCompany(t *testing.T) {
	ctrl := &mockDirectoryController{
		deleteCompanyFunc: func(_ context.Context, sid models.SID) error {
			if sid == 3 {
				return nil
			}
			return e.ErrNotFound
		},
	}
	handler := NewDirectoryHandler(ctrl, zaptest.NewLogger(t))

	if _, err := handler.DeleteCompany(context.Background(), &DeleteCompanyRequest{SID: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := handler.DeleteCompany(context.Background(), &DeleteCompanyRequest{SID: 4})
	assertCode(t, err, codes.NotFound)
	_, err = handler.DeleteCompany(context.Background(), &DeleteCompanyRequest{})
	assertCode(t, err, codes.InvalidArgument)
}

func TestDirectoryHandler_FilterCompanies(t *testing.T) {
	var got []string
	ctrl := &mockDirectoryController{
		findNoiseFunc: func(_ context.Context, required []string) ([]models.SID, error) {
			got = required
			return []models.SID{2, 7}, nil
		},
	}
	handler := NewDirectoryHandler(ctrl, zaptest.NewLogger(t))

	resp, err := handler.FilterCompanies(context.Background(), &FilterCompaniesRequest{Required: []string{" Bank ", ""}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "bank" {
		t.Errorf("expected normalized substrings, got %v", got)
	}
	if len(resp.Candidates) != 2 || resp.Candidates[1] != 7 {
		t.Errorf("unexpected candidates %v", resp.Candidates)
	}

	_, err = handler.FilterCompanies(context.Background(), &FilterCompaniesRequest{Required: []string{"  "}})
	assertCode(t, err, codes.InvalidArgument)
}
