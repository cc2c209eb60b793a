package handlers

import (
	"context"

	"github.com/gartstein/companydir/internal/directory/auth"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DirectoryHandler provides gRPC methods for directory operations,
// mapping requests to a DirectoryController.
type DirectoryHandler struct {
	service DirectoryController
	logger  *zap.Logger
}

var _ DirectoryServer = (*DirectoryHandler)(nil)

// NewDirectoryHandler constructs a new DirectoryHandler with the given service and logger.
func NewDirectoryHandler(service DirectoryController, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

// GetCompany fetches a company by sid, returning NotFound if absent.
func (h *DirectoryHandler) GetCompany(ctx context.Context, req *GetCompanyRequest) (*CompanyResponse, error) {
	if req.SID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid company sid")
	}

	company, err := h.service.GetCompany(ctx, models.SID(req.SID))
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return &CompanyResponse{Company: company}, nil
}

func (h *DirectoryHandler) GetCompanyByCIK(ctx context.Context, req *GetCompanyByCIKRequest) (*CompanyResponse, error) {
	if req.CIK <= 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid cik")
	}

	company, err := h.service.GetCompanyByCIK(ctx, models.CIK(req.CIK))
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return &CompanyResponse{Company: company}, nil
}

func (h *DirectoryHandler) ListCompanies(ctx context.Context, _ *ListCompaniesRequest) (*ListCompaniesResponse, error) {
	companies, err := h.service.ListCompanies(ctx)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	if companies == nil {
		companies = []models.CompanyView{}
	}
	return &ListCompaniesResponse{Companies: companies}, nil
}

// UpsertCompany creates a company or merges facts into the company that
// already owns the cik.
func (h *DirectoryHandler) UpsertCompany(ctx context.Context, req *UpsertCompanyRequest) (*UpsertCompanyResponse, error) {
	rec, err := recordFromRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sid, created, err := h.service.UpsertCompany(ctx, rec)
	if err != nil {
		h.logger.Error("Upsert company failed", zap.Error(err))
		return nil, h.mapServiceError(err)
	}
	h.logger.Info("Company upserted",
		zap.Int64("sid", int64(sid)),
		zap.Bool("created", created),
		zap.String("subject", subject(ctx)),
	)
	return &UpsertCompanyResponse{SID: int64(sid), Created: created}, nil
}

// DeleteCompany removes a company and every fact attached to it.
func (h *DirectoryHandler) DeleteCompany(ctx context.Context, req *DeleteCompanyRequest) (*DeleteCompanyResponse, error) {
	if req.SID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid company sid")
	}

	if err := h.service.DeleteCompany(ctx, models.SID(req.SID)); err != nil {
		return nil, h.mapServiceError(err)
	}
	h.logger.Info("Company deleted",
		zap.Int64("sid", req.SID),
		zap.String("subject", subject(ctx)),
	)
	return &DeleteCompanyResponse{}, nil
}

// FilterCompanies lists deletion candidates. It never deletes.
func (h *DirectoryHandler) FilterCompanies(ctx context.Context, req *FilterCompaniesRequest) (*FilterCompaniesResponse, error) {
	required := normalizeRequired(req.Required)
	if len(required) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one required substring is needed")
	}

	sids, err := h.service.FindNoiseCompanies(ctx, required)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	candidates := make([]int64, 0, len(sids))
	for _, sid := range sids {
		candidates = append(candidates, int64(sid))
	}
	return &FilterCompaniesResponse{Candidates: candidates}, nil
}

func subject(ctx context.Context) string {
	sub, _ := auth.Subject(ctx)
	return sub
}
