package handlers

import (
	"errors"
	"fmt"
	"strings"

	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/models"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordFromRequest validates an upsert request and trims its facts.
func recordFromRequest(req *UpsertCompanyRequest) (models.CompanyRecord, error) {
	if req == nil || req.Company == nil {
		return models.CompanyRecord{}, errors.New("company data required")
	}
	in := req.Company
	if in.CIK != nil && *in.CIK <= 0 {
		return models.CompanyRecord{}, errors.New("invalid cik")
	}

	rec := models.CompanyRecord{
		CIK:        in.CIK,
		Aliases:    trimAll(in.Aliases),
		Tags:       trimAll(in.Tags),
		CareerPage: strings.TrimSpace(in.CareerPage),
	}
	if len(rec.Aliases) == 0 {
		return models.CompanyRecord{}, errors.New("at least one alias is required")
	}
	for _, w := range in.Websites {
		url := strings.TrimSpace(w.URL)
		if url == "" {
			return models.CompanyRecord{}, errors.New("website url must not be empty")
		}
		rec.Websites = append(rec.Websites, models.Website{URL: url, HasCaptcha: w.HasCaptcha})
	}
	return rec, nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeRequired(values []string) []string {
	var out []string
	for _, v := range trimAll(values) {
		out = append(out, strings.ToLower(v))
	}
	return out
}

// mapServiceError maps domain or repository errors to appropriate gRPC status codes.
func (h *DirectoryHandler) mapServiceError(err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrDuplicateCIK):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, e.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, fmt.Sprintf("internal server error: %v", err))
	}
}
