package handlers

import "github.com/gartstein/companydir/internal/directory/models"

type GetCompanyRequest struct {
	SID int64 `json:"sid"`
}

type GetCompanyByCIKRequest struct {
	CIK int64 `json:"cik"`
}

type CompanyResponse struct {
	Company *models.CompanyView `json:"company"`
}

type ListCompaniesRequest struct{}

type ListCompaniesResponse struct {
	Companies []models.CompanyView `json:"companies"`
}

type UpsertCompanyRequest struct {
	Company *models.CompanyRecord `json:"company"`
}

type UpsertCompanyResponse struct {
	SID     int64 `json:"sid"`
	Created bool  `json:"created"`
}

type DeleteCompanyRequest struct {
	SID int64 `json:"sid"`
}

type DeleteCompanyResponse struct{}

// FilterCompaniesRequest asks for deletion candidates: companies none of
// whose aliases contain any of Required.
type FilterCompaniesRequest struct {
	Required []string `json:"required"`
}

type FilterCompaniesResponse struct {
	Candidates []int64 `json:"candidates"`
}
