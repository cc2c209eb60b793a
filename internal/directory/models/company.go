// Package models defines the domain model of the company directory.
// Companies are addressed by a store-assigned surrogate id (SID); the
// regulatory identifier (CIK) is optional and maps onto exactly one SID.
// Every fact (alias, tag, website, career page) is keyed by SID.
package models

import (
	"strconv"
	"time"
)

// SID is the surrogate company identifier assigned by the store.
// It is never reused and never zero for a stored company.
type SID int64

// String returns the decimal form of the SID.
func (s SID) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// CIK is the SEC Central Index Key, the natural company identifier.
type CIK int64

// String returns the decimal form of the CIK.
func (c CIK) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// Website is a URL attached to a company together with its captcha flag.
type Website struct {
	URL        string `json:"url"`
	HasCaptcha bool   `json:"has_captcha"`
}

// CompanyView is the assembled read model of a company and all of its facts.
type CompanyView struct {
	SID        SID       `json:"sid"`
	CIK        *CIK      `json:"cik,omitempty"`
	Aliases    []string  `json:"aliases"`
	Tags       []string  `json:"tags"`
	Websites   []Website `json:"websites"`
	CareerPage string    `json:"career_page,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PrimaryAlias returns the first alias attached to the company, or "" for
// an orphaned company.
func (c *CompanyView) PrimaryAlias() string {
	if len(c.Aliases) == 0 {
		return ""
	}
	return c.Aliases[0]
}

// Discovered reports whether the company has at least one website.
func (c *CompanyView) Discovered() bool {
	return len(c.Websites) > 0
}

// CompanyRecord is the input to an upsert. Aliases are required; every other
// fact is optional and merged with set semantics.
type CompanyRecord struct {
	CIK        *CIK      `json:"cik,omitempty"`
	Aliases    []string  `json:"aliases"`
	Tags       []string  `json:"tags,omitempty"`
	Websites   []Website `json:"websites,omitempty"`
	CareerPage string    `json:"career_page,omitempty"`
}

// IndexRecord is one raw row of the EDGAR company index.
type IndexRecord struct {
	Name      string `json:"name"`
	CIK       CIK    `json:"cik"`
	FormType  string `json:"form_type"`
	DateFiled string `json:"date_filed"`
	FileName  string `json:"file_name"`
}
