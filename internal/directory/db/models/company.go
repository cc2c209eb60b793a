// Package models contains the table models of the directory store,
// configured to work using GORM as the ORM.
package models

import "time"

// Company is the identity table. It owns every fact table through a
// cascading foreign key on sid.
type Company struct {
	SID       int64 `gorm:"column:sid;primaryKey;autoIncrement"`
	CreatedAt time.Time

	CIK        *CompanyCIK        `gorm:"foreignKey:SID;references:SID;constraint:OnDelete:CASCADE"`
	Aliases    []CompanyAlias     `gorm:"foreignKey:SID;references:SID;constraint:OnDelete:CASCADE"`
	Tags       []CompanyTag       `gorm:"foreignKey:SID;references:SID;constraint:OnDelete:CASCADE"`
	Websites   []CompanyWebsite   `gorm:"foreignKey:SID;references:SID;constraint:OnDelete:CASCADE"`
	CareerPage *CompanyCareerPage `gorm:"foreignKey:SID;references:SID;constraint:OnDelete:CASCADE"`
}

func (Company) TableName() string { return "companies" }

// CompanyCIK maps a natural key onto a surrogate key.
type CompanyCIK struct {
	CIK int64 `gorm:"column:cik;primaryKey;autoIncrement:false"`
	SID int64 `gorm:"column:sid;not null;uniqueIndex"`
}

func (CompanyCIK) TableName() string { return "company_ciks" }

// CompanyAlias is a name a company is known by. The ID only records
// insertion order; (sid, alias) is the identity of the row.
type CompanyAlias struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SID   int64  `gorm:"column:sid;not null;uniqueIndex:idx_company_alias"`
	Alias string `gorm:"column:alias;size:255;not null;uniqueIndex:idx_company_alias"`
}

func (CompanyAlias) TableName() string { return "company_aliases" }

type CompanyTag struct {
	ID  int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SID int64  `gorm:"column:sid;not null;uniqueIndex:idx_company_tag"`
	Tag string `gorm:"column:tag;size:255;not null;uniqueIndex:idx_company_tag"`
}

func (CompanyTag) TableName() string { return "company_tags" }

type CompanyWebsite struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SID        int64  `gorm:"column:sid;not null;uniqueIndex:idx_company_website"`
	URL        string `gorm:"column:url;size:2048;not null;uniqueIndex:idx_company_website"`
	HasCaptcha bool   `gorm:"column:has_captcha;not null;default:false"`
}

func (CompanyWebsite) TableName() string { return "company_websites" }

// CompanyCareerPage holds at most one career page per company.
type CompanyCareerPage struct {
	SID int64  `gorm:"column:sid;primaryKey;autoIncrement:false"`
	URL string `gorm:"column:url;size:2048;not null"`
}

func (CompanyCareerPage) TableName() string { return "company_career_pages" }

// All lists every table model in creation order.
func All() []interface{} {
	return []interface{}{
		&Company{},
		&CompanyCIK{},
		&CompanyAlias{},
		&CompanyTag{},
		&CompanyWebsite{},
		&CompanyCareerPage{},
	}
}
