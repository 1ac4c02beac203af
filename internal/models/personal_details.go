package models

import (
	"strings"
	"time"
)

// PersonalDetailKind labels the multi-valued career preference lists.
type PersonalDetailKind string

const (
	DetailTargetJobLocation  PersonalDetailKind = "TARGET_JOB_LOCATION"
	DetailInterestedRole     PersonalDetailKind = "INTERESTED_ROLE"
	DetailInterestedIndustry PersonalDetailKind = "INTERESTED_INDUSTRY"
)

// PersonalDetails is the profile a user submits before becoming assignable.
type PersonalDetails struct {
	UserID               string    `db:"user_id" json:"user_id"`
	FullName             string    `db:"full_name" json:"full_name"`
	PersonalEmail        string    `db:"personal_email" json:"personal_email"`
	CountryResident      string    `db:"country_resident" json:"country_resident"`
	WorkAuthorization    string    `db:"work_authorization" json:"work_authorization"`
	SalaryExpectation    float64   `db:"salary_expectation" json:"salary_expectation"`
	VisaSponsor          bool      `db:"visa_sponsor" json:"visa_sponsor"`
	TargetJobLocations   []string  `db:"-" json:"target_job_locations"`
	InterestedRoles      []string  `db:"-" json:"interested_roles"`
	InterestedIndustries []string  `db:"-" json:"interested_industries"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// PersonalDetailValue is one row of a multi-valued preference list.
type PersonalDetailValue struct {
	UserID string             `db:"user_id"`
	Kind   PersonalDetailKind `db:"kind"`
	Value  string             `db:"value"`
}

// IsComplete mirrors the SQL predicate used by the directory queries.
func (p *PersonalDetails) IsComplete() bool {
	if p == nil {
		return false
	}
	for _, field := range []string{p.FullName, p.PersonalEmail, p.CountryResident, p.WorkAuthorization} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return hasValue(p.TargetJobLocations) && hasValue(p.InterestedRoles) && hasValue(p.InterestedIndustries)
}

// Values flattens the preference lists into rows, dropping blank entries.
func (p *PersonalDetails) Values() []PersonalDetailValue {
	var values []PersonalDetailValue
	appendKind := func(kind PersonalDetailKind, items []string) {
		for _, item := range items {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				values = append(values, PersonalDetailValue{UserID: p.UserID, Kind: kind, Value: trimmed})
			}
		}
	}
	appendKind(DetailTargetJobLocation, p.TargetJobLocations)
	appendKind(DetailInterestedRole, p.InterestedRoles)
	appendKind(DetailInterestedIndustry, p.InterestedIndustries)
	return values
}

func hasValue(items []string) bool {
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			return true
		}
	}
	return false
}
