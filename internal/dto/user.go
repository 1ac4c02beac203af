package dto

import "time"

// UpdateUserStatusRequest changes a user's lifecycle status.
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE DISABLED"`
}

// PersonalDetailsRequest is the profile payload submitted by a user.
type PersonalDetailsRequest struct {
	FullName             string   `json:"full_name" validate:"required"`
	PersonalEmail        string   `json:"personal_email" validate:"required,email"`
	CountryResident      string   `json:"country_resident" validate:"required"`
	WorkAuthorization    string   `json:"work_authorization" validate:"required"`
	SalaryExpectation    *float64 `json:"salary_expectation" validate:"required,gte=0"`
	VisaSponsor          *bool    `json:"visa_sponsor" validate:"required"`
	TargetJobLocations   []string `json:"target_job_locations" validate:"required,min=1,dive,required"`
	InterestedRoles      []string `json:"interested_roles" validate:"required,min=1,dive,required"`
	InterestedIndustries []string `json:"interested_industries" validate:"required,min=1,dive,required"`
}

// CreateApplicationRequest records a job application for a user.
type CreateApplicationRequest struct {
	CompanyName     string     `json:"company_name" validate:"required"`
	Role            string     `json:"role" validate:"required"`
	ApplicationDate *time.Time `json:"application_date"`
	Status          string     `json:"status" validate:"omitempty,oneof=APPLIED INTERVIEWING OFFERED REJECTED"`
	JobLink         *string    `json:"job_link" validate:"omitempty,url"`
	Notes           *string    `json:"notes"`
}
