package model

import "time"

// UserRole is the access level of a portal account.
type UserRole string

const (
	RoleCitizen     UserRole = "CITIZEN"
	RoleFieldWorker UserRole = "FIELD_WORKER"
	RoleAdmin       UserRole = "ADMIN"
)

// ApplicationStatus is the review state of a service application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationInReview ApplicationStatus = "IN_REVIEW"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// ComplaintStatus is the triage state of a reported problem.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "PENDING"
	ComplaintAssigned   ComplaintStatus = "ASSIGNED"
	ComplaintInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintResolved   ComplaintStatus = "RESOLVED"
	ComplaintClosed     ComplaintStatus = "CLOSED"
)

// User is a portal account as listed in the admin user table.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      UserRole  `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service is a government service citizens can apply for.
type Service struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	RequiredDocuments []string  `json:"requiredDocuments,omitempty"`
	ProcessingTime    string    `json:"processingTime,omitempty"`
	Fee               *float64  `json:"fee,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Application is a citizen's request for a service (certificate, allowance, ...).
type Application struct {
	ID              string            `json:"id"`
	ApplicationType string            `json:"applicationType"`
	ApplicantName   string            `json:"applicantName"`
	Phone           string            `json:"phone"`
	Email           string            `json:"email,omitempty"`
	Address         string            `json:"address"`
	Status          ApplicationStatus `json:"status"`
	SubmittedBy     string            `json:"submittedBy"`
	AssignedTo      string            `json:"assignedTo,omitempty"`
	SubmittedAt     time.Time         `json:"submittedAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Remarks         string            `json:"remarks,omitempty"`
}

// Complaint is a problem report (road damage, water supply, ...) filed by a citizen.
type Complaint struct {
	ID          string          `json:"id"`
	ProblemType string          `json:"problemType"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Status      ComplaintStatus `json:"status"`
	ReportedBy  string          `json:"reportedBy"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
