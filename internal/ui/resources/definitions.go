package resources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonoseba/portal/internal/api"
	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/table"
)

const dateLayout = "02 Jan 2006"

// Services lists the service catalogue. Deleting is destructive.
func Services(c *api.Client) Definition[model.Service] {
	return Definition[model.Service]{
		Title:    "Services",
		Resource: api.ResourceServices,
		Columns: []table.Column[model.Service]{
			{Key: "name", Header: "Name", Width: 28, Sortable: true, Value: func(s model.Service) any { return s.Name }},
			{Key: "category", Header: "Category", Width: 16, Sortable: true, Value: func(s model.Service) any { return s.Category }},
			{Key: "processingTime", Header: "Processing", Width: 14, NoSearch: true, Value: func(s model.Service) any { return s.ProcessingTime }},
			{
				Key: "fee", Header: "Fee", Width: 10, NoSearch: true,
				Value:  func(s model.Service) any { return s.Fee },
				Render: func(_ any, s model.Service) string {
					if s.Fee == nil {
						return table.Placeholder
					}
					if *s.Fee == 0 {
						return "Free"
					}
					return fmt.Sprintf("৳%.0f", *s.Fee)
				},
			},
			{
				Key: "active", Header: "Active", Width: 8, NoSearch: true,
				Value:  func(s model.Service) any { return s.Active },
				Render: func(_ any, s model.Service) string { return yesNo(s.Active) },
			},
		},
		Actions: []table.RowAction[model.Service]{
			{
				Label:   "Delete service",
				Icon:    "✗",
				Variant: table.VariantDestructive,
				OnClick: func(ctx context.Context, s model.Service) error {
					return api.DeleteService(ctx, c, s.ID)
				},
			},
		},
	}
}

// Applications lists service applications with review actions.
func Applications(c *api.Client) Definition[model.Application] {
	move := func(to model.ApplicationStatus) func(context.Context, model.Application) error {
		return func(ctx context.Context, a model.Application) error {
			if a.Status == to {
				return fmt.Errorf("application is already %s", statusText(string(to)))
			}
			return api.UpdateApplicationStatus(ctx, c, a.ID, to, "")
		}
	}

	return Definition[model.Application]{
		Title:    "Applications",
		Resource: api.ResourceApplications,
		Columns: []table.Column[model.Application]{
			{Key: "applicationType", Header: "Type", Width: 20, Sortable: true, Value: func(a model.Application) any { return a.ApplicationType }},
			{Key: "applicantName", Header: "Applicant", Width: 22, Sortable: true, Value: func(a model.Application) any { return a.ApplicantName }},
			{Key: "phone", Header: "Phone", Width: 14, Value: func(a model.Application) any { return a.Phone }},
			{
				Key: "status", Header: "Status", Width: 11, Sortable: true, NoSearch: true,
				Value:  func(a model.Application) any { return a.Status },
				Render: func(_ any, a model.Application) string { return statusText(string(a.Status)) },
			},
			{
				Key: "submittedAt", Header: "Submitted", Width: 12, Sortable: true, NoSearch: true,
				Value:  func(a model.Application) any { return a.SubmittedAt },
				Render: func(_ any, a model.Application) string { return date(a.SubmittedAt) },
			},
		},
		Actions: []table.RowAction[model.Application]{
			{Label: "Mark in review", Icon: "…", OnClick: move(model.ApplicationInReview)},
			{Label: "Approve", Icon: "✓", OnClick: move(model.ApplicationApproved)},
			{Label: "Reject", Icon: "✗", Variant: table.VariantDestructive, OnClick: move(model.ApplicationRejected)},
		},
	}
}

// Complaints lists reported problems with triage actions.
func Complaints(c *api.Client) Definition[model.Complaint] {
	move := func(to model.ComplaintStatus) func(context.Context, model.Complaint) error {
		return func(ctx context.Context, cp model.Complaint) error {
			if cp.Status == to {
				return fmt.Errorf("complaint is already %s", statusText(string(to)))
			}
			return api.UpdateComplaintStatus(ctx, c, cp.ID, to)
		}
	}

	return Definition[model.Complaint]{
		Title:    "Complaints",
		Resource: api.ResourceComplaints,
		Columns: []table.Column[model.Complaint]{
			{Key: "title", Header: "Title", Width: 26, Sortable: true, Value: func(cp model.Complaint) any { return cp.Title }},
			{Key: "problemType", Header: "Problem", Width: 14, Sortable: true, Value: func(cp model.Complaint) any { return cp.ProblemType }},
			{Key: "location", Header: "Location", Width: 18, Value: func(cp model.Complaint) any { return cp.Location }},
			{
				Key: "status", Header: "Status", Width: 12, Sortable: true, NoSearch: true,
				Value:  func(cp model.Complaint) any { return cp.Status },
				Render: func(_ any, cp model.Complaint) string { return statusText(string(cp.Status)) },
			},
			{
				Key: "createdAt", Header: "Reported", Width: 12, Sortable: true, NoSearch: true,
				Value:  func(cp model.Complaint) any { return cp.CreatedAt },
				Render: func(_ any, cp model.Complaint) string { return date(cp.CreatedAt) },
			},
		},
		Actions: []table.RowAction[model.Complaint]{
			{Label: "Start work", Icon: "▶", OnClick: move(model.ComplaintInProgress)},
			{Label: "Resolve", Icon: "✓", OnClick: move(model.ComplaintResolved)},
		},
	}
}

// Users lists portal accounts for administrators.
func Users(c *api.Client) Definition[model.User] {
	return Definition[model.User]{
		Title:    "Users",
		Resource: api.ResourceUsers,
		Columns: []table.Column[model.User]{
			{Key: "name", Header: "Name", Width: 22, Sortable: true, Value: func(u model.User) any { return u.Name }},
			{Key: "email", Header: "Email", Width: 26, Sortable: true, Value: func(u model.User) any { return u.Email }},
			{Key: "phone", Header: "Phone", Width: 14, Value: func(u model.User) any { return u.Phone }},
			{
				Key: "role", Header: "Role", Width: 13, Sortable: true, NoSearch: true,
				Value:  func(u model.User) any { return u.Role },
				Render: func(_ any, u model.User) string { return statusText(string(u.Role)) },
			},
			{
				Key: "isActive", Header: "Active", Width: 8, NoSearch: true,
				Value:  func(u model.User) any { return u.IsActive },
				Render: func(_ any, u model.User) string { return yesNo(u.IsActive) },
			},
		},
		Actions: []table.RowAction[model.User]{
			{
				Label: "Activate",
				Icon:  "✓",
				OnClick: func(ctx context.Context, u model.User) error {
					if u.IsActive {
						return fmt.Errorf("%s is already active", u.Name)
					}
					return api.SetUserActive(ctx, c, u.ID, true)
				},
			},
			{
				Label:   "Deactivate",
				Icon:    "✗",
				Variant: table.VariantDestructive,
				OnClick: func(ctx context.Context, u model.User) error {
					if !u.IsActive {
						return fmt.Errorf("%s is already inactive", u.Name)
					}
					return api.SetUserActive(ctx, c, u.ID, false)
				},
			},
		},
	}
}

// statusText turns an enum like IN_REVIEW into "In review".
func statusText(s string) string {
	if s == "" {
		return table.Placeholder
	}
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.ToUpper(s[:1]) + s[1:]
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func date(t time.Time) string {
	if t.IsZero() {
		return table.Placeholder
	}
	return t.Local().Format(dateLayout)
}
