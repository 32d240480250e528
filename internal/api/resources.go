package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jonoseba/portal/internal/model"
)

// Resource names accepted by List.
const (
	ResourceServices     = "services"
	ResourceApplications = "applications"
	ResourceComplaints   = "complaints"
	ResourceUsers        = "users"
)

// List fetches one page of a portal collection. Page numbers are 1-indexed.
func List[T any](ctx context.Context, c *Client, resource string, q model.PageQuery) (*model.Page[T], error) {
	var page model.Page[T]
	if err := c.Get(ctx, "/"+resource, queryValues(q), &page); err != nil {
		return nil, fmt.Errorf("listing %s: %w", resource, err)
	}
	if page.Content == nil {
		page.Content = []T{}
	}
	return &page, nil
}

// QueryKey identifies a list request, for caching.
func QueryKey(resource string, q model.PageQuery) string {
	return resource + "?" + queryValues(q).Encode()
}

func queryValues(q model.PageQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		v.Set("sort", q.Sort+","+dir)
	}
	for k, val := range q.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

type statusUpdate struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}

// UpdateApplicationStatus moves an application to a new review state.
func UpdateApplicationStatus(ctx context.Context, c *Client, id string, status model.ApplicationStatus, remarks string) error {
	body := statusUpdate{Status: string(status), Remarks: remarks}
	if err := c.Put(ctx, "/applications/"+url.PathEscape(id)+"/status", body, nil); err != nil {
		return fmt.Errorf("updating application %s: %w", id, err)
	}
	return nil
}

// UpdateComplaintStatus moves a complaint to a new triage state.
func UpdateComplaintStatus(ctx context.Context, c *Client, id string, status model.ComplaintStatus) error {
	body := statusUpdate{Status: string(status)}
	if err := c.Put(ctx, "/complaints/"+url.PathEscape(id)+"/status", body, nil); err != nil {
		return fmt.Errorf("updating complaint %s: %w", id, err)
	}
	return nil
}

// SetUserActive activates or deactivates a portal account.
func SetUserActive(ctx context.Context, c *Client, id string, active bool) error {
	body := struct {
		IsActive bool `json:"isActive"`
	}{IsActive: active}
	if err := c.Put(ctx, "/users/"+url.PathEscape(id)+"/status", body, nil); err != nil {
		return fmt.Errorf("updating user %s: %w", id, err)
	}
	return nil
}

// DeleteService removes a service from the catalogue.
func DeleteService(ctx context.Context, c *Client, id string) error {
	if err := c.Delete(ctx, "/services/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting service %s: %w", id, err)
	}
	return nil
}
