package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/jonoseba/portal/internal/model"
)

// Notifications groups the /notifications endpoints.
type Notifications struct {
	c *Client
}

// NewNotifications returns the notification endpoint group for c.
func NewNotifications(c *Client) *Notifications {
	return &Notifications{c: c}
}

// List fetches the authoritative notification list for the current user.
// The portal answers either a bare array or a {content, pageInfo} page;
// both are accepted.
func (n *Notifications) List(ctx context.Context) ([]model.Notification, error) {
	var raw json.RawMessage
	if err := n.c.Get(ctx, "/notifications", nil, &raw); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	items, err := decodeNotifications(raw)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return items, nil
}

// MarkRead marks a single notification as read on the server.
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	if err := n.c.Put(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification of the current user as read.
func (n *Notifications) MarkAllRead(ctx context.Context) error {
	if err := n.c.Put(ctx, "/notifications/mark-all-read", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Delete removes a notification on the server.
func (n *Notifications) Delete(ctx context.Context, id string) error {
	if err := n.c.Delete(ctx, "/notifications/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

func decodeNotifications(raw json.RawMessage) ([]model.Notification, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []model.Notification{}, nil
	}

	if trimmed[0] == '[' {
		var items []model.Notification
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding notification list: %w", err)
		}
		return items, nil
	}

	var page model.Page[model.Notification]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decoding notification page: %w", err)
	}
	if page.Content == nil {
		page.Content = []model.Notification{}
	}
	return page.Content, nil
}
