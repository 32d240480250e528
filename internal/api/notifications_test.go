package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonoseba/portal/internal/model"
)

func TestNotificationsListDecodesBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/notifications", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":"n1","userId":"u1","type":"SYSTEM","title":"Hi","message":"m","read":false,"createdAt":"2024-01-02T03:04:05Z"},
			{"id":"n2","userId":"u1","type":"REMINDER","title":"Yo","message":"m","read":true,"createdAt":"2024-01-01T03:04:05Z"}
		]`))
	})

	items, err := NewNotifications(c).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].ID)
	assert.Equal(t, model.NotificationSystem, items[0].Type)
	assert.True(t, items[1].Read)
}

func TestNotificationsListDecodesPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"id":"n9","type":"APPLICATION_UPDATE","relatedEntityId":"a1","relatedEntityType":"APPLICATION"}],
			"pageInfo":{"page":1,"size":20,"totalElements":1,"totalPages":1}}`))
	})

	items, err := NewNotifications(c).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].RelatedEntityID)
}

func TestNotificationsListEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})

	items, err := NewNotifications(c).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestNotificationsWriteEndpoints(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusNoContent)
	})
	n := NewNotifications(c)
	ctx := context.Background()

	require.NoError(t, n.MarkRead(ctx, "n 1"))
	require.NoError(t, n.MarkAllRead(ctx))
	require.NoError(t, n.Delete(ctx, "n2"))

	assert.Equal(t, []call{
		{http.MethodPut, "/api/notifications/n 1/read"},
		{http.MethodPut, "/api/notifications/mark-all-read"},
		{http.MethodDelete, "/api/notifications/n2"},
	}, calls)
}

func TestListBuildsQuery(t *testing.T) {
	var q url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/applications", r.URL.Path)
		q = r.URL.Query()
		_, _ = w.Write([]byte(`{"content":[{"id":"a1","applicantName":"Karim","status":"PENDING"}],
			"pageInfo":{"page":2,"size":10,"totalElements":11,"totalPages":2,"hasNext":false,"hasPrevious":true}}`))
	})

	page, err := List[model.Application](context.Background(), c, ResourceApplications, model.PageQuery{
		Page: 2, Size: 10, Search: "kar", Sort: "submittedAt", Desc: true,
		Filters: map[string]string{"status": "PENDING", "empty": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("size"))
	assert.Equal(t, "kar", q.Get("search"))
	assert.Equal(t, "submittedAt,desc", q.Get("sort"))
	assert.Equal(t, "PENDING", q.Get("status"))
	assert.False(t, q.Has("empty"))

	require.Len(t, page.Content, 1)
	assert.Equal(t, "Karim", page.Content[0].ApplicantName)
	assert.Equal(t, 11, page.PageInfo.TotalElements)
	assert.True(t, page.PageInfo.HasPrevious)
}

func TestStatusUpdates(t *testing.T) {
	var bodies []string
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(buf))
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, UpdateApplicationStatus(ctx, c, "a1", model.ApplicationApproved, ""))
	require.NoError(t, UpdateComplaintStatus(ctx, c, "c1", model.ComplaintResolved))
	require.NoError(t, SetUserActive(ctx, c, "u1", false))
	require.NoError(t, DeleteService(ctx, c, "s1"))

	assert.Equal(t, []string{
		"PUT /api/applications/a1/status",
		"PUT /api/complaints/c1/status",
		"PUT /api/users/u1/status",
		"DELETE /api/services/s1",
	}, paths)
	assert.JSONEq(t, `{"status":"APPROVED"}`, bodies[0])
	assert.JSONEq(t, `{"status":"RESOLVED"}`, bodies[1])
	assert.JSONEq(t, `{"isActive":false}`, bodies[2])
}

func TestLoginAcceptsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"jwt","userId":"u1","name":"Karim","role":"ADMIN"}}`))
	})

	sess, err := Login(context.Background(), c, "karim@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", sess.Token)
	assert.Equal(t, model.RoleAdmin, sess.Role)
}

func TestLoginAcceptsBareBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"jwt2","userId":"u2","name":"Rahim","role":"CITIZEN"}`))
	})

	sess, err := Login(context.Background(), c, "rahim@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt2", sess.Token)
}

func TestLoginRejectsMissingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"userId":"u2"}}`))
	})

	_, err := Login(context.Background(), c, "x@example.com", "pw")
	require.Error(t, err)
}
