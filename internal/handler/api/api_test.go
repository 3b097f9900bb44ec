// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-pages/internal/etag"
	"github.com/olegiv/ocms-pages/internal/lifecycle"
	"github.com/olegiv/ocms-pages/internal/lock"
	"github.com/olegiv/ocms-pages/internal/middleware"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/scheduler"
	"github.com/olegiv/ocms-pages/internal/testutil"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type apiFixture struct {
	router http.Handler
	clock  *testutil.Clock
	jobs   *fakeJobs
}

func newAPIFixture(t *testing.T, opts ...lifecycle.Option) *apiFixture {
	t.Helper()

	st := testutil.TestStore(t)
	clock := testutil.NewClock(t0)
	guard, err := etag.NewGuard([]byte("api-test-secret-0123456789abcdefgh"))
	require.NoError(t, err)
	locks := lock.NewManager(lock.NewMemoryBackend(), lock.DefaultTTL, lock.DefaultMaxTTL,
		testutil.TestLoggerSilent(), lock.WithClock(clock.Now))

	opts = append([]lifecycle.Option{lifecycle.WithClock(clock.Now), lifecycle.WithLogger(testutil.TestLoggerSilent())}, opts...)
	svc, err := lifecycle.New(st, guard, locks, opts...)
	require.NoError(t, err)

	jobs := &fakeJobs{}
	h := NewHandler(svc, jobs, st.DB(), testutil.TestLoggerSilent())
	return &apiFixture{
		router: NewRouter(h, RouterConfig{IsDevelopment: true, RequestTimeout: 5 * time.Second}),
		clock:  clock,
		jobs:   jobs,
	}
}

type caller struct {
	tenant, id, session string
	admin               bool
}

var (
	alice = caller{tenant: "acme", id: "alice", session: "alice-1"}
	bob   = caller{tenant: "acme", id: "bob", session: "bob-1"}
	root  = caller{tenant: "acme", id: "root", session: "root-1", admin: true}
)

type result struct {
	Code   int
	Header http.Header
	Body   []byte
}

func (r result) data(t *testing.T, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(r.Body, &env), string(r.Body))
	require.NoError(t, json.Unmarshal(env.Data, v), string(r.Body))
}

func (r result) apiError(t *testing.T) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(r.Body, &resp), string(r.Body))
	return resp.Error
}

func (f *apiFixture) do(t *testing.T, c caller, method, path string, body any, header ...string) result {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if c.tenant != "" {
		req.Header.Set(middleware.HeaderTenantID, c.tenant)
	}
	if c.id != "" {
		req.Header.Set(middleware.HeaderCallerID, c.id)
	}
	req.Header.Set(middleware.HeaderSessionID, c.session)
	if c.admin {
		req.Header.Set(middleware.HeaderAdmin, "true")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return result{Code: rec.Code, Header: rec.Header(), Body: rec.Body.Bytes()}
}

func (f *apiFixture) create(t *testing.T, title, slug string) model.Page {
	t.Helper()
	res := f.do(t, alice, http.MethodPost, "/api/v1/pages", map[string]any{
		"title": title,
		"slug":  slug,
		"blocks": []map[string]any{
			{"id": "intro", "type": "text", "order": 0, "data": map[string]any{"html": "<p>Hi</p>"}},
		},
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	var p model.Page
	res.data(t, &p)
	return p
}

type fakeJobs struct {
	triggered []string
	schedule  string
}

func (j *fakeJobs) List() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Source: "core", Name: "publish-scheduled", Schedule: "@every 30s"}}
}

func (j *fakeJobs) TriggerNow(source, name string) error {
	if name != "publish-scheduled" {
		return scheduler.ErrJobNotFound
	}
	j.triggered = append(j.triggered, source+":"+name)
	return nil
}

func (j *fakeJobs) UpdateSchedule(_, name, schedule string) error {
	if name != "publish-scheduled" {
		return scheduler.ErrJobNotFound
	}
	j.schedule = schedule
	return nil
}

func (j *fakeJobs) ResetSchedule(_, name string) error {
	if name != "publish-scheduled" {
		return scheduler.ErrJobNotFound
	}
	j.schedule = ""
	return nil
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	res := f.do(t, caller{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Body), `"ok"`)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
}

func TestMissingIdentity(t *testing.T) {
	f := newAPIFixture(t)

	res := f.do(t, caller{tenant: "acme"}, http.MethodGet, "/api/v1/pages", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.do(t, caller{id: "alice"}, http.MethodGet, "/api/v1/pages", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCreateAndGetPage(t *testing.T) {
	f := newAPIFixture(t)

	p := f.create(t, "About Us", "about-us")
	assert.Equal(t, model.PageStatusDraft, p.Status)
	assert.Equal(t, 1, p.CurrentVersion)
	assert.NotEmpty(t, p.ETag)

	res := f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, etag.Quote(p.ETag), res.Header.Get("ETag"))

	var got model.Page
	res.data(t, &got)
	assert.Equal(t, "about-us", got.Slug)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, model.BlockTypeText, got.Blocks[0].Type())
}

func TestCreatePageValidation(t *testing.T) {
	f := newAPIFixture(t)

	res := f.do(t, alice, http.MethodPost, "/api/v1/pages", map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "validation_error", res.apiError(t).Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages", map[string]any{
		"title":  "Odd",
		"blocks": []map[string]any{{"id": "x", "type": "marquee", "data": map[string]any{}}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "validation_error", res.apiError(t).Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages", map[string]any{"title": "X", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "bad_request", res.apiError(t).Code)
}

func TestGetPageBadID(t *testing.T) {
	f := newAPIFixture(t)

	for _, id := range []string{"undefined", "null", "not-a-uuid"} {
		res := f.do(t, alice, http.MethodGet, "/api/v1/pages/"+id, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code, id)
	}

	res := f.do(t, alice, http.MethodGet, "/api/v1/pages/0b7a3c5e-5f4c-4f43-9b8e-1f2d3c4b5a69", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestTenantIsolation(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Private", "private")

	res := f.do(t, caller{tenant: "globex", id: "alice", session: "s"}, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUpdateWithIfMatch(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Home", "home")

	res := f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Welcome"}},
		"If-Match", etag.Quote(p.ETag))
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))

	var updated model.Page
	res.data(t, &updated)
	assert.Equal(t, "Welcome", updated.Title)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.NotEqual(t, p.ETag, updated.ETag)
	assert.Equal(t, etag.Quote(updated.ETag), res.Header.Get("ETag"))
}

func TestUpdateConflictReturnsCurrent(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Home", "home")

	res := f.do(t, bob, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Bob was here"}, "etag": p.ETag})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Alice was here"}, "etag": p.ETag})
	require.Equal(t, http.StatusConflict, res.Code)

	detail := res.apiError(t)
	assert.Equal(t, "conflict", detail.Code)
	require.NotNil(t, detail.Current)
	assert.Equal(t, "Bob was here", detail.Current.Title)
	assert.Equal(t, etag.Quote(detail.Current.ETag), res.Header.Get("ETag"))
}

func TestUpdateRequiresETag(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Home", "home")

	res := f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "No etag"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, map[string]string{"etag": "is required"}, res.apiError(t).Details)
}

func TestSlugCollision(t *testing.T) {
	f := newAPIFixture(t)
	f.create(t, "Contact", "contact")

	res := f.do(t, alice, http.MethodPost, "/api/v1/pages", map[string]any{"title": "Contact 2", "slug": "contact"})
	require.Equal(t, http.StatusConflict, res.Code)
	detail := res.apiError(t)
	assert.Equal(t, "slug_collision", detail.Code)
	assert.Equal(t, "contact", detail.Details["slug"])

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/slug-check?slug=contact", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var check struct {
		Slug      string `json:"slug"`
		Available bool   `json:"available"`
	}
	res.data(t, &check)
	assert.False(t, check.Available)
}

func TestListPages(t *testing.T) {
	f := newAPIFixture(t)
	for _, s := range []string{"one", "two", "three"} {
		f.create(t, s, s)
		f.clock.Advance(time.Second)
	}

	res := f.do(t, alice, http.MethodGet, "/api/v1/pages?limit=2", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var resp struct {
		Data []model.PageSummary `json:"data"`
		Meta Meta                `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(res.Body, &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 2, resp.Meta.Count)
	require.NotEmpty(t, resp.Meta.NextCursor)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages?limit=2&cursor="+resp.Meta.NextCursor, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body, &resp))
	assert.Len(t, resp.Data, 1)
	assert.Empty(t, resp.Meta.NextCursor)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPublishLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Launch", "launch")

	res := f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var published model.Page
	res.data(t, &published)
	assert.Equal(t, model.PageStatusPublished, published.Status)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/resolve?slug=launch", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/unpublish", map[string]any{"etag": published.ETag})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var draft model.Page
	res.data(t, &draft)
	assert.Equal(t, model.PageStatusDraft, draft.Status)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var archived model.Page
	res.data(t, &archived)
	assert.Equal(t, model.PageStatusArchived, archived.Status)
}

func TestScheduleAndUnschedule(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Later", "later")

	res := f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/publish", map[string]any{
		"mode": "scheduled", "scheduledAt": t0.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/publish", map[string]any{
		"mode": "scheduled", "scheduledAt": t0.Add(time.Hour),
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var scheduled model.Page
	res.data(t, &scheduled)
	assert.Equal(t, model.PageStatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.Schedule)
	assert.True(t, scheduled.Schedule.At.Equal(t0.Add(time.Hour)))

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/unschedule", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/unschedule", nil)
	require.Equal(t, http.StatusConflict, res.Code)
	detail := res.apiError(t)
	assert.Equal(t, "invalid_transition", detail.Code)
	assert.Equal(t, "draft", detail.Details["status"])
}

func TestVersionsAndRestore(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "First", "first")

	res := f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Second"}, "etag": p.ETag})
	require.Equal(t, http.StatusOK, res.Code)
	var updated model.Page
	res.data(t, &updated)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var versions []model.Version
	res.data(t, &versions)
	assert.Len(t, versions, 2)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID+"/versions/1", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var v1 model.Version
	res.data(t, &v1)
	assert.Equal(t, "First", v1.Payload.Title)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID+"/versions/zero", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID+"/versions/9", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/versions/1/restore", map[string]any{"etag": p.ETag})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/versions/1/restore", nil,
		"If-Match", etag.Quote(updated.ETag))
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var restored model.Page
	res.data(t, &restored)
	assert.Equal(t, "First", restored.Title)
	assert.Equal(t, 3, restored.CurrentVersion)
}

func TestLockEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Locked", "locked")
	lockPath := "/api/v1/pages/" + p.ID + "/lock"

	res := f.do(t, alice, http.MethodPost, lockPath, map[string]any{"ttlSeconds": 120})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var l model.Lock
	res.data(t, &l)
	assert.Equal(t, "alice", l.OwnerID)
	assert.True(t, l.ExpiresAt.Equal(t0.Add(2*time.Minute)))

	res = f.do(t, bob, http.MethodPost, lockPath, nil)
	require.Equal(t, http.StatusLocked, res.Code)
	detail := res.apiError(t)
	assert.Equal(t, "locked", detail.Code)
	assert.Equal(t, "alice", detail.Details["owner"])

	res = f.do(t, bob, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Sneaky"}, "etag": p.ETag})
	assert.Equal(t, http.StatusLocked, res.Code)

	f.clock.Advance(30 * time.Second)
	res = f.do(t, alice, http.MethodPost, lockPath+"/heartbeat", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, bob, http.MethodDelete, lockPath+"/force", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, root, http.MethodDelete, lockPath+"/force", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var broken struct {
		Broken   bool        `json:"broken"`
		Previous *model.Lock `json:"previous"`
	}
	res.data(t, &broken)
	assert.True(t, broken.Broken)
	require.NotNil(t, broken.Previous)
	assert.Equal(t, "alice", broken.Previous.OwnerID)

	res = f.do(t, alice, http.MethodDelete, lockPath, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = f.do(t, bob, http.MethodPost, lockPath, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodPost, lockPath, map[string]any{"ttlSeconds": -1})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLockRequiredForEdits(t *testing.T) {
	f := newAPIFixture(t, lifecycle.WithRequireEditLock(true))
	p := f.create(t, "Guarded", "guarded")

	res := f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Unlocked edit"}, "etag": p.ETag})
	require.Equal(t, http.StatusLocked, res.Code)
	assert.Equal(t, "lock_required", res.apiError(t).Code)

	res = f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/lock", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodPut, "/api/v1/pages/"+p.ID,
		map[string]any{"data": map[string]any{"title": "Locked edit"}, "etag": p.ETag})
	assert.Equal(t, http.StatusOK, res.Code, string(res.Body))
}

func TestDeleteAndBulkDelete(t *testing.T) {
	f := newAPIFixture(t)
	a := f.create(t, "A", "a")
	b := f.create(t, "B", "b")

	res := f.do(t, alice, http.MethodDelete, "/api/v1/pages/"+a.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, alice, http.MethodDelete, "/api/v1/pages", map[string]any{
		"pageIds": []string{b.ID, a.ID, "undefined"},
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	var items []BulkDeleteItem
	res.data(t, &items)
	require.Len(t, items, 3)
	assert.True(t, items[0].Deleted)
	assert.False(t, items[1].Deleted)
	require.NotNil(t, items[1].Error)
	assert.Equal(t, "not_found", items[1].Error.Code)
	require.NotNil(t, items[2].Error)
	assert.Equal(t, "validation_error", items[2].Error.Code)

	res = f.do(t, alice, http.MethodGet, "/api/v1/pages/slug-check?slug=a", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var check struct {
		Available bool `json:"available"`
	}
	res.data(t, &check)
	assert.True(t, check.Available)
}

func TestPageEvents(t *testing.T) {
	f := newAPIFixture(t)
	p := f.create(t, "Audited", "audited")
	f.do(t, alice, http.MethodPost, "/api/v1/pages/"+p.ID+"/publish", nil)

	res := f.do(t, alice, http.MethodGet, "/api/v1/pages/"+p.ID+"/events?category=page", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var events []model.Event
	res.data(t, &events)
	assert.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, p.ID, e.PageID)
	}
}

func TestAdminJobs(t *testing.T) {
	f := newAPIFixture(t)

	res := f.do(t, alice, http.MethodGet, "/api/v1/admin/jobs", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(t, root, http.MethodGet, "/api/v1/admin/jobs", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var jobs []scheduler.JobInfo
	res.data(t, &jobs)
	require.Len(t, jobs, 1)

	res = f.do(t, root, http.MethodPost, "/api/v1/admin/jobs/core/publish-scheduled/trigger", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"core:publish-scheduled"}, f.jobs.triggered)

	res = f.do(t, root, http.MethodPost, "/api/v1/admin/jobs/core/missing/trigger", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, root, http.MethodPut, "/api/v1/admin/jobs/core/publish-scheduled/schedule",
		map[string]any{"schedule": "not a cron"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, root, http.MethodPut, "/api/v1/admin/jobs/core/publish-scheduled/schedule",
		map[string]any{"schedule": "@every 1m"})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "@every 1m", f.jobs.schedule)

	res = f.do(t, root, http.MethodDelete, "/api/v1/admin/jobs/core/publish-scheduled/schedule", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Empty(t, f.jobs.schedule)
}

func TestWriteServiceErrorCancelled(t *testing.T) {
	h := NewHandler(nil, nil, nil, testutil.TestLoggerSilent())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.writeServiceError(rec, req, context.DeadlineExceeded)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.writeServiceError(rec, req, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorCodeMatchesResponse(t *testing.T) {
	h := NewHandler(nil, nil, nil, testutil.TestLoggerSilent())
	req := httptest.NewRequest(http.MethodDelete, "/pages", nil)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &model.ValidationError{Field: "title", Message: "is required"}, "validation_error"},
		{"stale etag", &model.ConflictError{Supplied: "old", Current: model.Page{ETag: "new"}}, "conflict"},
		{"lock held", &model.LockDeniedError{Owner: "alice", ExpiresAt: t0}, "locked"},
		{"lock required", lifecycle.ErrLockRequired, "lock_required"},
		{"slug taken", fmt.Errorf("renaming: %w", &model.SlugCollisionError{TenantID: "acme", Slug: "about"}), "slug_collision"},
		{"transition", &model.TransitionError{Event: "archive", Current: model.PageStatusArchived}, "invalid_transition"},
		{"not found", model.ErrNotFound, "not_found"},
		{"job not found", scheduler.ErrJobNotFound, "not_found"},
		{"forbidden", model.ErrForbidden, "forbidden"},
		{"cancelled", context.Canceled, "timeout"},
		{"other", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))

			rec := httptest.NewRecorder()
			h.writeServiceError(rec, req, tt.err)
			var env ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.want, env.Error.Code)
		})
	}
}

// requestWithURLParams adds chi URL params to r.
func requestWithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestRequireHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := requireActor(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = requestWithURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"n": "-2"})
	_, ok = requireVersionNumber(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/", nil)
	req.Header.Set("If-Match", `W/"abc"`)
	assert.Equal(t, "abc", ifMatch(req, ""))
	assert.Equal(t, "xyz", ifMatch(req, `"xyz"`))
}
