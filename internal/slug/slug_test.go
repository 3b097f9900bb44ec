// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package slug

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/testutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"with special characters", "Hello, World!", "hello-world"},
		{"with numbers", "Page 123", "page-123"},
		{"with accents", "Café résumé", "cafe-resume"},
		{"with multiple spaces", "Hello   World", "hello-world"},
		{"with hyphens", "Hello - World", "hello-world"},
		{"with leading/trailing spaces", "  Hello World  ", "hello-world"},
		{"all special characters", "!@#$%^&*()", ""},
		{"cyrillic", "Привет мир", "privet-mir"},
		{"german umlauts", "Über München", "uber-munchen"},
		{"empty string", "", ""},
		{"mixed case", "HeLLo WoRLd", "hello-world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugifyTruncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 200))
	if len(got) > MaxLength {
		t.Errorf("len(Slugify) = %d, want <= %d", len(got), MaxLength)
	}
	if !IsValid(got) {
		t.Errorf("Slugify result %q is not valid", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"hello-world", true},
		{"page-123", true},
		{"a", true},
		{"", false},
		{"Hello", false},
		{"-start", false},
		{"end-", false},
		{"double--hyphen", false},
		{"with space", false},
		{"under_score", false},
		{strings.Repeat("a", MaxLength+1), false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.input); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func seed(t *testing.T, st *store.Store, id, tenant string, status model.PageStatus) {
	t.Helper()
	now := time.Now()
	testutil.SeedPage(t, st, model.Page{
		ID: id, TenantID: tenant, Title: id, Slug: id, Status: status,
		AuthorID: "u", LastModifiedBy: "u", CreatedAt: now, LastModifiedAt: now,
		Settings: model.Settings{}.WithDefaults(), ETag: "e", CurrentVersion: 1,
	})
}

func TestRegistryReserveAndCheck(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := New(st.Queries())
	seed(t, st, "p1", "t1", model.PageStatusDraft)
	seed(t, st, "p2", "t1", model.PageStatusDraft)

	if err := r.Reserve(ctx, "t1", "about", "p1", time.Now()); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	err := r.Reserve(ctx, "t1", "about", "p2", time.Now())
	if !errors.Is(err, model.ErrSlugConflict) {
		t.Errorf("Reserve taken slug: err = %v, want ErrSlugConflict", err)
	}

	var verr *model.ValidationError
	if err := r.Reserve(ctx, "t1", "Not A Slug", "p2", time.Now()); !errors.As(err, &verr) {
		t.Errorf("Reserve invalid slug: err = %v, want ValidationError", err)
	}

	tests := []struct {
		slug      string
		excluding string
		want      bool
	}{
		{"about", "", false},
		{"about", "p1", true},
		{"about", "p2", false},
		{"contact", "", true},
	}
	for _, tt := range tests {
		got, err := r.CheckAvailability(ctx, "t1", tt.slug, tt.excluding)
		if err != nil {
			t.Fatalf("CheckAvailability: %v", err)
		}
		if got != tt.want {
			t.Errorf("CheckAvailability(%q, excluding %q) = %v, want %v", tt.slug, tt.excluding, got, tt.want)
		}
	}
}

func TestRegistryRenameAndResolve(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := New(st.Queries())
	seed(t, st, "p1", "t1", model.PageStatusPublished)
	now := time.Now()

	if err := r.Reserve(ctx, "t1", "about", "p1", now); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Rename(ctx, RenameParams{
		TenantID: "t1", PageID: "p1", OldSlug: "about", NewSlug: "about-us",
		ChangedBy: "alice", ChangedAt: now, Redirect: true,
	}); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	current, err := r.Resolve(ctx, "t1", "about-us")
	if err != nil || current.PageID != "p1" || current.Redirected {
		t.Errorf("Resolve(about-us) = %+v, %v", current, err)
	}

	old, err := r.Resolve(ctx, "t1", "about")
	if err != nil || old.PageID != "p1" || !old.Redirected {
		t.Errorf("Resolve(about) = %+v, %v; want redirect to p1", old, err)
	}

	history, err := r.History(ctx, "t1", "p1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Slug != "about" || history[0].ChangedBy != "alice" {
		t.Errorf("History = %+v", history)
	}

	if _, err := r.Resolve(ctx, "t1", "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Resolve(missing): err = %v, want ErrNotFound", err)
	}
}

func TestRegistryCurrentSlugBeatsRedirect(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := New(st.Queries())
	seed(t, st, "p1", "t1", model.PageStatusPublished)
	seed(t, st, "p2", "t1", model.PageStatusPublished)
	now := time.Now()

	if err := r.Reserve(ctx, "t1", "team", "p1", now); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Rename(ctx, RenameParams{TenantID: "t1", PageID: "p1", OldSlug: "team",
		NewSlug: "people", ChangedAt: now, Redirect: true}); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := r.Reserve(ctx, "t1", "team", "p2", now); err != nil {
		t.Fatalf("Reserve freed slug: %v", err)
	}

	res, err := r.Resolve(ctx, "t1", "team")
	if err != nil || res.PageID != "p2" || res.Redirected {
		t.Errorf("Resolve(team) = %+v, %v; want p2 directly", res, err)
	}
}

func TestRegistryDeactivate(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := New(st.Queries())
	seed(t, st, "p1", "t1", model.PageStatusDraft)
	now := time.Now()

	if err := r.Reserve(ctx, "t1", "a", "p1", now); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Rename(ctx, RenameParams{TenantID: "t1", PageID: "p1", OldSlug: "a",
		NewSlug: "b", ChangedAt: now, Redirect: true}); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := r.Deactivate(ctx, "t1", "p1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := r.Resolve(ctx, "t1", "a"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Resolve after deactivate: err = %v, want ErrNotFound", err)
	}
}

func TestRegistryRenameCollisionKeepsOldSlugInTx(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	seed(t, st, "p1", "t1", model.PageStatusDraft)
	seed(t, st, "p2", "t1", model.PageStatusDraft)
	now := time.Now()

	r := New(st.Queries())
	if err := r.Reserve(ctx, "t1", "one", "p1", now); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Reserve(ctx, "t1", "two", "p2", now); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	err := st.InTx(ctx, func(q *store.Queries) error {
		return r.WithQueries(q).Rename(ctx, RenameParams{TenantID: "t1", PageID: "p1",
			OldSlug: "one", NewSlug: "two", ChangedAt: now, Redirect: true})
	})
	if !errors.Is(err, model.ErrSlugConflict) {
		t.Fatalf("Rename onto taken slug: err = %v, want ErrSlugConflict", err)
	}

	res, err := r.Resolve(ctx, "t1", "one")
	if err != nil || res.PageID != "p1" || res.Redirected {
		t.Errorf("Resolve(one) after failed rename = %+v, %v", res, err)
	}
}
