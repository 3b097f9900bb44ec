// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package blocks

import (
	"errors"
	"strings"
	"testing"

	"github.com/olegiv/ocms-pages/internal/model"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNormalize_Valid(t *testing.T) {
	v := newValidator(t)

	in := []model.Block{
		{ID: "cta", Order: 3, Data: model.CTABlock{Heading: "Join", ButtonText: "Go", ButtonLink: "/signup"}},
		{ID: "hero", Order: 0, Data: model.HeroBlock{Heading: "Welcome", CTALink: "https://example.com"}},
		{Order: 1, Data: model.FeaturesBlock{Items: []model.FeatureItem{{Title: "Fast"}}}},
		{ID: "gal", Order: 1, Data: model.GalleryBlock{Images: []model.GalleryImage{{URL: "/img/a.png"}}, Columns: 3}},
		{ID: "custom", Order: 9, Data: model.CustomBlock{Component: "Map", Props: map[string]any{"zoom": 3}}},
	}

	out, err := v.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}

	wantTypes := []model.BlockType{
		model.BlockTypeHero, model.BlockTypeFeatures, model.BlockTypeGallery,
		model.BlockTypeCTA, model.BlockTypeCustom,
	}
	for i, want := range wantTypes {
		if out[i].Type() != want {
			t.Errorf("out[%d].Type() = %q, want %q", i, out[i].Type(), want)
		}
	}
	if out[1].ID == "" {
		t.Error("block without id was not assigned one")
	}
}

func TestNormalize_SchemaViolations(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		block model.Block
	}{
		{"hero without heading", model.Block{Data: model.HeroBlock{}}},
		{"cta with script link", model.Block{Data: model.CTABlock{Heading: "x", ButtonText: "y", ButtonLink: "javascript:alert(1)"}}},
		{"gallery with too many columns", model.Block{Data: model.GalleryBlock{Columns: 12}}},
		{"gallery image without url", model.Block{Data: model.GalleryBlock{Images: []model.GalleryImage{{Alt: "a"}}}}},
		{"text with unknown alignment", model.Block{Data: model.TextBlock{HTML: "x", Alignment: "diagonal"}}},
		{"contact with bad email", model.Block{Data: model.ContactBlock{Email: "not-an-email"}}},
		{"testimonial without author", model.Block{Data: model.TestimonialsBlock{Items: []model.Testimonial{{Quote: "q"}}}}},
		{"missing data", model.Block{ID: "x"}},
		{"negative order", model.Block{Order: -1, Data: model.TextBlock{HTML: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Normalize([]model.Block{tt.block})
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Normalize err = %v, want ValidationError", err)
			}
			if !strings.HasPrefix(verr.Field, "blocks[0]") {
				t.Errorf("Field = %q, want blocks[0]...", verr.Field)
			}
		})
	}
}

func TestNormalize_DuplicateIDs(t *testing.T) {
	v := newValidator(t)

	_, err := v.Normalize([]model.Block{
		{ID: "a", Data: model.TextBlock{HTML: "one"}},
		{ID: "a", Data: model.TextBlock{HTML: "two"}},
	})
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "blocks[1].id" {
		t.Errorf("Normalize duplicate ids: err = %v, want ValidationError on blocks[1].id", err)
	}
}

func TestNormalize_Sanitizes(t *testing.T) {
	v := newValidator(t)

	out, err := v.Normalize([]model.Block{
		{ID: "t", Data: model.TextBlock{HTML: `<p onclick="x()">Hi<script>alert(1)</script></p>`}},
		{ID: "h", Data: model.HeroBlock{Heading: "<b>Tom</b> & Jerry"}},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	text := out[0].Data.(model.TextBlock)
	if strings.Contains(text.HTML, "script") || strings.Contains(text.HTML, "onclick") {
		t.Errorf("HTML not sanitized: %q", text.HTML)
	}
	if !strings.Contains(text.HTML, "<p>Hi</p>") {
		t.Errorf("HTML lost safe markup: %q", text.HTML)
	}

	hero := out[1].Data.(model.HeroBlock)
	if hero.Heading != "Tom & Jerry" {
		t.Errorf("Heading = %q, want %q", hero.Heading, "Tom & Jerry")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := newValidator(t)

	in := []model.Block{
		{ID: "h", Data: model.HeroBlock{Heading: "Café & <i>Bar</i>"}},
		{ID: "t", Order: 1, Data: model.TextBlock{HTML: `<p>a &amp; b <a href="https://x.dev">x</a></p>`}},
	}
	once, err := v.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	twice, err := v.Normalize(once)
	if err != nil {
		t.Fatalf("Normalize again: %v", err)
	}
	for i := range once {
		if once[i].Data != twice[i].Data {
			t.Errorf("block %d changed on second pass: %#v vs %#v", i, once[i].Data, twice[i].Data)
		}
	}
}

func TestNormalize_TooMany(t *testing.T) {
	v := newValidator(t)
	blocks := make([]model.Block, MaxBlocks+1)
	for i := range blocks {
		blocks[i] = model.Block{Data: model.TextBlock{HTML: "x"}}
	}
	if _, err := v.Normalize(blocks); err == nil {
		t.Error("Normalize accepted too many blocks")
	}
}
