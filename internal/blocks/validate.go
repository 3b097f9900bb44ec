// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package blocks validates and sanitizes typed page content blocks.
package blocks

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/olegiv/ocms-pages/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://schemas.ocms.dev/blocks/"

// MaxBlocks is the maximum number of blocks on one page.
const MaxBlocks = 500

// Validator checks block payloads against per-type JSON schemas and strips
// unsafe markup.
type Validator struct {
	schemas map[model.BlockType]*jsonschema.Schema
	rich    *bluemonday.Policy
	plain   *bluemonday.Policy
}

// New compiles the embedded block schemas.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	for _, t := range model.BlockTypes {
		raw, err := schemaFS.ReadFile("schemas/" + string(t) + ".json")
		if err != nil {
			return nil, fmt.Errorf("reading %s schema: %w", t, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing %s schema: %w", t, err)
		}
		if err := c.AddResource(schemaBase+string(t)+".json", doc); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", t, err)
		}
	}

	v := &Validator{
		schemas: make(map[model.BlockType]*jsonschema.Schema, len(model.BlockTypes)),
		rich:    bluemonday.UGCPolicy(),
		plain:   bluemonday.StrictPolicy(),
	}
	for _, t := range model.BlockTypes {
		sch, err := c.Compile(schemaBase + string(t) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", t, err)
		}
		v.schemas[t] = sch
	}
	return v, nil
}

// Normalize sanitizes, validates, and orders blocks. Blocks without an ID get
// one; the result is sorted by Order, keeping input order for equal values.
func (v *Validator) Normalize(blocks []model.Block) ([]model.Block, error) {
	if len(blocks) > MaxBlocks {
		return nil, &model.ValidationError{Field: "blocks", Message: fmt.Sprintf("at most %d blocks allowed", MaxBlocks)}
	}

	out := make([]model.Block, 0, len(blocks))
	seen := make(map[string]struct{}, len(blocks))
	for i, b := range blocks {
		field := fmt.Sprintf("blocks[%d]", i)
		if b.Data == nil {
			return nil, &model.ValidationError{Field: field + ".data", Message: "is required"}
		}
		if b.Order < 0 {
			return nil, &model.ValidationError{Field: field + ".order", Message: "must not be negative"}
		}

		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if _, dup := seen[b.ID]; dup {
			return nil, &model.ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate block id %q", b.ID)}
		}
		seen[b.ID] = struct{}{}

		b.Data = v.sanitize(b.Data)
		if err := v.validate(b.Data); err != nil {
			return nil, &model.ValidationError{Field: field + ".data", Message: err.Error()}
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (v *Validator) validate(d model.BlockData) error {
	sch, ok := v.schemas[d.BlockType()]
	if !ok {
		return &model.UnknownBlockTypeError{Type: d.BlockType()}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.New(errorDetail(verr.Error()))
		}
		return err
	}
	return nil
}

func errorDetail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 1 {
		// The first line names the schema, the last one the failing keyword.
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return lines[0]
}

// text strips all markup from a plain-text field, keeping literal characters.
func (v *Validator) text(s string) string {
	return strings.TrimSpace(html.UnescapeString(v.plain.Sanitize(s)))
}

func (v *Validator) sanitize(d model.BlockData) model.BlockData {
	switch b := d.(type) {
	case model.HeroBlock:
		b.Heading = v.text(b.Heading)
		b.Subheading = v.text(b.Subheading)
		b.CTAText = v.text(b.CTAText)
		return b
	case model.TextBlock:
		b.HTML = v.rich.Sanitize(b.HTML)
		return b
	case model.FeaturesBlock:
		b.Heading = v.text(b.Heading)
		items := make([]model.FeatureItem, len(b.Items))
		for i, it := range b.Items {
			it.Title = v.text(it.Title)
			it.Description = v.text(it.Description)
			items[i] = it
		}
		if b.Items != nil {
			b.Items = items
		}
		return b
	case model.GalleryBlock:
		images := make([]model.GalleryImage, len(b.Images))
		for i, img := range b.Images {
			img.Alt = v.text(img.Alt)
			img.Caption = v.text(img.Caption)
			images[i] = img
		}
		if b.Images != nil {
			b.Images = images
		}
		return b
	case model.CTABlock:
		b.Heading = v.text(b.Heading)
		b.Text = v.text(b.Text)
		b.ButtonText = v.text(b.ButtonText)
		return b
	case model.TestimonialsBlock:
		b.Heading = v.text(b.Heading)
		items := make([]model.Testimonial, len(b.Items))
		for i, it := range b.Items {
			it.Quote = v.text(it.Quote)
			it.Author = v.text(it.Author)
			it.Role = v.text(it.Role)
			items[i] = it
		}
		if b.Items != nil {
			b.Items = items
		}
		return b
	case model.TeamBlock:
		b.Heading = v.text(b.Heading)
		members := make([]model.TeamMember, len(b.Members))
		for i, m := range b.Members {
			m.Name = v.text(m.Name)
			m.Role = v.text(m.Role)
			m.Bio = v.text(m.Bio)
			members[i] = m
		}
		if b.Members != nil {
			b.Members = members
		}
		return b
	case model.ContactBlock:
		b.Heading = v.text(b.Heading)
		b.Address = v.text(b.Address)
		return b
	}
	// Custom blocks are extension content and pass through untouched.
	return d
}
