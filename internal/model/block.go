// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlockType identifies the kind of a content block.
type BlockType string

// Block types
const (
	BlockTypeHero         BlockType = "hero"
	BlockTypeText         BlockType = "text"
	BlockTypeFeatures     BlockType = "features"
	BlockTypeGallery      BlockType = "gallery"
	BlockTypeCTA          BlockType = "cta"
	BlockTypeTestimonials BlockType = "testimonials"
	BlockTypeTeam         BlockType = "team"
	BlockTypeContact      BlockType = "contact"
	BlockTypeCustom       BlockType = "custom"
)

// BlockTypes lists every supported block type.
var BlockTypes = []BlockType{
	BlockTypeHero,
	BlockTypeText,
	BlockTypeFeatures,
	BlockTypeGallery,
	BlockTypeCTA,
	BlockTypeTestimonials,
	BlockTypeTeam,
	BlockTypeContact,
	BlockTypeCustom,
}

// BlockData is the typed payload of a block.
type BlockData interface {
	BlockType() BlockType
}

// Block is one ordered section of page content.
type Block struct {
	ID    string
	Order int
	Data  BlockData
}

// Type returns the block type, or an empty string if the block has no data.
func (b Block) Type() BlockType {
	if b.Data == nil {
		return ""
	}
	return b.Data.BlockType()
}

type blockJSON struct {
	ID    string          `json:"id"`
	Type  BlockType       `json:"type"`
	Order int             `json:"order"`
	Data  json.RawMessage `json:"data"`
}

// MarshalJSON encodes the block as {"id","type","order","data"}.
func (b Block) MarshalJSON() ([]byte, error) {
	if b.Data == nil {
		return nil, fmt.Errorf("block %q has no data", b.ID)
	}
	data, err := json.Marshal(b.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s block: %w", b.Type(), err)
	}
	return json.Marshal(blockJSON{ID: b.ID, Type: b.Type(), Order: b.Order, Data: data})
}

// UnmarshalJSON decodes a block, selecting the payload type from the "type" field.
func (b *Block) UnmarshalJSON(raw []byte) error {
	var bj blockJSON
	if err := json.Unmarshal(raw, &bj); err != nil {
		return err
	}
	data, err := NewBlockData(bj.Type)
	if err != nil {
		return err
	}
	if len(bj.Data) > 0 && string(bj.Data) != "null" {
		// Untyped values such as custom props keep numbers as json.Number so
		// integers beyond 2^53 survive a round trip.
		dec := json.NewDecoder(bytes.NewReader(bj.Data))
		dec.UseNumber()
		if err := dec.Decode(data); err != nil {
			return fmt.Errorf("decoding %s block: %w", bj.Type, err)
		}
	}
	b.ID = bj.ID
	b.Order = bj.Order
	b.Data = derefBlockData(data)
	return nil
}

// UnknownBlockTypeError is returned when decoding a block of an unsupported type.
type UnknownBlockTypeError struct {
	Type BlockType
}

func (e *UnknownBlockTypeError) Error() string {
	return fmt.Sprintf("unknown block type %q", e.Type)
}

// NewBlockData returns a pointer to an empty payload for the given block type.
func NewBlockData(t BlockType) (any, error) {
	switch t {
	case BlockTypeHero:
		return &HeroBlock{}, nil
	case BlockTypeText:
		return &TextBlock{}, nil
	case BlockTypeFeatures:
		return &FeaturesBlock{}, nil
	case BlockTypeGallery:
		return &GalleryBlock{}, nil
	case BlockTypeCTA:
		return &CTABlock{}, nil
	case BlockTypeTestimonials:
		return &TestimonialsBlock{}, nil
	case BlockTypeTeam:
		return &TeamBlock{}, nil
	case BlockTypeContact:
		return &ContactBlock{}, nil
	case BlockTypeCustom:
		return &CustomBlock{}, nil
	}
	return nil, &UnknownBlockTypeError{Type: t}
}

func derefBlockData(v any) BlockData {
	switch d := v.(type) {
	case *HeroBlock:
		return *d
	case *TextBlock:
		return *d
	case *FeaturesBlock:
		return *d
	case *GalleryBlock:
		return *d
	case *CTABlock:
		return *d
	case *TestimonialsBlock:
		return *d
	case *TeamBlock:
		return *d
	case *ContactBlock:
		return *d
	case *CustomBlock:
		return *d
	}
	return nil
}

// HeroBlock is a full-width page header.
type HeroBlock struct {
	Heading         string `json:"heading"`
	Subheading      string `json:"subheading,omitempty"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
	CTAText         string `json:"ctaText,omitempty"`
	CTALink         string `json:"ctaLink,omitempty"`
}

func (HeroBlock) BlockType() BlockType { return BlockTypeHero }

// TextBlock is a rich-text section.
type TextBlock struct {
	HTML      string `json:"html"`
	Alignment string `json:"alignment,omitempty"`
}

func (TextBlock) BlockType() BlockType { return BlockTypeText }

// FeatureItem is one entry in a features block.
type FeatureItem struct {
	Icon        string `json:"icon,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// FeaturesBlock lists product or service features.
type FeaturesBlock struct {
	Heading string        `json:"heading,omitempty"`
	Items   []FeatureItem `json:"items"`
}

func (FeaturesBlock) BlockType() BlockType { return BlockTypeFeatures }

// GalleryImage is one image in a gallery block.
type GalleryImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// GalleryBlock is an image grid.
type GalleryBlock struct {
	Images  []GalleryImage `json:"images"`
	Columns int            `json:"columns,omitempty"`
}

func (GalleryBlock) BlockType() BlockType { return BlockTypeGallery }

// CTABlock is a call to action.
type CTABlock struct {
	Heading    string `json:"heading"`
	Text       string `json:"text,omitempty"`
	ButtonText string `json:"buttonText"`
	ButtonLink string `json:"buttonLink"`
}

func (CTABlock) BlockType() BlockType { return BlockTypeCTA }

// Testimonial is one quote in a testimonials block.
type Testimonial struct {
	Quote     string `json:"quote"`
	Author    string `json:"author"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// TestimonialsBlock lists customer quotes.
type TestimonialsBlock struct {
	Heading string        `json:"heading,omitempty"`
	Items   []Testimonial `json:"items"`
}

func (TestimonialsBlock) BlockType() BlockType { return BlockTypeTestimonials }

// TeamMember is one person in a team block.
type TeamMember struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// TeamBlock lists team members.
type TeamBlock struct {
	Heading string       `json:"heading,omitempty"`
	Members []TeamMember `json:"members"`
}

func (TeamBlock) BlockType() BlockType { return BlockTypeTeam }

// ContactBlock shows contact details and an optional form.
type ContactBlock struct {
	Heading  string `json:"heading,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	ShowForm bool   `json:"showForm"`
}

func (ContactBlock) BlockType() BlockType { return BlockTypeContact }

// CustomBlock carries extension content rendered by a named component.
// Numbers in Props decode as json.Number.
type CustomBlock struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props,omitempty"`
}

func (CustomBlock) BlockType() BlockType { return BlockTypeCustom }
