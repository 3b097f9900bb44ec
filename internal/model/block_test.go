// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestBlockUnmarshalSelectsPayloadType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want BlockType
	}{
		{"hero", `{"id":"a","type":"hero","order":0,"data":{"heading":"Hi"}}`, BlockTypeHero},
		{"text", `{"id":"b","type":"text","order":1,"data":{"html":"<p>x</p>"}}`, BlockTypeText},
		{"gallery", `{"id":"c","type":"gallery","order":2,"data":{"images":[{"url":"/a.png"}]}}`, BlockTypeGallery},
		{"custom", `{"id":"d","type":"custom","order":3,"data":{"component":"map","props":{"zoom":3}}}`, BlockTypeCustom},
		{"missing data", `{"id":"e","type":"contact","order":4}`, BlockTypeContact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Block
			if err := json.Unmarshal([]byte(tt.raw), &b); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if b.Type() != tt.want {
				t.Errorf("Type() = %q, want %q", b.Type(), tt.want)
			}
		})
	}
}

func TestBlockJSONShape(t *testing.T) {
	b := Block{ID: "x1", Order: 2, Data: CTABlock{Heading: "Join", ButtonText: "Go", ButtonLink: "/join"}}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"type":"cta"`, `"order":2`, `"id":"x1"`, `"buttonLink":"/join"`} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded block %s missing %s", s, want)
		}
	}

	var decoded Block
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	cta, ok := decoded.Data.(CTABlock)
	if !ok {
		t.Fatalf("Data is %T, want CTABlock", decoded.Data)
	}
	if cta.ButtonLink != "/join" {
		t.Errorf("ButtonLink = %q, want %q", cta.ButtonLink, "/join")
	}
}

func TestBlockUnknownType(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"type":"carousel","data":{}}`), &b)

	var unknown *UnknownBlockTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownBlockTypeError", err)
	}
	if unknown.Type != "carousel" {
		t.Errorf("Type = %q, want carousel", unknown.Type)
	}
}

func TestBlockMarshalWithoutData(t *testing.T) {
	if _, err := json.Marshal(Block{ID: "empty"}); err == nil {
		t.Error("expected error marshaling block without data")
	}
}

func TestCustomBlockPropsKeepNumbers(t *testing.T) {
	raw := `{"id":"m","type":"custom","order":0,"data":{"component":"Map","props":{"id":9007199254740993,"zoom":3.5,"tags":[1,2]}}}`

	var b Block
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	custom, ok := b.Data.(CustomBlock)
	if !ok {
		t.Fatalf("Data = %T, want CustomBlock", b.Data)
	}
	id, ok := custom.Props["id"].(json.Number)
	if !ok {
		t.Fatalf("props.id = %T, want json.Number", custom.Props["id"])
	}
	if id.String() != "9007199254740993" {
		t.Errorf("props.id = %s, want 9007199254740993", id)
	}
	if n, err := id.Int64(); err != nil || n != 9007199254740993 {
		t.Errorf("props.id.Int64() = %d, %v", n, err)
	}

	out, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"id":9007199254740993`, `"zoom":3.5`, `"tags":[1,2]`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("re-encoded block %s lacks %s", out, want)
		}
	}
}
