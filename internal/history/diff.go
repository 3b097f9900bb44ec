// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package history

import (
	"encoding/json"
	"strings"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Summarize describes which parts of the content differ between prev and next,
// e.g. "updated title, blocks". It returns "" when nothing differs.
func Summarize(prev, next model.Snapshot) string {
	var changed []string
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.Slug != next.Slug {
		changed = append(changed, "slug")
	}
	if !sameJSON(prev.Blocks, next.Blocks) {
		changed = append(changed, "blocks")
	}
	if prev.Content != next.Content {
		changed = append(changed, "content")
	}
	if !sameJSON(prev.SEO, next.SEO) {
		changed = append(changed, "seo")
	}
	if prev.Settings != next.Settings {
		changed = append(changed, "settings")
	}
	if prev.Status != next.Status {
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return ""
	}
	return "updated " + strings.Join(changed, ", ")
}

// Equal reports whether two snapshots carry the same content.
func Equal(a, b model.Snapshot) bool {
	return sameJSON(a, b)
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
