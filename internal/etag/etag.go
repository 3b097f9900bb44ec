// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package etag fingerprints persisted page state so that writes based on a
// stale read can be detected.
package etag

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/olegiv/ocms-pages/internal/model"
)

// MinSecretLength is the minimum length of the fingerprint key.
const MinSecretLength = 32

// ErrWeakSecret is returned by NewGuard for keys shorter than MinSecretLength.
var ErrWeakSecret = errors.New("etag secret too short")

// Guard computes and validates page ETags with a keyed BLAKE2b MAC, so an
// ETag cannot be derived from page content alone.
type Guard struct {
	key []byte
}

// NewGuard creates a Guard keyed with secret.
func NewGuard(secret []byte) (*Guard, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(secret)
		key = sum[:]
	}
	return &Guard{key: append([]byte(nil), key...)}, nil
}

type fingerprint struct {
	TenantID       string         `json:"t"`
	PageID         string         `json:"p"`
	CurrentVersion int            `json:"v"`
	Content        model.Snapshot `json:"c"`
}

// Compute returns the ETag of the page's persisted content and version.
// Lock state and schedule bookkeeping do not contribute.
func (g *Guard) Compute(p model.Page) (string, error) {
	data, err := json.Marshal(fingerprint{
		TenantID:       p.TenantID,
		PageID:         p.ID,
		CurrentVersion: p.CurrentVersion,
		Content:        p.Snapshot(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding page %s for etag: %w", p.ID, err)
	}

	h, err := blake2b.New256(g.key)
	if err != nil {
		return "", fmt.Errorf("initializing etag hash: %w", err)
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Validate checks supplied against the ETag stored on current. On mismatch it
// returns *model.ConflictError carrying current.
func (g *Guard) Validate(supplied string, current model.Page) error {
	s := Normalize(supplied)
	if subtle.ConstantTimeCompare([]byte(s), []byte(current.ETag)) != 1 {
		return &model.ConflictError{Supplied: s, Current: current}
	}
	return nil
}

// Normalize strips HTTP ETag decoration (weak prefix and quotes).
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "W/")
	return strings.Trim(s, `"`)
}

// Quote formats an ETag for an HTTP header.
func Quote(s string) string {
	return `"` + s + `"`
}
