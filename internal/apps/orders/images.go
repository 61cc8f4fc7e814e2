package orders

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/storage"
)

// MaxPictures is the most images an order keeps.
const MaxPictures = 3

// ParseKeepList normalizes the pictures field. It accepts a JSON array, a
// comma-separated list or a single reference. A value that looks like a JSON
// array but does not parse yields an empty list.
func ParseKeepList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	var parts []string
	switch {
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return []string{}
		}
	case strings.HasPrefix(raw, "data:"):
		// Data URIs carry a comma of their own.
		parts = []string{raw}
	default:
		parts = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReconcileImages returns the first MaxPictures entries of keep followed by
// uploaded, with exact duplicates removed and order preserved.
func ReconcileImages(keep, uploaded []string) []string {
	out := make([]string, 0, MaxPictures)
	seen := make(map[string]bool, len(keep)+len(uploaded))
	for _, list := range [][]string{keep, uploaded} {
		for _, ref := range list {
			if len(out) == MaxPictures {
				return out
			}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// trustedKeep drops upload paths from keep that the order does not already
// reference. Upload paths are public, so a client could otherwise adopt (and
// later delete) another order's file. Other references pass through.
func trustedKeep(keep, persisted []string) []string {
	out := make([]string, 0, len(keep))
	for _, ref := range keep {
		if strings.HasPrefix(ref, storage.PublicPrefix) && !slices.Contains(persisted, ref) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// unused returns the entries of candidates that are not in kept.
func unused(candidates, kept []string) []string {
	var out []string
	for _, c := range candidates {
		if !slices.Contains(kept, c) {
			out = append(out, c)
		}
	}
	return out
}
