// Package invoke composes the AI invocation control stack: deterministic
// keying, result caching, request deduplication, and cost/performance
// recording around every model call.
package invoke

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Key builds the deterministic cache/dedupe key for one logical call:
//
//	"ai:" + route + ":" + sha256(canonicalJSON(input))
//
// Canonicalization (RFC 8785) serializes object keys in sorted order, so
// semantically identical inputs with different field order hash identically.
// Both cache correctness and dedupe correctness depend on this.
func Key(route string, input any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshaling input for %s: %w", route, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing input for %s: %w", route, err)
	}
	sum := sha256.Sum256(canonical)
	return "ai:" + route + ":" + hex.EncodeToString(sum[:]), nil
}

// RoutePrefix returns the key prefix covering every entry for one route,
// for bulk invalidation.
func RoutePrefix(route string) string {
	return "ai:" + route + ":"
}
