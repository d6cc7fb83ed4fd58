// Package resolver maps (HTTP method, request path) pairs onto the
// permission key required to access them, and bulk-exports the full mapping
// table for gateway-side caching.
package resolver

import (
	"strings"

	apperrors "github.com/openidx/authcore/pkg/errors"
)

// segment is one compiled path element: either a literal that must match
// byte-for-byte, or a variable hole that matches exactly one non-empty
// segment of any value.
type segment struct {
	literal  string
	variable bool
}

// Pattern is a URL pattern compiled once and matched many times
type Pattern struct {
	raw      string
	segments []segment
	literals int
}

// Compile parses a pattern like /tenants/{tenantId}/users into its segment
// form. Patterns must start with "/". A segment written as {name} is a
// variable; everything else is a literal.
func Compile(raw string) (*Pattern, error) {
	if raw == "" || raw[0] != '/' {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
			"url pattern must start with /")
	}

	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if raw == "/" {
		parts = nil
	}

	p := &Pattern{raw: raw, segments: make([]segment, 0, len(parts))}
	for _, part := range parts {
		if part == "" {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
				"url pattern has an empty segment: "+raw)
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2 {
			p.segments = append(p.segments, segment{variable: true})
			continue
		}
		p.segments = append(p.segments, segment{literal: part})
		p.literals++
	}
	return p, nil
}

// Raw returns the pattern source string
func (p *Pattern) Raw() string { return p.raw }

// Match reports whether path matches the pattern. A variable segment matches
// exactly one non-empty path segment, never zero and never more.
func (p *Pattern) Match(path string) bool {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}
	if len(parts) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if seg.variable {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if parts[i] != seg.literal {
			return false
		}
	}
	return true
}

// MoreSpecificThan orders two patterns that both matched a path. More
// literal segments wins; on a tie, the pattern whose leftmost differing
// position holds a literal wins; still tied, the lexicographically smaller
// source string wins. The ordering is total over distinct patterns, so
// resolution is deterministic regardless of row order.
func (p *Pattern) MoreSpecificThan(other *Pattern) bool {
	if p.literals != other.literals {
		return p.literals > other.literals
	}
	for i := range p.segments {
		if i >= len(other.segments) {
			break
		}
		pv, ov := p.segments[i].variable, other.segments[i].variable
		if pv != ov {
			return !pv
		}
	}
	return p.raw < other.raw
}
