package session

import (
	"regexp"
	"strings"
)

// MatchTier records which rule resolved a name.
type MatchTier string

const (
	TierNone       MatchTier = ""
	TierExact      MatchTier = "exact"
	TierNormalized MatchTier = "normalized"
	TierSubstring  MatchTier = "substring"
)

var separatorRun = regexp.MustCompile(`[\s_-]+`)

// NormalizeName strips a trailing ".pdf" (any case), collapses runs of
// whitespace, underscores and hyphens into one space, trims and lowercases.
func NormalizeName(name string) string {
	n := name
	if len(n) >= 4 && strings.EqualFold(n[len(n)-4:], ".pdf") {
		n = n[:len(n)-4]
	}
	n = separatorRun.ReplaceAllString(n, " ")
	return strings.ToLower(strings.TrimSpace(n))
}

// resolve applies exact, normalized and substring matching in that order.
// docs must be in insertion order; under substring ambiguity the first one wins.
func resolve(docs []*Document, candidate string) (*Document, MatchTier, error) {
	for _, d := range docs {
		if d.Name == candidate {
			return d, TierExact, nil
		}
	}

	want := NormalizeName(candidate)
	if want == "" {
		return nil, TierNone, &NotFoundError{Name: candidate}
	}

	normalized := make([]string, len(docs))
	for i, d := range docs {
		normalized[i] = NormalizeName(d.Name)
		if normalized[i] == want {
			return d, TierNormalized, nil
		}
	}

	for i, d := range docs {
		have := normalized[i]
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return d, TierSubstring, nil
		}
	}

	return nil, TierNone, &NotFoundError{Name: candidate}
}
