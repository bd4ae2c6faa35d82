package session

import (
	"strconv"
	"strings"
)

// Heading is one outline entry. Page is 0-based as reported by the outline
// backend; the viewer works with Page+1.
type Heading struct {
	Text  string `json:"text"`
	Level string `json:"level"`
	Page  int    `json:"page"`
}

// LevelOrdinal parses a heading level such as "H3" into 3. Unknown levels
// sort last.
func LevelOrdinal(level string) int {
	l := strings.TrimSpace(strings.ToUpper(level))
	l = strings.TrimPrefix(l, "H")
	n, err := strconv.Atoi(l)
	if err != nil || n < 1 {
		return 99
	}
	return n
}

// Resolution is attached to every result item that names a document.
// Exactly one of ResolvedDocument and Unavailable is set.
type Resolution struct {
	ResolvedDocument string    `json:"resolved_document,omitempty"`
	MatchTier        MatchTier `json:"match_tier,omitempty"`
	Unavailable      string    `json:"unavailable,omitempty"`
}

// DocumentOutline is the heading outline of one document.
type DocumentOutline struct {
	Filename string    `json:"filename"`
	Headings []Heading `json:"headings"`
	Resolution
}

// Section is one ranked section of a recommendation.
type Section struct {
	Document    string  `json:"document"`
	Page        int     `json:"page"`
	Title       string  `json:"title"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	RefinedText string  `json:"refined_text"`
	Resolution
}

// Recommendation is the persona-driven ranking of sections across the set.
type Recommendation struct {
	Persona  string         `json:"persona"`
	Job      string         `json:"job"`
	Sections []Section      `json:"sections"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Snippet is a passage related to a query, found in some document.
type Snippet struct {
	Text         string `json:"text"`
	DocumentName string `json:"document_name"`
	Page         int    `json:"page"`
	Resolution
}

// resolution resolves name against files. A failure is recorded on the item,
// never returned as an error: other items still render.
func resolution(files *FileSet, name string) (Resolution, bool) {
	d, tier, err := files.Resolve(name)
	if err != nil {
		return Resolution{Unavailable: err.Error()}, false
	}
	return Resolution{ResolvedDocument: d.Name, MatchTier: tier}, true
}
