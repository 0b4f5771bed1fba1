package model

import (
	"fmt"
	"time"
)

// ChangelogCategories lists the accepted changelog categories, following the
// Keep a Changelog convention. No other values are valid.
var ChangelogCategories = []string{
	"Added",
	"Changed",
	"Deprecated",
	"Removed",
	"Fixed",
	"Security",
}

// ValidCategory reports whether category is one of the accepted changelog
// categories. The comparison is case-sensitive.
func ValidCategory(category string) bool {
	for _, c := range ChangelogCategories {
		if c == category {
			return true
		}
	}
	return false
}

// MaxSubjectLen is the maximum commit subject length in characters.
const MaxSubjectLen = 72

// CommitRecord is the raw information extracted from a single commit.
// Records are treated as immutable values: a freshly walked record has empty
// diff fields and zero counts; WithDiff returns an enriched copy.
type CommitRecord struct {
	Hash            string    // Full commit hash
	ShortHash       string    // Abbreviated hash
	Author          string    // "Name <email>" as emitted by git
	Date            time.Time // Author date, timezone offset preserved
	OriginalMessage string    // Subject and body as one block
	DiffStat        string
	DiffPatch       string
	FilesChanged    int
	Insertions      int
	Deletions       int
	Tags            []string // Tags pointing at this commit
}

// WithDiff returns a copy of the record with the diff fields populated.
// The receiver is left untouched.
func (c CommitRecord) WithDiff(stat, patch string, filesChanged, insertions, deletions int) CommitRecord {
	enriched := c
	enriched.DiffStat = stat
	enriched.DiffPatch = patch
	enriched.FilesChanged = filesChanged
	enriched.Insertions = insertions
	enriched.Deletions = deletions
	return enriched
}

// GeneratedMessage is a model-generated commit message and changelog entry
// for a single commit. Body is nil for one-line commits; the distinction
// between nil and empty string is preserved through serialization.
type GeneratedMessage struct {
	Hash              string  `json:"hash"`
	ShortHash         string  `json:"short_hash"`
	Subject           string  `json:"subject"`
	Body              *string `json:"body"`
	ChangelogCategory string  `json:"changelog_category"`
	ChangelogEntry    string  `json:"changelog_entry"`
}

// NewGeneratedMessage constructs a GeneratedMessage, enforcing the subject
// length limit and the changelog category enumeration. Unlike the lenient
// raw-JSON parsing path, construction rejects invalid values outright: this
// is the integrity gate for data that gets persisted and replayed into a
// history rewrite.
func NewGeneratedMessage(hash, shortHash, subject string, body *string, category, entry string) (GeneratedMessage, error) {
	if n := len([]rune(subject)); n > MaxSubjectLen {
		return GeneratedMessage{}, fmt.Errorf("subject must be %d characters or fewer, got %d", MaxSubjectLen, n)
	}
	if !ValidCategory(category) {
		return GeneratedMessage{}, fmt.Errorf("changelog_category must be one of %v, got %q", ChangelogCategories, category)
	}
	return GeneratedMessage{
		Hash:              hash,
		ShortHash:         shortHash,
		Subject:           subject,
		Body:              body,
		ChangelogCategory: category,
		ChangelogEntry:    entry,
	}, nil
}

// FullMessage returns the complete replacement message: subject alone, or
// subject and body separated by a blank line.
func (m GeneratedMessage) FullMessage() string {
	if m.Body != nil && *m.Body != "" {
		return m.Subject + "\n\n" + *m.Body
	}
	return m.Subject
}

// AnalysisResult is the persisted snapshot of one analysis run. HeadHash is
// the staleness contract: when the live repository's HEAD no longer matches,
// the result is flagged stale (not invalidated).
type AnalysisResult struct {
	RepoPath        string             `json:"repo_path"`
	HeadHash        string             `json:"head_hash"`
	FromRef         string             `json:"from_ref,omitempty"`
	ToRef           string             `json:"to_ref,omitempty"`
	CommitsAnalyzed int                `json:"commits_analyzed"`
	Messages        []GeneratedMessage `json:"messages"`
	Tags            map[string]string  `json:"tags"`
	TotalTokens     int                `json:"total_tokens"`
	TotalCost       float64            `json:"total_cost"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
}

// Validate checks the structural invariants of a loaded snapshot: the head
// hash must be present and every message must carry a valid category and a
// subject within the length limit.
func (r AnalysisResult) Validate() error {
	if r.HeadHash == "" {
		return fmt.Errorf("analysis result is missing head_hash")
	}
	if r.RepoPath == "" {
		return fmt.Errorf("analysis result is missing repo_path")
	}
	for i, m := range r.Messages {
		if !ValidCategory(m.ChangelogCategory) {
			return fmt.Errorf("message %d (%s): invalid changelog_category %q", i, m.ShortHash, m.ChangelogCategory)
		}
		if n := len([]rune(m.Subject)); n > MaxSubjectLen {
			return fmt.Errorf("message %d (%s): subject exceeds %d characters", i, m.ShortHash, MaxSubjectLen)
		}
	}
	return nil
}
