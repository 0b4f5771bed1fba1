package format

import (
	"fmt"
	"strings"

	"gitre-go/internal/model"
)

const reviewHeader = "=== Proposed Commit Messages ==="

// Review renders the proposed messages for human inspection, pairing each
// with its original commit when available so the old and new messages sit
// side by side.
func Review(messages []model.GeneratedMessage, commits []model.CommitRecord) string {
	if len(messages) == 0 {
		return reviewHeader + "\n\nNo messages to display.\n"
	}

	commitByHash := make(map[string]model.CommitRecord, len(commits))
	for _, c := range commits {
		commitByHash[c.Hash] = c
	}

	var b strings.Builder
	b.WriteString(reviewHeader)
	b.WriteString("\n\n")

	for i, msg := range messages {
		fmt.Fprintf(&b, "--- Commit %d: %s ---\n", i+1, msg.ShortHash)

		if commit, ok := commitByHash[msg.Hash]; ok {
			fmt.Fprintf(&b, "Date:     %s\n", commit.Date.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(&b, "Author:   %s\n", commit.Author)
			b.WriteString("\n")
			fmt.Fprintf(&b, "Original: %s\n", commit.OriginalMessage)
		} else {
			b.WriteString("\n")
			fmt.Fprintf(&b, "Hash:     %s\n", msg.Hash)
		}

		fmt.Fprintf(&b, "Proposed: %s\n", msg.FullMessage())
		fmt.Fprintf(&b, "Category: [%s] %s\n", msg.ChangelogCategory, msg.ChangelogEntry)
		b.WriteString("\n")
	}
	return b.String()
}

// ReviewAndChangelog renders the review followed by the changelog, separated
// by a rule.
func ReviewAndChangelog(messages []model.GeneratedMessage, commits []model.CommitRecord, tags map[string]string, repoURL string) string {
	return Review(messages, commits) + "\n" + strings.Repeat("=", 60) + "\n\n" + Changelog(messages, tags, repoURL)
}
