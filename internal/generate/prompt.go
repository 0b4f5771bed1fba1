package generate

import (
	"fmt"
	"strings"

	"gitre-go/internal/model"
)

const systemPrompt = "You are a git commit message analyst. Your job is to analyze git diffs " +
	"and generate clear, conventional commit messages in imperative mood " +
	"(e.g. 'Add feature', not 'Added feature') and changelog entries. " +
	"Always respond with ONLY valid JSON — no prose, no markdown fences, " +
	"no explanation."

// maxPromptDiffChars caps the diff text embedded in a prompt so a huge patch
// cannot blow up the model's context window. Character-based, unlike the
// byte-based record-level truncation in gitcmd.
const maxPromptDiffChars = 200_000

const singleSchemaBlock = "{\n" +
	"    \"subject\": \"imperative mood commit message, max 72 chars\",\n" +
	"    \"body\": \"optional extended description or null\",\n" +
	"    \"changelog_category\": \"Added|Changed|Fixed|Removed|Deprecated|Security\",\n" +
	"    \"changelog_entry\": \"human-readable changelog entry\"\n" +
	"}"

// singlePrompt builds the analysis prompt for one commit: metadata, diff
// statistics, and the (capped) patch, followed by the response schema.
func singlePrompt(commit model.CommitRecord) string {
	var b strings.Builder
	b.WriteString("Analyze the following git commit and generate:\n")
	b.WriteString("1. A proper commit message (imperative mood, subject <72 chars, optional body)\n")
	b.WriteString("2. A changelog category (Added/Changed/Fixed/Removed/Deprecated/Security)\n")
	b.WriteString("3. A changelog entry (1-2 sentences)\n\n")
	writeCommitSection(&b, commit, "## ")
	b.WriteString("\nRespond with ONLY a JSON object:\n")
	b.WriteString(singleSchemaBlock)
	return b.String()
}

// batchPrompt builds a prompt covering several commits, instructing the
// model to return a JSON array in the same order.
func batchPrompt(commits []model.CommitRecord) string {
	var b strings.Builder
	b.WriteString("Analyze the following git commits and generate for EACH commit:\n")
	b.WriteString("1. A proper commit message (imperative mood, subject <72 chars, optional body)\n")
	b.WriteString("2. A changelog category (Added/Changed/Fixed/Removed/Deprecated/Security)\n")
	b.WriteString("3. A changelog entry (1-2 sentences)\n\n")
	b.WriteString("Return a JSON **array** with one object per commit, in the SAME ORDER ")
	b.WriteString("as they appear below. Each object must have the keys: ")
	b.WriteString("\"subject\", \"body\", \"changelog_category\", \"changelog_entry\".\n")

	for i, commit := range commits {
		fmt.Fprintf(&b, "\n---\n## Commit %d of %d\n", i+1, len(commits))
		writeCommitSection(&b, commit, "### ")
	}

	b.WriteString("\n---\n")
	b.WriteString("Respond with ONLY a JSON array (one object per commit, same order):\n")
	b.WriteString("[\n  {\n")
	b.WriteString("    \"subject\": \"...\",\n")
	b.WriteString("    \"body\": \"... or null\",\n")
	b.WriteString("    \"changelog_category\": \"Added|Changed|Fixed|Removed|Deprecated|Security\",\n")
	b.WriteString("    \"changelog_entry\": \"...\"\n")
	b.WriteString("  },\n  ...\n]")
	return b.String()
}

// labelPrompt is the simplified prompt for staged changes: no commit
// metadata since the changes have not been committed yet.
func labelPrompt(diffStat, diffPatch string) string {
	var b strings.Builder
	b.WriteString("Analyze the following staged git changes and generate:\n")
	b.WriteString("1. A proper commit message (imperative mood, subject <72 chars, optional body)\n")
	b.WriteString("2. A changelog category (Added/Changed/Fixed/Removed/Deprecated/Security)\n")
	b.WriteString("3. A changelog entry (1-2 sentences)\n\n")
	fmt.Fprintf(&b, "## Diff Statistics\n%s\n\n## Diff\n%s\n", diffStat, capPromptDiff(diffPatch))
	b.WriteString("\nRespond with ONLY a JSON object:\n")
	b.WriteString(singleSchemaBlock)
	return b.String()
}

func writeCommitSection(b *strings.Builder, commit model.CommitRecord, heading string) {
	tags := "none"
	if len(commit.Tags) > 0 {
		tags = strings.Join(commit.Tags, ", ")
	}
	fmt.Fprintf(b, "- Hash: %s\n", commit.ShortHash)
	fmt.Fprintf(b, "- Author: %s\n", commit.Author)
	fmt.Fprintf(b, "- Date: %s\n", commit.Date.Format("2006-01-02 15:04:05 -07:00"))
	fmt.Fprintf(b, "- Original message: %s\n", commit.OriginalMessage)
	fmt.Fprintf(b, "- Files changed: %d (%d insertions, %d deletions)\n", commit.FilesChanged, commit.Insertions, commit.Deletions)
	fmt.Fprintf(b, "- Tags: %s\n", tags)
	fmt.Fprintf(b, "\n%sDiff Statistics\n%s\n", heading, commit.DiffStat)
	fmt.Fprintf(b, "\n%sDiff\n%s\n", heading, capPromptDiff(commit.DiffPatch))
}

func capPromptDiff(patch string) string {
	runes := []rune(patch)
	if len(runes) <= maxPromptDiffChars {
		return patch
	}
	return string(runes[:maxPromptDiffChars]) + "\n\n[... diff truncated for size ...]"
}
