// Package format renders generated messages into human-readable output: a
// Keep a Changelog document and a side-by-side commit message review.
package format

import (
	"fmt"
	"strings"

	"gitre-go/internal/model"
)

const changelogPreamble = "# Changelog\n\n" +
	"All notable changes to this project will be documented in this file.\n"

// Changelog renders messages as a Keep a Changelog document. Messages are
// assumed newest-first. tags maps full commit hashes to version strings;
// untagged commits land under "Unreleased". repoURL, when non-empty, is used
// for comparison links at the bottom.
func Changelog(messages []model.GeneratedMessage, tags map[string]string, repoURL string) string {
	if len(messages) == 0 {
		return changelogPreamble + "\n## [Unreleased]\n\nNo changes yet.\n"
	}

	versions, groups := groupByVersion(messages, tags)

	var b strings.Builder
	b.WriteString(changelogPreamble)
	b.WriteString("\n")

	for _, version := range versions {
		fmt.Fprintf(&b, "## [%s]\n\n", version)
		b.WriteString(renderCategories(groups[version]))
	}

	if repoURL != "" {
		if links := comparisonLinks(versions, repoURL); links != "" {
			b.WriteString(links)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// groupByVersion buckets messages by the tag on their commit, preserving the
// order versions first appear in the message list.
func groupByVersion(messages []model.GeneratedMessage, tags map[string]string) ([]string, map[string][]model.GeneratedMessage) {
	var versions []string
	groups := make(map[string][]model.GeneratedMessage)

	for _, msg := range messages {
		version, ok := tags[msg.Hash]
		if !ok {
			version = "Unreleased"
		}
		if _, seen := groups[version]; !seen {
			versions = append(versions, version)
		}
		groups[version] = append(groups[version], msg)
	}
	return versions, groups
}

// renderCategories emits the "### Category" bullet blocks for one version, in
// the fixed Keep a Changelog category order. Empty categories are skipped.
func renderCategories(entries []model.GeneratedMessage) string {
	byCategory := make(map[string][]string)
	for _, msg := range entries {
		byCategory[msg.ChangelogCategory] = append(byCategory[msg.ChangelogCategory], msg.ChangelogEntry)
	}

	var b strings.Builder
	for _, cat := range model.ChangelogCategories {
		items, ok := byCategory[cat]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", cat)
		for _, entry := range items {
			fmt.Fprintf(&b, "- %s\n", entry)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// comparisonLinks emits the reference-style link definitions at the bottom of
// the changelog: each version compared against the one before it, Unreleased
// compared against the most recent tag.
func comparisonLinks(versions []string, repoURL string) string {
	repoURL = strings.TrimRight(repoURL, "/")

	var lines []string
	for i, version := range versions {
		next := ""
		if i+1 < len(versions) {
			next = versions[i+1]
		}
		switch {
		case version == "Unreleased" && next != "":
			lines = append(lines, fmt.Sprintf("[Unreleased]: %s/compare/%s...HEAD", repoURL, next))
		case version == "Unreleased":
			lines = append(lines, fmt.Sprintf("[Unreleased]: %s/commits/HEAD", repoURL))
		case next == "Unreleased":
			// Out-of-order data; no sensible comparison target.
		case next != "":
			lines = append(lines, fmt.Sprintf("[%s]: %s/compare/%s...%s", version, repoURL, next, version))
		default:
			lines = append(lines, fmt.Sprintf("[%s]: %s/releases/tag/%s", version, repoURL, version))
		}
	}
	return strings.Join(lines, "\n")
}
