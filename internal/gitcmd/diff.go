package gitcmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"gitre-go/internal/gitre"
	"gitre-go/internal/model"
)

// EmptyTreeHash is the well-known identity of git's empty tree, used as the
// diff base for root commits. It is the same in every repository and must be
// hardcoded, never computed.
const EmptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DefaultMaxPatchBytes caps the patch text attached to an enriched record.
const DefaultMaxPatchBytes = 50_000

const truncationMarker = "\n[diff truncated]"

// DiffExtractor computes diff statistics and patch text for single commits.
type DiffExtractor struct {
	runner        Runner
	logger        gitre.Logger
	maxPatchBytes int
}

func NewDiffExtractor(runner Runner, logger gitre.Logger, maxPatchBytes int) *DiffExtractor {
	if maxPatchBytes <= 0 {
		maxPatchBytes = DefaultMaxPatchBytes
	}
	return &DiffExtractor{runner: runner, logger: logger, maxPatchBytes: maxPatchBytes}
}

// Diff returns (statText, patchText) for a single commit.
//
// Root commits (no parent) are diffed against the empty tree. Merge commits
// (more than one parent) are intentionally skipped: merge diffs are noisy and
// rarely meaningful for message generation, so both outputs become a fixed
// omission notice instead.
func (d *DiffExtractor) Diff(ctx context.Context, repoPath, hash string) (string, string, error) {
	parents, err := d.parents(ctx, repoPath, hash)
	if err != nil {
		return "", "", err
	}

	if len(parents) > 1 {
		note := mergeNote(hash)
		return note, note, nil
	}

	base := EmptyTreeHash
	if len(parents) == 1 {
		base = parents[0]
	}

	stat, err := d.runner.RunChecked(ctx, repoPath, "git", "diff", "--stat", base, hash)
	if err != nil {
		return "", "", fmt.Errorf("git diff --stat: %w", err)
	}
	patch, err := d.runner.RunChecked(ctx, repoPath, "git", "diff", "--patch", base, hash)
	if err != nil {
		return "", "", fmt.Errorf("git diff --patch: %w", err)
	}
	return strings.TrimSpace(stat.Stdout), patch.Stdout, nil
}

// NumericStats parses git diff --numstat into (filesChanged, insertions,
// deletions). Binary files report "-" for their counts: they still increment
// filesChanged but contribute zero to the totals. Merge commits yield
// all-zero stats, matching the diff-skip policy.
func (d *DiffExtractor) NumericStats(ctx context.Context, repoPath, hash string) (int, int, int, error) {
	parents, err := d.parents(ctx, repoPath, hash)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(parents) > 1 {
		return 0, 0, 0, nil
	}

	base := EmptyTreeHash
	if len(parents) == 1 {
		base = parents[0]
	}

	res, err := d.runner.RunChecked(ctx, repoPath, "git", "diff", "--numstat", base, hash)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("git diff --numstat: %w", err)
	}

	var filesChanged, insertions, deletions int
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		filesChanged++
		if parts[0] != "-" {
			if n, err := strconv.Atoi(parts[0]); err == nil {
				insertions += n
			} else {
				d.logger.Warn("unparseable numstat insertion count", "line", clip(line, 120))
			}
		}
		if parts[1] != "-" {
			if n, err := strconv.Atoi(parts[1]); err == nil {
				deletions += n
			} else {
				d.logger.Warn("unparseable numstat deletion count", "line", clip(line, 120))
			}
		}
	}
	return filesChanged, insertions, deletions, nil
}

// Enrich implements gitre.Enricher: it computes the diff, truncates the patch
// to the configured byte limit, parses numeric stats, and returns a new
// record. The input record is never mutated.
func (d *DiffExtractor) Enrich(ctx context.Context, repoPath string, rec model.CommitRecord) (model.CommitRecord, error) {
	stat, patch, err := d.Diff(ctx, repoPath, rec.Hash)
	if err != nil {
		return model.CommitRecord{}, err
	}
	filesChanged, insertions, deletions, err := d.NumericStats(ctx, repoPath, rec.Hash)
	if err != nil {
		return model.CommitRecord{}, err
	}
	return rec.WithDiff(stat, TruncatePatch(patch, d.maxPatchBytes), filesChanged, insertions, deletions), nil
}

// parents returns the commit's parent hashes. The rev-parse ^@ suffix
// expands to nothing for a root commit, so the output may be empty.
func (d *DiffExtractor) parents(ctx context.Context, repoPath, hash string) ([]string, error) {
	res, err := d.runner.Run(ctx, repoPath, "git", "rev-parse", hash+"^@")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse %s^@: %w", hash, err)
	}
	var parents []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if p := strings.TrimSpace(line); p != "" {
			parents = append(parents, p)
		}
	}
	return parents, nil
}

// TruncatePatch caps patch at maxBytes of UTF-8. Text at or under the limit
// is returned byte-identical. When truncation is needed, the cut backs up to
// the previous rune boundary so the kept portion never exceeds maxBytes, then
// the marker suffix is appended.
func TruncatePatch(patch string, maxBytes int) string {
	if len(patch) <= maxBytes {
		return patch
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(patch[cut]) {
		cut--
	}
	return patch[:cut] + truncationMarker
}

func mergeNote(hash string) string {
	short := hash
	if len(short) > 10 {
		short = short[:10]
	}
	return fmt.Sprintf("[merge commit %s — diff omitted]", short)
}
