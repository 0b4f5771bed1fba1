package gitcmd

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gitre-go/internal/gitre"
	"gitre-go/internal/model"
)

// Separators for the custom git log format. Chosen to be implausible in
// ordinary commit content; the message is the last field of a bounded split,
// so content echoing part of a separator still parses.
const (
	fieldSep  = "---GITRE_SEP---"
	recordSep = "---GITRE_RECORD---"
)

// Per-commit fields: full hash, short hash, author, ISO-8601 author date,
// raw subject+body.
const logFormat = "%H" + fieldSep + "%h" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%B"

// tzColonRe matches the colon form of a timezone offset (+HH:MM) at the end
// of a date string.
var tzColonRe = regexp.MustCompile(`([+-]\d{2}):(\d{2})$`)

// HistoryWalker lists commits by invoking git log with the custom record
// format and resolving tag annotations per commit.
type HistoryWalker struct {
	runner Runner
	logger gitre.Logger
	clock  gitre.Clock
}

func NewHistoryWalker(runner Runner, logger gitre.Logger, clock gitre.Clock) *HistoryWalker {
	return &HistoryWalker{runner: runner, logger: logger, clock: clock}
}

// ListCommits implements gitre.Walker. Malformed records are logged and
// skipped; one bad commit never aborts a full-history walk.
func (w *HistoryWalker) ListCommits(ctx context.Context, repoPath, fromRef, toRef string) ([]model.CommitRecord, error) {
	var revRange string
	switch {
	case fromRef != "" && toRef != "":
		revRange = fromRef + ".." + toRef
	case fromRef != "":
		revRange = fromRef + "..HEAD"
	case toRef != "":
		revRange = toRef
	default:
		revRange = "HEAD"
	}

	res, err := w.runner.RunChecked(ctx, repoPath, "git",
		"log", "--reverse", "--format="+recordSep+logFormat, revRange)
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil, nil
	}

	var commits []model.CommitRecord
	for _, record := range strings.Split(res.Stdout, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		// Bounded split: the message field may contain anything.
		parts := strings.SplitN(record, fieldSep, 5)
		if len(parts) < 5 {
			w.logger.Warn("skipping malformed log record", "record", clip(record, 120))
			continue
		}

		hash := strings.TrimSpace(parts[0])
		commits = append(commits, model.CommitRecord{
			Hash:            hash,
			ShortHash:       strings.TrimSpace(parts[1]),
			Author:          strings.TrimSpace(parts[2]),
			Date:            w.parseDate(strings.TrimSpace(parts[3])),
			OriginalMessage: strings.TrimSpace(parts[4]),
			Tags:            w.tagsFor(ctx, repoPath, hash),
		})
	}
	return commits, nil
}

// HeadHash implements gitre.Walker.
func (w *HistoryWalker) HeadHash(ctx context.Context, repoPath string) (string, error) {
	res, err := w.runner.RunChecked(ctx, repoPath, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// parseDate parses the ISO-8601 date emitted by git log --format=%aI.
// Falls back to a colon-stripped offset parse, then to the current time
// with a warning. A bad date never fails the walk.
func (w *HistoryWalker) parseDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	cleaned := tzColonRe.ReplaceAllString(s, "$1$2")
	if t, err := time.Parse("2006-01-02T15:04:05-0700", cleaned); err == nil {
		return t
	}
	w.logger.Warn("could not parse commit date; using current time", "date", s)
	return w.clock.Now()
}

// tagsFor returns the tags pointing at the commit. Lookup failure is treated
// as "no tags".
func (w *HistoryWalker) tagsFor(ctx context.Context, repoPath, hash string) []string {
	res, err := w.runner.Run(ctx, repoPath, "git", "tag", "--points-at", hash)
	if err != nil || res.ExitCode != 0 {
		w.logger.Debug("tag lookup failed", "hash", hash)
		return nil
	}
	var tags []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
