// Package rewrite permanently rewrites commit messages in a repository via
// git filter-repo, with a backup branch taken first and remotes saved and
// restored around the run (filter-repo strips them).
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"gitre-go/internal/gitcmd"
	"gitre-go/internal/gitre"
	"gitre-go/internal/model"
)

// ErrToolNotInstalled is returned when git filter-repo cannot be invoked.
var ErrToolNotInstalled = errors.New("git filter-repo is not installed")

// ErrNoRemote is returned by ForcePush when the repository has no remotes.
var ErrNoRemote = errors.New("repository has no configured remotes")

const (
	defaultBranchPrefix = "gitre-backup-"
	probeTimeout        = 15 * time.Second
)

// HistoryRewriter drives git filter-repo. It implements gitre.Rewriter.
type HistoryRewriter struct {
	runner       gitcmd.Runner
	logger       gitre.Logger
	reporter     gitre.Reporter
	clock        gitre.Clock
	branchPrefix string
}

func NewHistoryRewriter(runner gitcmd.Runner, logger gitre.Logger, reporter gitre.Reporter, clock gitre.Clock, branchPrefix string) *HistoryRewriter {
	if logger == nil {
		logger = gitre.NopLogger{}
	}
	if reporter == nil {
		reporter = gitre.NopReporter{}
	}
	if branchPrefix == "" {
		branchPrefix = defaultBranchPrefix
	}
	return &HistoryRewriter{
		runner:       runner,
		logger:       logger,
		reporter:     reporter,
		clock:        clock,
		branchPrefix: branchPrefix,
	}
}

// Available probes `git filter-repo --version` with a hard timeout. A probe
// that hangs, cannot start, or exits non-zero all count as unavailable.
func (r *HistoryRewriter) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res, err := r.runner.Run(ctx, "", "git", "filter-repo", "--version")
	if err != nil {
		r.logger.Debug("filter-repo probe failed", "error", err)
		return false
	}
	return res.ExitCode == 0
}

// InstallInstructions returns install guidance for the current platform.
func (r *HistoryRewriter) InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install git-filter-repo with: brew install git-filter-repo"
	case "linux":
		return "Install git-filter-repo with your package manager:\n" +
			"  apt install git-filter-repo\n" +
			"  dnf install git-filter-repo\n" +
			"  pacman -S git-filter-repo\n" +
			"or: pip install git-filter-repo"
	default:
		return "Install git-filter-repo with: pip install git-filter-repo\n" +
			"or on Windows: scoop install git-filter-repo"
	}
}

// Rewrite applies the generated messages in a single filter-repo pass, keyed
// by each commit's pre-rewrite full hash. The backup branch name is returned
// in the receipt and repeated in any error so recovery is always possible.
func (r *HistoryRewriter) Rewrite(ctx context.Context, repoPath string, messages []model.GeneratedMessage) (gitre.RewriteReceipt, error) {
	if !r.Available(ctx) {
		return gitre.RewriteReceipt{}, fmt.Errorf("%w\n%s", ErrToolNotInstalled, r.InstallInstructions())
	}

	backup, err := r.createBackup(ctx, repoPath)
	if err != nil {
		return gitre.RewriteReceipt{}, fmt.Errorf("creating backup branch: %w", err)
	}
	r.reporter.Step(fmt.Sprintf("Created backup branch %s", backup))
	r.logger.Info("created backup branch", "branch", backup)

	hashMap := make(map[string]string, len(messages))
	subjects := make(map[string]string, len(messages))
	for _, msg := range messages {
		hashMap[msg.Hash] = msg.FullMessage()
		subjects[msg.ShortHash] = msg.Subject
	}

	remotes, err := r.saveRemotes(ctx, repoPath)
	if err != nil {
		return gitre.RewriteReceipt{}, fmt.Errorf("saving remotes: %w", err)
	}

	callbackFile, err := writeCallbackFile(hashMap)
	if err != nil {
		return gitre.RewriteReceipt{}, fmt.Errorf("writing commit callback: %w", err)
	}
	defer os.Remove(callbackFile)

	r.reporter.Step(fmt.Sprintf("Rewriting %d commit messages", len(messages)))
	if _, err := r.runner.RunChecked(ctx, repoPath, "git", "filter-repo", "--force", "--commit-callback", callbackFile); err != nil {
		return gitre.RewriteReceipt{}, fmt.Errorf(
			"filter-repo failed, restore with: git reset --hard %s (%w)", backup, err)
	}

	if err := r.restoreRemotes(ctx, repoPath, remotes); err != nil {
		return gitre.RewriteReceipt{}, fmt.Errorf(
			"rewrite succeeded (backup %s) but restoring remotes failed: %w", backup, err)
	}

	return gitre.RewriteReceipt{BackupBranch: backup, Subjects: subjects}, nil
}

// createBackup creates a timestamped branch at the current HEAD.
func (r *HistoryRewriter) createBackup(ctx context.Context, repoPath string) (string, error) {
	name := r.branchPrefix + r.clock.Now().UTC().Format("20060102T150405Z")
	if _, err := r.runner.RunChecked(ctx, repoPath, "git", "branch", name); err != nil {
		return "", err
	}
	return name, nil
}

// saveRemotes captures the repository's remote names and fetch URLs so they
// can be re-added after filter-repo removes them.
func (r *HistoryRewriter) saveRemotes(ctx context.Context, repoPath string) (map[string]string, error) {
	res, err := r.runner.RunChecked(ctx, repoPath, "git", "remote", "-v")
	if err != nil {
		return nil, err
	}

	remotes := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasSuffix(line, "(fetch)") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		url := strings.TrimSpace(strings.TrimSuffix(parts[1], "(fetch)"))
		remotes[parts[0]] = url
	}
	return remotes, nil
}

// restoreRemotes re-adds the saved remotes and, when origin is among them,
// restores the current branch's upstream.
func (r *HistoryRewriter) restoreRemotes(ctx context.Context, repoPath string, remotes map[string]string) error {
	for name, url := range remotes {
		if _, err := r.runner.RunChecked(ctx, repoPath, "git", "remote", "add", name, url); err != nil {
			return fmt.Errorf("re-adding remote %s: %w", name, err)
		}
		r.logger.Info("restored remote", "name", name, "url", url)
	}

	if _, hasOrigin := remotes["origin"]; !hasOrigin {
		return nil
	}
	res, err := r.runner.RunChecked(ctx, repoPath, "git", "branch", "--show-current")
	if err != nil {
		return fmt.Errorf("reading current branch: %w", err)
	}
	branch := strings.TrimSpace(res.Stdout)
	if branch == "" {
		return nil
	}
	// Upstream tracking is best effort: origin may not have the branch yet.
	if _, err := r.runner.Run(ctx, repoPath, "git", "branch", "--set-upstream-to", "origin/"+branch); err != nil {
		r.logger.Warn("could not restore upstream tracking", "branch", branch, "error", err)
	}
	return nil
}

// ForcePush force-pushes the current branch to the first configured remote.
func (r *HistoryRewriter) ForcePush(ctx context.Context, repoPath string) error {
	branchRes, err := r.runner.RunChecked(ctx, repoPath, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return fmt.Errorf("resolving current branch: %w", err)
	}
	branch := strings.TrimSpace(branchRes.Stdout)

	remoteRes, err := r.runner.RunChecked(ctx, repoPath, "git", "remote")
	if err != nil {
		return fmt.Errorf("listing remotes: %w", err)
	}
	remotes := strings.Fields(remoteRes.Stdout)
	if len(remotes) == 0 {
		return ErrNoRemote
	}

	r.reporter.Step(fmt.Sprintf("Force-pushing %s to %s", branch, remotes[0]))
	if _, err := r.runner.RunChecked(ctx, repoPath, "git", "push", "--force", remotes[0], branch); err != nil {
		return fmt.Errorf("force push to %s: %w", remotes[0], err)
	}
	return nil
}

// buildCommitCallback emits the Python snippet filter-repo executes per
// commit: a literal hash-to-message dict plus a lookup on the commit's
// original (pre-rewrite) id. Commits outside the map keep their message, so
// N commits with identical original text are still rewritten independently.
func buildCommitCallback(hashMap map[string]string) string {
	hashes := make([]string, 0, len(hashMap))
	for h := range hashMap {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	var b strings.Builder
	b.WriteString("HASH_MAP = {\n")
	for _, h := range hashes {
		fmt.Fprintf(&b, "    \"%s\": \"%s\",\n", h, pyQuote(hashMap[h]))
	}
	b.WriteString("}\n")
	b.WriteString("original = commit.original_id.decode(\"utf-8\")\n")
	b.WriteString("if original in HASH_MAP:\n")
	b.WriteString("    commit.message = HASH_MAP[original].encode(\"utf-8\") + b\"\\n\"\n")
	return b.String()
}

func writeCallbackFile(hashMap map[string]string) (string, error) {
	f, err := os.CreateTemp("", "gitre_callback_*.py")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(buildCommitCallback(hashMap)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// pyQuote escapes a string for use inside a double-quoted Python literal.
func pyQuote(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return replacer.Replace(s)
}
