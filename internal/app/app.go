package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitre-go/internal/cache"
	"gitre-go/internal/config"
	"gitre-go/internal/format"
	"gitre-go/internal/generate"
	"gitre-go/internal/gitcmd"
	"gitre-go/internal/gitre"
	"gitre-go/internal/llm"
	"gitre-go/internal/model"
	"gitre-go/internal/rewrite"
	"gitre-go/internal/runstore"
)

// GitreApp is the application layer between the CLI and the pipeline Service.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the run record and log file lifecycle on Close.
type GitreApp struct {
	cfg       *config.Config
	service   *gitre.Service
	generator *generate.MessageGenerator
	rewriter  *rewrite.HistoryRewriter
	analyses  *cache.Store
	runs      gitre.RunStore
	runner    gitcmd.Runner
	reporter  gitre.Reporter
	logger    gitre.Logger
	logFile   *os.File
	run       *RunRecord
}

// NewGitreApp creates a fully wired GitreApp from the given config.
// operation identifies the CLI command being run (e.g. "analyze", "rewrite").
// The caller must call Close when done.
func NewGitreApp(cfg *config.Config, operation, parameters string) (*GitreApp, error) {
	opID := gitre.UUIDGenerator{}.New()
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	runs, err := newRunStore(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening run database: %w", err)
	}

	reporter := NewConsoleReporter(os.Stdout)
	runner := gitcmd.NewExecRunner(logger)
	clock := gitre.RealClock{}

	walker := gitcmd.NewHistoryWalker(runner, logger, clock)
	enricher := gitcmd.NewDiffExtractor(runner, logger, cfg.Analysis.MaxDiffBytes)

	client := llm.NewAnthropicClient(llm.AnthropicConfig{
		BaseURL:            cfg.Model.BaseURL,
		APIKey:             apiKeyFromEnv(),
		Model:              cfg.Model.Name,
		MaxTokens:          cfg.Model.MaxTokens,
		InputPricePerMTok:  cfg.Model.InputPricePerMTok,
		OutputPricePerMTok: cfg.Model.OutputPricePerMTok,
	})
	generator := generate.NewMessageGenerator(client, logger)

	rewriter := rewrite.NewHistoryRewriter(runner, logger, reporter, clock, cfg.Rewrite.BackupBranchPrefix)
	analyses := cache.NewStore(runner)

	service := gitre.NewService(walker, enricher, generator, rewriter, analyses,
		logger, reporter, clock, cfg.Analysis.BatchSize, cfg.Analysis.Workers)

	return &GitreApp{
		cfg:       cfg,
		service:   service,
		generator: generator,
		rewriter:  rewriter,
		analyses:  analyses,
		runs:      runs,
		runner:    runner,
		reporter:  reporter,
		logger:    logger,
		logFile:   logFile,
		run:       NewRunRecord(operation, parameters),
	}, nil
}

// newRunStore opens the run database described by the config.
func newRunStore(cfg config.DatabaseConfig) (gitre.RunStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return runstore.Open(filepath.Join(cfg.DataDir, "runs.db"))
	case "memory":
		return runstore.Open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// apiKeyFromEnv reads the API key, preferring GITRE_API_KEY.
func apiKeyFromEnv() string {
	if key := os.Getenv("GITRE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// persistRun saves the run record to the database, giving it an ID. Only
// commands worth auditing call this.
func (a *GitreApp) persistRun() error {
	if a.run.Persisted() {
		return nil
	}
	id, err := a.runs.CreateRun(a.run.Operation, a.run.Parameters)
	if err != nil {
		return fmt.Errorf("persisting run record: %w", err)
	}
	a.run.ID = id
	return nil
}

// MarkError flags the current run as failed. Close persists the status.
func (a *GitreApp) MarkError() {
	a.run.Status = "error"
}

// Analyze walks the repository history, generates messages, and caches the
// resulting snapshot. Returns the snapshot and the enriched commits.
func (a *GitreApp) Analyze(ctx context.Context, repoPath, fromRef, toRef string) (model.AnalysisResult, []model.CommitRecord, error) {
	if err := a.persistRun(); err != nil {
		return model.AnalysisResult{}, nil, err
	}
	return a.service.Analyze(ctx, repoPath, fromRef, toRef)
}

// LoadAnalysis returns the cached snapshot for the repository.
func (a *GitreApp) LoadAnalysis(repoPath string) (model.AnalysisResult, error) {
	return a.analyses.Load(repoPath)
}

// RewriteOptions controls the rewrite flow. Only and Skip filter by short
// hash; ChangelogFile, when set, is written and committed alongside the
// analysis cache after the rewrite; Push force-pushes at the end.
type RewriteOptions struct {
	Only          []string
	Skip          []string
	ChangelogFile string
	Push          bool
}

// Rewrite applies the cached analysis to the repository history, then writes
// and commits the requested artifacts.
func (a *GitreApp) Rewrite(ctx context.Context, repoPath string, opts RewriteOptions) (gitre.RewriteReceipt, error) {
	if err := a.persistRun(); err != nil {
		return gitre.RewriteReceipt{}, err
	}
	result, err := a.analyses.Load(repoPath)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return gitre.RewriteReceipt{}, fmt.Errorf("no analysis found for %s: run analyze first", repoPath)
		}
		return gitre.RewriteReceipt{}, err
	}

	filtered := result
	filtered.Messages = FilterMessages(result.Messages, opts.Only, opts.Skip)
	if len(filtered.Messages) == 0 {
		return gitre.RewriteReceipt{}, fmt.Errorf("no commits to rewrite after applying filters")
	}

	receipt, err := a.service.Rewrite(ctx, repoPath, filtered)
	if err != nil {
		return receipt, err
	}

	if opts.ChangelogFile != "" {
		text := format.Changelog(newestFirst(filtered.Messages), result.Tags, "")
		if err := writeChangelogFile(repoPath, opts.ChangelogFile, text); err != nil {
			return receipt, err
		}
		a.reporter.Success(fmt.Sprintf("Changelog written to %s", opts.ChangelogFile))
	}

	if err := commitArtifacts(ctx, a.runner, a.reporter, repoPath, opts.ChangelogFile); err != nil {
		return receipt, err
	}

	if opts.Push {
		if err := a.rewriter.ForcePush(ctx, repoPath); err != nil {
			return receipt, err
		}
		a.reporter.Success("Pushed rewritten history to the remote")
	}

	return receipt, nil
}

// FilterMessages applies the --only and --skip short-hash filters, preserving
// order. Empty filters pass everything through.
func FilterMessages(messages []model.GeneratedMessage, only, skip []string) []model.GeneratedMessage {
	onlySet := hashSet(only)
	skipSet := hashSet(skip)

	out := make([]model.GeneratedMessage, 0, len(messages))
	for _, m := range messages {
		if len(onlySet) > 0 && !onlySet[m.ShortHash] {
			continue
		}
		if skipSet[m.ShortHash] {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hashSet(hashes []string) map[string]bool {
	set := map[string]bool{}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			set[h] = true
		}
	}
	return set
}

// writeChangelogFile writes the rendered changelog, resolving relative paths
// against the repository root.
func writeChangelogFile(repoPath, file, text string) error {
	target := file
	if !filepath.IsAbs(target) {
		target = filepath.Join(repoPath, target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("writing changelog: %w", err)
	}
	if err := os.WriteFile(target, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing changelog: %w", err)
	}
	return nil
}

// commitArtifacts stages and commits the analysis cache and the changelog
// file after a rewrite. No-op when nothing ends up staged.
func commitArtifacts(ctx context.Context, runner gitcmd.Runner, reporter gitre.Reporter, repoPath, changelogFile string) error {
	paths := []string{".gitre/"}
	if changelogFile != "" {
		target := changelogFile
		if filepath.IsAbs(target) {
			if rel, err := filepath.Rel(repoPath, target); err == nil {
				target = rel
			}
		}
		paths = append(paths, target)
	}

	if _, err := runner.RunChecked(ctx, repoPath, "git", append([]string{"add", "-f"}, paths...)...); err != nil {
		return fmt.Errorf("staging artifacts: %w", err)
	}

	// Exit 0 means the index matches HEAD, so there is nothing to commit.
	staged, err := runner.Run(ctx, repoPath, "git", "diff", "--cached", "--quiet")
	if err != nil {
		return fmt.Errorf("checking staged artifacts: %w", err)
	}
	if staged.ExitCode == 0 {
		return nil
	}

	if _, err := runner.RunChecked(ctx, repoPath, "git", "commit", "-m", "Add changelog and gitre analysis cache"); err != nil {
		return fmt.Errorf("committing artifacts: %w", err)
	}
	reporter.Success("Committed changelog and analysis cache")
	return nil
}

// Changelog renders the cached analysis as a Keep a Changelog document.
func (a *GitreApp) Changelog(repoPath, repoURL string) (string, error) {
	result, err := a.analyses.Load(repoPath)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", fmt.Errorf("no analysis found for %s: run analyze first", repoPath)
		}
		return "", err
	}
	return format.Changelog(newestFirst(result.Messages), result.Tags, repoURL), nil
}

// newestFirst returns the messages reversed for changelog display; the
// analysis stores them oldest first.
func newestFirst(messages []model.GeneratedMessage) []model.GeneratedMessage {
	out := make([]model.GeneratedMessage, len(messages))
	for i, m := range messages {
		out[len(messages)-1-i] = m
	}
	return out
}

// Label generates a commit message proposal for the staged changes.
func (a *GitreApp) Label(ctx context.Context, repoPath string) (model.GeneratedMessage, int, float64, error) {
	stat, patch, err := gitcmd.StagedDiff(ctx, a.runner, repoPath)
	if err != nil {
		return model.GeneratedMessage{}, 0, 0, err
	}
	return a.generator.Label(ctx, stat, patch)
}

// Push force-pushes the rewritten history to the first configured remote.
func (a *GitreApp) Push(ctx context.Context, repoPath string) error {
	if err := a.persistRun(); err != nil {
		return err
	}
	return a.rewriter.ForcePush(ctx, repoPath)
}

// History returns the most recent recorded runs.
func (a *GitreApp) History(limit int) ([]gitre.Run, error) {
	return a.runs.ListRuns(limit)
}

// CacheStatus describes the cached analysis for the repository: when it was
// taken, how many commits it covers, and whether it is still fresh.
func (a *GitreApp) CacheStatus(ctx context.Context, repoPath string) (string, error) {
	result, err := a.analyses.Load(repoPath)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "No cached analysis.", nil
		}
		return "", err
	}

	status := fmt.Sprintf("Analyzed %d commit(s) at %s (HEAD %s, %d tokens, $%.4f)",
		result.CommitsAnalyzed,
		result.AnalyzedAt.Format("2006-01-02 15:04:05"),
		shortHash(result.HeadHash),
		result.TotalTokens,
		result.TotalCost,
	)
	if ok, warning := a.analyses.Validate(ctx, repoPath, result); !ok {
		status += "\n" + warning
	}
	return status, nil
}

// CacheClear removes the cached analysis for the repository.
func (a *GitreApp) CacheClear(repoPath string) error {
	return a.analyses.Clear(repoPath)
}

// RewriterAvailable reports whether git filter-repo can be invoked, together
// with install guidance for when it cannot.
func (a *GitreApp) RewriterAvailable(ctx context.Context) (bool, string) {
	if a.rewriter.Available(ctx) {
		return true, ""
	}
	return false, a.rewriter.InstallInstructions()
}

// Reporter returns the console reporter for CLI-level messages.
func (a *GitreApp) Reporter() gitre.Reporter {
	return a.reporter
}

// Close finalizes the run record and closes all resources.
func (a *GitreApp) Close() error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.runs.FinishRun(a.run.ID, a.run.Status); err != nil {
			firstErr = fmt.Errorf("finishing run record: %w", err)
		}
	}

	if err := a.runs.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing run database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
