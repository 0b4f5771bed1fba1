package gitre

import (
	"context"
	"time"

	"gitre-go/internal/model"
)

// Walker produces commit records from a repository's history.
type Walker interface {
	// ListCommits returns commits in the given range, oldest first. Both
	// refs empty means full history reachable from HEAD; fromRef alone
	// means fromRef..HEAD; toRef alone means everything reachable from
	// toRef; both mean fromRef..toRef. Returned records have placeholder
	// diff fields.
	ListCommits(ctx context.Context, repoPath, fromRef, toRef string) ([]model.CommitRecord, error)
	// HeadHash returns the full hash of the repository's current HEAD.
	HeadHash(ctx context.Context, repoPath string) (string, error)
}

// Enricher populates a commit record's diff fields, returning a new record.
type Enricher interface {
	Enrich(ctx context.Context, repoPath string, rec model.CommitRecord) (model.CommitRecord, error)
}

// GenerationResult carries the generated messages for a batch of commits
// plus aggregate usage accounting.
type GenerationResult struct {
	Messages    []model.GeneratedMessage
	TotalTokens int
	TotalCost   float64
}

// Generator turns enriched commit records into generated messages, one per
// commit, in the same order.
type Generator interface {
	GenerateBatch(ctx context.Context, commits []model.CommitRecord) (GenerationResult, error)
}

// RewriteReceipt describes a completed history rewrite: the backup branch
// created beforehand and the new subject applied per short hash.
type RewriteReceipt struct {
	BackupBranch string
	Subjects     map[string]string
}

// Rewriter permanently rewrites commit messages in a repository.
type Rewriter interface {
	// Rewrite applies the messages in a single pass, keyed by each
	// commit's pre-rewrite full hash. A backup branch is created first.
	Rewrite(ctx context.Context, repoPath string, messages []model.GeneratedMessage) (RewriteReceipt, error)
	// Available reports whether the rewrite tool can be invoked. A probe
	// that hangs is treated the same as a missing tool.
	Available(ctx context.Context) bool
	// InstallInstructions returns platform-specific guidance for
	// installing the rewrite tool. Advisory only.
	InstallInstructions() string
	// ForcePush force-pushes the current branch to the first configured
	// remote. Fails with ErrNoRemote when no remotes exist.
	ForcePush(ctx context.Context, repoPath string) error
}

// AnalysisStore persists and reloads analysis snapshots for a repository.
type AnalysisStore interface {
	Save(repoPath string, result model.AnalysisResult) error
	// Load fails with a not-found error when no snapshot exists, and with
	// a validation error when the stored data does not match the schema.
	Load(repoPath string) (model.AnalysisResult, error)
	// Validate compares the snapshot's recorded head hash against the
	// repository's live HEAD. A mismatch is reported as stale with an
	// explanatory message; it does not invalidate the snapshot.
	Validate(ctx context.Context, repoPath string, result model.AnalysisResult) (bool, string)
	Clear(repoPath string) error
}

// Run is one recorded CLI invocation.
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunStore records CLI invocations for the history command.
type RunStore interface {
	CreateRun(operation, parameters string) (int64, error)
	FinishRun(id int64, status string) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]Run, error)
	Close() error
}
