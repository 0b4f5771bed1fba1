package gitre

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gitre-go/internal/model"
)

// Service is the orchestration layer that coordinates walking, enrichment,
// generation, persistence, and rewriting for the CLI.
type Service struct {
	walker    Walker
	enricher  Enricher
	generator Generator
	rewriter  Rewriter
	analyses  AnalysisStore
	logger    Logger
	reporter  Reporter
	clock     Clock
	batchSize int
	workers   int
}

// NewService creates a Service with the provided dependencies. batchSize is
// the number of commits sent to the generator per request; workers bounds the
// number of concurrent diff enrichments. Values below 1 are treated as 1.
func NewService(walker Walker, enricher Enricher, generator Generator, rewriter Rewriter, analyses AnalysisStore, logger Logger, reporter Reporter, clock Clock, batchSize, workers int) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Service{
		walker:    walker,
		enricher:  enricher,
		generator: generator,
		rewriter:  rewriter,
		analyses:  analyses,
		logger:    logger,
		reporter:  reporter,
		clock:     clock,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Analyze walks the commit range, enriches each commit with its diff,
// generates replacement messages, and persists the resulting snapshot.
// It returns the snapshot together with the enriched commit records so the
// caller can display originals side by side with proposals.
func (s *Service) Analyze(ctx context.Context, repoPath, fromRef, toRef string) (model.AnalysisResult, []model.CommitRecord, error) {
	head, err := s.walker.HeadHash(ctx, repoPath)
	if err != nil {
		return model.AnalysisResult{}, nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	s.reporter.Step(fmt.Sprintf("Walking history of %s", repoPath))
	commits, err := s.walker.ListCommits(ctx, repoPath, fromRef, toRef)
	if err != nil {
		return model.AnalysisResult{}, nil, fmt.Errorf("listing commits: %w", err)
	}
	s.logger.Info("commits listed", "count", len(commits), "from", fromRef, "to", toRef)

	if len(commits) == 0 {
		result := model.AnalysisResult{
			RepoPath:   repoPath,
			HeadHash:   head,
			FromRef:    fromRef,
			ToRef:      toRef,
			Messages:   []model.GeneratedMessage{},
			Tags:       map[string]string{},
			AnalyzedAt: s.clock.Now(),
		}
		return result, nil, nil
	}

	s.reporter.Step(fmt.Sprintf("Computing diffs for %d commit(s)", len(commits)))
	enriched, err := s.enrichAll(ctx, repoPath, commits)
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}

	s.reporter.Step("Generating commit messages")
	gen, err := s.generateAll(ctx, enriched)
	if err != nil {
		return model.AnalysisResult{}, nil, fmt.Errorf("generating messages: %w", err)
	}

	result := model.AnalysisResult{
		RepoPath:        repoPath,
		HeadHash:        head,
		FromRef:         fromRef,
		ToRef:           toRef,
		CommitsAnalyzed: len(enriched),
		Messages:        gen.Messages,
		Tags:            tagIndex(enriched),
		TotalTokens:     gen.TotalTokens,
		TotalCost:       gen.TotalCost,
		AnalyzedAt:      s.clock.Now(),
	}

	if err := s.analyses.Save(repoPath, result); err != nil {
		return model.AnalysisResult{}, nil, fmt.Errorf("saving analysis: %w", err)
	}
	s.reporter.Success(fmt.Sprintf("Analyzed %d commit(s)", len(enriched)))

	return result, enriched, nil
}

// enrichAll computes diffs for all commits with a bounded worker pool.
// Each enrichment reads only immutable git objects, so concurrent runs are
// safe; output order matches input order by index.
func (s *Service) enrichAll(ctx context.Context, repoPath string, commits []model.CommitRecord) ([]model.CommitRecord, error) {
	enriched := make([]model.CommitRecord, len(commits))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range commits {
		i, c := i, c
		g.Go(func() error {
			rec, err := s.enricher.Enrich(ctx, repoPath, c)
			if err != nil {
				return fmt.Errorf("enriching commit %s: %w", c.ShortHash, err)
			}
			enriched[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}

// generateAll sends the enriched commits to the generator in batchSize-sized
// chunks, preserving order and summing usage across chunks.
func (s *Service) generateAll(ctx context.Context, enriched []model.CommitRecord) (GenerationResult, error) {
	all := GenerationResult{Messages: make([]model.GeneratedMessage, 0, len(enriched))}
	for start := 0; start < len(enriched); start += s.batchSize {
		end := min(start+s.batchSize, len(enriched))
		gen, err := s.generator.GenerateBatch(ctx, enriched[start:end])
		if err != nil {
			return GenerationResult{}, err
		}
		all.Messages = append(all.Messages, gen.Messages...)
		all.TotalTokens += gen.TotalTokens
		all.TotalCost += gen.TotalCost
	}
	return all, nil
}

// Rewrite checks the snapshot's freshness (stale is a warning, not a block)
// and applies the generated messages to the repository in one pass. All
// repository-mutating steps run strictly sequentially inside the rewriter.
func (s *Service) Rewrite(ctx context.Context, repoPath string, result model.AnalysisResult) (RewriteReceipt, error) {
	if ok, warning := s.analyses.Validate(ctx, repoPath, result); !ok {
		s.reporter.Warn(warning)
		s.logger.Warn("analysis snapshot is stale", "detail", warning)
	}

	receipt, err := s.rewriter.Rewrite(ctx, repoPath, result.Messages)
	if err != nil {
		return receipt, err
	}
	s.logger.Info("history rewritten", "commits", len(receipt.Subjects), "backup", receipt.BackupBranch)
	return receipt, nil
}

// tagIndex maps commit hash to a single tag per commit. When a commit has
// several tags, the first reported by git is retained.
func tagIndex(commits []model.CommitRecord) map[string]string {
	tags := map[string]string{}
	for _, c := range commits {
		if len(c.Tags) > 0 {
			tags[c.Hash] = c.Tags[0]
		}
	}
	return tags
}
