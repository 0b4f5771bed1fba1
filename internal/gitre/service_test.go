package gitre_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gitre-go/internal/gitre"
	"gitre-go/internal/model"
	"gitre-go/internal/testutil"
)

type fakeWalker struct {
	head    string
	commits []model.CommitRecord
	err     error
}

func (w *fakeWalker) ListCommits(_ context.Context, _, _, _ string) ([]model.CommitRecord, error) {
	return w.commits, w.err
}

func (w *fakeWalker) HeadHash(_ context.Context, _ string) (string, error) {
	return w.head, nil
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeEnricher) Enrich(_ context.Context, _ string, rec model.CommitRecord) (model.CommitRecord, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return model.CommitRecord{}, e.err
	}
	return rec.WithDiff("stat:"+rec.ShortHash, "patch:"+rec.ShortHash, 1, 2, 3), nil
}

type fakeGenerator struct {
	got     []model.CommitRecord
	batches [][]model.CommitRecord
	err     error
}

func (g *fakeGenerator) GenerateBatch(_ context.Context, commits []model.CommitRecord) (gitre.GenerationResult, error) {
	g.got = append(g.got, commits...)
	g.batches = append(g.batches, commits)
	if g.err != nil {
		return gitre.GenerationResult{}, g.err
	}
	messages := make([]model.GeneratedMessage, len(commits))
	for i, c := range commits {
		messages[i] = model.GeneratedMessage{
			Hash: c.Hash, ShortHash: c.ShortHash,
			Subject: "Rewritten " + c.ShortHash, ChangelogCategory: "Changed",
		}
	}
	return gitre.GenerationResult{Messages: messages, TotalTokens: 100, TotalCost: 0.01}, nil
}

type fakeRewriter struct {
	got     []model.GeneratedMessage
	receipt gitre.RewriteReceipt
	err     error
}

func (r *fakeRewriter) Rewrite(_ context.Context, _ string, messages []model.GeneratedMessage) (gitre.RewriteReceipt, error) {
	r.got = messages
	return r.receipt, r.err
}
func (r *fakeRewriter) Available(context.Context) bool          { return true }
func (r *fakeRewriter) InstallInstructions() string             { return "" }
func (r *fakeRewriter) ForcePush(context.Context, string) error { return nil }

type fakeAnalysisStore struct {
	saved   *model.AnalysisResult
	fresh   bool
	warning string
}

func (s *fakeAnalysisStore) Save(_ string, result model.AnalysisResult) error {
	s.saved = &result
	return nil
}
func (s *fakeAnalysisStore) Load(string) (model.AnalysisResult, error) {
	return model.AnalysisResult{}, errors.New("not implemented")
}
func (s *fakeAnalysisStore) Validate(context.Context, string, model.AnalysisResult) (bool, string) {
	return s.fresh, s.warning
}
func (s *fakeAnalysisStore) Clear(string) error { return nil }

type recordingReporter struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingReporter) Step(msg string)    { r.add("step: " + msg) }
func (r *recordingReporter) Warn(msg string)    { r.add("warn: " + msg) }
func (r *recordingReporter) Success(msg string) { r.add("success: " + msg) }
func (r *recordingReporter) add(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func sampleCommits(n int) []model.CommitRecord {
	out := make([]model.CommitRecord, n)
	for i := range out {
		hash := strings.Repeat(string(rune('a'+i)), 8)
		out[i] = model.CommitRecord{Hash: hash, ShortHash: hash[:4]}
	}
	return out
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()

	t.Run("full pipeline", func(t *testing.T) {
		walker := &fakeWalker{head: "headhash", commits: sampleCommits(3)}
		walker.commits[2].Tags = []string{"v1.0.0", "extra"}
		enricher := &fakeEnricher{}
		generator := &fakeGenerator{}
		store := &fakeAnalysisStore{}

		svc := gitre.NewService(walker, enricher, generator, &fakeRewriter{}, store,
			gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 10, 2)

		result, enriched, err := svc.Analyze(ctx, "/repo", "v0.1.0", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}

		if result.HeadHash != "headhash" {
			t.Errorf("HeadHash = %q", result.HeadHash)
		}
		if result.FromRef != "v0.1.0" {
			t.Errorf("FromRef = %q", result.FromRef)
		}
		if result.CommitsAnalyzed != 3 || len(result.Messages) != 3 {
			t.Errorf("analyzed %d, messages %d", result.CommitsAnalyzed, len(result.Messages))
		}
		if result.TotalTokens != 100 || result.TotalCost != 0.01 {
			t.Errorf("accounting = (%d, %v)", result.TotalTokens, result.TotalCost)
		}
		if !result.AnalyzedAt.Equal(testutil.FixedClock().Now()) {
			t.Errorf("AnalyzedAt = %v", result.AnalyzedAt)
		}

		// Enriched records keep input order and reach the generator.
		if len(enriched) != 3 {
			t.Fatalf("len(enriched) = %d", len(enriched))
		}
		for i, rec := range enriched {
			if rec.Hash != walker.commits[i].Hash {
				t.Errorf("enriched[%d].Hash = %q, want %q", i, rec.Hash, walker.commits[i].Hash)
			}
			if rec.DiffStat == "" {
				t.Errorf("enriched[%d] has no diff", i)
			}
		}
		if len(generator.got) != 3 || generator.got[0].DiffStat == "" {
			t.Error("generator did not receive enriched commits")
		}

		// First tag per commit wins.
		if result.Tags[walker.commits[2].Hash] != "v1.0.0" {
			t.Errorf("Tags = %v", result.Tags)
		}

		if store.saved == nil {
			t.Fatal("result was not saved")
		}
		if store.saved.HeadHash != "headhash" {
			t.Errorf("saved.HeadHash = %q", store.saved.HeadHash)
		}
	})

	t.Run("empty history skips generation and save", func(t *testing.T) {
		walker := &fakeWalker{head: "headhash"}
		generator := &fakeGenerator{err: errors.New("must not be called")}
		store := &fakeAnalysisStore{}

		svc := gitre.NewService(walker, &fakeEnricher{}, generator, &fakeRewriter{}, store,
			gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 10, 1)

		result, enriched, err := svc.Analyze(ctx, "/repo", "", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(result.Messages) != 0 || len(enriched) != 0 {
			t.Errorf("result = %+v", result)
		}
		if store.saved != nil {
			t.Error("empty result should not be saved")
		}
	})

	t.Run("enrichment error aborts", func(t *testing.T) {
		walker := &fakeWalker{head: "h", commits: sampleCommits(2)}
		enricher := &fakeEnricher{err: errors.New("diff failed")}

		svc := gitre.NewService(walker, enricher, &fakeGenerator{}, &fakeRewriter{}, &fakeAnalysisStore{},
			gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 10, 4)

		_, _, err := svc.Analyze(ctx, "/repo", "", "")
		if err == nil || !strings.Contains(err.Error(), "diff failed") {
			t.Errorf("error = %v, want enrichment failure", err)
		}
	})

	t.Run("all commits are enriched concurrently", func(t *testing.T) {
		walker := &fakeWalker{head: "h", commits: sampleCommits(10)}
		enricher := &fakeEnricher{}

		svc := gitre.NewService(walker, enricher, &fakeGenerator{}, &fakeRewriter{}, &fakeAnalysisStore{},
			gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 10, 3)

		if _, _, err := svc.Analyze(ctx, "/repo", "", ""); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if enricher.calls != 10 {
			t.Errorf("enrich calls = %d, want 10", enricher.calls)
		}
	})

	t.Run("generation is chunked by batch size", func(t *testing.T) {
		walker := &fakeWalker{head: "h", commits: sampleCommits(5)}
		generator := &fakeGenerator{}

		svc := gitre.NewService(walker, &fakeEnricher{}, generator, &fakeRewriter{}, &fakeAnalysisStore{},
			gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 2, 1)

		result, _, err := svc.Analyze(ctx, "/repo", "", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}

		wantSizes := []int{2, 2, 1}
		if len(generator.batches) != len(wantSizes) {
			t.Fatalf("batches = %d, want %d", len(generator.batches), len(wantSizes))
		}
		for i, batch := range generator.batches {
			if len(batch) != wantSizes[i] {
				t.Errorf("batch %d size = %d, want %d", i, len(batch), wantSizes[i])
			}
		}

		// Messages stay in commit order and usage sums across chunks.
		if len(result.Messages) != 5 {
			t.Fatalf("len(Messages) = %d", len(result.Messages))
		}
		for i, m := range result.Messages {
			if m.Hash != walker.commits[i].Hash {
				t.Errorf("Messages[%d].Hash = %q, want %q", i, m.Hash, walker.commits[i].Hash)
			}
		}
		if result.TotalTokens != 300 {
			t.Errorf("TotalTokens = %d, want 300", result.TotalTokens)
		}
	})
}

func TestService_Rewrite(t *testing.T) {
	ctx := context.Background()
	messages := []model.GeneratedMessage{
		{Hash: "aaa", ShortHash: "aa", Subject: "Better subject", ChangelogCategory: "Changed"},
	}
	result := model.AnalysisResult{RepoPath: "/repo", HeadHash: "h", Messages: messages}

	t.Run("fresh snapshot rewrites without warning", func(t *testing.T) {
		rewriter := &fakeRewriter{receipt: gitre.RewriteReceipt{BackupBranch: "b", Subjects: map[string]string{"aa": "Better subject"}}}
		reporter := &recordingReporter{}

		svc := gitre.NewService(&fakeWalker{}, &fakeEnricher{}, &fakeGenerator{}, rewriter,
			&fakeAnalysisStore{fresh: true}, gitre.NewNopLogger(), reporter, testutil.FixedClock(), 10, 1)

		receipt, err := svc.Rewrite(ctx, "/repo", result)
		if err != nil {
			t.Fatalf("Rewrite() error = %v", err)
		}
		if receipt.BackupBranch != "b" {
			t.Errorf("BackupBranch = %q", receipt.BackupBranch)
		}
		if len(rewriter.got) != 1 {
			t.Errorf("rewriter received %d messages", len(rewriter.got))
		}
		for _, m := range reporter.msgs {
			if strings.HasPrefix(m, "warn:") {
				t.Errorf("unexpected warning: %q", m)
			}
		}
	})

	t.Run("stale snapshot warns but proceeds", func(t *testing.T) {
		rewriter := &fakeRewriter{}
		reporter := &recordingReporter{}

		svc := gitre.NewService(&fakeWalker{}, &fakeEnricher{}, &fakeGenerator{}, rewriter,
			&fakeAnalysisStore{fresh: false, warning: "HEAD moved"}, gitre.NewNopLogger(), reporter, testutil.FixedClock(), 10, 1)

		if _, err := svc.Rewrite(ctx, "/repo", result); err != nil {
			t.Fatalf("Rewrite() error = %v", err)
		}
		if len(rewriter.got) != 1 {
			t.Error("stale snapshot should still be applied")
		}

		var warned bool
		for _, m := range reporter.msgs {
			if m == "warn: HEAD moved" {
				warned = true
			}
		}
		if !warned {
			t.Errorf("expected staleness warning, got %v", reporter.msgs)
		}
	})

	t.Run("rewriter error propagates", func(t *testing.T) {
		rewriter := &fakeRewriter{err: errors.New("filter-repo exploded")}

		svc := gitre.NewService(&fakeWalker{}, &fakeEnricher{}, &fakeGenerator{}, rewriter,
			&fakeAnalysisStore{fresh: true}, gitre.NewNopLogger(), gitre.NewNopReporter(), testutil.FixedClock(), 10, 1)

		_, err := svc.Rewrite(ctx, "/repo", result)
		if err == nil || !strings.Contains(err.Error(), "filter-repo exploded") {
			t.Errorf("error = %v", err)
		}
	})
}
