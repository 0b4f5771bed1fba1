// Package cache persists analysis snapshots under .gitre/ in the analyzed
// repository, so a rewrite can reuse an earlier analysis without re-spending
// model tokens.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitre-go/internal/gitcmd"
	"gitre-go/internal/model"
)

// ErrNotFound is returned by Load when no snapshot exists for the repository.
var ErrNotFound = errors.New("no cached analysis found")

const (
	cacheDir  = ".gitre"
	cacheFile = "analysis.json"
)

// Store reads and writes analysis snapshots. It implements
// gitre.AnalysisStore.
type Store struct {
	runner gitcmd.Runner
}

func NewStore(runner gitcmd.Runner) *Store {
	return &Store{runner: runner}
}

func (s *Store) path(repoPath string) string {
	return filepath.Join(repoPath, cacheDir, cacheFile)
}

// Save writes the snapshot as indented JSON, creating .gitre/ if needed.
func (s *Store) Save(repoPath string, result model.AnalysisResult) error {
	dir := filepath.Join(repoPath, cacheDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	if err := os.WriteFile(s.path(repoPath), data, 0o644); err != nil {
		return fmt.Errorf("writing analysis cache: %w", err)
	}
	return nil
}

// Load reads and validates the snapshot. A missing file is ErrNotFound; a
// file that fails schema validation is reported as corrupt.
func (s *Store) Load(repoPath string) (model.AnalysisResult, error) {
	data, err := os.ReadFile(s.path(repoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return model.AnalysisResult{}, ErrNotFound
		}
		return model.AnalysisResult{}, fmt.Errorf("reading analysis cache: %w", err)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("corrupt analysis cache: %w", err)
	}
	if err := result.Validate(); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("corrupt analysis cache: %w", err)
	}
	return result, nil
}

// Validate compares the snapshot's recorded HEAD against the repository's
// live HEAD. A mismatch means commits landed since the analysis; the
// snapshot is reported stale but is not deleted.
func (s *Store) Validate(ctx context.Context, repoPath string, result model.AnalysisResult) (bool, string) {
	res, err := s.runner.RunChecked(ctx, repoPath, "git", "rev-parse", "HEAD")
	if err != nil {
		return false, fmt.Sprintf("could not resolve HEAD: %v", err)
	}
	head := strings.TrimSpace(res.Stdout)
	if head != result.HeadHash {
		return false, fmt.Sprintf("analysis is stale: HEAD moved from %s to %s (re-run analyze)",
			short(result.HeadHash), short(head))
	}
	return true, ""
}

// Clear removes the snapshot. Clearing a repository without one is not an
// error.
func (s *Store) Clear(repoPath string) error {
	if err := os.Remove(s.path(repoPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing analysis cache: %w", err)
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
