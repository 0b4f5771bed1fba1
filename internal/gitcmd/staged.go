package gitcmd

import (
	"context"
	"fmt"
	"strings"
)

// StagedDiff returns the stat and patch of the index (staged changes) against
// HEAD. Both are empty when nothing is staged.
func StagedDiff(ctx context.Context, runner Runner, repoPath string) (stat, patch string, err error) {
	statRes, err := runner.RunChecked(ctx, repoPath, "git", "diff", "--cached", "--stat")
	if err != nil {
		return "", "", fmt.Errorf("staged diff stat: %w", err)
	}
	patchRes, err := runner.RunChecked(ctx, repoPath, "git", "diff", "--cached", "--patch")
	if err != nil {
		return "", "", fmt.Errorf("staged diff patch: %w", err)
	}
	return strings.TrimSpace(statRes.Stdout), patchRes.Stdout, nil
}
