package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitre-go/internal/app"
	"gitre-go/internal/config"
	"gitre-go/internal/format"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	// A .env in the working directory may carry the API key.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a GitreApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "analyze", "rewrite").
func newApp(operation, parameters string) (*app.GitreApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config (run 'gitre config init' first): %w", err)
	}

	a, err := app.NewGitreApp(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// repoArg resolves the optional positional repository path, defaulting to
// the current directory.
func repoArg(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

// splitHashes parses a comma-separated short-hash list, dropping blanks.
func splitHashes(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(value, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// confirm prompts the user for a yes/no answer. Non-interactive sessions
// (no terminal on stdin) answer no unless --yes was given.
func confirm(prompt string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to proceed without a terminal; pass --yes to confirm")
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

var rootCmd = &cobra.Command{
	Use:   "gitre",
	Short: "Reconstruct commit messages and changelogs from git history",
}

// analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [PATH]",
	Short: "Analyze commit history and generate replacement messages",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromRef, _ := cmd.Flags().GetString("from")
		toRef, _ := cmd.Flags().GetString("to")

		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("analyze", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		result, commits, err := a.Analyze(cmd.Context(), repoPath, fromRef, toRef)
		if err != nil {
			a.MarkError()
			return err
		}

		if len(result.Messages) == 0 {
			fmt.Println("No commits to analyze.")
			return nil
		}

		fmt.Print(format.Review(result.Messages, commits))
		fmt.Printf("Tokens used: %d  Cost: $%.4f\n", result.TotalTokens, result.TotalCost)
		return nil
	},
}

// rewrite command
var rewriteCmd = &cobra.Command{
	Use:   "rewrite [PATH]",
	Short: "Permanently rewrite commit messages from the cached analysis",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		assumeYes, _ := cmd.Flags().GetBool("yes")
		only, _ := cmd.Flags().GetString("only")
		skip, _ := cmd.Flags().GetString("skip")
		changelogFile, _ := cmd.Flags().GetString("changelog")
		push, _ := cmd.Flags().GetBool("push")

		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		opts := app.RewriteOptions{
			Only:          splitHashes(only),
			Skip:          splitHashes(skip),
			ChangelogFile: changelogFile,
			Push:          push,
		}

		a, err := newApp("rewrite", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if ok, instructions := a.RewriterAvailable(cmd.Context()); !ok {
			a.MarkError()
			return fmt.Errorf("git filter-repo is not installed\n%s", instructions)
		}

		result, err := a.LoadAnalysis(repoPath)
		if err != nil {
			a.MarkError()
			return err
		}

		selected := app.FilterMessages(result.Messages, opts.Only, opts.Skip)
		if len(selected) == 0 {
			fmt.Println("No commits to rewrite after applying filters.")
			return nil
		}

		fmt.Printf("About to rewrite %d commit message(s) in %s.\n", len(selected), repoPath)
		fmt.Println("This permanently changes commit hashes. A backup branch will be created.")
		if !confirm("Continue?", assumeYes) {
			fmt.Println("Aborted.")
			return nil
		}

		receipt, err := a.Rewrite(cmd.Context(), repoPath, opts)
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Rewrote %d commit(s). Backup branch: %s\n", len(receipt.Subjects), receipt.BackupBranch)
		if !push {
			fmt.Println("Review the result, then run 'gitre push' to update the remote.")
		}
		return nil
	},
}

// changelog command
var changelogCmd = &cobra.Command{
	Use:   "changelog [PATH]",
	Short: "Render the cached analysis as a Keep a Changelog document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoURL, _ := cmd.Flags().GetString("repo-url")
		output, _ := cmd.Flags().GetString("output")

		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("changelog", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.Changelog(repoPath, repoURL)
		if err != nil {
			a.MarkError()
			return err
		}

		if output != "" {
			if err := os.WriteFile(output, []byte(text), 0644); err != nil {
				a.MarkError()
				return fmt.Errorf("writing changelog: %w", err)
			}
			fmt.Printf("Changelog written to %s\n", output)
			return nil
		}
		fmt.Print(text)
		return nil
	},
}

// label command
var labelCmd = &cobra.Command{
	Use:   "label [PATH]",
	Short: "Generate a commit message for the staged changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("label", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		msg, tokens, cost, err := a.Label(cmd.Context(), repoPath)
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Println(msg.FullMessage())
		fmt.Println()
		fmt.Printf("Category: [%s] %s\n", msg.ChangelogCategory, msg.ChangelogEntry)
		fmt.Printf("Tokens used: %d  Cost: $%.4f\n", tokens, cost)
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push [PATH]",
	Short: "Force-push the rewritten history to the remote",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		assumeYes, _ := cmd.Flags().GetBool("yes")

		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("push", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("This force-pushes the current branch, overwriting remote history.")
		if !confirm("Continue?", assumeYes) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := a.Push(cmd.Context(), repoPath); err != nil {
			a.MarkError()
			return err
		}
		fmt.Println("Pushed.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded gitre runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history", "")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				d := run.FinishedAt.Sub(run.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-8s  %s\n",
				run.ID,
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				duration,
			)
		}
		return nil
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the cached analysis",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status [PATH]",
	Short: "Show the cached analysis for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("cache-status", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.CacheStatus(cmd.Context(), repoPath)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [PATH]",
	Short: "Remove the cached analysis for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := repoArg(args)
		if err != nil {
			return err
		}

		a, err := newApp("cache-clear", repoPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CacheClear(repoPath); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set GITRE_API_KEY (or ANTHROPIC_API_KEY) in the environment before analyzing.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Model:      %s\n", cfg.Model.Name)
		fmt.Printf("Batch Size: %d\n", cfg.Analysis.BatchSize)
		fmt.Printf("Workers:    %d\n", cfg.Analysis.Workers)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("from", "", "Analyze commits after this ref (exclusive)")
	analyzeCmd.Flags().String("to", "", "Analyze commits up to this ref (inclusive)")

	rewriteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rewriteCmd.Flags().String("only", "", "Comma-separated short hashes to rewrite (others skipped)")
	rewriteCmd.Flags().String("skip", "", "Comma-separated short hashes to skip")
	rewriteCmd.Flags().StringP("changelog", "f", "", "Write and commit a changelog file after rewriting")
	rewriteCmd.Flags().Bool("push", false, "Force-push to the remote after rewriting")
	pushCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	changelogCmd.Flags().String("repo-url", "", "Repository URL for comparison links")
	changelogCmd.Flags().StringP("output", "o", "", "Write the changelog to a file instead of stdout")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(changelogCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}
