// Package cli exposes the panelist command surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/usecase/pipeline"
	"github.com/getpanelist/panelist/internal/usecase/track"
)

// ErrVersionRequested indicates the user asked for the version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// ChangeReviewer runs the review and resolution flows.
type ChangeReviewer interface {
	ReviewChange(ctx context.Context, req pipeline.ReviewRequest) (pipeline.ReviewResult, error)
	CheckResolutions(ctx context.Context, req pipeline.CheckRequest) (track.Report, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Reviewer    ChangeReviewer
	Args        Arguments
	Specs       []domain.ReviewerSpec
	MinSeverity domain.Severity
	Version     string

	// ColorOutput enables ANSI color on the verdict line. Defaults to
	// TTY detection when unset by tests.
	ColorOutput bool
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "panelist",
		Short: "Multi-reviewer AI code review for pull requests",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps))
	root.AddCommand(checkCommand(deps.Reviewer))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var owner string
	var repo string
	var number int
	var baseRef string
	var headRef string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a pull request or a local ref pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if number > 0 {
				if owner == "" || repo == "" {
					return fmt.Errorf("--owner and --repo are required with --pr")
				}
			} else if headRef == "" {
				return fmt.Errorf("either --pr or --head must be given")
			}

			result, err := deps.Reviewer.ReviewChange(cmd.Context(), pipeline.ReviewRequest{
				Owner:       owner,
				Repo:        repo,
				Number:      number,
				BaseRef:     baseRef,
				HeadRef:     headRef,
				DryRun:      dryRun,
				Specs:       deps.Specs,
				MinSeverity: deps.MinSeverity,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Report != "" {
				_, _ = fmt.Fprintln(out, result.Report)
			}
			writeVerdict(out, result.Review, deps.ColorOutput)
			if result.Published != nil {
				verb := "created"
				if result.Published.IsUpdate {
					verb = "updated"
				}
				_, _ = fmt.Fprintf(out, "Review %s: %s\n", verb, result.Published.ReviewURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner (user or org)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number")
	cmd.Flags().StringVar(&baseRef, "base", "main", "Base ref for local review")
	cmd.Flags().StringVar(&headRef, "head", "", "Head ref for local review")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the review instead of posting it")

	return cmd
}

func checkCommand(reviewer ChangeReviewer) *cobra.Command {
	var owner string
	var repo string
	var number int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Re-check previously posted findings against the current head",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" || repo == "" || number <= 0 {
				return fmt.Errorf("--owner, --repo and --pr are required")
			}

			report, err := reviewer.CheckResolutions(cmd.Context(), pipeline.CheckRequest{
				Owner:  owner,
				Repo:   repo,
				Number: number,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Checked %d tracked comments\n", report.Checked)
			_, _ = fmt.Fprintf(out, "  fixed: %d\n", report.Fixed)
			_, _ = fmt.Fprintf(out, "  partially fixed: %d\n", report.PartiallyFixed)
			_, _ = fmt.Fprintf(out, "  not fixed: %d\n", report.NotFixed)
			if report.DeletedFiles > 0 {
				_, _ = fmt.Fprintf(out, "  auto-resolved (deleted files): %d\n", report.DeletedFiles)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner (user or org)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number")

	return cmd
}

func writeVerdict(out io.Writer, review domain.SynthesizedReview, color bool) {
	verdict := "PASSED"
	ansi := "\033[32m"
	if !review.Passed {
		verdict = "CHANGES REQUESTED"
		ansi = "\033[31m"
	}
	if color {
		_, _ = fmt.Fprintf(out, "%s%s\033[0m (%d/%d reviewers, %d critical, %d warning, %d info)\n",
			ansi, verdict, review.SucceededReviewers, review.TotalReviewers,
			review.CriticalCount, review.WarningCount, review.InfoCount)
		return
	}
	_, _ = fmt.Fprintf(out, "%s (%d/%d reviewers, %d critical, %d warning, %d info)\n",
		verdict, review.SucceededReviewers, review.TotalReviewers,
		review.CriticalCount, review.WarningCount, review.InfoCount)
}
