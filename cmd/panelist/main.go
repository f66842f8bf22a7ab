package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/getpanelist/panelist/internal/adapter/cli"
	githubadapter "github.com/getpanelist/panelist/internal/adapter/github"
	"github.com/getpanelist/panelist/internal/adapter/gitlocal"
	"github.com/getpanelist/panelist/internal/adapter/httpx"
	"github.com/getpanelist/panelist/internal/adapter/llm"
	"github.com/getpanelist/panelist/internal/adapter/llm/anthropic"
	"github.com/getpanelist/panelist/internal/adapter/llm/openai"
	"github.com/getpanelist/panelist/internal/adapter/llm/static"
	"github.com/getpanelist/panelist/internal/adapter/markdown"
	"github.com/getpanelist/panelist/internal/config"
	"github.com/getpanelist/panelist/internal/diff"
	"github.com/getpanelist/panelist/internal/domain"
	"github.com/getpanelist/panelist/internal/redaction"
	"github.com/getpanelist/panelist/internal/usecase/pipeline"
	"github.com/getpanelist/panelist/internal/usecase/publish"
	"github.com/getpanelist/panelist/internal/usecase/review"
	"github.com/getpanelist/panelist/internal/usecase/synth"
	"github.com/getpanelist/panelist/internal/usecase/track"
	"github.com/getpanelist/panelist/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(httpx.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "panelist",
		EnvPrefix:   "PANELIST",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	specs, err := cfg.ReviewerSpecs()
	if err != nil {
		return fmt.Errorf("resolve reviewer personas: %w", err)
	}

	var eventLogger httpx.EventLogger
	var httpLogger httpx.Logger
	if cfg.Logging.Enabled {
		defaultLogger := httpx.NewDefaultLogger(
			httpx.ParseLogLevel(cfg.Logging.Level),
			httpx.ParseLogFormat(cfg.Logging.Format),
			cfg.Logging.RedactAPIKeys,
		)
		eventLogger = defaultLogger
		httpLogger = defaultLogger
	}

	router := buildRouter(cfg, httpLogger)

	token := cfg.GitHub.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	runnerOpts := []review.RunnerOption{}
	if cfg.Redaction.Enabled {
		runnerOpts = append(runnerOpts, review.WithRedactor(redaction.NewEngine()))
	}
	if d := parseDuration(cfg.Review.ReviewerTimeout, 0); d > 0 {
		runnerOpts = append(runnerOpts, review.WithTimeout(d))
	}
	if eventLogger != nil {
		runnerOpts = append(runnerOpts, review.WithLogger(eventLogger))
	}

	var githubClient *githubadapter.Client
	if token != "" {
		githubClient = githubadapter.NewClient(token)
		runnerOpts = append(runnerOpts, review.WithContextFetcher(githubadapter.NewFileContextFetcher(githubClient)))
	}

	runner := review.NewRunner(router, runnerOpts...)
	orchestrator := review.NewOrchestrator(runner, eventLogger)

	var overviewProvider synth.OverviewProvider
	if cfg.Synthesis.Enabled {
		overviewProvider = synth.NewModelOverviewProvider(router, cfg.Synthesis.Model)
	}
	synthesizer := synth.NewSynthesizer(overviewProvider, eventLogger)

	deps := pipeline.Deps{
		Orchestrator: orchestrator,
		Synthesizer:  synthesizer,
		Renderer:     markdown.NewRenderer(),
		Local:        gitlocal.NewEngine("."),
	}

	if githubClient != nil {
		deps.Source = githubClient
		deps.Publisher = publish.NewPublisher(githubClient, eventLogger)
		tracker, err := track.NewTracker(track.Deps{
			Lister:  githubClient,
			Threads: githubClient,
			Mutator: githubClient,
			Content: githubClient,
			Judge:   track.NewModelJudge(router, cfg.Synthesis.Model),
			Logger:  eventLogger,
		})
		if err != nil {
			return fmt.Errorf("wire tracker: %w", err)
		}
		deps.Tracker = tracker
	} else {
		// Without a token only local dry runs work; the pipeline rejects
		// platform requests itself, but it still needs non-nil stages.
		deps.Publisher = unavailablePublisher{}
		deps.Tracker = unavailableTracker{}
	}

	p, err := pipeline.NewPipeline(deps, eventLogger)
	if err != nil {
		return fmt.Errorf("wire pipeline: %w", err)
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Reviewer:    p,
		Specs:       specs,
		MinSeverity: cfg.MinSeverity(),
		Version:     version.Value(),
		ColorOutput: cli.IsOutputTerminal(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func buildRouter(cfg config.Config, httpLogger httpx.Logger) *llm.Router {
	retryCfg := httpx.RetryConfig{
		MaxRetries:     cfg.HTTP.MaxRetries,
		InitialBackoff: parseDuration(cfg.HTTP.InitialBackoff, 2*time.Second),
		MaxBackoff:     parseDuration(cfg.HTTP.MaxBackoff, 32*time.Second),
		Multiplier:     cfg.HTTP.BackoffMultiplier,
	}
	timeout := parseDuration(cfg.HTTP.Timeout, 60*time.Second)

	routerCfg := llm.RouterConfig{
		DefaultModel: cfg.Models.Default,
		Static:       static.NewCompleter(),
	}

	if key := cfg.Models.Anthropic.APIKey; key != "" {
		opts := []anthropic.Option{
			anthropic.WithTimeout(timeout),
			anthropic.WithRetryConfig(retryCfg),
		}
		if cfg.Models.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Models.Anthropic.BaseURL))
		}
		if httpLogger != nil {
			opts = append(opts, anthropic.WithLogger(httpLogger))
		}
		routerCfg.Anthropic = anthropic.NewClient(key, opts...)
	}

	if key := cfg.Models.OpenAI.APIKey; key != "" {
		opts := []openai.Option{
			openai.WithTimeout(timeout),
			openai.WithRetryConfig(retryCfg),
		}
		if cfg.Models.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Models.OpenAI.BaseURL))
		}
		if httpLogger != nil {
			opts = append(opts, openai.WithLogger(httpLogger))
		}
		routerCfg.OpenAI = openai.NewClient(key, opts...)
	}

	return llm.NewRouter(routerCfg)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("warning: invalid duration %q, using %s", s, fallback)
		return fallback
	}
	return d
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "panelist"))
	}
	return paths
}

// unavailablePublisher and unavailableTracker stand in when no platform
// token is configured.
type unavailablePublisher struct{}

func (unavailablePublisher) Publish(context.Context, domain.ChangeContext, domain.SynthesizedReview, diff.ParsedDiff) (publish.Result, error) {
	return publish.Result{}, errors.New("GITHUB_TOKEN is required to publish reviews")
}

type unavailableTracker struct{}

func (unavailableTracker) Check(context.Context, domain.ChangeContext) (track.Report, error) {
	return track.Report{}, errors.New("GITHUB_TOKEN is required to check resolutions")
}
