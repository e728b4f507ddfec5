// orchestratord drives the multi-tier LLM code-repair orchestrator
// loop against a set of issues, optionally exposing pkg/httpapi's
// control surface alongside it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/forgeswarm/coordinator/pkg/archive"
	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/config"
	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/forgeswarm/coordinator/pkg/httpapi"
	"github.com/forgeswarm/coordinator/pkg/orchestrator"
	"github.com/forgeswarm/coordinator/pkg/procexec"
	"github.com/forgeswarm/coordinator/pkg/statestore"
	"github.com/forgeswarm/coordinator/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitStuck         = 2
	exitMisconfigured = 64
	exitCancelled     = 130
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the "run" subcommand (the default, and currently
// only, command), returning the process exit code rather than calling
// os.Exit itself so it stays testable in-process.
func run(args []string) int {
	// "run" is the default command: accept it as an optional leading
	// positional argument and otherwise treat args as its flags.
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}

	log.Printf("%s starting", version.Full())

	fs := flag.NewFlagSet("orchestratord", flag.ContinueOnError)
	issueID := fs.String("issue", "", "process a single issue by id (requires --issue-file)")
	issueFile := fs.String("issue-file", "", "path to a JSON array of {id,title,priority,type} issues")
	maxIterations := fs.Int("max-iterations", 0, "override config max_iterations (0 = use config)")
	requireCleanGit := fs.Bool("require-clean-git", false, "fail fast if the working tree has uncommitted changes")
	statePath := fs.String("state-path", "./data/state", "directory for the embedded state store")
	ensemble := fs.Bool("ensemble", false, "process every ready issue from --issue-file concurrently instead of just --issue")
	configDir := fs.String("config", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := fs.String("http-addr", "", "enable the HTTP control surface on this address (e.g. :8080)")
	if err := fs.Parse(args); err != nil {
		return exitMisconfigured
	}

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	cfg, err := config.Load(filepath.Join(*configDir, "config.yaml"))
	if err != nil {
		log.Printf("misconfiguration: %v", err)
		return exitMisconfigured
	}
	if *maxIterations > 0 {
		cfg.MaxIterations = *maxIterations
	}
	if err := config.Validate(cfg); err != nil {
		log.Printf("misconfiguration: %v", err)
		return exitMisconfigured
	}

	issues, err := loadIssues(*issueFile, *issueID, *ensemble)
	if err != nil {
		log.Printf("misconfiguration: %v", err)
		return exitMisconfigured
	}

	repoDir := getEnv("ORCHESTRATOR_REPO_DIR", ".")
	if *requireCleanGit {
		if err := checkCleanGit(repoDir); err != nil {
			log.Printf("misconfiguration: %v", err)
			return exitMisconfigured
		}
	}

	if err := os.MkdirAll(*statePath, 0o755); err != nil {
		log.Printf("misconfiguration: creating state path %s: %v", *statePath, err)
		return exitMisconfigured
	}

	store, err := statestore.Open(filepath.Join(*statePath, "db"))
	if err != nil {
		log.Printf("misconfiguration: opening state store: %v", err)
		return exitMisconfigured
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.WithPersistence(store)
	tracker := collab.NewInMemoryIssueTracker(issues...)
	worktreeDir := filepath.Join(*statePath, "worktrees")
	deps := orchestrator.Deps{
		Tracker:  tracker,
		KB:       collab.NoOpKnowledgeBase{},
		Worktree: collab.NewLocalGitWorktreeAdapter(repoDir, worktreeDir),
		Coder:    collab.NoOpLLMEndpoint{},
		Reviewer: collab.NoOpLLMEndpoint{},
		Bus:      bus,
	}
	orc := orchestrator.New(cfg, deps)

	if archiveCfg, enabled := archiveConfigFromEnv(); enabled {
		if archiveStore, err := archive.Open(ctx, archiveCfg); err != nil {
			slog.Warn("orchestratord: archive mirror disabled, could not connect", "error", err)
		} else {
			defer archiveStore.Close()
			sub := archive.Subscribe(bus, archiveStore)
			go sub.Run(ctx)
			log.Printf("archive mirror enabled against %s:%d/%s", archiveCfg.Host, archiveCfg.Port, archiveCfg.Database)

			if *httpAddr != "" {
				startHTTP(ctx, orc, tracker, bus, store, archiveStore, *httpAddr)
			}
			return processAll(ctx, orc, issues)
		}
	}

	if *httpAddr != "" {
		startHTTP(ctx, orc, tracker, bus, store, nil, *httpAddr)
	}
	return processAll(ctx, orc, issues)
}

func startHTTP(ctx context.Context, orc *orchestrator.AgentOrchestrator, tracker collab.IssueTracker, bus *eventbus.Bus, stateStore *statestore.Store, archiveStore *archive.Store, addr string) {
	ginMode := getEnv("GIN_MODE", gin.ReleaseMode)
	srv := httpapi.New(orc, tracker, bus, archiveStore, ginMode).WithStateStore(stateStore)
	go func() {
		log.Printf("HTTP control surface listening on %s", addr)
		if err := srv.Run(addr); err != nil {
			slog.Error("orchestratord: HTTP server stopped", "error", err)
		}
	}()
}

// processAll runs every issue (sequentially, unless --ensemble asked
// for concurrent processing of the whole ready set) and folds their
// outcomes into a single process exit code.
func processAll(ctx context.Context, orc *orchestrator.AgentOrchestrator, issues []collab.Issue) int {
	if len(issues) == 0 {
		log.Printf("no issues to process")
		return exitSuccess
	}

	type outcome struct {
		result orchestrator.ProcessResult
		err    error
	}
	outcomes := make([]outcome, len(issues))

	processOne := func(i int) {
		result, err := orc.ProcessIssueDetailed(ctx, issues[i])
		outcomes[i] = outcome{result: result, err: err}
		summary := result.Summary()
		log.Printf("issue %s: status=%s tier=%s iterations=%d elapsed=%s",
			summary.IssueID, summary.Status, summary.Tier, summary.Iterations, summary.ElapsedHuman)
	}

	concurrent := len(issues) > 1
	if concurrent {
		var wg sync.WaitGroup
		for i := range issues {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				processOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		processOne(0)
	}

	sawCancelled := false
	sawStuck := false
	for _, o := range outcomes {
		switch {
		case errors.Is(o.err, orchestrator.ErrCancelled):
			sawCancelled = true
		case o.err != nil:
			log.Printf("issue %s: error: %v", o.result.IssueID, o.err)
		case o.result.Stuck && !o.result.Closed:
			sawStuck = true
		}
	}

	switch {
	case sawCancelled:
		return exitCancelled
	case sawStuck:
		return exitStuck
	default:
		return exitSuccess
	}
}

// loadIssues resolves the set of issues to process from --issue-file
// and --issue. --ensemble processes the whole file's ready set
// concurrently; otherwise exactly one issue is selected, and --issue
// without a matching --issue-file entry (or without --issue-file at
// all) is a misconfiguration rather than a silent no-op.
func loadIssues(issueFile, issueID string, ensemble bool) ([]collab.Issue, error) {
	if issueFile == "" {
		if issueID != "" {
			return nil, fmt.Errorf("--issue requires --issue-file")
		}
		return nil, fmt.Errorf("--issue-file is required")
	}

	data, err := os.ReadFile(issueFile)
	if err != nil {
		return nil, fmt.Errorf("reading --issue-file %s: %w", issueFile, err)
	}
	var all []collab.Issue
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing --issue-file %s: %w", issueFile, err)
	}
	for i := range all {
		if all[i].Status == "" {
			all[i].Status = collab.IssueOpen
		}
	}

	if ensemble {
		return all, nil
	}

	if issueID == "" {
		if len(all) != 1 {
			return nil, fmt.Errorf("--issue is required when --issue-file contains more than one issue and --ensemble is not set")
		}
		return all, nil
	}
	for _, iss := range all {
		if iss.ID == issueID {
			return []collab.Issue{iss}, nil
		}
	}
	return nil, fmt.Errorf("issue %q not found in %s", issueID, issueFile)
}

// checkCleanGit fails fast (misconfiguration) if repoDir has
// uncommitted changes and --require-clean-git was set.
func checkCleanGit(repoDir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := procexec.Run(ctx, "git", []string{"status", "--porcelain"}, procexec.Options{Dir: repoDir, Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("checking git status in %s: %w", repoDir, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git status in %s exited %d: %s", repoDir, res.ExitCode, res.Stderr)
	}
	if len(res.Stdout) != 0 {
		return fmt.Errorf("%s has uncommitted changes (--require-clean-git)", repoDir)
	}
	return nil
}

// archiveConfigFromEnv builds an archive.Config from standard
// COORDINATOR_ARCHIVE_* environment variables; the mirror is disabled
// by default since it depends on a live Postgres instance this module
// never requires for correctness.
func archiveConfigFromEnv() (archive.Config, bool) {
	if getEnv("COORDINATOR_ARCHIVE_ENABLED", "") != "true" {
		return archive.Config{}, false
	}
	cfg := archive.DefaultConfig()
	cfg.Host = getEnv("COORDINATOR_ARCHIVE_HOST", cfg.Host)
	cfg.Database = getEnv("COORDINATOR_ARCHIVE_DATABASE", cfg.Database)
	cfg.User = getEnv("COORDINATOR_ARCHIVE_USER", cfg.User)
	cfg.Password = getEnv("COORDINATOR_ARCHIVE_PASSWORD", cfg.Password)
	return cfg, true
}
