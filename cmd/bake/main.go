// Command bake is the CLI front end over pkg/bake: it loads a rule file,
// dispatches the handful of subcommand-level operations from spec.md §6.1
// (--eval, --list, --terminal, or treating bare args as either a
// definition or a set of build goals), and drives internal/executor
// against an internal/backend.FingerprintBackend.
//
// The cobra root-command shape (PersistentPreRunE building a *zap.Logger,
// flags wired in init(), Execute() in main()) is grounded on the codenerd
// example's cmd/nerd/main.go.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spencertipping/bake/internal/backend"
	"github.com/spencertipping/bake/internal/config"
	"github.com/spencertipping/bake/internal/executor"
	"github.com/spencertipping/bake/internal/shellexec"
	"github.com/spencertipping/bake/internal/watch"
	"github.com/spencertipping/bake/pkg/bake"
)

var (
	flagRulesFile string
	flagConfig    string
	flagEval      []string
	flagList      bool
	flagTerminal  []string
	flagJobs      int
	flagVerbose   bool
	flagWatch     bool

	logger *zap.Logger
	runID  string
)

var rootCmd = &cobra.Command{
	Use:   "bake [goals...]",
	Short: "bake is a pattern-rewriting build engine",
	Long: "bake expands goal words through a set of grounded and ungrounded\n" +
		"rewrite rules and runs whatever commands are needed to produce them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if flagVerbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		built, err := zcfg.Build()
		if err != nil {
			return err
		}
		logger = built
		runID = uuid.NewString()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runBake,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRulesFile, "rules", "f", "", "rule definition file (defaults to .bake.yaml's rules_file, then Bakefile)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", ".bake.yaml", "path to instance config")
	rootCmd.PersistentFlags().IntVarP(&flagJobs, "jobs", "j", 0, "concurrency hint passed to the backend")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose step callback")
	rootCmd.PersistentFlags().BoolVar(&flagWatch, "watch", false, "rebuild whenever a terminal rule's file changes")

	rootCmd.Flags().StringArrayVarP(&flagEval, "eval", "e", nil, "expand terms through ungrounded rules and print the result")
	rootCmd.Flags().BoolVarP(&flagList, "list", "l", false, "print all rules in definition order, then all globals (globals in no fixed order)")
	rootCmd.Flags().StringArrayVarP(&flagTerminal, "terminal", "t", nil, "register each word as a terminal grounded rule")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// speculativeRunner adapts shellexec.Runner's ExitStatus-returning Run
// method to the narrower bake.CommandRunner contract the solver's
// ungrounded-rewrite phase uses to test a speculative rule's command
// (§4.5): only the exit code matters there, stderr is discarded.
type speculativeRunner struct {
	r *shellexec.Runner
}

func (s speculativeRunner) Run(ctx context.Context, commandText string, bindings bake.Bindings) (int, error) {
	status, err := s.r.Run(ctx, commandText, bindings)
	if err != nil {
		return 0, err
	}
	return status.Code, nil
}

// exitCodeFor maps the error taxonomy of §7 to spec.md §6's exit codes:
// 0 success, 1 user error, 2 internal invariant violation.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *bake.InternalInvariantError:
		return 2
	default:
		return 1
	}
}

func runBake(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if cfg.Verbose && !flagVerbose {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		if built, err := zcfg.Build(); err == nil {
			logger = built
		}
	}
	rulesFile := flagRulesFile
	if rulesFile == "" {
		rulesFile = cfg.RulesFile
	}
	jobs := flagJobs
	if jobs == 0 {
		jobs = cfg.Jobs
	}

	reg := bake.NewRegistry()
	if err := loadRulesFile(reg, rulesFile); err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, word := range flagTerminal {
		if err := reg.Define([]bake.Word{bake.Word(word), ":"}); err != nil {
			return err
		}
	}

	if flagList {
		printRegistry(reg)
	}

	if len(flagEval) > 0 {
		solver := bake.NewSolver(reg, speculativeRunner{shellexec.NewRunner(logger)})
		words := make([]bake.Word, len(flagEval))
		for i, e := range flagEval {
			words[i] = bake.Word(e)
		}
		expanded, err := solver.ExpandTerms(ctx, words)
		if err != nil {
			return err
		}
		for _, w := range expanded {
			fmt.Println(w)
		}
	}

	if flagList || len(flagEval) > 0 {
		return nil
	}

	goals := parseGoalArgs(reg, args)
	if goals == nil {
		return nil
	}

	return buildGoals(ctx, reg, goals, jobs)
}

// parseGoalArgs implements §6.1's "(none)" dispatch rule: a positional
// arg list containing a separator token is a definition, fed straight to
// Registry.Define; otherwise it names goals to build. Returns nil (with
// the definition already applied) when args was a definition.
func parseGoalArgs(reg *bake.Registry, args []string) []bake.Word {
	if len(args) == 0 {
		if dg, ok := reg.DefaultGoals(); ok {
			return []bake.Word(dg)
		}
		return nil
	}

	words := make([]bake.Word, len(args))
	isDefinition := false
	for i, a := range args {
		words[i] = bake.Word(a)
		if a == ":" || a == "=" || a == "::" {
			isDefinition = true
		}
	}

	if isDefinition {
		if err := reg.Define(words); err != nil {
			logger.Error("definition rejected", zap.Error(err), zap.String("run_id", runID))
		}
		return nil
	}
	return words
}

func buildGoals(ctx context.Context, reg *bake.Registry, goals []bake.Word, jobs int) error {
	store := backend.NewStore()
	runner := shellexec.NewRunner(logger)
	be := backend.NewFingerprintBackend(store, runner)

	solve := func() (*bake.Plan, error) {
		solver := bake.NewSolver(reg, speculativeRunner{runner})
		return solver.Solve(ctx, goals)
	}

	exec := executor.New(reg, be, jobs,
		executor.WithLogger(logger),
		executor.WithBatchFingerprinter(backend.FileFingerprints),
	)

	plan, err := solve()
	if err != nil {
		return err
	}
	if err := exec.Run(ctx, plan); err != nil {
		return err
	}

	if !flagWatch {
		return nil
	}

	var sources []string
	for _, rule := range reg.Rules() {
		if rule.Kind != bake.KindGrounded || !rule.IsTerminal() {
			continue
		}
		for _, t := range rule.Outputs {
			sources = append(sources, t.Raw())
		}
	}
	w, err := watch.New(sources, logger, 300*time.Millisecond)
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		plan, err := solve()
		if err != nil {
			return err
		}
		return exec.Run(ctx, plan)
	})
}

func printRegistry(reg *bake.Registry) {
	for _, rule := range reg.Rules() {
		fmt.Printf("rule %d: %v\n", rule.ID, rule)
	}
	for name, vals := range reg.Globals() {
		fmt.Printf("global %s = %v\n", name, vals)
	}
}

// loadRulesFile reads one definition token vector per non-blank,
// non-comment line, splitting on whitespace. No shell quoting is
// interpreted: quote characters stay part of the token they appear in.
func loadRulesFile(reg *bake.Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		words := make([]bake.Word, len(fields))
		for i, field := range fields {
			words[i] = bake.Word(field)
		}
		if err := reg.Define(words); err != nil {
			return err
		}
	}
	return scanner.Err()
}
