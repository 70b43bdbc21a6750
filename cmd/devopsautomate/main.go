package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zuercheram/DevopsAutomate/internal/csvio"
	"github.com/zuercheram/DevopsAutomate/internal/remote/azdo"
	"github.com/zuercheram/DevopsAutomate/internal/service/cleanup"
	"github.com/zuercheram/DevopsAutomate/internal/service/hierarchy"
	"github.com/zuercheram/DevopsAutomate/internal/service/lifecycle"
	"github.com/zuercheram/DevopsAutomate/internal/service/membership"
	"github.com/zuercheram/DevopsAutomate/internal/service/reconciler"
	"github.com/zuercheram/DevopsAutomate/internal/service/security"
	"github.com/zuercheram/DevopsAutomate/internal/service/tree"
	"github.com/zuercheram/DevopsAutomate/pkg/config"
	"github.com/zuercheram/DevopsAutomate/pkg/logger"
)

var buildVersion = "dev"

var (
	flagConfig  string
	flagOrg     string
	flagProject string
	flagToken   string
	flagInput   string
	flagOutput  string
	flagOwner   string
	flagDryRun  bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "devopsautomate",
	Short:        "Reconcile a declared team structure against a work-tracking project",
	SilenceUsage: true,
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create or align teams, paths, memberships and permissions from the input table",
	RunE:  runProvision,
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Reverse a provisioned structure in dependency-inverse order",
	RunE:  runTeardown,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("devopsautomate", buildVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigPath(), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagOrg, "org", "", "Organization base URL")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Project name")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Personal access token (prompted when omitted)")
	rootCmd.PersistentFlags().StringVar(&flagInput, "input", "", "Team table CSV to read")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "CSV to write with identities filled in (defaults to input)")
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "", "Designated owner email for teardown")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Log planned changes without mutating")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.AddCommand(provisionCmd, teardownCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagOrg != "" {
		cfg.OrgURL = flagOrg
	}
	if flagProject != "" {
		cfg.Project = flagProject
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagInput != "" {
		cfg.InputPath = flagInput
	}
	if flagOutput != "" {
		cfg.OutputPath = flagOutput
	}
	if flagOwner != "" {
		cfg.OwnerEmail = flagOwner
	}
	cfg.DryRun = flagDryRun
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Token == "" {
		token, err := promptToken()
		if err != nil {
			return config.Config{}, err
		}
		cfg.Token = token
	}
	return cfg, nil
}

func promptToken() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("personal access token required (--token or DEVOPS_PAT)")
	}
	fmt.Fprint(os.Stderr, "Personal access token: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(bytes))
	if token == "" {
		return "", fmt.Errorf("personal access token is empty")
	}
	return token, nil
}

func setup(ctx context.Context) (config.Config, *slog.Logger, *azdo.Client, *hierarchy.Resolver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := logger.New("devopsautomate", level).With("run_id", uuid.NewString(), "project", cfg.Project)

	records, err := csvio.ReadFile(cfg.InputPath)
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}
	resolver, err := hierarchy.New(records)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("validate records: %w", err)
	}

	client, err := azdo.New(cfg.OrgURL, cfg.Project, cfg.Token, azdo.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}
	log.Info("checking connectivity", "org", cfg.OrgURL)
	if err := client.Ping(ctx); err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("connectivity check failed: %w", err)
	}
	return cfg, log, client, resolver, nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, client, resolver, err := setup(ctx)
	if err != nil {
		return err
	}

	trees := tree.New(client, log, cfg.DryRun)
	sec := security.New(client, client, client, log, cfg.DryRun)
	lc := lifecycle.New(client, log, cfg.DryRun)
	ms := membership.New(client, log, cfg.ContributorsGrp, cfg.DryRun)
	rec := reconciler.New(client, trees, sec, lc, ms, log, cfg.DryRun)

	result, err := rec.Run(ctx, resolver)
	if err != nil {
		return err
	}

	if len(result.Renames) > 0 {
		cl := cleanup.New(client, trees, sec, log, cfg.Project, cfg.SentinelTeam, cfg.OwnerEmail, cfg.DryRun)
		cl.RenameCleanup(ctx, resolver, result.Renames)
	}

	out := cfg.OutputPath
	if out == "" {
		out = cfg.InputPath
	}
	if cfg.DryRun {
		log.Info("dry run complete, table not written", "output", out)
		return nil
	}
	if err := csvio.WriteFile(out, resolver.Records()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	log.Info("provision complete", "teams", len(resolver.Records()), "output", out)
	return nil
}

func runTeardown(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, client, resolver, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.OwnerEmail == "" {
		return fmt.Errorf("designated owner email is required for teardown (--owner or DEVOPS_OWNER_EMAIL)")
	}

	trees := tree.New(client, log, cfg.DryRun)
	sec := security.New(client, client, client, log, cfg.DryRun)
	cl := cleanup.New(client, trees, sec, log, cfg.Project, cfg.SentinelTeam, cfg.OwnerEmail, cfg.DryRun)

	if err := cl.Teardown(ctx, resolver); err != nil {
		return err
	}
	log.Info("teardown complete", "teams", len(resolver.Records()))
	return nil
}
