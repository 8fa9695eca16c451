package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ingester-go/internal/app"
	"ingester-go/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an IngestApp for command.
// The caller must defer closeApp.
func newApp(cmd *cobra.Command, command config.Command) (*app.IngestApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewIngestApp(cmd.Context(), cfg, command, changedFlags(cmd), app.Options{
		Debug:     flagDebug,
		PullFirst: flagPullFirst && !flagNoPullFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp closes a and folds its error into *errp.
func closeApp(cmd *cobra.Command, a *app.IngestApp, errp *error) {
	if err := a.Close(cmd.Context()); err != nil && *errp == nil {
		*errp = err
	}
}

// changedFlags renders the flags set on the command line for the run ledger.
func changedFlags(cmd *cobra.Command) []string {
	var params []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		params = append(params, fmt.Sprintf("--%s=%s", f.Name, f.Value))
	})
	return params
}

var (
	flagDebug       bool
	flagPullFirst   bool
	flagNoPullFirst bool
)

var rootCmd = &cobra.Command{
	Use:          "ingester",
	Short:        "Load Kindle exports, Confluence pages and journal mails into a Logseq vault",
	SilenceUsage: true,
}

var kindleCmd = &cobra.Command{
	Use:   string(config.CommandKindle),
	Short: "Download today's Kindle exports into the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		filetype, _ := cmd.Flags().GetString("filetype")

		a, err := newApp(cmd, config.CommandKindle)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		report, err := a.IngestKindle(cmd.Context(), filetype)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d, written %d, skipped %d, failed %d\n",
			report.Found, report.Written, report.Skipped, report.Failed)
		return nil
	},
}

var confluenceCmd = &cobra.Command{
	Use:   string(config.CommandConfluence),
	Short: "Write recently updated Confluence pages into the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		days, _ := cmd.Flags().GetInt("days")
		if days < 0 {
			return fmt.Errorf("--days must not be negative")
		}

		a, err := newApp(cmd, config.CommandConfluence)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		n, err := a.IngestConfluence(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d pages\n", n)
		return nil
	},
}

var journalCmd = &cobra.Command{
	Use:   string(config.CommandJournal),
	Short: "Append today's journal mails to the vault journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, config.CommandJournal)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		n, err := a.IngestJournal(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Appended %d journal blocks\n", n)
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

		cfg := config.NewConfig(defaults["base_dir"], defaults["sync_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(out, "Base Dir: %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Vault:    %s\n", cfg.VaultDir())
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
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", defaults["config_path"])
		fmt.Fprintf(out, "Base Dir:   %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:    %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Vault:      %s\n", cfg.VaultDir())
		fmt.Fprintf(out, "Mail:       %s %s:%d user=%s password=%s\n",
			orDefault(cfg.Mail.Type, "imap"), cfg.Mail.IMAPHost, cfg.Mail.IMAPPort, cfg.Mail.IMAPUsername, mask(cfg.Mail.IMAPPassword))
		fmt.Fprintf(out, "Kindle:     %s\n", cfg.Kindle.Sender)
		fmt.Fprintf(out, "Journal:    %s\n", cfg.Journal.Sender)
		fmt.Fprintf(out, "Atlassian:  %s email=%s token=%s\n", cfg.Atlassian.Host, cfg.Atlassian.Email, mask(cfg.Atlassian.Token))
		fmt.Fprintf(out, "Mirror:     %s encrypt=%t\n", orDefault(cfg.Mirror.Type, "disabled"), cfg.Mirror.Encrypt)
		fmt.Fprintf(out, "Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage mirror encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.InitKeys(cfg, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keys written to %s and %s\n",
			cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the vault to or from the mirror",
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download changed files from the mirror",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, config.CommandSync)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		report, err := a.SyncPull(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d files (%d bytes), %d unchanged\n",
			report.Transferred, report.Bytes, report.Unchanged)
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload changed files to the mirror",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, config.CommandSync)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		report, err := a.SyncPush(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d files (%d bytes), %d unchanged\n",
			report.Transferred, report.Bytes, report.Unchanged)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View ingest run history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, config.CommandHistory)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a, &err)

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt.Valid {
				d := run.FinishedAt.Time.Sub(run.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Fprintf(out, "#%d  %-30s  %s  %-8s  %s\n",
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

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log debug output")
	rootCmd.PersistentFlags().BoolVar(&flagPullFirst, "pull-first", true, "Pull the vault from the mirror before ingesting")
	rootCmd.PersistentFlags().BoolVar(&flagNoPullFirst, "no-pull-first", false, "Skip the pull before ingesting")

	// ingest commands
	rootCmd.AddCommand(kindleCmd)
	kindleCmd.Flags().String("filetype", "", "Only route links of this type (pdf or txt)")
	rootCmd.AddCommand(confluenceCmd)
	confluenceCmd.Flags().Int("days", 1, "Include pages updated within this many days")
	rootCmd.AddCommand(journalCmd)

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncPushCmd)
	rootCmd.AddCommand(syncCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
