package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/pantry-receipts/internal/app"
	"github.com/joseph-ayodele/pantry-receipts/internal/common"
)

var (
	cfgFile string
	v       = viper.New()
	logger  = slog.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pantryctl",
	Short: "Scan grocery receipts into pantry items and manage scan quota.",
	Long: `pantryctl runs the receipt extraction pipeline locally or against a
running pantryd, and administers the quota store (rewards, subscriptions,
migrations, history export).`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if inmem, _ := cmd.Flags().GetBool("inmem"); inmem {
			v.Set("db_url", "sqlite:file::memory:?cache=shared")
		}
		level, _ := cmd.Flags().GetString("loglevel")
		logger = app.NewLogger(common.LogConfig{Level: level, Format: "json"}, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(common.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pantry.yaml)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id to act as")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("inmem", false, "use an in-memory SQLite store (implies migrate)")
	_ = v.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	rootCmd.AddCommand(
		scanCmd,
		usageCmd,
		exportCmd,
		watchCmd,
		rewardCmd,
		subscriptionCmd,
		migrateCmd,
		healthCmd,
		ocrCmd,
		parseCmd,
	)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	common.LoadDotEnv(logger)
	common.SetDefaults(v)
	if err := common.ReadConfigFile(v, cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func config() *common.Config {
	return common.LoadConfig(v)
}

func userID() (string, error) {
	u := v.GetString("user")
	if u == "" {
		return "", fmt.Errorf("--user is required")
	}
	return u, nil
}

// openStore opens the store; in-memory stores are migrated on open.
func openStore(ctx context.Context, cmd *cobra.Command) (*app.Store, error) {
	cfg := config()
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if inmem, _ := cmd.Flags().GetBool("inmem"); inmem {
		if err := st.DB.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// openApp builds the full pipeline, migrating in-memory stores on open.
func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg := config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if inmem, _ := cmd.Flags().GetBool("inmem"); inmem {
		if err := a.DB.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func printJSON(cmd *cobra.Command, val any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}
