package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the scan, reward and subscription tables if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DB.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated (%s)\n", st.DB.Dialect())
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DB.HealthCheck(ctx, 2*time.Second); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")
		return nil
	},
}
