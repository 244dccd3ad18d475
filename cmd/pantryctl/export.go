package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the user's scan history to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		out, _ := cmd.Flags().GetString("out")

		from, err := parseYMD("from", fromStr)
		if err != nil {
			return err
		}
		to, err := parseYMD("to", toStr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		buf, err := st.Exporter.ExportScansXLSX(ctx, user, from, to)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, buf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(buf))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("from", "", "from date YYYY-MM-DD (inclusive)")
	exportCmd.Flags().String("to", "", "to date YYYY-MM-DD (inclusive)")
	exportCmd.Flags().StringP("out", "o", "scans.xlsx", "output file")
}

func parseYMD(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}
