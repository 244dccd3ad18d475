package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/pantry-receipts/internal/server"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show the user's quota position for the current day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
			conn, err := grpc.NewClient(remote, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", remote, err)
			}
			defer conn.Close()
			resp, err := server.NewScanClient(conn).GetUsage(ctx, &server.GetUsageRequest{UserID: user})
			if err != nil {
				return err
			}
			return printJSON(cmd, resp.Usage)
		}

		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		tier, err := st.Subscriptions.Tier(ctx, user)
		if err != nil {
			return err
		}
		state, err := st.Ledger.Usage(ctx, user, tier)
		if err != nil {
			return err
		}
		return printJSON(cmd, state)
	},
}

func init() {
	usageCmd.Flags().String("remote", "", "pantryd gRPC address; reads the store directly when empty")
}
