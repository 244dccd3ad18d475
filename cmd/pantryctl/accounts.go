package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Manage bonus-granting reward events",
}

var rewardGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Record a reward event (e.g. a watched ad) for the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")

		ctx := cmd.Context()
		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ev, err := st.Rewards.Grant(ctx, user, kind)
		if errors.Is(err, quota.ErrRewardCapReached) {
			return fmt.Errorf("user %s already has %d bonus events today", user, st.Policy.MaxBonusEvents)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, ev)
	},
}

var subscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage premium subscriptions",
}

var subscriptionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or replace the user's subscription record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		active, _ := cmd.Flags().GetBool("active")
		expires, _ := cmd.Flags().GetString("expires")

		sub := entity.Subscription{UserID: user, Active: active, UpdatedAt: time.Now().UTC()}
		if expires != "" {
			t, err := time.Parse(time.RFC3339, expires)
			if err != nil {
				return fmt.Errorf("invalid --expires, use RFC 3339: %w", err)
			}
			sub.ExpiresAt = &t
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Subscriptions.Save(ctx, sub); err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"subscription": sub,
			"tier":         quota.ResolveTier(&sub, time.Now()),
		})
	},
}

func init() {
	rewardGrantCmd.Flags().String("kind", entity.RewardKindAdWatch, "reward kind")
	rewardCmd.AddCommand(rewardGrantCmd)

	subscriptionSetCmd.Flags().Bool("active", true, "subscription is active")
	subscriptionSetCmd.Flags().String("expires", "", "expiry instant (RFC 3339); empty means no expiry")
	subscriptionCmd.AddCommand(subscriptionSetCmd)
}
