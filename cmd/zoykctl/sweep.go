package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coursepay_backend/internals/bootstrap"
	"coursepay_backend/internals/configs"
	database "coursepay_backend/internals/databases"
)

func sweepCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation sweep against the configured database",
		Long: `Sweep loads stale pending/processing transactions, asks Zoyktech for their status
and applies the answer. Transactions past --expire-after are expired.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs.LoadEnv()
			database.ConnectDB()
			defer database.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			svc, err := bootstrap.Build(ctx, database.DB)
			if err != nil {
				return err
			}
			defer svc.Close(context.Background())

			sw := svc.Sweeper
			if v.IsSet("stale-after") {
				sw.StaleAfter = v.GetDuration("stale-after")
			}
			if v.IsSet("expire-after") {
				sw.ExpireAfter = v.GetDuration("expire-after")
			}
			if v.IsSet("batch") {
				sw.BatchSize = v.GetInt("batch")
			}

			rep, err := sw.RunOnce(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	cmd.Flags().Duration("stale-after", 10*time.Minute, "only poll transactions untouched for this long (env SWEEP_STALE_AFTER)")
	cmd.Flags().Duration("expire-after", 24*time.Hour, "expire transactions older than this, 0 disables (env SWEEP_EXPIRE_AFTER)")
	cmd.Flags().Int("batch", 50, "maximum transactions per run (env SWEEP_BATCH_SIZE)")
	cmd.Flags().Duration("timeout", 5*time.Minute, "overall deadline")
	_ = v.BindPFlag("stale-after", cmd.Flags().Lookup("stale-after"))
	_ = v.BindPFlag("expire-after", cmd.Flags().Lookup("expire-after"))
	_ = v.BindPFlag("batch", cmd.Flags().Lookup("batch"))
	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}
