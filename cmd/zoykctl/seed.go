package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coursepay_backend/internals/bootstrap"
	"coursepay_backend/internals/configs"
	database "coursepay_backend/internals/databases"
	"coursepay_backend/internals/seeds"
)

func seedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sandbox transactions so test callbacks have a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			configs.LoadEnv()
			database.ConnectDB()
			defer database.Close()
			database.AutoMigrate(database.DB, bootstrap.Models()...)

			ctx := cmd.Context()
			svc, err := bootstrap.Build(ctx, database.DB)
			if err != nil {
				return err
			}
			defer svc.Close(context.Background())

			n, err := seeds.RunAllSeeds(ctx, svc.Store, v.GetString("seed-dir"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d transaction(s)\n", n)
			return nil
		},
	}
	cmd.Flags().String("dir", "internals/seeds", "seed data directory")
	_ = v.BindPFlag("seed-dir", cmd.Flags().Lookup("dir"))
	return cmd
}
