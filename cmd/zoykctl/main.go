package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zoykctl",
		Short:         "Operator tools for Zoyktech mobile money payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("secret", "", "merchant secret key (env ZOYKTECH_SECRET_KEY)")
	_ = v.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))
	_ = v.BindEnv("secret", "ZOYKTECH_SECRET_KEY")

	rootCmd.AddCommand(signCmd(v))
	rootCmd.AddCommand(verifyCmd(v))
	rootCmd.AddCommand(sweepCmd(v))
	rootCmd.AddCommand(seedCmd(v))

	return rootCmd
}
