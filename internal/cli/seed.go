package cli

import (
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and load the sample rule set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Seed(cmd.Context())
	},
}
