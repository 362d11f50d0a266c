package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-resolver/internal/app"
)

var (
	rulesProduct int64
	rulesBrand   int64
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List stored pricing rules for a product and brand",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesProduct <= 0 {
			return fmt.Errorf("--product must be greater than zero")
		}
		if rulesBrand <= 0 {
			return fmt.Errorf("--brand must be greater than zero")
		}

		opts := app.RulesOptions{
			ProductID: rulesProduct,
			BrandID:   rulesBrand,
		}

		return getApp().Rules(cmd.Context(), opts)
	},
}

func init() {
	rulesCmd.Flags().Int64Var(&rulesProduct, "product", 0, "Product ID")
	rulesCmd.Flags().Int64Var(&rulesBrand, "brand", 0, "Brand ID")
}
