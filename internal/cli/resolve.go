package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"price-resolver/internal/app"
	"price-resolver/internal/httpapi"
)

var (
	resolveDate    string
	resolveProduct int64
	resolveBrand   int64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the applicable price for a product, brand, and date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveProduct <= 0 {
			return fmt.Errorf("--product must be greater than zero")
		}
		if resolveBrand <= 0 {
			return fmt.Errorf("--brand must be greater than zero")
		}

		var date time.Time
		if resolveDate != "" {
			parsed, err := time.Parse(httpapi.DateFormat, resolveDate)
			if err != nil {
				return fmt.Errorf("--date must use format %s", httpapi.DateFormat)
			}
			date = parsed.UTC()
		}

		opts := app.ResolveOptions{
			Date:      date,
			ProductID: resolveProduct,
			BrandID:   resolveBrand,
		}

		return getApp().Resolve(cmd.Context(), opts)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveDate, "date", "", "Resolution date, format 2006-01-02-15.04.05")
	resolveCmd.Flags().Int64Var(&resolveProduct, "product", 0, "Product ID")
	resolveCmd.Flags().Int64Var(&resolveBrand, "brand", 0, "Brand ID")
}
