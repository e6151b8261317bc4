package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alpaca-trader/internal/store"
)

// newPositionsCmd creates the positions command: list open position rows.
func newPositionsCmd(app *App) *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("position store unavailable")
			}

			positions, err := app.Store.OpenPositions(cmd.Context(), store.PositionFilter{Symbol: symbol})
			if err != nil {
				return err
			}
			if len(positions) == 0 {
				fmt.Println("No open positions.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSYMBOL\tQTY\tPURCHASED\tPRICE\tORDER")
			for _, p := range positions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
					p.ID, p.Symbol, p.Quantity, p.PurchaseDate.Format("2006-01-02"), p.PurchasePrice, p.PurchaseOrderID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "restrict to one symbol")
	return cmd
}
