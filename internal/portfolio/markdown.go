package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"portfolio-dashboard/internal/market"
)

// Markdown renders the snapshot as a report with one table per sector.
// Amounts are shown in currency.
func Markdown(s Snapshot, currency string) string {
	amt := func(d decimal.Decimal) string { return market.FormatDecimal(d, currency) }

	var b strings.Builder
	b.WriteString("# Portfolio\n\n")
	fmt.Fprintf(&b, "_Updated %s", s.LastUpdated)
	if s.Source != "" {
		fmt.Fprintf(&b, " · source: %s", s.Source)
	}
	b.WriteString("_\n\n")

	b.WriteString("| Investment | Present value | Gain/Loss |\n|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %s | %s | %s |\n\n", amt(s.TotalInvestment), amt(s.TotalPresentValue), amt(s.TotalGainLoss))

	for _, sec := range s.Sectors {
		fmt.Fprintf(&b, "## %s\n\n", sec.Sector)
		fmt.Fprintf(&b, "Investment %s, present value %s, gain/loss %s\n\n",
			amt(sec.TotalInvestment), amt(sec.TotalPresentValue), amt(sec.GainLoss))
		b.WriteString("| Symbol | Name | Qty | Buy | CMP | Investment | Present | Gain/Loss | Weight | P/E | EPS |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, v := range sec.Stocks {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s | %s | %s%% | %s | %s |\n",
				v.Symbol, v.Name, v.Quantity,
				amt(v.PurchasePrice), amt(v.CMP), amt(v.Investment), amt(v.PresentValue), amt(v.GainLoss),
				v.PortfolioPercentage.StringFixed(2), peText(v.PERatio), earningsText(v.LatestEarnings))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func peText(pe *float64) string {
	if pe == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *pe)
}

func earningsText(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
