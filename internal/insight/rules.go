package insight

import (
	"fmt"

	"github.com/shopspring/decimal"

	"portfolio-dashboard/internal/market"
	"portfolio-dashboard/internal/portfolio"
)

// concentrationPct is the sector weight above which a risk is reported.
var concentrationPct = decimal.NewFromInt(40)

type holdingSummary struct {
	Symbol    string `json:"symbol"`
	Sector    string `json:"sector"`
	WeightPct string `json:"weightPct"`
	ReturnPct string `json:"returnPct"`
	Priced    bool   `json:"priced"`
}

type sectorSummary struct {
	Sector    string `json:"sector"`
	WeightPct string `json:"weightPct"`
	ReturnPct string `json:"returnPct"`
}

type input struct {
	Currency        string           `json:"currency"`
	Source          string           `json:"source"`
	TotalInvestment string           `json:"totalInvestment"`
	TotalPresent    string           `json:"totalPresentValue"`
	ReturnPct       string           `json:"returnPct"`
	Holdings        []holdingSummary `json:"holdings"`
	Sectors         []sectorSummary  `json:"sectors"`
}

func returnPct(gain, investment decimal.Decimal) decimal.Decimal {
	if !investment.IsPositive() {
		return decimal.Zero
	}
	return gain.Div(investment).Mul(decimal.NewFromInt(100)).Round(2)
}

func summarize(s portfolio.Snapshot, currency string) input {
	in := input{
		Currency:        currency,
		Source:          s.Source,
		TotalInvestment: s.TotalInvestment.StringFixed(2),
		TotalPresent:    s.TotalPresentValue.StringFixed(2),
		ReturnPct:       returnPct(s.TotalGainLoss, s.TotalInvestment).StringFixed(2),
		Holdings:        make([]holdingSummary, 0, len(s.Stocks)),
		Sectors:         make([]sectorSummary, 0, len(s.Sectors)),
	}
	for _, v := range s.Stocks {
		in.Holdings = append(in.Holdings, holdingSummary{
			Symbol:    v.Symbol,
			Sector:    v.Sector,
			WeightPct: v.PortfolioPercentage.StringFixed(2),
			ReturnPct: returnPct(v.GainLoss, v.Investment).StringFixed(2),
			Priced:    v.CMP.IsPositive(),
		})
	}
	for _, sec := range s.Sectors {
		in.Sectors = append(in.Sectors, sectorSummary{
			Sector:    sec.Sector,
			WeightPct: sectorWeight(sec, s.TotalInvestment).StringFixed(2),
			ReturnPct: returnPct(sec.GainLoss, sec.TotalInvestment).StringFixed(2),
		})
	}
	return in
}

func sectorWeight(sec portfolio.SectorAggregate, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return sec.TotalInvestment.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

// Fallback derives an insight from the figures alone.
func Fallback(s portfolio.Snapshot, currency string) Insight {
	out := Insight{Highlights: []string{}, Risks: []string{}, Mode: ModeRules}
	if len(s.Stocks) == 0 {
		out.Summary = "The portfolio is empty."
		return out
	}

	out.Summary = fmt.Sprintf("Invested %s, now worth %s (%s%%).",
		market.FormatDecimal(s.TotalInvestment, currency),
		market.FormatDecimal(s.TotalPresentValue, currency),
		signed(returnPct(s.TotalGainLoss, s.TotalInvestment)))

	var best, worst *portfolio.ValuedHolding
	var unpriced []string
	for i := range s.Stocks {
		v := &s.Stocks[i]
		if !v.CMP.IsPositive() {
			unpriced = append(unpriced, v.Symbol)
			continue
		}
		r := returnPct(v.GainLoss, v.Investment)
		if best == nil || r.GreaterThan(returnPct(best.GainLoss, best.Investment)) {
			best = v
		}
		if worst == nil || r.LessThan(returnPct(worst.GainLoss, worst.Investment)) {
			worst = v
		}
	}
	if best != nil {
		out.Highlights = append(out.Highlights, fmt.Sprintf("Best performer: %s at %s%%.",
			best.Symbol, signed(returnPct(best.GainLoss, best.Investment))))
	}
	if worst != nil && worst != best {
		out.Highlights = append(out.Highlights, fmt.Sprintf("Weakest performer: %s at %s%%.",
			worst.Symbol, signed(returnPct(worst.GainLoss, worst.Investment))))
	}
	if len(s.Sectors) > 0 {
		top := s.Sectors[0]
		w := sectorWeight(top, s.TotalInvestment)
		out.Highlights = append(out.Highlights, fmt.Sprintf("Largest sector: %s with %s%% of the investment.",
			top.Sector, w.StringFixed(2)))
		if w.GreaterThan(concentrationPct) {
			out.Risks = append(out.Risks, fmt.Sprintf("%s holds more than %s%% of the portfolio.",
				top.Sector, concentrationPct.String()))
		}
	}
	if len(unpriced) > 0 {
		out.Risks = append(out.Risks, fmt.Sprintf("No live price for %d holding(s): %v.", len(unpriced), unpriced))
	}
	if s.Source == market.MockName {
		out.Risks = append(out.Risks, "Prices come from canned demo data.")
	}
	return out
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
