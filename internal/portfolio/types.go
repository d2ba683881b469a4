package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidHolding is returned for a holding that fails validation.
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrInvariant means the valuation produced inconsistent totals.
	ErrInvariant = errors.New("valuation invariant violated")
)

// Holding is one line of the portfolio as entered by the user.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Quantity      int64           `json:"quantity"`
	Exchange      string          `json:"exchange"`
	Sector        string          `json:"sector"`
}

// Validate requires every field and positive price and quantity.
func (h Holding) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"symbol", h.Symbol},
		{"name", h.Name},
		{"exchange", h.Exchange},
		{"sector", h.Sector},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidHolding, strings.Join(missing, ", "))
	}
	if !h.PurchasePrice.IsPositive() {
		return fmt.Errorf("%w: purchasePrice must be positive", ErrInvalidHolding)
	}
	if h.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidHolding)
	}
	return nil
}

// Normalize trims surrounding whitespace from the text fields.
func (h Holding) Normalize() Holding {
	h.Symbol = strings.TrimSpace(h.Symbol)
	h.Name = strings.TrimSpace(h.Name)
	h.Exchange = strings.TrimSpace(h.Exchange)
	h.Sector = strings.TrimSpace(h.Sector)
	return h
}

// HoldingUpdate is a partial update. Nil fields are left unchanged; the
// symbol itself cannot be changed.
type HoldingUpdate struct {
	Name          *string          `json:"name,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	Quantity      *int64           `json:"quantity,omitempty"`
	Exchange      *string          `json:"exchange,omitempty"`
	Sector        *string          `json:"sector,omitempty"`
}

func (u HoldingUpdate) Empty() bool {
	return u.Name == nil && u.PurchasePrice == nil && u.Quantity == nil && u.Exchange == nil && u.Sector == nil
}

func (u HoldingUpdate) Apply(h Holding) Holding {
	if u.Name != nil {
		h.Name = *u.Name
	}
	if u.PurchasePrice != nil {
		h.PurchasePrice = *u.PurchasePrice
	}
	if u.Quantity != nil {
		h.Quantity = *u.Quantity
	}
	if u.Exchange != nil {
		h.Exchange = *u.Exchange
	}
	if u.Sector != nil {
		h.Sector = *u.Sector
	}
	return h.Normalize()
}

// ValuedHolding is a holding priced against a quote.
type ValuedHolding struct {
	Holding
	Investment          decimal.Decimal `json:"investment"`
	PortfolioPercentage decimal.Decimal `json:"portfolioPercentage"`
	CMP                 decimal.Decimal `json:"cmp"`
	PresentValue        decimal.Decimal `json:"presentValue"`
	GainLoss            decimal.Decimal `json:"gainLoss"`
	PERatio             *float64        `json:"peRatio"`
	LatestEarnings      *string         `json:"latestEarnings"`
}

type SectorAggregate struct {
	Sector            string          `json:"sector"`
	TotalInvestment   decimal.Decimal `json:"totalInvestment"`
	TotalPresentValue decimal.Decimal `json:"totalPresentValue"`
	GainLoss          decimal.Decimal `json:"gainLoss"`
	Stocks            []ValuedHolding `json:"stocks"`
}

// Snapshot is the full valuation served to the dashboard.
type Snapshot struct {
	Stocks            []ValuedHolding   `json:"stocks"`
	Sectors           []SectorAggregate `json:"sectors"`
	TotalInvestment   decimal.Decimal   `json:"totalInvestment"`
	TotalPresentValue decimal.Decimal   `json:"totalPresentValue"`
	TotalGainLoss     decimal.Decimal   `json:"totalGainLoss"`
	LastUpdated       string            `json:"lastUpdated"`
	Source            string            `json:"source,omitempty"`
}
