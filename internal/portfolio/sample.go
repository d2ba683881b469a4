package portfolio

import "github.com/shopspring/decimal"

func sample(symbol, name, price string, qty int64, sector string) Holding {
	return Holding{
		Symbol:        symbol,
		Name:          name,
		PurchasePrice: decimal.RequireFromString(price),
		Quantity:      qty,
		Exchange:      "NSE",
		Sector:        sector,
	}
}

// SampleHoldings is the demo portfolio loaded on startup.
func SampleHoldings() []Holding {
	return []Holding{
		sample("INFY.NS", "Infosys Ltd", "1450.50", 50, "Technology"),
		sample("TCS.NS", "Tata Consultancy Services", "3500.00", 30, "Technology"),
		sample("WIPRO.NS", "Wipro Ltd", "420.75", 100, "Technology"),
		sample("HDFCBANK.NS", "HDFC Bank", "1650.00", 40, "Financials"),
		sample("ICICIBANK.NS", "ICICI Bank", "950.50", 60, "Financials"),
		sample("AXISBANK.NS", "Axis Bank", "875.25", 50, "Financials"),
		sample("TATAMOTORS.NS", "Tata Motors", "580.00", 80, "Automobile"),
		sample("MARUTI.NS", "Maruti Suzuki", "9500.00", 10, "Automobile"),
		sample("ITC.NS", "ITC Ltd", "420.50", 120, "FMCG"),
		sample("HINDUNILVR.NS", "Hindustan Unilever", "2450.00", 25, "FMCG"),
		sample("RELIANCE.NS", "Reliance Industries", "2400.00", 35, "Energy"),
		sample("ONGC.NS", "Oil and Natural Gas Corp", "180.50", 200, "Energy"),
	}
}
