package market

// MockName is reported as the snapshot source when canned quotes are served.
const MockName = "mock"

// MockSource serves canned quotes for the sample portfolio. It never touches
// the network or a cache.
type MockSource struct {
	quotes map[string]Quote
}

func NewMockSource() *MockSource {
	return &MockSource{quotes: cannedQuotes()}
}

// Quotes returns an entry for every requested symbol; symbols outside the
// canned set get a zero-price placeholder.
func (m *MockSource) Quotes(symbols []string) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	for _, sym := range symbols {
		if q, ok := m.quotes[sym]; ok {
			out[sym] = q
			continue
		}
		out[sym] = Placeholder(sym)
	}
	return out
}

func (m *MockSource) Known(symbol string) bool {
	_, ok := m.quotes[symbol]
	return ok
}

func canned(symbol string, price, pe, marketCap float64, volume int64) Quote {
	return Quote{
		Symbol:    symbol,
		Price:     price,
		PERatio:   floatPtr(pe),
		MarketCap: floatPtr(marketCap),
		Volume:    int64Ptr(volume),
	}
}

func cannedQuotes() map[string]Quote {
	list := []Quote{
		canned("INFY.NS", 1725.30, 25.86, 713971.52, 5234567),
		canned("TCS.NS", 3850.00, 28.45, 1402345.67, 2134567),
		canned("WIPRO.NS", 445.75, 22.15, 245678.90, 8765432),
		canned("HDFCBANK.NS", 1700.15, 18.69, 1300795.86, 4567890),
		canned("ICICIBANK.NS", 1215.50, 17.68, 859583.56, 6789012),
		canned("AXISBANK.NS", 1095.25, 14.25, 337890.45, 5678901),
		canned("TATAMOTORS.NS", 620.00, 12.45, 245678.90, 9876543),
		canned("MARUTI.NS", 11500.00, 31.25, 347890.12, 1234567),
		canned("ITC.NS", 435.50, 24.56, 538901.23, 7890123),
		canned("HINDUNILVR.NS", 2350.00, 58.45, 553456.78, 2345678),
		canned("RELIANCE.NS", 2895.75, 26.34, 1954321.09, 5678901),
		canned("ONGC.NS", 245.60, 8.92, 308901.23, 8901234),
	}
	out := make(map[string]Quote, len(list))
	for _, q := range list {
		out[q.Symbol] = q
	}
	return out
}
