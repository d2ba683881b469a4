package market

import "strings"

// Portfolio symbols use the Yahoo convention: BASE.NS for NSE listings and
// BASE.BO for BSE listings.

// stripExchangeSuffix drops the Indian exchange suffix, INFY.NS -> INFY.
func stripExchangeSuffix(symbol string) string {
	s := strings.TrimSpace(symbol)
	for _, suffix := range []string{".NS", ".BO"} {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// exchangePrefixed maps to EXCHANGE:BASE, INFY.NS -> NSE:INFY. Other dotted
// symbols pass through and bare symbols are assumed to trade on NASDAQ.
func exchangePrefixed(symbol string) string {
	s := strings.TrimSpace(symbol)
	switch {
	case strings.HasSuffix(s, ".NS"):
		return "NSE:" + strings.TrimSuffix(s, ".NS")
	case strings.HasSuffix(s, ".BO"):
		return "BOM:" + strings.TrimSuffix(s, ".BO")
	case strings.Contains(s, "."):
		return s
	default:
		return "NASDAQ:" + s
	}
}
