package market

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrQuotaExceeded means the upstream explicitly throttled us.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrData means the payload was malformed or empty for the symbol.
	ErrData = errors.New("bad data")
	// ErrNotConfigured means a required credential is missing.
	ErrNotConfigured = errors.New("not configured")
)

// ProviderError is the failure of one provider call for one symbol. Kind is
// one of the sentinels above; errors.Is matches both Kind and the cause.
type ProviderError struct {
	Provider string
	Symbol   string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Symbol, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newProviderError(provider, symbol string, kind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Kind: kind, Err: err}
}

// kindOf returns a short label for logging.
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrNotConfigured):
		return "config"
	case errors.Is(err, ErrData):
		return "data"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}
