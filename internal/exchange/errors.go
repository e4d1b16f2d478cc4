package exchange

import "tradingengine/internal/errs"

// mapHTTPStatus turns a REST response's status/body into the engine's
// error taxonomy so callers never branch on exchange-specific codes.
func mapHTTPStatus(op string, status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return errs.New(errs.Auth, op, errValue(body))
	case status == 429:
		return errs.New(errs.RateLimit, op, errValue(body))
	case status >= 500:
		return errs.New(errs.Network, op, errValue(body))
	case status >= 400:
		return errs.New(errs.ExchangeRejected, op, errValue(body))
	default:
		return nil
	}
}

type plainError string

func (e plainError) Error() string { return string(e) }

func errValue(body string) error {
	if body == "" {
		return nil
	}
	return plainError(body)
}
