package portfolio

import "sort"

// holdings maps ticker to owned share count. A ticker is present iff its
// quantity is greater than zero; decreasing to zero removes the key.
type holdings map[string]int

// increase adds n shares of ticker, inserting the key if absent.
func (h holdings) increase(ticker string, n int) {
	h[ticker] += n
}

// decrease removes n shares of ticker, deleting the key when the count hits
// zero. Callers must have checked that n does not exceed the current count.
func (h holdings) decrease(ticker string, n int) {
	rest := h[ticker] - n
	if rest <= 0 {
		delete(h, ticker)
		return
	}
	h[ticker] = rest
}

// isEmpty reports whether no shares are held at all.
func (h holdings) isEmpty() bool {
	return len(h) == 0
}

// tickers returns the held tickers in sorted order.
func (h holdings) tickers() []string {
	out := make([]string, 0, len(h))
	for t := range h {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
