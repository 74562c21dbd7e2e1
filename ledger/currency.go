/*
currency.go - Display-currency conversion at the system boundary

PURPOSE:
  Every stored monetary field is in the base currency. Members see and enter
  amounts in their display currency; the Converter maps between the two at
  input parsing and output formatting. The engine itself never converts.

  ToBase(x)   = x * rate
  FromBase(x) = x / rate

  Both round to 2 decimal places with standard (half-up) rounding, matching
  presentation precision.
*/
package ledger

import "github.com/shopspring/decimal"

// Currency is immutable reference data: a display currency and its exchange
// rate to the base currency.
type Currency struct {
	ID     CurrencyID
	Name   string
	Symbol string
	Rate   decimal.Decimal // this currency to base
}

// Converter is a stateless lookup over the fixed rate table.
type Converter struct {
	currencies map[CurrencyID]Currency
}

func NewConverter(currencies []Currency) *Converter {
	m := make(map[CurrencyID]Currency, len(currencies))
	for _, c := range currencies {
		m[c.ID] = c
	}
	return &Converter{currencies: m}
}

// Currency returns the reference record for id.
func (c *Converter) Currency(id CurrencyID) (Currency, error) {
	cur, ok := c.currencies[id]
	if !ok {
		return Currency{}, ErrUnknownCurrency
	}
	return cur, nil
}

// ToBase converts a display-currency amount into the base currency.
func (c *Converter) ToBase(amount decimal.Decimal, id CurrencyID) (decimal.Decimal, error) {
	cur, ok := c.currencies[id]
	if !ok {
		return decimal.Zero, ErrUnknownCurrency
	}
	return amount.Mul(cur.Rate).Round(2), nil
}

// FromBase converts a base-currency amount into the display currency.
func (c *Converter) FromBase(amount decimal.Decimal, id CurrencyID) (decimal.Decimal, error) {
	cur, ok := c.currencies[id]
	if !ok {
		return decimal.Zero, ErrUnknownCurrency
	}
	return amount.Div(cur.Rate).Round(2), nil
}
