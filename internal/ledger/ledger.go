// Package ledger keeps the in-progress transaction for one register: the
// scanned line items and their taxed totals. All mutation goes through the
// Ledger's lock, so concurrent scan and purchase handlers see a consistent
// cart.
package ledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

// Product is a catalog entry as it lands in the cart. Unregistered codes get
// the placeholder product (ID 0, price 0) so the cashier still sees the row.
type Product struct {
	ID    int64  `json:"prd_id"`
	Code  string `json:"product_code"`
	Name  string `json:"product_name"`
	Price int64  `json:"unit_price"`
}

// Registered reports whether the product came from the catalog rather than
// the unregistered placeholder.
func (p Product) Registered() bool { return p.ID != 0 }

// LineItem is one cart row.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int64   `json:"quantity"`
}

// Amount returns the row subtotal in yen.
func (l LineItem) Amount() int64 { return l.Product.Price * l.Quantity }

// Totals is the taxed summary of a cart. All amounts are integer yen.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// RoundingMode picks how the fractional tax amount collapses to whole yen.
type RoundingMode string

const (
	RoundFloor RoundingMode = "floor"
	RoundHalf  RoundingMode = "round"
	RoundCeil  RoundingMode = "ceil"
)

// Policy is the tax treatment applied when totals are computed.
type Policy struct {
	Rate     decimal.Decimal
	Rounding RoundingMode
}

// DefaultPolicy is 10% consumption tax, fraction dropped.
func DefaultPolicy() Policy {
	return Policy{Rate: decimal.New(10, -2), Rounding: RoundFloor}
}

// ParsePolicy builds a Policy from the configured rate string and rounding
// mode name.
func ParsePolicy(rate, rounding string) (Policy, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return Policy{}, fmt.Errorf("parsing tax rate %q: %w", rate, err)
	}
	if r.IsNegative() {
		return Policy{}, fmt.Errorf("tax rate %q is negative", rate)
	}
	mode := RoundingMode(strings.ToLower(strings.TrimSpace(rounding)))
	switch mode {
	case RoundFloor, RoundHalf, RoundCeil:
	case "":
		mode = RoundFloor
	default:
		return Policy{}, fmt.Errorf("unknown tax rounding %q: want floor, round or ceil", rounding)
	}
	return Policy{Rate: r, Rounding: mode}, nil
}

// Tax returns the tax amount in yen for the given subtotal.
func (p Policy) Tax(subtotal int64) int64 {
	raw := p.Rate.Mul(decimal.NewFromInt(subtotal))
	switch p.Rounding {
	case RoundCeil:
		return raw.Ceil().IntPart()
	case RoundHalf:
		return raw.Round(0).IntPart()
	default:
		return raw.Floor().IntPart()
	}
}

// Ledger is one register's open transaction.
type Ledger struct {
	mu     sync.Mutex
	lines  []LineItem
	policy Policy
}

func New(policy Policy) *Ledger {
	return &Ledger{policy: policy}
}

// AddOrIncrement puts the product into the cart. Scanning something already
// present bumps its quantity instead of adding a second row. Rows are matched
// by catalog ID when both sides have one, otherwise by code.
func (l *Ledger) AddOrIncrement(p Product) (LineItem, error) {
	if p.Code == "" {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.indexOf(p); i >= 0 {
		l.lines[i].Quantity++
		return l.lines[i], nil
	}
	line := LineItem{Product: p, Quantity: 1}
	l.lines = append(l.lines, line)
	return line, nil
}

// SetQuantity overwrites a row's quantity, clamped to at least one. Removing
// a row is an explicit Remove, never a zero quantity.
func (l *Ledger) SetQuantity(code string, quantity int64) (LineItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfCode(code)
	if i < 0 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "no cart row for code "+code)
	}
	if quantity < 1 {
		quantity = 1
	}
	l.lines[i].Quantity = quantity
	return l.lines[i], nil
}

// Increment bumps a row's quantity by one.
func (l *Ledger) Increment(code string) (LineItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfCode(code)
	if i < 0 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "no cart row for code "+code)
	}
	l.lines[i].Quantity++
	return l.lines[i], nil
}

// Decrement lowers a row's quantity by one, flooring at one.
func (l *Ledger) Decrement(code string) (LineItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfCode(code)
	if i < 0 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "no cart row for code "+code)
	}
	if l.lines[i].Quantity > 1 {
		l.lines[i].Quantity--
	}
	return l.lines[i], nil
}

// Remove deletes a row from the cart.
func (l *Ledger) Remove(code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfCode(code)
	if i < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no cart row for code "+code)
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	return nil
}

// Clear empties the cart, typically after a completed purchase.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}

// Lines returns a copy of the cart rows in insertion order.
func (l *Ledger) Lines() []LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LineItem, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of cart rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Totals recomputes the taxed summary from the current rows. Nothing is
// cached; every call reflects the cart as it stands.
func (l *Ledger) Totals() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()

	var subtotal int64
	for _, line := range l.lines {
		subtotal += line.Amount()
	}
	tax := l.policy.Tax(subtotal)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

// Policy exposes the tax treatment this ledger applies.
func (l *Ledger) Policy() Policy { return l.policy }

// indexOf matches by id when both sides carry one, otherwise by code, so a
// registered product merges with a placeholder row scanned under the same code.
func (l *Ledger) indexOf(p Product) int {
	for i, line := range l.lines {
		if p.ID != 0 && line.Product.ID != 0 {
			if line.Product.ID == p.ID {
				return i
			}
			continue
		}
		if line.Product.Code == p.Code {
			return i
		}
	}
	return -1
}

func (l *Ledger) indexOfCode(code string) int {
	for i, line := range l.lines {
		if line.Product.Code == code {
			return i
		}
	}
	return -1
}
