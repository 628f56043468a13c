// Package cart holds the pure operations on a draft's cart. Every function
// returns a new cart and leaves its argument untouched.
package cart

import (
	"errors"
	"slices"

	"dukaan/backend/internal/domain"
)

// MaxAmountPaise bounds every price, line and total the till handles
// (Rs 100 crore).
const MaxAmountPaise int64 = 1_000_000_000_00

var ErrTotalTooLarge = errors.New("cart total is too large")

// Add puts one unit of item in the cart. An item already present has its
// quantity incremented instead of gaining a second line.
func Add(c domain.Cart, item domain.Item) domain.Cart {
	lines := slices.Clone(c.Lines)
	for i := range lines {
		if lines[i].ItemID == item.ID {
			lines[i].Qty++
			return domain.Cart{Lines: lines}
		}
	}
	lines = append(lines, domain.CartLine{
		ItemID:     item.ID,
		Name:       item.Name,
		PricePaise: item.PricePaise,
		Category:   item.Category,
		StockAtAdd: item.Stock,
		Qty:        1,
	})
	return domain.Cart{Lines: lines}
}

// SetQuantity shifts a line's quantity by delta. The quantity never goes
// below zero and a line that reaches zero is removed.
func SetQuantity(c domain.Cart, itemID string, delta int) domain.Cart {
	lines := make([]domain.CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		if line.ItemID == itemID {
			line.Qty = max(0, line.Qty+delta)
		}
		if line.Qty > 0 {
			lines = append(lines, line)
		}
	}
	return domain.Cart{Lines: lines}
}

func SetNote(c domain.Cart, itemID string, note string) domain.Cart {
	lines := slices.Clone(c.Lines)
	for i := range lines {
		if lines[i].ItemID == itemID {
			lines[i].Note = note
		}
	}
	return domain.Cart{Lines: lines}
}

func Clear(domain.Cart) domain.Cart {
	return domain.Cart{Lines: []domain.CartLine{}}
}

// Total is the sum of price times quantity over every line, in paise. It
// fails once a line or the running sum would pass MaxAmountPaise.
func Total(c domain.Cart) (int64, error) {
	var total int64
	for _, line := range c.Lines {
		if line.PricePaise < 0 || line.Qty < 0 {
			return 0, ErrTotalTooLarge
		}
		if line.PricePaise > 0 && int64(line.Qty) > (MaxAmountPaise-total)/line.PricePaise {
			return 0, ErrTotalTooLarge
		}
		total += line.PricePaise * int64(line.Qty)
	}
	return total, nil
}

func Contains(c domain.Cart, itemID string) bool {
	return slices.ContainsFunc(c.Lines, func(line domain.CartLine) bool {
		return line.ItemID == itemID
	})
}
