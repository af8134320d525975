package scan

import (
	"strings"

	"github.com/google/uuid"

	"github.com/gradecart/gradecart/internal/vision"
)

// DefaultInCart is the single inclusion policy for freshly scanned items:
// everything starts in the cart and the shopper opts out per item.
const DefaultInCart = true

// Normalize converts one grade list into cart candidates. It is pure: the
// input list is never modified and repeated calls differ only in the
// generated ids.
func Normalize(list *vision.GradeList) []CartItem {
	items := make([]CartItem, 0, len(list.SupplyItems))
	for _, supply := range list.SupplyItems {
		name := strings.TrimSpace(supply.Name)
		if name == "" {
			name = "Unknown Item"
		}

		term := strings.TrimSpace(supply.OriginalText)
		if term == "" {
			term = name
		}

		quantity := supply.Quantity
		if quantity < 1 {
			quantity = 1
		}

		items = append(items, CartItem{
			ID:                uuid.NewString(),
			Name:              name,
			Price:             0,
			InCart:            DefaultInCart,
			OriginalTerm:      term,
			RequestedQuantity: quantity,
		})
	}
	return items
}
