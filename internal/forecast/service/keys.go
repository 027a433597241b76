package service

import "github.com/stockwise/stockwise-backend/internal/forecast/domain"

// KeyFunc derives the reconciliation keys of a notification. Keys from
// earlier KeyFuncs take precedence when matching.
type KeyFunc func(n domain.Notification) []string

// KeyByID matches on the raw notification id
func KeyByID(n domain.Notification) []string {
	if n.ID == "" {
		return nil
	}
	return []string{n.ID}
}

// KeyByProduct matches any notification about the same product
func KeyByProduct(n domain.Notification) []string {
	if n.ProductID == "" {
		return nil
	}
	return []string{"product-" + n.ProductID}
}

// KeyByTitleProduct matches notifications of the same kind for a product
func KeyByTitleProduct(n domain.Notification) []string {
	if n.ProductID == "" || n.Title == "" {
		return nil
	}
	return []string{n.Title + "-" + n.ProductID}
}

// DefaultKeyFuncs returns the built-in key strategies in precedence order
func DefaultKeyFuncs() []KeyFunc {
	return []KeyFunc{KeyByID, KeyByProduct, KeyByTitleProduct}
}

// notificationIndex maps reconciliation keys to existing notifications
type notificationIndex map[string]int

// buildIndex indexes existing one strategy at a time so a strong key of one
// notification is never shadowed by a weaker key of another. Within a
// strategy the first notification wins.
func buildIndex(existing []domain.Notification, keyFuncs []KeyFunc) notificationIndex {
	idx := make(notificationIndex, len(existing)*len(keyFuncs))
	for _, fn := range keyFuncs {
		for i, n := range existing {
			for _, k := range fn(n) {
				if _, taken := idx[k]; !taken {
					idx[k] = i
				}
			}
		}
	}
	return idx
}

// lookup returns the index of the existing notification matching candidate
func (idx notificationIndex) lookup(candidate domain.Notification, keyFuncs []KeyFunc) (int, bool) {
	for _, fn := range keyFuncs {
		for _, k := range fn(candidate) {
			if i, ok := idx[k]; ok {
				return i, true
			}
		}
	}
	return 0, false
}
