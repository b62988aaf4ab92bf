package basket

import "context"

type Wishlist struct {
	l list
}

func NewWishlist(kv KV) *Wishlist {
	return &Wishlist{l: list{kv: kv, key: KeyWishlist}}
}

func (w *Wishlist) Items(ctx context.Context) ([]Item, error) { return w.l.items(ctx) }

// Add is idempotent; a wishlist holds each sku once with quantity 1.
func (w *Wishlist) Add(ctx context.Context, item Item) ([]Item, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.Quantity = 1
	return w.l.update(ctx, func(items []Item) ([]Item, error) {
		if indexOf(items, item.SKU) >= 0 {
			return items, nil
		}
		return append(items, item), nil
	})
}

func (w *Wishlist) Remove(ctx context.Context, sku string) ([]Item, error) {
	return w.l.remove(ctx, sku)
}

func (w *Wishlist) Clear(ctx context.Context) error { return w.l.clear(ctx) }
