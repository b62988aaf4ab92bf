package basket

import "context"

type Cart struct {
	l list
}

func NewCart(kv KV) *Cart {
	return &Cart{l: list{kv: kv, key: KeyCart}}
}

func (c *Cart) Items(ctx context.Context) ([]Item, error) { return c.l.items(ctx) }

// Add puts item in the cart. Adding a sku that is already there increases
// its quantity instead.
func (c *Cart) Add(ctx context.Context, item Item) ([]Item, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return c.l.update(ctx, func(items []Item) ([]Item, error) {
		if i := indexOf(items, item.SKU); i >= 0 {
			items[i].Quantity += item.Quantity
			return items, nil
		}
		return append(items, item), nil
	})
}

func (c *Cart) Remove(ctx context.Context, sku string) ([]Item, error) { return c.l.remove(ctx, sku) }

func (c *Cart) Clear(ctx context.Context) error { return c.l.clear(ctx) }

// Total is the cart value in paise.
func Total(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.PricePaise * int64(it.Quantity)
	}
	return total
}
