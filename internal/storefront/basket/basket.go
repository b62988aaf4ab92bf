// Package basket keeps the visitor's cart and wishlist in the local store.
// The cart is a guest cart and survives logout; the wishlist does not.
package basket

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/edumall/edumall/pkg/localstore"
)

const (
	KeyCart     = "edumall.cart"
	KeyWishlist = "edumall.wishlist"
)

type Exam string

const (
	ExamNEET Exam = "NEET"
	ExamJEE  Exam = "JEE"
	ExamUPSC Exam = "UPSC"
)

// Item is a course or test series line.
type Item struct {
	SKU        string `json:"sku"`
	Title      string `json:"title"`
	Exam       Exam   `json:"exam"`
	PricePaise int64  `json:"price_paise"`
	Quantity   int    `json:"quantity"`
}

var (
	ErrInvalidItem = errors.New("basket: invalid item")
	ErrNotInBasket = errors.New("basket: sku not present")
)

// Validate checks the item and fills a default quantity of 1.
func (it *Item) Validate() error {
	it.SKU = strings.TrimSpace(it.SKU)
	it.Title = strings.TrimSpace(it.Title)
	switch {
	case it.SKU == "":
		return fmt.Errorf("%w: sku is required", ErrInvalidItem)
	case it.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	case it.PricePaise < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	case it.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
	}
	switch Exam(strings.ToUpper(string(it.Exam))) {
	case ExamNEET, ExamJEE, ExamUPSC:
		it.Exam = Exam(strings.ToUpper(string(it.Exam)))
	default:
		return fmt.Errorf("%w: exam must be NEET, JEE or UPSC", ErrInvalidItem)
	}
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	return nil
}

// KV is the subset of the local store a list is kept in.
type KV interface {
	GetJSON(ctx context.Context, key string, dst any) error
	PutJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// list is an ordered, sku-unique item list stored as one JSON array.
type list struct {
	kv  KV
	key string
	mu  sync.Mutex
}

func (l *list) load(ctx context.Context) ([]Item, error) {
	var items []Item
	err := l.kv.GetJSON(ctx, l.key, &items)
	if errors.Is(err, localstore.ErrNotFound) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *list) items(ctx context.Context) ([]Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// update loads the list, applies fn and stores the result.
func (l *list) update(ctx context.Context, fn func([]Item) ([]Item, error)) ([]Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	items, err = fn(items)
	if err != nil {
		return nil, err
	}
	if err := l.kv.PutJSON(ctx, l.key, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (l *list) remove(ctx context.Context, sku string) ([]Item, error) {
	return l.update(ctx, func(items []Item) ([]Item, error) {
		i := indexOf(items, sku)
		if i < 0 {
			return nil, ErrNotInBasket
		}
		return slices.Delete(items, i, i+1), nil
	})
}

func (l *list) clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kv.Delete(ctx, l.key)
}

func indexOf(items []Item, sku string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.SKU == sku })
}
