package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/edumall/edumall/internal/storefront/basket"
	"github.com/edumall/edumall/pkg/httpx"
	"github.com/edumall/edumall/pkg/slogx"
)

// itemList adapts the cart and the wishlist to one handler.
type itemList interface {
	Items(ctx context.Context) ([]basket.Item, error)
	Add(ctx context.Context, item basket.Item) ([]basket.Item, error)
	Remove(ctx context.Context, sku string) ([]basket.Item, error)
	Clear(ctx context.Context) error
}

type cartList struct{ *basket.Cart }

type wishlistList struct{ *basket.Wishlist }

type ListResponse struct {
	Items      []basket.Item `json:"items"`
	Count      int           `json:"count"`
	TotalPaise int64         `json:"total_paise"`
}

type ListHandler struct {
	List itemList
}

type putItemRequest struct {
	Title      string      `json:"title"`
	Exam       basket.Exam `json:"exam"`
	PricePaise int64       `json:"price_paise"`
	Quantity   int         `json:"quantity"`
}

func (h *ListHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.List.Items(r.Context())
	h.write(w, r, items, err)
}

// HandlePut adds the item named by the path sku.
func (h *ListHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req putItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		return
	}
	items, err := h.List.Add(r.Context(), basket.Item{
		SKU:        r.PathValue("sku"),
		Title:      req.Title,
		Exam:       req.Exam,
		PricePaise: req.PricePaise,
		Quantity:   req.Quantity,
	})
	h.write(w, r, items, err)
}

func (h *ListHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	items, err := h.List.Remove(r.Context(), r.PathValue("sku"))
	h.write(w, r, items, err)
}

func (h *ListHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.List.Clear(r.Context()); err != nil {
		h.write(w, r, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) write(w http.ResponseWriter, r *http.Request, items []basket.Item, err error) {
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, ListResponse{
			Items:      items,
			Count:      len(items),
			TotalPaise: basket.Total(items),
		})
	case errors.Is(err, basket.ErrInvalidItem):
		httpx.WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, basket.ErrNotInBasket):
		httpx.WriteError(w, http.StatusNotFound, ErrorCodeNotFound, err.Error())
	default:
		slogx.FromContext(r.Context()).Error("local store failure", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "local storage unavailable")
	}
}
