package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"marketplace/internal/domain/order"
	"marketplace/internal/repository"
)

// placeOrder runs checkout on the user's bucket. Success returns 201 with
// the completed order; the named precondition failures map to 4xx responses
// the client can act on, and anything else is a generic 500.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	o, err := h.checkout.Checkout(r.Context(), user)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// listOrders returns the user's order history, newest first.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	orders, err := h.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("results")
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// getOrder returns one of the user's orders.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	o, err := h.orders.GetByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "Order not found.", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// writeCheckoutError maps checkout domain errors to HTTP responses.
// Insufficient stock is 409 rather than 400: the bucket was valid when
// filled, the conflict is with the current stock level.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNoBucket):
		writeError(w, http.StatusBadRequest, codeNoBucket, "User does not have a bucket.", nil)
	case errors.Is(err, order.ErrEmptyBucket):
		writeError(w, http.StatusBadRequest, codeEmptyBucket, "Bucket is empty.", nil)
	default:
		var stockErr *order.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeError(w, http.StatusConflict, codeInsufficientStock, stockErr.Error(), func(e *jx.Encoder) {
				e.ObjStart()
				e.FieldStart("product_id")
				e.Str(stockErr.ProductID)
				e.FieldStart("name")
				e.Str(stockErr.Name)
				e.FieldStart("available")
				e.Int(stockErr.Available)
				e.FieldStart("requested")
				e.Int(stockErr.Requested)
				e.ObjEnd()
			})
			return
		}
		writeInternalError(w, r, err)
	}
}

// encodeOrder writes the order response with its snapshot line items.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("user")
	e.Str(o.UserID)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("total")
	e.Str(o.Total.StringFixed(2))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("product")
		e.Str(item.ProductID)
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("price")
		e.Str(item.Price.StringFixed(2))
		e.FieldStart("discount")
		e.Str(item.Discount.StringFixed(2))
		e.FieldStart("number")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
