package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"marketplace/internal/domain/bucket"
	"marketplace/internal/domain/catalog"
)

// addItemRequest is the body for POST /api/bucket/items. Number defaults to 1
// when omitted, mirroring the add-to-bucket semantics of repeat purchases.
type addItemRequest struct {
	ProductID string
	Number    int
}

func decodeAddItemRequest(body []byte) (addItemRequest, error) {
	req := addItemRequest{Number: 1}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			req.ProductID = v
			return err
		case "number":
			v, err := d.Int()
			req.Number = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeNumber(body []byte) (int, error) {
	number := 0
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "number" {
			v, err := d.Int()
			number = v
			return err
		}
		return d.Skip()
	})
	return number, err
}

// getBucket returns the current user's bucket contents.
func (h *Handler) getBucket(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	view, err := h.buckets.Get(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeBucketView(e, view)
	})
}

// addBucketItem adds a product to the bucket, incrementing the line when the
// product is already present.
func (h *Handler) addBucketItem(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "cannot read request body", nil)
		return
	}
	req, err := decodeAddItemRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", nil)
		return
	}

	view, err := h.buckets.Add(r.Context(), user.ID, req.ProductID, req.Number)
	if err != nil {
		h.writeBucketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeBucketView(e, view)
	})
}

// updateBucketItem replaces the quantity of a line already in the bucket.
func (h *Handler) updateBucketItem(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	productID := r.PathValue("productID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "cannot read request body", nil)
		return
	}
	number, err := decodeNumber(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body", nil)
		return
	}

	view, err := h.buckets.SetQuantity(r.Context(), user.ID, productID, number)
	if err != nil {
		h.writeBucketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeBucketView(e, view)
	})
}

// removeBucketItem deletes a line from the bucket.
func (h *Handler) removeBucketItem(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	productID := r.PathValue("productID")

	if err := h.buckets.Remove(r.Context(), user.ID, productID); err != nil {
		h.writeBucketError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeBucketError maps bucket domain errors to HTTP responses.
func (h *Handler) writeBucketError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bucket.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeBadRequest, "Number must be a positive integer.", nil)
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Product not found.", nil)
	case errors.Is(err, bucket.ErrLineNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Product not found in bucket.", nil)
	default:
		var stockErr *bucket.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeError(w, http.StatusBadRequest, codeInsufficientStock, stockErr.Error(), func(e *jx.Encoder) {
				e.ObjStart()
				e.FieldStart("product_id")
				e.Str(stockErr.ProductID)
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

// encodeBucketView writes the bucket response: line items plus the
// undiscounted running total.
func encodeBucketView(e *jx.Encoder, view *bucket.View) {
	e.ObjStart()
	e.FieldStart("total")
	e.Str(view.Total.StringFixed(2))
	e.FieldStart("products")
	e.ArrStart()
	for _, item := range view.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ProductID)
		e.FieldStart("name")
		e.Str(item.ProductName)
		e.FieldStart("price")
		e.Str(item.UnitPrice.StringFixed(2))
		e.FieldStart("number")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
