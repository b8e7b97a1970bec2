package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/auth"
	"marketplace/internal/domain/catalog"
	"marketplace/internal/domain/sale"
)

var one = decimal.NewFromInt(1)

// listProducts returns a page of the catalog with filtering, sorting and the
// requester's best discount applied to each product's display price.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	page, err := parseIntParam(params.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "page must be an integer.", nil)
		return
	}
	pageSize, err := parseIntParam(params.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "page_size must be an integer.", nil)
		return
	}

	q, err := catalog.ParseListQuery(params.Get("category"), params.Get("sort"), page, pageSize)
	if err != nil {
		var qErr *catalog.InvalidQueryError
		if errors.As(err, &qErr) {
			writeError(w, http.StatusBadRequest, codeBadRequest, qErr.Error(), nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	result, err := h.products.List(r.Context(), q)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	requester := requesterFrom(UserFromContext(r.Context()))
	discounts := make([]decimal.Decimal, len(result.Products))
	for i := range result.Products {
		d, err := h.discounts.BestDiscount(r.Context(), result.Products[i].ID, requester)
		if err != nil {
			writeInternalError(w, r, err)
			return
		}
		discounts[i] = d
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("count")
		e.Int(result.Total)
		e.FieldStart("page")
		e.Int(q.Page)
		e.FieldStart("page_size")
		e.Int(q.PageSize)
		e.FieldStart("results")
		e.ArrStart()
		for i := range result.Products {
			encodeProduct(e, &result.Products[i], discounts[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// getProduct returns a single product with the requester's discount applied.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "Product not found.", nil)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	discount, err := h.discounts.BestDiscount(r.Context(), p.ID, requesterFrom(UserFromContext(r.Context())))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, p, discount)
	})
}

// parseIntParam parses an optional numeric query parameter. Empty means
// unset; the query parser substitutes its default.
func parseIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// requesterFrom converts an authenticated user (possibly nil) into the
// discount resolver's requester identity.
func requesterFrom(u *auth.User) *sale.Requester {
	if u == nil {
		return nil
	}
	return &sale.Requester{ID: u.ID, GroupIDs: u.GroupIDs}
}

// encodeProduct writes one product object. Prices are fixed-point strings
// with 2 decimal places; discounted_price reflects the requester's best
// discount, matching price when no sale applies.
func encodeProduct(e *jx.Encoder, p *catalog.Product, discount decimal.Decimal) {
	discounted := p.Price.Mul(one.Sub(discount)).Round(2)

	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("discounted_price")
	e.Str(discounted.StringFixed(2))
	e.FieldStart("discount")
	e.Str(discount.StringFixed(2))
	e.FieldStart("available_items")
	e.Int(p.AvailableItems)
	e.FieldStart("categories")
	e.ArrStart()
	for _, c := range p.Categories {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(c.ID)
		e.FieldStart("name")
		e.Str(c.Name)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
