// Package handler implements the HTTP API surface: product browsing, bucket
// management and checkout. Handlers decode with go-faster/jx, delegate to the
// domain services, and map domain errors to HTTP responses.
package handler

import (
	"net/http"

	"marketplace/internal/domain/bucket"
	"marketplace/internal/domain/catalog"
	"marketplace/internal/domain/order"
	"marketplace/internal/domain/sale"
)

// Handler holds the domain dependencies for all API endpoints.
type Handler struct {
	products  catalog.Repository
	discounts *sale.Resolver
	buckets   *bucket.Service
	checkout  *order.Service
	orders    order.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	discounts *sale.Resolver,
	buckets *bucket.Service,
	checkout *order.Service,
	orders order.Repository,
) *Handler {
	return &Handler{
		products:  products,
		discounts: discounts,
		buckets:   buckets,
		checkout:  checkout,
		orders:    orders,
	}
}

// Register attaches all API routes to the mux. The auth middleware must have
// run before any of these handlers (see Security.Middleware); endpoints that
// need an identity additionally go through requireUser.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/bucket", requireUser(h.getBucket))
	mux.HandleFunc("POST /api/bucket/items", requireUser(h.addBucketItem))
	mux.HandleFunc("PUT /api/bucket/items/{productID}", requireUser(h.updateBucketItem))
	mux.HandleFunc("DELETE /api/bucket/items/{productID}", requireUser(h.removeBucketItem))

	mux.HandleFunc("POST /api/orders", requireUser(h.placeOrder))
	mux.HandleFunc("GET /api/orders", requireUser(h.listOrders))
	mux.HandleFunc("GET /api/orders/{id}", requireUser(h.getOrder))
}
