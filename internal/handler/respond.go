package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Machine-readable error codes returned in the "error" field.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeNoBucket          = "no_bucket"
	codeEmptyBucket       = "empty_bucket"
	codeInsufficientStock = "insufficient_stock"
	codeInternal          = "internal_error"
)

// writeJSON encodes a response body with the given encoder callback.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError emits the error envelope: HTTP status, machine-readable code,
// human message, and an optional details object.
func writeError(w http.ResponseWriter, status int, code, message string, details func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("error")
		e.Str(code)
		e.FieldStart("message")
		e.Str(message)
		if details != nil {
			e.FieldStart("details")
			details(e)
		}
		e.ObjEnd()
	})
}

// writeInternalError logs the fault with full context and responds with a
// generic message: lower-layer failures never leak implementation detail.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "An unexpected server error occurred.", nil)
}
