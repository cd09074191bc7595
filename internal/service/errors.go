package service

import "errors"

// Conflict-class errors: the request was well-formed but the current
// state forbids it, so blind retries will not help.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrOrderAlreadyPaid = errors.New("order already paid")
	ErrNotRefundable    = errors.New("transaction is not refundable")
)

// Webhook rejection errors
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnhandledEvent   = errors.New("unhandled webhook event")
)
