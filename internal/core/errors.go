package core

import "errors"

var (
	ErrNotFound          = errors.New("confirmation not found")
	ErrUnknownStatus     = errors.New("unknown status code")
	ErrUnknownGateway    = errors.New("unknown gateway")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
	ErrUnauthorized      = errors.New("webhook authentication failed")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrMissingIdentifier = errors.New("external_id, invoice_id or token is required")
)
