package domain

import (
	"errors"
)

var (
	ErrInternal = errors.New("internal error")

	// * Data errors.
	ErrDataNotFound    = errors.New("data not found")
	ErrConflictingData = errors.New("data conflicts with existing data in unique column")

	// * Communication errors.
	ErrBadRequest = errors.New("error parsing request")

	// * Business errors.
	ErrPaymentRefMismatch    = errors.New("order already paid with a different payment reference")
	ErrSettlementNotRecorded = errors.New("order marked paid but settlement was not recorded")
)
