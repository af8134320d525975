package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code so wrapped copies of the sentinels below
// still compare equal under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigInvalid = &AppError{Code: "CONFIG_001", Message: "invalid configuration"}

	ErrExtractTransport = &AppError{Code: "EXTRACT_001", Message: "extraction provider unreachable"}
	ErrUnreadableReply  = &AppError{Code: "EXTRACT_002", Message: "could not interpret extraction response"}
	ErrNotSupplyList    = &AppError{Code: "EXTRACT_003", Message: "image is not a school supply list"}
	ErrNoItemsFound     = &AppError{Code: "EXTRACT_004", Message: "no supply items found"}
	ErrProviderNotReady = &AppError{Code: "EXTRACT_005", Message: "extraction provider not configured"}

	ErrPageFailed = &AppError{Code: "SCAN_001", Message: "page extraction failed"}

	ErrGradeOutOfRange = &AppError{Code: "GRADE_001", Message: "grade selection out of range"}
	ErrNoActiveScan    = &AppError{Code: "GRADE_002", Message: "no scan awaiting grade selection"}

	ErrCartCreate     = &AppError{Code: "CART_001", Message: "failed to create cart"}
	ErrCartAttach     = &AppError{Code: "CART_002", Message: "failed to add items to cart"}
	ErrCartKeyLookup  = &AppError{Code: "CART_003", Message: "failed to resolve order key"}
	ErrEmptySelection = &AppError{Code: "CART_004", Message: "no items selected for checkout"}
	ErrUnmatchedItems = &AppError{Code: "CART_005", Message: "selected items have no catalog product"}

	ErrStorageUnavailable = &AppError{Code: "STORE_001", Message: "durable storage unavailable"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// From extracts the AppError anywhere in err's chain
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func GetCode(err error) string {
	if appErr, ok := From(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
