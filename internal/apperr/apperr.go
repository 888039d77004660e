package apperr

import (
	"errors"
	"fmt"
)

// Code classifies application errors for callers and API surfaces.
type Code string

const (
	WrongWalletAddr Code = "WRONG_WALLET_ADDR"
	WrongTxID       Code = "WRONG_TXID"
	TrxCheckError   Code = "TRX_CHECK_ERROR"
	UnknownCurrency Code = "UNKNOWN_CURRENCY"
	WrongParameters Code = "WRONG_PARAMETERS"
	Payment         Code = "PAYMENT"
	ObjectNotFound  Code = "OBJECT_NOT_FOUND"
	AccessError     Code = "ACCESS_ERROR"
	Account         Code = "ACCOUNT"
	Internal        Code = "INTERNAL"
)

// Error is a coded application error with a user-facing message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a coded error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an INTERNAL error with a formatted message.
func Internalf(format string, args ...interface{}) *Error {
	return New(Internal, format, args...)
}

// CodeOf extracts the code of an error, INTERNAL for uncoded errors and
// the empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Code == code
}
