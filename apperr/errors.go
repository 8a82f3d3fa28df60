// Package apperr defines the error kinds surfaced by the settlement engine.
//
// Every failure carries a Kind so callers can branch with errors.Is against
// the sentinel values below, plus the offending user or field so the UI can
// point the member at what needs fixing.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOrderNotFound      Kind = "ORDER_NOT_FOUND"
	KindOrderCompleted     Kind = "ORDER_COMPLETED"
	KindOrderCancelled     Kind = "ORDER_CANCELLED"
	KindGroupNotFound      Kind = "GROUP_NOT_FOUND"
	KindInvalidGroupStatus Kind = "INVALID_GROUP_STATUS"
	KindUserNotFound       Kind = "USER_NOT_FOUND"
	KindWalletNotFound     Kind = "WALLET_NOT_FOUND"
	KindNotGroupLeader     Kind = "NOT_GROUP_LEADER"

	KindSplitsNotApproved      Kind = "SPLITS_NOT_APPROVED"
	KindInsufficientBalance    Kind = "INSUFFICIENT_BALANCE"
	KindInsufficientCollateral Kind = "INSUFFICIENT_COLLATERAL"
	KindAlreadyNoShow          Kind = "ALREADY_NO_SHOW"
	KindGroupFull              Kind = "GROUP_FULL"

	KindInvalidItems    Kind = "INVALID_ITEMS"
	KindInvalidTax      Kind = "INVALID_TAX"
	KindInvalidDiscount Kind = "INVALID_DISCOUNT"
	KindInvalidTotal    Kind = "INVALID_TOTAL"
	KindInvalidAmount   Kind = "INVALID_AMOUNT"

	KindProcessing Kind = "PROCESSING_ERROR"
)

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrOrderNotFound          = &Error{Kind: KindOrderNotFound}
	ErrOrderCompleted         = &Error{Kind: KindOrderCompleted}
	ErrOrderCancelled         = &Error{Kind: KindOrderCancelled}
	ErrGroupNotFound          = &Error{Kind: KindGroupNotFound}
	ErrInvalidGroupStatus     = &Error{Kind: KindInvalidGroupStatus}
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrWalletNotFound         = &Error{Kind: KindWalletNotFound}
	ErrNotGroupLeader         = &Error{Kind: KindNotGroupLeader}
	ErrSplitsNotApproved      = &Error{Kind: KindSplitsNotApproved}
	ErrInsufficientBalance    = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientCollateral = &Error{Kind: KindInsufficientCollateral}
	ErrAlreadyNoShow          = &Error{Kind: KindAlreadyNoShow}
	ErrGroupFull              = &Error{Kind: KindGroupFull}
	ErrInvalidItems           = &Error{Kind: KindInvalidItems}
	ErrInvalidTax             = &Error{Kind: KindInvalidTax}
	ErrInvalidDiscount        = &Error{Kind: KindInvalidDiscount}
	ErrInvalidTotal           = &Error{Kind: KindInvalidTotal}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount}
	ErrProcessing             = &Error{Kind: KindProcessing}
)

// Error is a typed engine failure.
type Error struct {
	Kind   Kind
	UserID uuid.UUID // offending member, if any
	Field  string    // offending input field, if any
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.UserID != uuid.Nil {
		msg += fmt.Sprintf(" (user %s)", e.UserID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %s)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// ForUser names the member responsible for the failure.
func ForUser(kind Kind, userID uuid.UUID, msg string) *Error {
	return &Error{Kind: kind, UserID: userID, Msg: msg}
}

// ForField names the input field responsible for the failure.
func ForField(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Msg: msg}
}

// Processing wraps the last error of an exhausted retry budget.
func Processing(err error) *Error {
	return &Error{Kind: KindProcessing, Msg: "settlement could not be completed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserOf returns the offending user recorded on err, or uuid.Nil.
func UserOf(err error) uuid.UUID {
	var e *Error
	if errors.As(err, &e) {
		return e.UserID
	}
	return uuid.Nil
}
