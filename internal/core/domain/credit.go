package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrReservationSettled  = errors.New("reservation already settled")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrPurchasesDisabled   = errors.New("credit purchases are disabled")
	ErrUnknownPackage      = errors.New("unknown credit package")
)

// InsufficientCreditsError carries the required and available amounts.
// It matches ErrInsufficientCredits with errors.Is.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Reservation is a provisional decrement of an account's balance. It is held
// inside the account record until it is committed or rolled back.
type Reservation struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditPackages lists the purchasable bundles, keyed by credit amount.
var CreditPackages = map[int]bool{
	50:  true,
	120: true,
	300: true,
}
