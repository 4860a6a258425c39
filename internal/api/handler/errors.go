package handler

// BalanceError attaches the caller's balance to a failed request so the error
// envelope can report it.
type BalanceError struct {
	Err     error
	Credits int
}

func (e *BalanceError) Error() string { return e.Err.Error() }

func (e *BalanceError) Unwrap() error { return e.Err }
