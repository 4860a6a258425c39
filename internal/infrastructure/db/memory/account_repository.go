// Package memory provides process-local repositories. They back STORE_DRIVER=memory
// and the tests; every balance change happens under one mutex, which gives the
// same per-account atomicity the Mongo store gets from single-document updates.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

type accountRecord struct {
	account domain.Account
	holds   []domain.Reservation
}

type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*accountRecord
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*accountRecord)}
}

func cloneAccount(a domain.Account) *domain.Account {
	return &a
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(account.Email)
	for _, rec := range r.accounts {
		if rec.account.Email == email {
			return nil, domain.ErrDuplicateEmail
		}
	}

	stored := *account
	stored.Email = email
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.accounts[stored.ID] = &accountRecord{account: stored}
	return cloneAccount(stored), nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(rec.account), nil
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.findBy(func(a *domain.Account) bool { return a.Email == domain.NormalizeEmail(email) })
}

func (r *AccountRepository) FindByAPIKeyHash(_ context.Context, hash string) (*domain.Account, error) {
	if hash == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findBy(func(a *domain.Account) bool { return a.APIKeyHash == hash })
}

func (r *AccountRepository) findBy(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.accounts {
		if match(&rec.account) {
			return cloneAccount(rec.account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *AccountRepository) Update(_ context.Context, id string, u domain.AccountUpdate) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	a := &rec.account
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.CreditLimit != nil {
		a.CreditLimit = *u.CreditLimit
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.APIKeyHash != nil {
		a.APIKeyHash = *u.APIKeyHash
	}
	if u.APIKeyPrefix != nil {
		a.APIKeyPrefix = *u.APIKeyPrefix
	}
	a.UpdatedAt = time.Now().UTC()
	return cloneAccount(*a), nil
}

// List returns accounts newest first.
func (r *AccountRepository) List(_ context.Context, filter ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*domain.Account
	for _, rec := range r.accounts {
		if filter.Role != "" && rec.account.Role != filter.Role {
			continue
		}
		all = append(all, cloneAccount(rec.account))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (r *AccountRepository) Overview(_ context.Context) (*domain.Overview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := &domain.Overview{}
	for _, rec := range r.accounts {
		if rec.account.Role != domain.RoleClient {
			continue
		}
		o.Clients++
		if rec.account.IsActive() {
			o.ActiveClients++
		}
		o.CreditsOutstanding += int64(rec.account.Credits)
	}
	return o, nil
}

func (r *AccountRepository) ReserveCredits(_ context.Context, res domain.Reservation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[res.AccountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if !rec.account.IsActive() {
		return 0, domain.ErrAccountRevoked
	}
	if rec.account.Credits < res.Amount {
		return 0, &domain.InsufficientCreditsError{Required: res.Amount, Available: rec.account.Credits}
	}

	rec.account.Credits -= res.Amount
	rec.holds = append(rec.holds, res)
	return rec.account.Credits, nil
}

func (r *AccountRepository) SettleReservation(_ context.Context, res domain.Reservation, refund bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[res.AccountID]
	if !ok {
		return 0, domain.ErrReservationSettled
	}

	for i, h := range rec.holds {
		if h.ID != res.ID || h.Amount != res.Amount {
			continue
		}
		rec.holds = append(rec.holds[:i], rec.holds[i+1:]...)
		if refund {
			rec.account.Credits += h.Amount
		}
		return rec.account.Credits, nil
	}
	return 0, domain.ErrReservationSettled
}

func (r *AccountRepository) AddCredits(_ context.Context, id string, amount int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	rec.account.Credits += amount
	rec.account.UpdatedAt = time.Now().UTC()
	return rec.account.Credits, nil
}

func (r *AccountRepository) ListStaleReservations(_ context.Context, before time.Time) ([]ports.StaleReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []ports.StaleReservation
	for id, rec := range r.accounts {
		for _, h := range rec.holds {
			if h.CreatedAt.Before(before) {
				stale = append(stale, ports.StaleReservation{AccountID: id, Reservation: h})
			}
		}
	}
	return stale, nil
}

// Holds returns the reservations currently held by an account.
func (r *AccountRepository) Holds(id string) []domain.Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return nil
	}
	return append([]domain.Reservation(nil), rec.holds...)
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
