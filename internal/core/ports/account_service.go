package ports

import (
	"context"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// UsagePage is one page of usage history.
type UsagePage struct {
	Items      []*domain.UsageRecord
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// AccountService is the client self-service surface.
type AccountService interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Usage(ctx context.Context, accountID string, page, limit int) (*UsagePage, error)
	// PurchaseCredits adds one of the fixed credit packages. Returns the new balance.
	PurchaseCredits(ctx context.Context, accountID string, credits int) (int, error)
}

// CreateClientInput carries the fields an administrator sets when provisioning a client.
type CreateClientInput struct {
	Email       string
	Name        string
	Password    string
	Credits     int
	CreditLimit int
	Status      domain.AccountStatus
	Role        domain.Role
}

// UpdateClientInput is a partial update; nil fields are unchanged.
type UpdateClientInput struct {
	Name        *string
	CreditLimit *int
	Status      *domain.AccountStatus
}

// ProvisionResult returns a created account with its raw API key.
type ProvisionResult struct {
	Account *domain.Account
	APIKey  string
}

// ClientPage is one page of client accounts.
type ClientPage struct {
	Items      []*domain.Account
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// AdminService is the operator surface. Every call requires an admin caller.
type AdminService interface {
	ListClients(ctx context.Context, page, limit int) (*ClientPage, error)
	CreateClient(ctx context.Context, in CreateClientInput) (*ProvisionResult, error)
	UpdateClient(ctx context.Context, id string, in UpdateClientInput) (*domain.Account, error)
	AddCredits(ctx context.Context, id string, amount int) (int, error)
	RotateAPIKey(ctx context.Context, id string) (*ProvisionResult, error)
	ClientUsage(ctx context.Context, id string, page, limit int) (*UsagePage, error)
	Overview(ctx context.Context) (*domain.Overview, error)
}
