package handler

import (
	"time"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Credits      int       `json:"credits"`
	CreditLimit  int       `json:"credit_limit"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type authResponse struct {
	Token   string           `json:"token"`
	APIKey  string           `json:"api_key,omitempty"`
	Account *accountResponse `json:"account"`
}

type purchaseRequest struct {
	Package int `json:"package" validate:"required,gt=0"`
}

type balanceResponse struct {
	Credits int `json:"credits"`
}

type usageRecordResponse struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	PromptSummary string    `json:"prompt_summary"`
}

type pageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type usagePageResponse struct {
	Items []usageRecordResponse `json:"items"`
	Meta  pageMeta              `json:"meta"`
}

type createClientRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=6"`
	Name        string `json:"name"         validate:"max=120"`
	Credits     int    `json:"credits"      validate:"gte=0"`
	CreditLimit int    `json:"credit_limit" validate:"gte=0"`
	Status      string `json:"status"       validate:"omitempty,oneof=active revoked"`
}

type updateClientRequest struct {
	Name        *string `json:"name"         validate:"omitempty,min=1,max=120"`
	CreditLimit *int    `json:"credit_limit" validate:"omitempty,gte=0"`
	Status      *string `json:"status"       validate:"omitempty,oneof=active revoked"`
}

type addCreditsRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

type provisionResponse struct {
	APIKey  string           `json:"api_key"`
	Account *accountResponse `json:"account"`
}

type clientPageResponse struct {
	Items []*accountResponse `json:"items"`
	Meta  pageMeta           `json:"meta"`
}

type overviewResponse struct {
	Clients            int64 `json:"clients"`
	ActiveClients      int64 `json:"active_clients"`
	CreditsOutstanding int64 `json:"credits_outstanding"`
	Generations        int64 `json:"generations"`
}

// --- Mappers ---

func toAccountResponse(a *domain.Account) *accountResponse {
	if a == nil {
		return nil
	}
	return &accountResponse{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         string(a.Role),
		Status:       string(a.Status),
		Credits:      a.Credits,
		CreditLimit:  a.CreditLimit,
		APIKeyPrefix: a.APIKeyPrefix,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toUsagePageResponse(p *ports.UsagePage) usagePageResponse {
	items := make([]usageRecordResponse, len(p.Items))
	for i, r := range p.Items {
		items[i] = usageRecordResponse{ID: r.ID, Timestamp: r.Timestamp, PromptSummary: r.PromptSummary}
	}
	return usagePageResponse{
		Items: items,
		Meta:  pageMeta{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages},
	}
}

func toClientPageResponse(p *ports.ClientPage) clientPageResponse {
	items := make([]*accountResponse, len(p.Items))
	for i, a := range p.Items {
		items[i] = toAccountResponse(a)
	}
	return clientPageResponse{
		Items: items,
		Meta:  pageMeta{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages},
	}
}
