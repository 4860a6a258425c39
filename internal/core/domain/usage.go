package domain

import "time"

// UsageRecord is an immutable audit entry for one successful generation.
type UsageRecord struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Timestamp     time.Time `json:"timestamp"`
	PromptSummary string    `json:"prompt_summary"`
}

// Overview aggregates figures for the admin dashboard.
type Overview struct {
	Clients            int64 `json:"clients"`
	ActiveClients      int64 `json:"active_clients"`
	CreditsOutstanding int64 `json:"credits_outstanding"`
	Generations        int64 `json:"generations"`
}
