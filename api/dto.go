/*
dto.go - Data Transfer Objects for the non-envelope endpoints

The action endpoint speaks dispatch.Envelope directly. The types here
cover the REST-style endpoints around it.
*/
package api

import (
	"time"

	"github.com/warp/mockbank/ledger"
)

// HistoryEntryDTO is one journal entry in API responses.
type HistoryEntryDTO struct {
	ID           string       `json:"id"`
	Kind         string       `json:"kind"`
	Amount       ledger.Money `json:"amount"`
	BalanceAfter ledger.Money `json:"balanceAfter"`
	Counterparty string       `json:"counterparty,omitempty"`
	CreatedAt    string       `json:"createdAt"`
}

// HistoryDTO answers GET /api/accounts/{number}/history.
type HistoryDTO struct {
	AccountNumber string            `json:"accountNumber"`
	Entries       []HistoryEntryDTO `json:"entries"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toHistoryEntryDTO(e ledger.Entry) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:           e.ID,
		Kind:         string(e.Kind),
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
		Counterparty: string(e.Counterparty),
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
