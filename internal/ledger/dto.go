package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/ledger/accounts"
)

// PostEventRequest is the boundary payload for standalone event posting.
// Amounts accept JSON numbers or numeric strings.
type PostEventRequest struct {
	Type             string          `json:"type" validate:"required"`
	Date             *time.Time      `json:"date,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principalPortion"`
	InterestPortion  decimal.Decimal `json:"interestPortion"`
	Memo             string          `json:"memo,omitempty" validate:"max=500"`
}

// EntryResponse is the boundary shape of a journal entry.
type EntryResponse struct {
	ID        int64          `json:"id"`
	Number    int64          `json:"entryNumber"`
	Date      time.Time      `json:"date"`
	EventType EventType      `json:"eventType"`
	SourceID  string         `json:"sourceId"`
	Narration string         `json:"narration"`
	Status    EntryStatus    `json:"status"`
	Lines     []LineResponse `json:"lines,omitempty"`
}

// LineResponse is the boundary shape of a journal line.
type LineResponse struct {
	AccountID int64         `json:"accountId"`
	Code      accounts.Code `json:"accountCode"`
	Debit     string        `json:"debit"`
	Credit    string        `json:"credit"`
}

// AccountResponse is the boundary shape of a chart-of-accounts row.
type AccountResponse struct {
	ID     int64         `json:"id"`
	Code   accounts.Code `json:"code"`
	Name   string        `json:"name"`
	Type   accounts.Type `json:"type"`
	Active bool          `json:"active"`
}

func toEntryResponse(entry JournalEntry) EntryResponse {
	resp := EntryResponse{
		ID:        entry.ID,
		Number:    entry.Number,
		Date:      entry.Date,
		EventType: entry.EventType,
		SourceID:  entry.SourceID.String(),
		Narration: entry.Narration,
		Status:    entry.Status,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			AccountID: line.AccountID,
			Code:      line.Code,
			Debit:     line.Debit.StringFixed(2),
			Credit:    line.Credit.StringFixed(2),
		})
	}
	return resp
}

func toAccountResponse(a accounts.Account) AccountResponse {
	return AccountResponse{ID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, Active: a.Active}
}
