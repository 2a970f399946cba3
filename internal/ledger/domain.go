// Package ledger turns typed financial events into balanced double-entry
// journal entries. Every money movement in the system goes through this
// package; an event that cannot be posted aborts its whole operation.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/ledger/accounts"
)

// EventType enumerates the financial events the engine can post.
type EventType string

const (
	EventDeposit        EventType = "DEPOSIT"
	EventWithdrawal     EventType = "WITHDRAWAL"
	EventInterestCredit EventType = "INTEREST_CREDIT"
	EventFeeDebit       EventType = "FEE_DEBIT"
	EventAdjustment     EventType = "ADJUSTMENT"
	EventTransferIn     EventType = "TRANSFER_IN"
	EventTransferOut    EventType = "TRANSFER_OUT"
	EventDisbursement   EventType = "DISBURSEMENT"
	EventRepayment      EventType = "REPAYMENT"
	EventSettlement     EventType = "SETTLEMENT"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventLegs[t]
	return ok
}

// split marks event types whose credit side divides into a principal leg
// and an interest leg.
func (t EventType) split() bool {
	return t == EventRepayment || t == EventSettlement
}

// Event is one financial event to post. Amount is the full cash movement;
// for repayment and settlement events PrincipalPortion and InterestPortion
// must add up to Amount.
type Event struct {
	ID               uuid.UUID
	Type             EventType
	Date             time.Time
	Amount           decimal.Decimal
	PrincipalPortion decimal.Decimal
	InterestPortion  decimal.Decimal
	// FeePortion applies to DISBURSEMENT only: the processing fee withheld
	// from the cash paid out and booked straight to fee income.
	FeePortion decimal.Decimal
	Memo       string
}

// legs is the fixed event to account-code mapping. Split events list the
// debit account here and derive their credit legs in the engine.
type legs struct {
	debit  accounts.Code
	credit accounts.Code
}

var eventLegs = map[EventType]legs{
	EventDeposit:        {debit: accounts.CodeCash, credit: accounts.CodeClientSavings},
	EventWithdrawal:     {debit: accounts.CodeClientSavings, credit: accounts.CodeCash},
	EventInterestCredit: {debit: accounts.CodeInterestExpense, credit: accounts.CodeClientSavings},
	EventFeeDebit:       {debit: accounts.CodeClientSavings, credit: accounts.CodeFeeIncome},
	EventAdjustment:     {debit: accounts.CodeSuspense, credit: accounts.CodeCash},
	EventTransferIn:     {debit: accounts.CodeCash, credit: accounts.CodeInterbranch},
	EventTransferOut:    {debit: accounts.CodeInterbranch, credit: accounts.CodeCash},
	EventDisbursement:   {debit: accounts.CodeLoanReceivable, credit: accounts.CodeCash},
	EventRepayment:      {debit: accounts.CodeCash},
	EventSettlement:     {debit: accounts.CodeCash},
}

// EntryStatus enumerates journal entry lifecycle values. Entries post
// immediately; there is no draft or approval stage.
type EntryStatus string

const (
	EntryStatusPosted EntryStatus = "POSTED"
)

// JournalEntry captures posting metadata plus its balanced lines.
type JournalEntry struct {
	ID        int64
	Number    int64
	Date      time.Time
	EventType EventType
	SourceID  uuid.UUID
	Narration string
	Status    EntryStatus
	CreatedAt time.Time
	Lines     []JournalLine
}

// JournalLine stores a debit or credit amount against one account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Code      accounts.Code
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// EntryInput is the persisted shape of a new journal entry.
type EntryInput struct {
	Date      time.Time
	EventType EventType
	SourceID  uuid.UUID
	Narration string
}

// LineInput is the persisted shape of a new journal line.
type LineInput struct {
	AccountID int64
	Code      accounts.Code
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}
