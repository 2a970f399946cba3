package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger/accounts"
	"github.com/solara-mfi/solara/internal/money"
)

// TxPoster exposes the persistence methods the engine needs inside the
// caller's transaction. The loans transaction repository implements it so
// loan operations and their journal entries commit or roll back together.
type TxPoster interface {
	GetAccountForPosting(ctx context.Context, code accounts.Code) (accounts.Account, error)
	InsertJournalEntry(ctx context.Context, in EntryInput) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) error
}

// Engine builds and persists balanced journal entries for financial events.
type Engine struct{}

// NewEngine builds the posting engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Post validates the event, resolves its account codes through the
// directory, and inserts one balanced journal entry on the caller's
// transaction. A missing or inactive account fails the whole operation.
func (e *Engine) Post(ctx context.Context, tx TxPoster, event Event) (JournalEntry, error) {
	lines, err := e.buildLines(ctx, tx, event)
	if err != nil {
		return JournalEntry{}, err
	}

	entry, err := tx.InsertJournalEntry(ctx, EntryInput{
		Date:      event.Date,
		EventType: event.Type,
		SourceID:  event.ID,
		Narration: narration(event),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertJournalLines(ctx, entry.ID, lines); err != nil {
		return JournalEntry{}, err
	}

	entry.Lines = toJournalLines(entry.ID, lines)
	return entry, nil
}

func (e *Engine) buildLines(ctx context.Context, tx TxPoster, event Event) ([]LineInput, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	resolve := func(code accounts.Code) (accounts.Account, error) {
		account, err := tx.GetAccountForPosting(ctx, code)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return accounts.Account{}, fault.AccountNotConfigured("ledger: account %s is not configured", code)
			}
			return accounts.Account{}, err
		}
		if !account.Active {
			return accounts.Account{}, fault.AccountNotConfigured("ledger: account %s is inactive", code)
		}
		return account, nil
	}

	mapping := eventLegs[event.Type]
	debitAccount, err := resolve(mapping.debit)
	if err != nil {
		return nil, err
	}

	amount := money.Round(event.Amount)
	lines := []LineInput{
		{AccountID: debitAccount.ID, Code: debitAccount.Code, Debit: amount, Credit: decimal.Zero},
	}

	if event.Type == EventDisbursement && event.FeePortion.IsPositive() {
		// Fee is withheld from the cash leg: debit receivable for the full
		// principal, pay out principal minus fee, book the fee as income.
		fee := money.Round(event.FeePortion)
		cash, err := resolve(mapping.credit)
		if err != nil {
			return nil, err
		}
		feeIncome, err := resolve(accounts.CodeFeeIncome)
		if err != nil {
			return nil, err
		}
		lines = append(lines,
			LineInput{AccountID: cash.ID, Code: cash.Code, Credit: amount.Sub(fee)},
			LineInput{AccountID: feeIncome.ID, Code: feeIncome.Code, Credit: fee},
		)
	} else if event.Type.split() {
		receivable, err := resolve(accounts.CodeLoanReceivable)
		if err != nil {
			return nil, err
		}
		principal := money.Round(event.PrincipalPortion)
		if principal.IsPositive() {
			lines = append(lines, LineInput{AccountID: receivable.ID, Code: receivable.Code, Credit: principal})
		}
		interest := money.Round(event.InterestPortion)
		if interest.IsPositive() {
			income, err := resolve(accounts.CodeInterestIncome)
			if err != nil {
				return nil, err
			}
			lines = append(lines, LineInput{AccountID: income.ID, Code: income.Code, Credit: interest})
		}
	} else {
		creditAccount, err := resolve(mapping.credit)
		if err != nil {
			return nil, err
		}
		lines = append(lines, LineInput{AccountID: creditAccount.ID, Code: creditAccount.Code, Credit: amount})
	}

	if err := assertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func validateEvent(event Event) error {
	if !event.Type.Valid() {
		return fault.Validation("ledger: unknown event type %q", event.Type)
	}
	if event.ID == uuid.Nil {
		return fault.Validation("ledger: event id required")
	}
	if event.Date.IsZero() {
		return fault.Validation("ledger: event date required")
	}
	if !event.Amount.IsPositive() {
		return fault.Validation("ledger: event amount must be positive, got %s", event.Amount)
	}
	if event.FeePortion.IsNegative() {
		return fault.Validation("ledger: fee portion must not be negative")
	}
	if event.FeePortion.IsPositive() {
		if event.Type != EventDisbursement {
			return fault.Validation("ledger: fee portion only applies to disbursements")
		}
		if event.FeePortion.GreaterThanOrEqual(event.Amount) {
			return fault.Validation("ledger: fee portion %s must be below amount %s", event.FeePortion, event.Amount)
		}
	}
	if event.Type.split() {
		if event.PrincipalPortion.IsNegative() || event.InterestPortion.IsNegative() {
			return fault.Validation("ledger: portions must not be negative")
		}
		total := event.PrincipalPortion.Add(event.InterestPortion)
		if !money.Equal2(total, event.Amount) {
			return fault.Validation("ledger: principal %s + interest %s must equal amount %s",
				event.PrincipalPortion, event.InterestPortion, event.Amount)
		}
	}
	return nil
}

// assertBalanced is the last line of defense before insert: debit and
// credit columns must sum to the same figure at currency precision.
func assertBalanced(lines []LineInput) error {
	if len(lines) < 2 {
		return fault.Internal(fmt.Errorf("ledger: entry requires at least two lines, got %d", len(lines)))
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fault.Internal(fmt.Errorf("ledger: entry unbalanced, debit %s credit %s", debit, credit))
	}
	return nil
}

// narration records the originating event id for traceability.
func narration(event Event) string {
	if event.Memo != "" {
		return fmt.Sprintf("%s (event %s)", event.Memo, event.ID)
	}
	return fmt.Sprintf("%s (event %s)", event.Type, event.ID)
}

func toJournalLines(entryID int64, lines []LineInput) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID: entryID,
			AccountID: line.AccountID,
			Code:      line.Code,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return out
}
