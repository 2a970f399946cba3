package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
)

// PostEventInput describes a standalone financial event to post: savings
// movements, fees, adjustments, transfers. Loan events (disbursement,
// repayment, settlement) are posted by the loans service on its own
// transaction and are rejected here.
type PostEventInput struct {
	Type             EventType
	Date             time.Time
	Amount           decimal.Decimal
	PrincipalPortion decimal.Decimal
	InterestPortion  decimal.Decimal
	Memo             string
}

// Service posts standalone events and serves journal reads.
type Service struct {
	repo   Repository
	engine *Engine
	now    func() time.Time
}

// NewService builds the ledger service.
func NewService(repo Repository, engine *Engine) *Service {
	return &Service{repo: repo, engine: engine, now: time.Now}
}

// WithNow overrides the clock, for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// loanEvents may only be posted as part of the owning loan transaction.
var loanEvents = map[EventType]bool{
	EventDisbursement: true,
	EventRepayment:    true,
	EventSettlement:   true,
}

// PostEvent posts one standalone event as one balanced journal entry in
// its own transaction.
func (s *Service) PostEvent(ctx context.Context, input PostEventInput) (JournalEntry, error) {
	if loanEvents[input.Type] {
		return JournalEntry{}, fault.Validation("ledger: %s events are posted by their loan operation", input.Type)
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	event := Event{
		ID:               uuid.New(),
		Type:             input.Type,
		Date:             date,
		Amount:           input.Amount,
		PrincipalPortion: input.PrincipalPortion,
		InterestPortion:  input.InterestPortion,
		Memo:             input.Memo,
	}

	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPoster) error {
		posted, err := s.engine.Post(ctx, tx, event)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// List returns the most recent journal entries.
func (s *Service) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit)
}

// Get returns one journal entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	if entryID <= 0 {
		return JournalEntry{}, fault.Validation("ledger: entry id required")
	}
	return s.repo.GetWithLines(ctx, entryID)
}
