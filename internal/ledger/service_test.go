package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solara-mfi/solara/internal/fault"
)

// memoryEntryRepo wraps memoryPoster with the out-of-transaction reads.
type memoryEntryRepo struct {
	*memoryPoster
}

func (r *memoryEntryRepo) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	entries := r.entries
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (r *memoryEntryRepo) GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	for _, entry := range r.entries {
		if entry.ID == entryID {
			entry.Lines = toJournalLines(entryID, r.lines[entryID])
			return entry, nil
		}
	}
	return JournalEntry{}, fault.NotFound("ledger: journal entry %d not found", entryID)
}

func (r *memoryEntryRepo) WithTx(ctx context.Context, fn func(context.Context, TxPoster) error) error {
	return fn(ctx, r.memoryPoster)
}

func newTestService() (*Service, *memoryEntryRepo) {
	repo := &memoryEntryRepo{memoryPoster: newMemoryPoster()}
	s := NewService(repo, NewEngine())
	s.WithNow(func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) })
	return s, repo
}

func TestPostEventDefaultsDateToNow(t *testing.T) {
	s, repo := newTestService()

	entry, err := s.PostEvent(context.Background(), PostEventInput{
		Type:   EventDeposit,
		Amount: amount("250.00"),
		Memo:   "teller deposit",
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC), entry.Date)
	require.Len(t, repo.entries, 1)
}

func TestPostEventRejectsLoanEvents(t *testing.T) {
	s, repo := newTestService()

	for _, kind := range []EventType{EventDisbursement, EventRepayment, EventSettlement} {
		_, err := s.PostEvent(context.Background(), PostEventInput{Type: kind, Amount: amount("100")})
		require.Equal(t, fault.KindValidation, fault.KindOf(err), kind)
	}
	require.Empty(t, repo.entries)
}

func TestGetReturnsEntryWithLines(t *testing.T) {
	s, _ := newTestService()

	posted, err := s.PostEvent(context.Background(), PostEventInput{
		Type:   EventFeeDebit,
		Amount: amount("15.50"),
	})
	require.NoError(t, err)

	entry, err := s.Get(context.Background(), posted.ID)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)

	_, err = s.Get(context.Background(), posted.ID+999)
	require.Equal(t, fault.KindNotFound, fault.KindOf(err))
}
