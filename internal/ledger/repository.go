package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger/accounts"
	platformdb "github.com/solara-mfi/solara/internal/platform/db"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, limit int) ([]JournalEntry, error)
	GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxPoster) error) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed journal repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, number, date, event_type, source_id, narration, status, created_at`

func (r *repository) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Number, &e.Date, &e.EventType, &e.SourceID, &e.Narration, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID).
		Scan(&entry.ID, &entry.Number, &entry.Date, &entry.EventType, &entry.SourceID, &entry.Narration, &entry.Status, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, fault.NotFound("ledger: journal entry %d not found", entryID)
		}
		return JournalEntry{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT jl.id, jl.je_id, jl.account_id, la.code, jl.debit, jl.credit
FROM journal_lines jl JOIN ledger_accounts la ON la.id = jl.account_id
WHERE jl.je_id=$1 ORDER BY jl.id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Code, &line.Debit, &line.Credit); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxPoster) error) error {
	return platformdb.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &TxRepository{Tx: tx})
	})
}

// TxRepository implements TxPoster on an open transaction. It is exported
// so the loans repository can reuse the posting SQL on its own transaction
// instead of duplicating it.
type TxRepository struct {
	Tx pgx.Tx
}

// GetAccountForPosting resolves an account by semantic code with a shared
// row lock, so a concurrent deactivation cannot race a posting.
func (r *TxRepository) GetAccountForPosting(ctx context.Context, code accounts.Code) (accounts.Account, error) {
	var a accounts.Account
	err := r.Tx.QueryRow(ctx, `SELECT id, code, name, type, active, created_at, updated_at
FROM ledger_accounts WHERE code=$1 FOR SHARE`, code).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, fault.NotFound("ledger: no account with code %s", code)
		}
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *TxRepository) InsertJournalEntry(ctx context.Context, in EntryInput) (JournalEntry, error) {
	entry := JournalEntry{
		Date:      in.Date,
		EventType: in.EventType,
		SourceID:  in.SourceID,
		Narration: in.Narration,
		Status:    EntryStatusPosted,
	}
	err := r.Tx.QueryRow(ctx, `INSERT INTO journal_entries (date, event_type, source_id, narration, status)
VALUES ($1,$2,$3,$4,'POSTED') RETURNING id, number, created_at`,
		in.Date, in.EventType, in.SourceID, in.Narration).
		Scan(&entry.ID, &entry.Number, &entry.CreatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *TxRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.Tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4)`, entryID, line.AccountID, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}
