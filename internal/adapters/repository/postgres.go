package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/okian/fairway/internal/domain/model"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore is a Store on Postgres. The status guard is a conditional
// UPDATE, and WithTx commits multi-row settlement writes atomically.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
	tx   pgx.Tx
}

var (
	_ Store      = (*PostgresStore)(nil)
	_ Transactor = (*PostgresStore)(nil)
)

// NewPostgresStore connects a pool to url and verifies it with a ping.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStoreFromPool(pool), nil
}

// NewPostgresStoreFromPool wraps an existing pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// Close releases the pool. It is a no-op on a transaction-scoped store.
func (s *PostgresStore) Close() {
	if s.tx == nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside one transaction. Nested calls join the outer transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	defer observe("with_tx", time.Now(), &err)
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{pool: s.pool, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Contests

func (s *PostgresStore) CreateContest(ctx context.Context, c model.Contest) (err error) {
	defer observe("create_contest", time.Now(), &err)
	curve, err := json.Marshal(c.PrizeCurve)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO contests (id, name, status, entry_fee, house_fee_percent, prize_curve, salary_cap, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.q.Exec(ctx, q, c.ID, c.Name, string(c.Status), c.EntryFee, c.HouseFeePercent, curve, c.SalaryCap, c.CreatedAt, c.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ErrContestExists
	}
	return err
}

func (s *PostgresStore) GetContest(ctx context.Context, id string) (c model.Contest, err error) {
	defer observe("get_contest", time.Now(), &err)
	const q = `
		SELECT id, name, status, entry_fee, house_fee_percent, prize_curve, salary_cap, created_at, updated_at
		FROM contests WHERE id = $1`
	var (
		status string
		curve  []byte
	)
	err = s.q.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &status, &c.EntryFee, &c.HouseFeePercent, &curve, &c.SalaryCap, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contest{}, ErrContestNotFound
	}
	if err != nil {
		return model.Contest{}, err
	}
	c.Status = model.ContestStatus(status)
	if err := json.Unmarshal(curve, &c.PrizeCurve); err != nil {
		return model.Contest{}, fmt.Errorf("decode prize curve: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) TransitionContest(ctx context.Context, id string, from, to model.ContestStatus) (ok bool, err error) {
	defer observe("transition_contest", time.Now(), &err)
	const q = `UPDATE contests SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	tag, err := s.q.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var one int
	err = s.q.QueryRow(ctx, `SELECT 1 FROM contests WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrContestNotFound
	}
	return false, err
}

// Pricing

func (s *PostgresStore) SavePricingRun(ctx context.Context, run model.PricingRun) (err error) {
	defer observe("save_pricing_run", time.Now(), &err)
	records, err := json.Marshal(run.Records)
	if err != nil {
		return err
	}
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	return s.WithTx(ctx, func(st Store) error {
		q := st.(*PostgresStore).q
		if _, err := q.Exec(ctx,
			`UPDATE pricing_runs SET superseded_at = $2 WHERE contest_id = $1 AND superseded_at IS NULL`,
			run.ContestID, run.CreatedAt); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `
			INSERT INTO pricing_runs (id, contest_id, field_size, records, stats, rescaled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, run.ContestID, run.FieldSize, records, stats, run.Rescaled, run.CreatedAt)
		if pgCode(err) == pgForeignKeyViolation {
			return ErrContestNotFound
		}
		return err
	})
}

func (s *PostgresStore) GetActivePricingRun(ctx context.Context, contestID string) (run model.PricingRun, err error) {
	defer observe("get_active_pricing_run", time.Now(), &err)
	const q = `
		SELECT id, contest_id, field_size, records, stats, rescaled, created_at
		FROM pricing_runs WHERE contest_id = $1 AND superseded_at IS NULL`
	var records, stats []byte
	err = s.q.QueryRow(ctx, q, contestID).Scan(&run.ID, &run.ContestID, &run.FieldSize, &records, &stats, &run.Rescaled, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PricingRun{}, ErrPricingNotFound
	}
	if err != nil {
		return model.PricingRun{}, err
	}
	if err := json.Unmarshal(records, &run.Records); err != nil {
		return model.PricingRun{}, fmt.Errorf("decode pricing records: %w", err)
	}
	if err := json.Unmarshal(stats, &run.Stats); err != nil {
		return model.PricingRun{}, fmt.Errorf("decode pricing stats: %w", err)
	}
	return run, nil
}

// Entries

func (s *PostgresStore) CreateEntry(ctx context.Context, e model.Entry) (err error) {
	defer observe("create_entry", time.Now(), &err)
	picks, err := json.Marshal(e.Picks)
	if err != nil {
		return err
	}
	// FOR SHARE holds the contest row so a concurrent start waits for the insert.
	const q = `
		INSERT INTO entries (id, contest_id, user_id, display_name, picks, total_salary, status, fee_charged, submitted_at)
		SELECT $1::text, c.id, $3::text, $4::text, $5::jsonb, $6::bigint, $7::text, $8::bigint, $9::timestamptz
		FROM contests c WHERE c.id = $2 AND c.status = $10
		FOR SHARE`
	tag, err := s.q.Exec(ctx, q, e.ID, e.ContestID, e.UserID, e.DisplayName, picks, e.TotalSalary, string(e.Status),
		e.FeeCharged, e.SubmittedAt, string(model.ContestOpen))
	switch pgCode(err) {
	case pgUniqueViolation:
		return ErrDuplicateEntry
	case pgForeignKeyViolation:
		return ErrContestNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var one int
	err = s.q.QueryRow(ctx, `SELECT 1 FROM contests WHERE id = $1`, e.ContestID).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrContestNotFound
	case err != nil:
		return err
	}
	return ErrContestNotOpen
}

func (s *PostgresStore) ListSubmittedEntries(ctx context.Context, contestID string) (out []model.Entry, err error) {
	defer observe("list_submitted_entries", time.Now(), &err)
	const q = `
		SELECT id, contest_id, user_id, display_name, picks, total_salary, status, fee_charged, submitted_at, final_score, final_position
		FROM entries WHERE contest_id = $1 AND status = $2
		ORDER BY submitted_at, id`
	rows, err := s.q.Query(ctx, q, contestID, string(model.EntrySubmitted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      model.Entry
			picks  []byte
			status string
		)
		if err := rows.Scan(&e.ID, &e.ContestID, &e.UserID, &e.DisplayName, &picks, &e.TotalSalary, &status,
			&e.FeeCharged, &e.SubmittedAt, &e.FinalScore, &e.FinalPosition); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(picks, &e.Picks); err != nil {
			return nil, fmt.Errorf("decode picks of %s: %w", e.ID, err)
		}
		e.Status = model.EntryStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttachStandings(ctx context.Context, contestID string, standings []model.Standing) (n int, err error) {
	defer observe("attach_standings", time.Now(), &err)
	if len(standings) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE entries SET final_score = $3, final_position = $4
		WHERE id = $1 AND contest_id = $2 AND final_position IS NULL`
	batch := &pgx.Batch{}
	for _, st := range standings {
		batch.Queue(q, st.EntryID, contestID, st.Points, st.Position)
	}
	br := s.q.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); err == nil {
			err = cerr
		}
	}()
	for range standings {
		tag, err := br.Exec()
		if err != nil {
			return n, err
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

// Performances

func (s *PostgresStore) UpsertPerformances(ctx context.Context, contestID string, perf []model.Performance) (err error) {
	defer observe("upsert_performances", time.Now(), &err)
	if len(perf) == 0 {
		return nil
	}
	const q = `
		INSERT INTO performances (contest_id, contestant_id, relative_to_par, rounds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contest_id, contestant_id)
		DO UPDATE SET relative_to_par = EXCLUDED.relative_to_par, rounds = EXCLUDED.rounds`
	batch := &pgx.Batch{}
	for _, p := range perf {
		rounds, err := json.Marshal(append([]int64{}, p.Rounds...))
		if err != nil {
			return err
		}
		batch.Queue(q, contestID, p.ContestantID, p.RelativeToPar, rounds)
	}
	br := s.q.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); err == nil {
			err = cerr
		}
	}()
	for range perf {
		if _, err := br.Exec(); err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return ErrContestNotFound
			}
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Performances(ctx context.Context, contestID string, contestantIDs []string) (out map[string]model.Performance, err error) {
	defer observe("performances", time.Now(), &err)
	const q = `
		SELECT contestant_id, relative_to_par, rounds
		FROM performances WHERE contest_id = $1 AND contestant_id = ANY($2)`
	rows, err := s.q.Query(ctx, q, contestID, contestantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make(map[string]model.Performance, len(contestantIDs))
	for rows.Next() {
		var (
			p      model.Performance
			rounds []byte
		)
		if err := rows.Scan(&p.ContestantID, &p.RelativeToPar, &rounds); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rounds, &p.Rounds); err != nil {
			return nil, fmt.Errorf("decode rounds of %s: %w", p.ContestantID, err)
		}
		out[p.ContestantID] = p
	}
	return out, rows.Err()
}

// Results, payouts, analytics

func (s *PostgresStore) CreateResult(ctx context.Context, r model.CompetitionResult) (err error) {
	defer observe("create_result", time.Now(), &err)
	curve, err := json.Marshal(r.PrizeCurve)
	if err != nil {
		return err
	}
	board, err := json.Marshal(r.Leaderboard)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO competition_results (id, contest_id, total_entries, entry_fee, gross_pool, house_fee_percent, house_fee,
			net_pool, prize_curve, paid_positions, distributed, remainder, winner_entry_id, tie_break, leaderboard, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = s.q.Exec(ctx, q, r.ID, r.ContestID, r.TotalEntries, r.EntryFee, r.GrossPool, r.HouseFeePercent, r.HouseFee,
		r.NetPool, curve, r.PaidPositions, r.Distributed, r.Remainder, r.WinnerEntryID, r.TieBreak, board, r.CreatedAt)
	switch pgCode(err) {
	case pgUniqueViolation:
		return ErrResultExists
	case pgForeignKeyViolation:
		return ErrContestNotFound
	}
	return err
}

func (s *PostgresStore) GetResultByContest(ctx context.Context, contestID string) (r model.CompetitionResult, err error) {
	defer observe("get_result", time.Now(), &err)
	const q = `
		SELECT id, contest_id, total_entries, entry_fee, gross_pool, house_fee_percent, house_fee, net_pool, prize_curve,
			paid_positions, distributed, remainder, winner_entry_id, tie_break, leaderboard, created_at
		FROM competition_results WHERE contest_id = $1`
	var curve, board []byte
	err = s.q.QueryRow(ctx, q, contestID).Scan(&r.ID, &r.ContestID, &r.TotalEntries, &r.EntryFee, &r.GrossPool,
		&r.HouseFeePercent, &r.HouseFee, &r.NetPool, &curve, &r.PaidPositions, &r.Distributed, &r.Remainder,
		&r.WinnerEntryID, &r.TieBreak, &board, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CompetitionResult{}, ErrResultNotFound
	}
	if err != nil {
		return model.CompetitionResult{}, err
	}
	if err := json.Unmarshal(curve, &r.PrizeCurve); err != nil {
		return model.CompetitionResult{}, fmt.Errorf("decode prize curve: %w", err)
	}
	if err := json.Unmarshal(board, &r.Leaderboard); err != nil {
		return model.CompetitionResult{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) CreatePayout(ctx context.Context, p model.Payout) (created bool, err error) {
	defer observe("create_payout", time.Now(), &err)
	const q = `
		INSERT INTO payouts (id, result_id, contest_id, entry_id, user_id, position, percentage, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (result_id, position) DO NOTHING`
	tag, err := s.q.Exec(ctx, q, p.ID, p.ResultID, p.ContestID, p.EntryID, p.UserID, p.Position, p.Percentage, p.Amount, p.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListPayouts(ctx context.Context, resultID string) (out []model.Payout, err error) {
	defer observe("list_payouts", time.Now(), &err)
	const q = `
		SELECT id, result_id, contest_id, entry_id, user_id, position, percentage, amount, created_at
		FROM payouts WHERE result_id = $1 ORDER BY position`
	rows, err := s.q.Query(ctx, q, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Payout
		if err := rows.Scan(&p.ID, &p.ResultID, &p.ContestID, &p.EntryID, &p.UserID, &p.Position, &p.Percentage, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAnalytics(ctx context.Context, a model.AnalyticsSnapshot) (created bool, err error) {
	defer observe("create_analytics", time.Now(), &err)
	const q = `
		INSERT INTO analytics_snapshots (id, result_id, contest_id, unique_participants, total_entries,
			mean_score, median_score, max_score, min_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8, $9, $10)
		ON CONFLICT (result_id) DO NOTHING`
	tag, err := s.q.Exec(ctx, q, a.ID, a.ResultID, a.ContestID, a.UniqueParticipants, a.TotalEntries,
		a.MeanScore.String(), a.MedianScore.String(), a.MaxScore, a.MinScore, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetAnalytics(ctx context.Context, resultID string) (a model.AnalyticsSnapshot, err error) {
	defer observe("get_analytics", time.Now(), &err)
	const q = `
		SELECT id, result_id, contest_id, unique_participants, total_entries, mean_score::text, median_score::text,
			max_score, min_score, created_at
		FROM analytics_snapshots WHERE result_id = $1`
	var mean, median string
	err = s.q.QueryRow(ctx, q, resultID).Scan(&a.ID, &a.ResultID, &a.ContestID, &a.UniqueParticipants, &a.TotalEntries,
		&mean, &median, &a.MaxScore, &a.MinScore, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AnalyticsSnapshot{}, ErrAnalyticsNotFound
	}
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}
	if a.MeanScore, err = decimal.NewFromString(mean); err != nil {
		return model.AnalyticsSnapshot{}, fmt.Errorf("decode mean score: %w", err)
	}
	if a.MedianScore, err = decimal.NewFromString(median); err != nil {
		return model.AnalyticsSnapshot{}, fmt.Errorf("decode median score: %w", err)
	}
	return a, nil
}
