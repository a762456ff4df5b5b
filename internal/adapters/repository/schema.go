package repository

// schema is applied by PostgresStore.Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contests (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		status            TEXT NOT NULL,
		entry_fee         BIGINT NOT NULL,
		house_fee_percent BIGINT NOT NULL,
		prize_curve       JSONB NOT NULL,
		salary_cap        BIGINT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pricing_runs (
		id            TEXT PRIMARY KEY,
		contest_id    TEXT NOT NULL REFERENCES contests(id),
		field_size    INTEGER NOT NULL,
		records       JSONB NOT NULL,
		stats         JSONB NOT NULL,
		rescaled      BOOLEAN NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		superseded_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS pricing_runs_active_idx
		ON pricing_runs (contest_id) WHERE superseded_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS entries (
		id             TEXT PRIMARY KEY,
		contest_id     TEXT NOT NULL REFERENCES contests(id),
		user_id        TEXT NOT NULL,
		display_name   TEXT NOT NULL,
		picks          JSONB NOT NULL,
		total_salary   BIGINT NOT NULL,
		status         TEXT NOT NULL,
		fee_charged    BIGINT NOT NULL,
		submitted_at   TIMESTAMPTZ NOT NULL,
		final_score    BIGINT,
		final_position INTEGER,
		UNIQUE (contest_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS performances (
		contest_id      TEXT NOT NULL REFERENCES contests(id),
		contestant_id   TEXT NOT NULL,
		relative_to_par BIGINT NOT NULL,
		rounds          JSONB NOT NULL,
		PRIMARY KEY (contest_id, contestant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS competition_results (
		id                TEXT PRIMARY KEY,
		contest_id        TEXT NOT NULL UNIQUE REFERENCES contests(id),
		total_entries     INTEGER NOT NULL,
		entry_fee         BIGINT NOT NULL,
		gross_pool        BIGINT NOT NULL,
		house_fee_percent BIGINT NOT NULL,
		house_fee         BIGINT NOT NULL,
		net_pool          BIGINT NOT NULL,
		prize_curve       JSONB NOT NULL,
		paid_positions    INTEGER NOT NULL,
		distributed       BIGINT NOT NULL,
		remainder         BIGINT NOT NULL,
		winner_entry_id   TEXT NOT NULL,
		tie_break         TEXT NOT NULL,
		leaderboard       JSONB NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id         TEXT PRIMARY KEY,
		result_id  TEXT NOT NULL REFERENCES competition_results(id),
		contest_id TEXT NOT NULL,
		entry_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		position   INTEGER NOT NULL,
		percentage BIGINT NOT NULL,
		amount     BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (result_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id                  TEXT PRIMARY KEY,
		result_id           TEXT NOT NULL UNIQUE REFERENCES competition_results(id),
		contest_id          TEXT NOT NULL,
		unique_participants INTEGER NOT NULL,
		total_entries       INTEGER NOT NULL,
		mean_score          NUMERIC(20,2) NOT NULL,
		median_score        NUMERIC(20,2) NOT NULL,
		max_score           BIGINT NOT NULL,
		min_score           BIGINT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
}
