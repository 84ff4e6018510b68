package store

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadops/leadbase-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(8)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS history_ids (
	identifier TEXT PRIMARY KEY,
	batch_tag  TEXT NOT NULL,
	added_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_ids_batch_tag ON history_ids(batch_tag);

CREATE TABLE IF NOT EXISTS root_ids (
	identifier  TEXT PRIMARY KEY,
	source_file TEXT NOT NULL DEFAULT '',
	batch_tag   TEXT NOT NULL,
	added_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_root_ids_batch_tag ON root_ids(batch_tag);

CREATE TABLE IF NOT EXISTS companies (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	identifier TEXT NOT NULL,
	load_year  INTEGER NOT NULL,
	UNIQUE (identifier, load_year)
);

CREATE INDEX IF NOT EXISTS idx_companies_identifier ON companies(identifier);

CREATE TABLE IF NOT EXISTS company_phones (
	company_id BIGINT NOT NULL REFERENCES companies(id),
	phone      TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (company_id, phone)
);

CREATE TABLE IF NOT EXISTS blocklist_phones (
	phone    TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_blocklist_phones_added_at ON blocklist_phones(added_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadHistory(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT identifier FROM history_ids`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load history")
	}
	defer rows.Close()

	ids, err := scanStrings(rows)
	return ids, eris.Wrap(err, "postgres: load history iterate")
}

func (s *PostgresStore) AddHistoryBatch(ctx context.Context, ids []string, batchTag string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if batchTag == "" {
		return 0, eris.New("postgres: empty history batch tag")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO history_ids (identifier, batch_tag)
		 SELECT DISTINCT unnest($1::text[]), $2
		 ON CONFLICT (identifier) DO NOTHING`,
		ids, batchTag,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: add history batch %s", batchTag)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteHistoryBatch(ctx context.Context, batchTag string) ([]string, error) {
	if batchTag == "" {
		return nil, eris.New("postgres: empty history batch tag")
	}

	rows, err := s.pool.Query(ctx,
		`DELETE FROM history_ids WHERE batch_tag = $1 RETURNING identifier`,
		batchTag,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: delete history batch %s", batchTag)
	}
	defer rows.Close()

	ids, err := scanStrings(rows)
	return ids, eris.Wrapf(err, "postgres: delete history batch %s iterate", batchTag)
}

func (s *PostgresStore) LoadRoot(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT identifier FROM root_ids`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load root")
	}
	defer rows.Close()

	ids, err := scanStrings(rows)
	return ids, eris.Wrap(err, "postgres: load root iterate")
}

func (s *PostgresStore) AddRootBatch(ctx context.Context, ids []string, sourceFile, batchTag string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO root_ids (identifier, source_file, batch_tag)
		 SELECT DISTINCT unnest($1::text[]), $2, $3
		 ON CONFLICT (identifier) DO NOTHING`,
		ids, sourceFile, batchTag,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: add root batch %s", batchTag)
	}
	return tag.RowsAffected(), nil
}

// SaveDirectoryChunk commits one loader chunk in a single transaction:
// upsert the identifiers, re-fetch their internal keys, then insert the
// phone pairs with ON CONFLICT DO NOTHING. A failure rolls back the whole
// chunk and leaves previous chunks untouched.
func (s *PostgresStore) SaveDirectoryChunk(ctx context.Context, year int, chunk map[string][]string) (ChunkResult, error) {
	var res ChunkResult
	if len(chunk) == 0 {
		return res, nil
	}

	identifiers := make([]string, 0, len(chunk))
	for id := range chunk {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "postgres: directory chunk: begin tx")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO companies (identifier, load_year)
		 SELECT unnest($1::text[]), $2
		 ON CONFLICT (identifier, load_year) DO NOTHING`,
		identifiers, year,
	)
	if err != nil {
		return res, eris.Wrap(err, "postgres: directory chunk: upsert companies")
	}
	res.Identifiers = tag.RowsAffected()

	rows, err := tx.Query(ctx,
		`SELECT id, identifier FROM companies WHERE load_year = $1 AND identifier = ANY($2::text[])`,
		year, identifiers,
	)
	if err != nil {
		return res, eris.Wrap(err, "postgres: directory chunk: fetch company ids")
	}
	keyByIdentifier := make(map[string]int64, len(identifiers))
	for rows.Next() {
		var key int64
		var identifier string
		if err := rows.Scan(&key, &identifier); err != nil {
			rows.Close()
			return res, eris.Wrap(err, "postgres: directory chunk: scan company id")
		}
		keyByIdentifier[identifier] = key
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, eris.Wrap(err, "postgres: directory chunk: iterate company ids")
	}

	var companyIDs []int64
	var phones []string
	var positions []int
	for _, identifier := range identifiers {
		key, ok := keyByIdentifier[identifier]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(chunk[identifier]))
		pos := 0
		for _, phone := range chunk[identifier] {
			if seen[phone] {
				continue
			}
			seen[phone] = true
			companyIDs = append(companyIDs, key)
			phones = append(phones, phone)
			positions = append(positions, pos)
			pos++
		}
	}

	if len(phones) > 0 {
		tag, err = tx.Exec(ctx,
			`INSERT INTO company_phones (company_id, phone, position)
			 SELECT * FROM unnest($1::bigint[], $2::text[], $3::int[])
			 ON CONFLICT (company_id, phone) DO NOTHING`,
			companyIDs, phones, positions,
		)
		if err != nil {
			return res, eris.Wrap(err, "postgres: directory chunk: insert phones")
		}
		res.Phones = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return res, eris.Wrap(err, "postgres: directory chunk: commit tx")
	}
	return res, nil
}

func (s *PostgresStore) LookupPhones(ctx context.Context, ids []string, years []int) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}

	query := `SELECT c.identifier, p.phone
	          FROM companies c
	          JOIN company_phones p ON p.company_id = c.id
	          WHERE c.identifier = ANY($1::text[])`
	args := []any{ids}
	if len(years) > 0 {
		query += ` AND c.load_year = ANY($2::int[])`
		args = append(args, years)
	}
	query += ` ORDER BY c.identifier, p.position`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup phones")
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var identifier, phone string
		if err := rows.Scan(&identifier, &phone); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phone")
		}
		if !contains(result[identifier], phone) {
			result[identifier] = append(result[identifier], phone)
		}
	}
	return result, eris.Wrap(rows.Err(), "postgres: lookup phones iterate")
}

func (s *PostgresStore) DirectoryCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count)
	return count, eris.Wrap(err, "postgres: directory count")
}

func (s *PostgresStore) AddBlocklistPhones(ctx context.Context, phones []string) (int64, error) {
	return db.InsertIgnoreValues(ctx, s.pool, "blocklist_phones", "phone", phones)
}

func (s *PostgresStore) FindBlockedPhones(ctx context.Context, phones []string) ([]string, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT phone FROM blocklist_phones WHERE phone = ANY($1::text[])`,
		phones,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find blocked phones")
	}
	defer rows.Close()

	blocked, err := scanStrings(rows)
	return blocked, eris.Wrap(err, "postgres: find blocked phones iterate")
}

func (s *PostgresStore) GetBlocklistStats(ctx context.Context) (BlocklistStats, error) {
	var st BlocklistStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE added_at >= $1) FROM blocklist_phones`,
		startOfToday(),
	).Scan(&st.Total, &st.AddedToday)
	return st, eris.Wrap(err, "postgres: blocklist stats")
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
