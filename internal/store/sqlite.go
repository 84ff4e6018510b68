package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS history_ids (
	identifier TEXT PRIMARY KEY,
	batch_tag  TEXT NOT NULL,
	added_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_history_ids_batch_tag ON history_ids(batch_tag);

CREATE TABLE IF NOT EXISTS root_ids (
	identifier  TEXT PRIMARY KEY,
	source_file TEXT NOT NULL DEFAULT '',
	batch_tag   TEXT NOT NULL,
	added_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_root_ids_batch_tag ON root_ids(batch_tag);

CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	load_year  INTEGER NOT NULL,
	UNIQUE (identifier, load_year)
);

CREATE INDEX IF NOT EXISTS idx_companies_identifier ON companies(identifier);

CREATE TABLE IF NOT EXISTS company_phones (
	company_id INTEGER NOT NULL REFERENCES companies(id),
	phone      TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (company_id, phone)
);

CREATE TABLE IF NOT EXISTS blocklist_phones (
	phone    TEXT PRIMARY KEY,
	added_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_blocklist_phones_added_at ON blocklist_phones(added_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadHistory(ctx context.Context) ([]string, error) {
	return s.selectStrings(ctx, `SELECT identifier FROM history_ids`, "load history")
}

func (s *SQLiteStore) AddHistoryBatch(ctx context.Context, ids []string, batchTag string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if batchTag == "" {
		return 0, eris.New("sqlite: empty history batch tag")
	}
	return s.insertIgnoreTagged(ctx, `INSERT OR IGNORE INTO history_ids (identifier, batch_tag) VALUES (?, ?)`, ids, batchTag)
}

func (s *SQLiteStore) DeleteHistoryBatch(ctx context.Context, batchTag string) ([]string, error) {
	if batchTag == "" {
		return nil, eris.New("sqlite: empty history batch tag")
	}

	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM history_ids WHERE batch_tag = ? RETURNING identifier`,
		batchTag,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: delete history batch %s", batchTag)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deleted identifier")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrapf(rows.Err(), "sqlite: delete history batch %s iterate", batchTag)
}

func (s *SQLiteStore) LoadRoot(ctx context.Context) ([]string, error) {
	return s.selectStrings(ctx, `SELECT identifier FROM root_ids`, "load root")
}

func (s *SQLiteStore) AddRootBatch(ctx context.Context, ids []string, sourceFile, batchTag string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: add root batch: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO root_ids (identifier, source_file, batch_tag) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: add root batch: prepare")
	}
	defer stmt.Close()

	var inserted int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id, sourceFile, batchTag)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: add root batch %s", batchTag)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: add root batch: commit tx")
	}
	return inserted, nil
}

func (s *SQLiteStore) SaveDirectoryChunk(ctx context.Context, year int, chunk map[string][]string) (ChunkResult, error) {
	var res ChunkResult
	if len(chunk) == 0 {
		return res, nil
	}

	identifiers := make([]string, 0, len(chunk))
	for id := range chunk {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: directory chunk: begin tx")
	}
	defer tx.Rollback()

	insertCompany, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO companies (identifier, load_year) VALUES (?, ?)`)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: directory chunk: prepare companies")
	}
	defer insertCompany.Close()

	selectKey, err := tx.PrepareContext(ctx,
		`SELECT id FROM companies WHERE identifier = ? AND load_year = ?`)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: directory chunk: prepare key lookup")
	}
	defer selectKey.Close()

	insertPhone, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO company_phones (company_id, phone, position) VALUES (?, ?, ?)`)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: directory chunk: prepare phones")
	}
	defer insertPhone.Close()

	for _, identifier := range identifiers {
		ir, err := insertCompany.ExecContext(ctx, identifier, year)
		if err != nil {
			return res, eris.Wrap(err, "sqlite: directory chunk: upsert company")
		}
		n, _ := ir.RowsAffected()
		res.Identifiers += n

		var key int64
		if err := selectKey.QueryRowContext(ctx, identifier, year).Scan(&key); err != nil {
			return res, eris.Wrap(err, "sqlite: directory chunk: fetch company id")
		}

		seen := make(map[string]bool, len(chunk[identifier]))
		pos := 0
		for _, phone := range chunk[identifier] {
			if seen[phone] {
				continue
			}
			seen[phone] = true
			pr, err := insertPhone.ExecContext(ctx, key, phone, pos)
			if err != nil {
				return res, eris.Wrap(err, "sqlite: directory chunk: insert phone")
			}
			pn, _ := pr.RowsAffected()
			res.Phones += pn
			pos++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, eris.Wrap(err, "sqlite: directory chunk: commit tx")
	}
	return res, nil
}

func (s *SQLiteStore) LookupPhones(ctx context.Context, ids []string, years []int) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(ids) == 0 {
		return result, nil
	}

	yearSet := make(map[int]bool, len(years))
	for _, y := range years {
		yearSet[y] = true
	}

	stmt, err := s.db.PrepareContext(ctx,
		`SELECT c.load_year, p.phone
		 FROM companies c
		 JOIN company_phones p ON p.company_id = c.id
		 WHERE c.identifier = ?
		 ORDER BY p.position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup phones: prepare")
	}
	defer stmt.Close()

	for _, id := range ids {
		rows, err := stmt.QueryContext(ctx, id)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: lookup phones")
		}
		for rows.Next() {
			var loadYear int
			var phone string
			if err := rows.Scan(&loadYear, &phone); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "sqlite: scan phone")
			}
			if len(yearSet) > 0 && !yearSet[loadYear] {
				continue
			}
			if !contains(result[id], phone) {
				result[id] = append(result[id], phone)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: lookup phones iterate")
		}
		rows.Close()
	}
	return result, nil
}

func (s *SQLiteStore) DirectoryCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: directory count")
}

func (s *SQLiteStore) AddBlocklistPhones(ctx context.Context, phones []string) (int64, error) {
	if len(phones) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: add blocklist: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO blocklist_phones (phone) VALUES (?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: add blocklist: prepare")
	}
	defer stmt.Close()

	var inserted int64
	for _, phone := range phones {
		res, err := stmt.ExecContext(ctx, phone)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: add blocklist phone")
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: add blocklist: commit tx")
	}
	return inserted, nil
}

func (s *SQLiteStore) FindBlockedPhones(ctx context.Context, phones []string) ([]string, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `SELECT 1 FROM blocklist_phones WHERE phone = ?`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find blocked: prepare")
	}
	defer stmt.Close()

	var blocked []string
	for _, phone := range phones {
		var one int
		err := stmt.QueryRowContext(ctx, phone).Scan(&one)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: find blocked phone")
		}
		blocked = append(blocked, phone)
	}
	return blocked, nil
}

func (s *SQLiteStore) GetBlocklistStats(ctx context.Context) (BlocklistStats, error) {
	var st BlocklistStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(CASE WHEN added_at >= ? THEN 1 END) FROM blocklist_phones`,
		startOfToday(),
	).Scan(&st.Total, &st.AddedToday)
	return st, eris.Wrap(err, "sqlite: blocklist stats")
}

func (s *SQLiteStore) selectStrings(ctx context.Context, query, op string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		out = append(out, s)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) insertIgnoreTagged(ctx context.Context, query string, ids []string, batchTag string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: prepare")
	}
	defer stmt.Close()

	var inserted int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id, batchTag)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert batch %s", batchTag)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert batch: commit tx")
	}
	return inserted, nil
}
