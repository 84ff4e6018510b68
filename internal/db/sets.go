package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertIgnoreValues bulk-inserts distinct string values into a single-column
// set table with ON CONFLICT DO NOTHING, returning the number of rows that
// were actually new. Values travel as one text[] parameter so arbitrarily
// large batches stay a single statement.
func InsertIgnoreValues(ctx context.Context, pool Pool, table, column string, values []string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT DISTINCT unnest($1::text[]) ON CONFLICT DO NOTHING",
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{column}.Sanitize(),
	)
	tag, err := pool.Exec(ctx, sql, values)
	if err != nil {
		return 0, eris.Wrapf(err, "db: insert ignore into %s", table)
	}
	return tag.RowsAffected(), nil
}
