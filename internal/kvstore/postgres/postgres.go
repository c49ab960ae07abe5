// Package postgres implements the Table collaborator on PostgreSQL.
// Each item is one row of vault_items keyed by (pk, sk); the payload
// attributes live in a jsonb column, which keeps the store schemaless the
// same way the DynamoDB backend is.
//
// Through JSONB, byte-slice attributes come back as base64 strings and
// numbers as float64; the kvstore coercion helpers absorb that.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Table struct {
	db *sql.DB
}

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Table, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	t := &Table{db: db}
	if err := t.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return t, nil
}

func NewTable(db *sql.DB) *Table {
	return &Table{db: db}
}

func (t *Table) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	return goose.UpContext(ctx, t.db, "migrations")
}

func (t *Table) Close() error {
	return t.db.Close()
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func decodeAttrs(pk, sk string, raw []byte) (kvstore.Item, error) {
	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, storeErr(err)
	}
	item["pk"] = pk
	item["sk"] = sk
	return item, nil
}

func (t *Table) Get(ctx context.Context, key kvstore.Key) (kvstore.Item, error) {
	var raw []byte
	err := t.db.QueryRowContext(ctx,
		`SELECT attrs FROM vault_items WHERE pk = $1 AND sk = $2`,
		key.PK, key.SK).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return decodeAttrs(key.PK, key.SK, raw)
}

func (t *Table) Put(ctx context.Context, key kvstore.Key, item kvstore.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return storeErr(err)
	}

	_, err = t.db.ExecContext(ctx,
		`INSERT INTO vault_items (pk, sk, attrs) VALUES ($1, $2, $3)
		 ON CONFLICT (pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs`,
		key.PK, key.SK, raw)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (t *Table) Update(ctx context.Context, key kvstore.Key, assign kvstore.Item) error {
	raw, err := json.Marshal(assign)
	if err != nil {
		return storeErr(err)
	}

	// jsonb || merges top-level fields, matching the other backends
	res, err := t.db.ExecContext(ctx,
		`UPDATE vault_items SET attrs = attrs || $3::jsonb WHERE pk = $1 AND sk = $2`,
		key.PK, key.SK, raw)
	if err != nil {
		return storeErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (t *Table) BatchGet(ctx context.Context, keys []kvstore.Key) ([]kvstore.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for i, key := range keys {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", 2*i+1, 2*i+2))
		args = append(args, key.PK, key.SK)
	}

	query := `SELECT pk, sk, attrs FROM vault_items WHERE (pk, sk) IN (` +
		strings.Join(placeholders, ", ") + `)`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var items []kvstore.Item
	for rows.Next() {
		var pk, sk string
		var raw []byte
		if err := rows.Scan(&pk, &sk, &raw); err != nil {
			return nil, storeErr(err)
		}
		item, err := decodeAttrs(pk, sk, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// escapeLike escapes LIKE metacharacters so a sort-key prefix is matched
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (t *Table) QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int) ([]kvstore.Item, error) {
	query := `SELECT sk, attrs FROM vault_items
		WHERE pk = $1 AND sk LIKE $2 ESCAPE '\' ORDER BY sk`
	args := []any{pk, escapeLike(skPrefix) + "%"}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var items []kvstore.Item
	for rows.Next() {
		var sk string
		var raw []byte
		if err := rows.Scan(&sk, &raw); err != nil {
			return nil, storeErr(err)
		}
		item, err := decodeAttrs(pk, sk, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (t *Table) Delete(ctx context.Context, key kvstore.Key) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM vault_items WHERE pk = $1 AND sk = $2`,
		key.PK, key.SK)
	if err != nil {
		return storeErr(err)
	}
	return nil
}
