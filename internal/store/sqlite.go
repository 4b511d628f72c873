package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// sqliteStore is the pure-Go implementation of Store. It holds every kind's
// table in one SQLite file and serializes writes through mu, mirroring the
// teacher's leveldb.db "used to prevent concurrent transactions" discipline
// -- SQLite permits only one writer at a time regardless, but the mutex
// keeps the Go-level Write(ctx, fn) semantics (readers never block on it)
// honest even when the driver itself queues.
type sqliteStore struct {
	db    *sqlx.DB
	mu    sync.Mutex
	clock clock.Clock
}

var _ Store = (*sqliteStore)(nil)

// Open opens (creating if absent) the SQLite-backed Local Store at path and
// brings its schema up to SchemaVersion.
func Open(ctx context.Context, path string, clk clock.Clock) (Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, wrapSQLError("open", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, clock: clk}, nil
}

func tableName(kind model.EntityKind) string {
	return "kind_" + strings.ReplaceAll(string(kind), "-", "_")
}

func (s *sqliteStore) Get(ctx context.Context, kind model.EntityKind, id string) (*model.Record, error) {
	return getRecord(ctx, s.db, kind, id)
}

func (s *sqliteStore) Query(ctx context.Context, kind model.EntityKind, filter Filter) ([]*model.Record, error) {
	return queryRecords(ctx, s.db, kind, filter)
}

func (s *sqliteStore) Write(ctx context.Context, fn TxnFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapSQLError("begin", err)
	}
	txn := &sqliteTxn{tx: tx, clock: s.clock}
	if err := fn(txn); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return wrapSQLError("commit", err)
	}
	return nil
}

func (s *sqliteStore) Compact(ctx context.Context, kind model.EntityKind, olderThanMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE deleted = 1 AND updated_at < ?", tableName(kind)),
		olderThanMillis)
	if err != nil {
		return 0, wrapSQLError("compact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapSQLError("compact", err)
	}
	return int(n), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// sqliteTxn is the Transaction passed into a Write callback. Every method
// runs against the same *sqlx.Tx so a caller's reads observe its own
// uncommitted writes.
type sqliteTxn struct {
	tx    *sqlx.Tx
	clock clock.Clock
}

var _ Transaction = (*sqliteTxn)(nil)

func (t *sqliteTxn) Get(ctx context.Context, kind model.EntityKind, id string) (*model.Record, error) {
	return getRecord(ctx, t.tx, kind, id)
}

func (t *sqliteTxn) Query(ctx context.Context, kind model.EntityKind, filter Filter) ([]*model.Record, error) {
	return queryRecords(ctx, t.tx, kind, filter)
}

func (t *sqliteTxn) Create(ctx context.Context, kind model.EntityKind, fields Fields) (*model.Record, error) {
	id, _ := fields["id"].(string)
	if id == "" {
		id = crypto.NewID()
	}
	orgID, _ := fields["organizationId"].(string)
	now := t.clock.NowMillis()

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, wrapSQLError("create:marshal", err)
	}

	cols := []string{"id", "organization_id", "updated_at", "deleted", "is_synced", "sync_pending", "server_version", "payload"}
	vals := []interface{}{id, orgID, now, false, false, false, "", payload}
	for _, col := range indexedColumnsFor(kind) {
		cols = append(cols, col)
		vals = append(vals, stringField(fields, jsonKeyForColumn(col)))
	}

	placeholders := strings.Repeat("?,", len(cols))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName(kind), strings.Join(cols, ","), placeholders)
	if _, err := t.tx.ExecContext(ctx, query, vals...); err != nil {
		return nil, wrapSQLError("create", err)
	}

	return &model.Record{
		ID: id, EntityKind: kind, OrganizationID: orgID,
		UpdatedAt: now, Deleted: false, Payload: payload,
	}, nil
}

func (t *sqliteTxn) Update(ctx context.Context, kind model.EntityKind, id string, mutate Mutator) (*model.Record, error) {
	current, err := t.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	var currentFields Fields
	if err := json.Unmarshal(current.Payload, &currentFields); err != nil {
		return nil, wrapSQLError("update:unmarshal", err)
	}

	newFields, err := mutate(currentFields)
	if err != nil {
		return nil, err
	}
	if newFields == nil {
		return current, nil
	}

	now := t.clock.NowMillis()
	payload, err := json.Marshal(newFields)
	if err != nil {
		return nil, wrapSQLError("update:marshal", err)
	}

	sets := []string{"updated_at = ?", "payload = ?"}
	vals := []interface{}{now, payload}
	for _, col := range indexedColumnsFor(kind) {
		sets = append(sets, col+" = ?")
		vals = append(vals, stringField(newFields, jsonKeyForColumn(col)))
	}
	vals = append(vals, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", tableName(kind), strings.Join(sets, ","))
	if _, err := t.tx.ExecContext(ctx, query, vals...); err != nil {
		return nil, wrapSQLError("update", err)
	}

	current.UpdatedAt = now
	current.Payload = payload
	return current, nil
}

func (t *sqliteTxn) MarkDeleted(ctx context.Context, kind model.EntityKind, id string) error {
	now := t.clock.NowMillis()
	query := fmt.Sprintf("UPDATE %s SET deleted = 1, updated_at = ? WHERE id = ?", tableName(kind))
	res, err := t.tx.ExecContext(ctx, query, now, id)
	if err != nil {
		return wrapSQLError("markDeleted", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapSQLError("markDeleted", err)
	}
	if n == 0 {
		return wrapNotFound(string(kind), id)
	}
	return nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getRecord(ctx context.Context, q queryer, kind model.EntityKind, id string) (*model.Record, error) {
	var rec model.Record
	query := fmt.Sprintf("SELECT id, organization_id, updated_at, deleted, is_synced, sync_pending, server_version, payload FROM %s WHERE id = ? AND deleted = 0", tableName(kind))
	if err := q.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, wrapNotFound(string(kind), id)
		}
		return nil, wrapSQLError("get", err)
	}
	rec.EntityKind = kind
	return &rec, nil
}

func queryRecords(ctx context.Context, q queryer, kind model.EntityKind, filter Filter) ([]*model.Record, error) {
	query := fmt.Sprintf("SELECT id, organization_id, updated_at, deleted, is_synced, sync_pending, server_version, payload FROM %s WHERE 1=1", tableName(kind))
	var args []interface{}

	if filter.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filter.OrganizationID)
	}
	if filter.SinceUpdatedAt != 0 {
		query += " AND updated_at > ?"
		args = append(args, filter.SinceUpdatedAt)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted = 0"
	}
	query += " ORDER BY updated_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var recs []*model.Record
	if err := q.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, wrapSQLError("query", err)
	}
	for _, r := range recs {
		r.EntityKind = kind
	}
	return recs, nil
}

func indexedColumnsFor(kind model.EntityKind) []string {
	for _, ks := range Schema {
		if ks.Kind == kind {
			out := make([]string, len(ks.IndexedColumns))
			for i, c := range ks.IndexedColumns {
				out[i] = c
			}
			return out
		}
	}
	return nil
}

// jsonKeyForColumn maps a snake_case secondary-index column (e.g. visit_id)
// to the camelCase field name it's promoted from in a Fields map (visitId).
func jsonKeyForColumn(col string) string {
	parts := strings.Split(col, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

func stringField(fields Fields, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
