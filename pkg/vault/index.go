package vault

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// index is a derived, rebuildable metadata index used to serve list/search
// without ever touching ciphertext. It is backed by an in-memory
// modernc.org/sqlite database — disposable, rebuilt from doc.Entries on
// unlock and refreshed after every mutation. Losing it (e.g. process
// restart) costs nothing: it holds no information that doc.Entries doesn't
// already have in plaintext.
type index struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE entries (
	id TEXT PRIMARY KEY,
	service_name TEXT NOT NULL,
	service_name_lower TEXT NOT NULL,
	environment TEXT NOT NULL,
	tags TEXT NOT NULL,
	domains TEXT NOT NULL,
	notes TEXT NOT NULL,
	favorite INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	last_used_at INTEGER,
	expires_at INTEGER
);`

func newIndex() (*index, error) {
	// A per-instance name keeps every index in its own in-memory database.
	db, err := sql.Open("sqlite", "file:keyvault-index-"+newEntryID()+"?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("vault: opening entry index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: creating entry index schema: %w", err)
	}
	return &index{db: db}, nil
}

func (ix *index) close() {
	if ix != nil && ix.db != nil {
		ix.db.Close()
	}
}

const fieldSep = "\x1f"

// rebuild replaces the index's contents with the given entries' metadata.
func (ix *index) rebuild(entries map[string]Entry) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("vault: rebuilding entry index: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO entries
		(id, service_name, service_name_lower, environment, tags, domains, notes, favorite, created_at, last_used_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(
			e.ID, e.ServiceName, strings.ToLower(e.ServiceName), e.Environment,
			fieldSep+strings.Join(e.Tags, fieldSep)+fieldSep,
			fieldSep+strings.Join(e.Domains, fieldSep)+fieldSep,
			e.Notes, boolToInt(e.Favorite), e.CreatedAt,
			nullableInt64(e.LastUsedAt), nullableInt64(e.ExpiresAt),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (ix *index) upsert(e Entry) error {
	_, err := ix.db.Exec(`INSERT INTO entries
		(id, service_name, service_name_lower, environment, tags, domains, notes, favorite, created_at, last_used_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service_name=excluded.service_name, service_name_lower=excluded.service_name_lower,
			environment=excluded.environment, tags=excluded.tags, domains=excluded.domains,
			notes=excluded.notes, favorite=excluded.favorite, created_at=excluded.created_at,
			last_used_at=excluded.last_used_at, expires_at=excluded.expires_at`,
		e.ID, e.ServiceName, strings.ToLower(e.ServiceName), e.Environment,
		fieldSep+strings.Join(e.Tags, fieldSep)+fieldSep,
		fieldSep+strings.Join(e.Domains, fieldSep)+fieldSep,
		e.Notes, boolToInt(e.Favorite), e.CreatedAt,
		nullableInt64(e.LastUsedAt), nullableInt64(e.ExpiresAt),
	)
	return err
}

func (ix *index) remove(id string) error {
	_, err := ix.db.Exec("DELETE FROM entries WHERE id = ?", id)
	return err
}

const orderClause = ` ORDER BY favorite DESC, (last_used_at IS NULL) ASC, last_used_at DESC, created_at DESC, id ASC`

// ListFilter is the input to list(filter) (spec.md §4.6).
type ListFilter struct {
	Domain             string
	Environment        string
	Tag                string
	Favorite           bool
	FavoriteSet        bool
	ExpiredWithinDays  *int
}

// queryIDs returns entry ids matching filter, in the default list order.
func (ix *index) queryIDs(filter ListFilter, nowMillis int64) ([]string, error) {
	var clauses []string
	var args []any

	if filter.Domain != "" {
		clauses = append(clauses, "domains LIKE ?")
		args = append(args, "%"+fieldSep+strings.ToLower(filter.Domain)+fieldSep+"%")
	}
	if filter.Environment != "" {
		clauses = append(clauses, "environment = ?")
		args = append(args, filter.Environment)
	}
	if filter.Tag != "" {
		clauses = append(clauses, "tags LIKE ?")
		args = append(args, "%"+fieldSep+filter.Tag+fieldSep+"%")
	}
	if filter.FavoriteSet && filter.Favorite {
		clauses = append(clauses, "favorite = 1")
	}
	if filter.ExpiredWithinDays != nil {
		cutoff := nowMillis + int64(*filter.ExpiredWithinDays)*86_400_000
		clauses = append(clauses, "expires_at IS NOT NULL AND expires_at <= ?")
		args = append(args, cutoff)
	}

	query := "SELECT id FROM entries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += orderClause

	return ix.queryRows(query, args...)
}

// searchIDs returns entry ids whose service_name, tags, environment, or
// notes contain query as a case-insensitive substring (spec.md §4.6).
func (ix *index) searchIDs(query string) ([]string, error) {
	q := "%" + strings.ToLower(query) + "%"
	sqlQuery := `SELECT id FROM entries WHERE
		service_name_lower LIKE ? OR
		LOWER(tags) LIKE ? OR
		LOWER(environment) LIKE ? OR
		LOWER(notes) LIKE ?` + orderClause

	return ix.queryRows(sqlQuery, q, q, q, q)
}

func (ix *index) queryRows(query string, args ...any) ([]string, error) {
	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("vault: querying entry index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
