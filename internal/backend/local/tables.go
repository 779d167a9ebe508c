// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/store"
)

// tableDef whitelists the columns of a content table.
type tableDef struct {
	name    string
	key     string
	columns []string
	// generatedKey tables get a uuid key on insert.
	generatedKey bool
}

func (t *tableDef) has(column string) bool {
	for _, c := range t.columns {
		if c == column {
			return true
		}
	}
	return false
}

func contentTables() map[string]*tableDef {
	defs := []*tableDef{
		{
			name:    backend.TableSiteInfo,
			key:     "key",
			columns: []string{"key", "value", "created_at", "updated_at"},
		},
		{
			name:         backend.TableProducts,
			key:          "id",
			columns:      []string{"id", "title", "description", "image_url", "video_url", "created_at", "updated_at"},
			generatedKey: true,
		},
		{
			name:         backend.TableTestimonials,
			key:          "id",
			columns:      []string{"id", "name", "quote", "photo_url", "created_at", "updated_at"},
			generatedKey: true,
		},
		{
			name:         backend.TableVideos,
			key:          "id",
			columns:      []string{"id", "title", "url", "type", "duration", "created_at", "updated_at"},
			generatedKey: true,
		},
	}
	out := make(map[string]*tableDef, len(defs))
	for _, d := range defs {
		out[d.name] = d
	}
	return out
}

func (s *Service) table(name string) (*tableDef, error) {
	def, ok := s.tables[name]
	if !ok {
		return nil, backend.Errorf(backend.CodeNotFound, "relation %q does not exist", name)
	}
	return def, nil
}

// Query reads rows. Content tables are publicly readable.
func (c *Client) Query(ctx context.Context, table string, q backend.Query) ([]backend.Row, error) {
	def, err := c.svc.table(table)
	if err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT " + strings.Join(def.columns, ", ") + " FROM " + def.name)

	if len(q.Filter) > 0 {
		cols := make([]string, 0, len(q.Filter))
		for col := range q.Filter {
			if !def.has(col) {
				return nil, backend.Errorf(backend.CodeInvalid, "column %s.%s does not exist", def.name, col)
			}
			cols = append(cols, col)
		}
		sort.Strings(cols)
		conds := make([]string, len(cols))
		for i, col := range cols {
			conds[i] = col + " = ?"
			args = append(args, q.Filter[col])
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if q.Order != nil {
		if !def.has(q.Order.Column) {
			return nil, backend.Errorf(backend.CodeInvalid, "column %s.%s does not exist", def.name, q.Order.Column)
		}
		dir := "ASC"
		if q.Order.Descending {
			dir = "DESC"
		}
		// rowid breaks ties between rows created in the same microsecond.
		sb.WriteString(fmt.Sprintf(" ORDER BY %s %s, rowid %s", q.Order.Column, dir, dir))
	}

	rows, err := c.svc.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error reading "+def.name)
	}
	defer func() { _ = rows.Close() }()

	var out []backend.Row
	for rows.Next() {
		row, err := scanRow(rows, def.columns)
		if err != nil {
			return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error reading "+def.name)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, backend.Wrap(backend.CodeUnavailable, err, "Database error reading "+def.name)
	}
	return out, nil
}

// Insert adds a row and returns it as stored. Requires an admin.
func (c *Client) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	def, err := c.svc.table(table)
	if err != nil {
		return nil, err
	}
	if err := c.requireAdmin(ctx, "insert into", def.name); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(row)+3)
	for col, v := range row {
		if !def.has(col) || (def.generatedKey && col == def.key) {
			return nil, backend.Errorf(backend.CodeInvalid, "column %s.%s cannot be written", def.name, col)
		}
		values[col] = columnValue(v)
	}
	now := store.FormatTime(c.svc.now())
	if def.generatedKey {
		values[def.key] = uuid.New().String()
	} else if values[def.key] == nil {
		return nil, backend.Errorf(backend.CodeInvalid, "column %s.%s is required", def.name, def.key)
	}
	if values["created_at"] == nil {
		values["created_at"] = now
	}
	if values["updated_at"] == nil {
		values["updated_at"] = now
	}

	cols := sortedKeys(values)
	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		args[i] = values[col]
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		def.name, strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(def.columns, ", "))

	out, err := scanRow(c.svc.db.QueryRowContext(ctx, query, args...), def.columns)
	if err != nil {
		return nil, constraintError(def.name, err)
	}
	return out, nil
}

// Update applies patch to the row with key id and returns the stored row.
// Requires an admin.
func (c *Client) Update(ctx context.Context, table, id string, patch backend.Row) (backend.Row, error) {
	def, err := c.svc.table(table)
	if err != nil {
		return nil, err
	}
	if err := c.requireAdmin(ctx, "update", def.name); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(patch)+1)
	for col, v := range patch {
		if !def.has(col) || col == def.key || col == "created_at" {
			return nil, backend.Errorf(backend.CodeInvalid, "column %s.%s cannot be written", def.name, col)
		}
		values[col] = columnValue(v)
	}
	if len(values) == 0 {
		return nil, backend.Errorf(backend.CodeInvalid, "No fields to update")
	}
	if values["updated_at"] == nil {
		values["updated_at"] = store.FormatTime(c.svc.now())
	}

	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, values[col])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? RETURNING %s",
		def.name, strings.Join(sets, ", "), def.key, strings.Join(def.columns, ", "))

	out, err := scanRow(c.svc.db.QueryRowContext(ctx, query, args...), def.columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.Errorf(backend.CodeNotFound, "No %s row with id %s", def.name, id)
	}
	if err != nil {
		return nil, constraintError(def.name, err)
	}
	return out, nil
}

// Delete removes the row with key id. Requires an admin.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	def, err := c.svc.table(table)
	if err != nil {
		return err
	}
	if err := c.requireAdmin(ctx, "delete from", def.name); err != nil {
		return err
	}

	res, err := c.svc.db.ExecContext(ctx, "DELETE FROM "+def.name+" WHERE "+def.key+" = ?", id)
	if err != nil {
		return backend.Wrap(backend.CodeUnavailable, err, "Database error deleting from "+def.name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backend.Wrap(backend.CodeUnavailable, err, "Database error deleting from "+def.name)
	}
	if n == 0 {
		return backend.Errorf(backend.CodeNotFound, "No %s row with id %s", def.name, id)
	}
	return nil
}

// requireAdmin rejects anonymous callers and non-admin accounts.
func (c *Client) requireAdmin(ctx context.Context, action, target string) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}
	if !p.authenticated() {
		return backend.Errorf(backend.CodeUnauthorized, "You must be signed in to %s %s", action, target)
	}
	if p.Role != "admin" {
		return backend.Errorf(backend.CodeForbidden, "permission denied: only admins may %s %s", action, target)
	}
	return nil
}

func scanRow(row interface{ Scan(...any) error }, columns []string) (backend.Row, error) {
	vals := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	out := make(backend.Row, len(columns))
	for i, col := range columns {
		if vals[i].Valid {
			out[col] = vals[i].String
		} else {
			out[col] = nil
		}
	}
	return out, nil
}

// columnValue converts a decoded JSON value into a TEXT column value.
func columnValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case time.Time:
		return store.FormatTime(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func constraintError(table string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return backend.Wrap(backend.CodeInvalid, err, "new row for relation \""+table+"\" violates check constraint")
	case isUniqueViolation(err):
		return backend.Wrap(backend.CodeConflict, err, "duplicate key value violates unique constraint on \""+table+"\"")
	default:
		return backend.Wrap(backend.CodeUnavailable, err, "Database error writing "+table)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
