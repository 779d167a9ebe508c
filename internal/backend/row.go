// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"encoding/json"
	"fmt"
)

// Row is one table row in its wire shape (column name to JSON value).
type Row map[string]any

// Encode converts a typed record into a Row using its JSON field names.
func Encode(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	row := Row{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	return row, nil
}

// Decode converts a Row into a typed record.
func Decode[T any](row Row) (T, error) {
	var out T
	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("decoding row: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding row: %w", err)
	}
	return out, nil
}

// DecodeAll converts rows into typed records, preserving order.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// String returns the string value of column, or "" when absent or not a string.
func (r Row) String(column string) string {
	s, _ := r[column].(string)
	return s
}
