// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"strings"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/store"
)

// RPC runs a named remote procedure.
func (c *Client) RPC(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case backend.ProcGetUserRole:
		return c.getUserRole(ctx)
	case backend.ProcUpdateSiteInfo:
		return nil, c.updateSiteInfo(ctx, args)
	default:
		return nil, backend.Errorf(backend.CodeNotFound, "function %s does not exist", name)
	}
}

// getUserRole returns the caller's role, or nil for anonymous callers.
func (c *Client) getUserRole(ctx context.Context) (any, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.authenticated() {
		return nil, nil
	}
	return p.Role, nil
}

// updateSiteInfo upserts one site_info entry. Requires an admin.
func (c *Client) updateSiteInfo(ctx context.Context, args map[string]any) error {
	if err := c.requireAdmin(ctx, "update", backend.TableSiteInfo); err != nil {
		return err
	}
	key, _ := args["info_key"].(string)
	value, _ := args["info_value"].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return backend.Errorf(backend.CodeInvalid, "info_key is required")
	}

	now := store.FormatTime(c.svc.now())
	_, err := c.svc.db.ExecContext(ctx,
		`INSERT INTO site_info (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return constraintError(backend.TableSiteInfo, err)
	}
	return nil
}
