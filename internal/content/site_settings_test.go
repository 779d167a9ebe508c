// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/model"
)

func TestSiteSettingsSetAndGet(t *testing.T) {
	f := newFixture(t)
	settings := content.NewSiteSettings(f.db, f.opts)
	ctx := context.Background()

	assert.Equal(t, "fallback", settings.Get("hero_headline", "fallback"))

	require.NoError(t, settings.Set(ctx, "hero_headline", "  Feel Better  "))
	assert.Equal(t, "Feel Better", settings.Get("hero_headline", "fallback"))

	// A fresh manager sees the stored value after refresh.
	fresh := content.NewSiteSettings(f.db, f.opts)
	require.NoError(t, fresh.Refresh(ctx))
	assert.Equal(t, map[string]string{"hero_headline": "Feel Better"}, fresh.All())

	// Empty stored values fall back to the default.
	require.NoError(t, settings.Set(ctx, "hero_headline", ""))
	assert.Equal(t, "fallback", settings.Get("hero_headline", "fallback"))
}

func TestSiteSettingsRejectsBlankKey(t *testing.T) {
	f := newFixture(t)
	settings := content.NewSiteSettings(f.db, f.opts)

	err := settings.Set(context.Background(), "  ", "x")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, settings.All())
}

func TestSiteSettingsSetManyStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	settings := content.NewSiteSettings(f.db, f.opts)

	err := settings.SetMany(context.Background(), map[string]string{
		"a_key": "1",
		"b_key": "2",
		"":      "3",
	})
	require.Error(t, err)
	// "" sorts first, so nothing was saved.
	assert.Empty(t, settings.All())

	require.NoError(t, settings.SetMany(context.Background(), map[string]string{"a_key": "1", "b_key": "2"}))
	assert.Equal(t, "2", settings.Get("b_key", ""))
}

func TestSiteSettingsWithDefaults(t *testing.T) {
	f := newFixture(t)
	settings := content.NewSiteSettings(f.db, f.opts)
	require.NoError(t, settings.Set(context.Background(), "contact_phone", "+234 800 000 0000"))

	merged := settings.WithDefaults()
	assert.Equal(t, "+234 800 000 0000", merged["contact_phone"])
	assert.Equal(t, model.DefaultSettings()["hero_headline"], merged["hero_headline"])
}
