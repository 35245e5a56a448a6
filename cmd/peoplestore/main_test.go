/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/suparena/peoplestore"
	"github.com/suparena/peoplestore/config"
	"github.com/suparena/peoplestore/datastore/mock"
	"github.com/suparena/peoplestore/models"
	"github.com/suparena/peoplestore/storagemodels"
)

// execute parses args like main does and runs the selected command against p.
func execute(t *testing.T, p *peoplestore.People, args ...string) []byte {
	t.Helper()

	var c cliFlags
	parser, err := kong.New(&c)
	require.NoError(t, err)

	kongCtx, err := parser.Parse(args)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), kongCtx.Selected().Name, &c, p, &buf))
	return buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestCommands(t *testing.T) {
	p := peoplestore.New(mock.New[models.Person](), zaptest.NewLogger(t))

	seeded := decode[[]*models.Person](t, execute(t, p, "seed"))
	require.Len(t, seeded, 4)
	assert.Equal(t, "Jane Fonda", seeded[0].Name)
	jane := seeded[0].DocumentID()

	created := decode[*models.Person](t, execute(t, p, "create", "Mary", "30", "burrito", "tacos"))
	assert.Equal(t, []string{"burrito", "tacos"}, created.FavoriteFoods)

	byName := decode[[]*models.Person](t, execute(t, p, "find-by-name", "Sol"))
	require.Len(t, byName, 1)
	assert.Equal(t, 76, byName[0].Age)

	byFood := decode[*models.Person](t, execute(t, p, "find-by-food", "wine"))
	assert.Equal(t, "Robert", byFood.Name)

	byID := decode[*models.Person](t, execute(t, p, "find-by-id", jane))
	assert.Equal(t, seeded[0], byID)

	assert.Equal(t, "null\n", string(execute(t, p, "find-by-id", "64b7f0c2a1b2c3d4e5f60718")))

	edited := decode[*models.Person](t, execute(t, p, "add-food", jane))
	assert.Equal(t, []string{"eggs", "fish", "fresh fruit", "hamburger"}, edited.FavoriteFoods)

	aged := decode[*models.Person](t, execute(t, p, "set-age", "Frankie"))
	assert.Equal(t, 20, aged.Age)

	aged = decode[*models.Person](t, execute(t, p, "set-age", "Frankie", "75"))
	assert.Equal(t, 75, aged.Age)

	chain := decode[[]map[string]any](t, execute(t, p, "query-chain"))
	require.Len(t, chain, 1)
	assert.Equal(t, "Mary", chain[0][models.FieldName])
	assert.NotContains(t, chain[0], models.FieldAge)
	assert.Contains(t, chain[0], models.FieldFavoriteFoods)

	chain = decode[[]map[string]any](t, execute(t, p, "query-chain", "burrito", "--exclude", "favoriteFoods", "--limit", "0"))
	require.Len(t, chain, 1)
	assert.Equal(t, float64(30), chain[0][models.FieldAge])
	assert.NotContains(t, chain[0], models.FieldFavoriteFoods)

	removed := decode[*models.Person](t, execute(t, p, "remove", jane))
	assert.Equal(t, "Jane Fonda", removed.Name)

	res := decode[storagemodels.DeleteResult](t, execute(t, p, "remove-many"))
	assert.Equal(t, storagemodels.DeleteResult{Acknowledged: true, DeletedCount: 1}, res)

	info := decode[peoplestore.VersionInfo](t, execute(t, p, "version"))
	assert.Equal(t, peoplestore.Version, info.Version)
}

func TestApplyTo(t *testing.T) {
	cfg := config.Default()
	c := cliFlags{Backend: config.BackendMemory, LogLevel: "debug"}
	c.applyTo(cfg)

	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestRunUnknownCommand(t *testing.T) {
	p := peoplestore.New(mock.New[models.Person](), zaptest.NewLogger(t))
	assert.Error(t, run(context.Background(), "unknown", &cliFlags{}, p, &bytes.Buffer{}))
}
