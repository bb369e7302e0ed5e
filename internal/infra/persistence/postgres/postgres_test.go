package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_UsesEmbeddedDirectory(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir

		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_PropagatesFailure(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return assert.AnError
	}

	err := RunMigrations(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
