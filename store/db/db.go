package db

import (
	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/internal/profile"
	"github.com/pachverse/sitechat/store"
	"github.com/pachverse/sitechat/store/db/postgres"
	"github.com/pachverse/sitechat/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile.
//
// PostgreSQL is the production driver: vector search runs server-side on
// the pgvector extension. SQLite is for development and small deployments:
// embeddings are stored as JSON and similarity is computed in-process.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
