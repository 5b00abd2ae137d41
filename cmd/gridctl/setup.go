package main

import (
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/consoleworks/gridcore/pkg/bulk"
	"github.com/consoleworks/gridcore/pkg/config"
	"github.com/consoleworks/gridcore/pkg/fetch"
	"github.com/consoleworks/gridcore/pkg/storage"
)

// loadGrid resolves one grid definition by id from the grids directory.
func loadGrid(settings *config.Settings, id string) (*config.Grid, error) {
	if id == "" {
		return nil, fmt.Errorf("--grid is required")
	}
	g, err := config.LoadGrid(filepath.Join(settings.GridsDir, "grid_"+id+".yaml"))
	if err != nil {
		return nil, err
	}
	return g, nil
}

// buildClient builds the backend client from process settings.
func buildClient(settings *config.Settings) (*fetch.Client, error) {
	var opts []fetch.Option
	if settings.RateLimit > 0 {
		opts = append(opts, fetch.WithRateLimit(settings.RateLimit, 1))
	}
	return fetch.NewClient(settings.BaseURL, opts...)
}

// openPrefs opens the preference store named by GRIDCORE_STORAGE. The
// returned closer may be nil.
func openPrefs(settings *config.Settings) (*storage.Prefs, func() error, error) {
	switch settings.Storage {
	case "sqlite":
		db, err := storage.OpenSQLite(settings.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPrefs(db), db.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		return storage.NewPrefs(storage.NewRedis(client, "gridcore")), client.Close, nil
	case "memory", "":
		return storage.NewPrefs(storage.NewMemory()), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", settings.Storage)
	}
}

// declaredActions adapts a grid definition's bulk action list to the
// executor's attribute source contract.
type declaredActions []bulk.Action

func (d declaredActions) Action(id string) (bulk.Action, bool) {
	for _, a := range d {
		if a.ID == id {
			return a, true
		}
	}
	return bulk.Action{}, false
}
