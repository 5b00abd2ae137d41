// Package config loads grid definitions from YAML files and process
// settings from environment variables.
//
// A grid definition is everything static about one listing: endpoint,
// identity field, columns, searchable fields, bulk actions, export
// policy. View state never lives here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/consoleworks/gridcore/pkg/bulk"
	"github.com/consoleworks/gridcore/pkg/columns"
	"github.com/consoleworks/gridcore/pkg/export"
)

// Grid is the static definition of one listing.
type Grid struct {
	ID       string `yaml:"id" validate:"required"`
	Title    string `yaml:"title"`
	Endpoint string `yaml:"endpoint" validate:"required"`

	// IDField names the row field used for selection identity.
	IDField string `yaml:"id_field"`

	PerPage    int  `yaml:"per_page" validate:"gte=0,lte=500"`
	DebounceMs int  `yaml:"debounce_ms" validate:"gte=0"`
	MultiSort  bool `yaml:"multi_sort"`

	Searchable []string         `yaml:"searchable"`
	Columns    []columns.Column `yaml:"columns" validate:"required,min=1,dive"`

	BulkActions []bulk.Action `yaml:"bulk_actions"`
	Export      ExportConfig  `yaml:"export"`
}

// ExportConfig declares the export surface of a grid.
type ExportConfig struct {
	Policy  export.Policy `yaml:"policy" validate:"omitempty,oneof=single per-format none"`
	Formats []string      `yaml:"formats"`
	Sink    string        `yaml:"sink" validate:"omitempty,oneof=file s3"`
	Dir     string        `yaml:"dir"`
	Bucket  string        `yaml:"bucket"`
	Prefix  string        `yaml:"prefix"`
}

var validate = validator.New()

// Defaults applied after decoding, before validation.
const (
	DefaultPerPage    = 25
	DefaultDebounceMs = 300
	DefaultIDField    = "id"
)

func (g *Grid) applyDefaults() {
	if g.IDField == "" {
		g.IDField = DefaultIDField
	}
	if g.PerPage == 0 {
		g.PerPage = DefaultPerPage
	}
	if g.DebounceMs == 0 {
		g.DebounceMs = DefaultDebounceMs
	}
	if g.Export.Policy == "" {
		g.Export.Policy = export.PolicySingle
	}
	if g.Export.Sink == "" {
		g.Export.Sink = "file"
	}
}

// LoadGrid reads one grid definition file.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load grid %q: %w", path, err)
	}
	var g Grid
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse grid %q: %w", path, err)
	}
	g.applyDefaults()
	if err := validate.Struct(&g); err != nil {
		return nil, fmt.Errorf("invalid grid %q: %w", path, err)
	}
	if err := g.checkFields(); err != nil {
		return nil, fmt.Errorf("invalid grid %q: %w", path, err)
	}
	return &g, nil
}

// LoadAllGrids reads every grid_*.yaml in dir, keyed by grid id.
func LoadAllGrids(dir string) (map[string]*Grid, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "grid_*.yaml"))
	if err != nil {
		return nil, err
	}
	grids := make(map[string]*Grid, len(matches))
	for _, path := range matches {
		g, err := LoadGrid(path)
		if err != nil {
			return nil, err
		}
		if _, dup := grids[g.ID]; dup {
			return nil, fmt.Errorf("duplicate grid id %q in %s", g.ID, path)
		}
		grids[g.ID] = g
	}
	return grids, nil
}

// checkFields enforces cross-field rules the struct tags cannot:
// searchable fields must refer to configured columns, bulk action ids
// must be complete and unique.
func (g *Grid) checkFields() error {
	known := make(map[string]struct{}, len(g.Columns))
	for _, c := range g.Columns {
		known[c.Field] = struct{}{}
	}
	for _, s := range g.Searchable {
		if _, ok := known[s]; !ok {
			return fmt.Errorf("searchable field %q is not a configured column", s)
		}
	}
	seen := make(map[string]struct{}, len(g.BulkActions))
	for _, a := range g.BulkActions {
		if a.ID == "" || a.Endpoint == "" {
			return fmt.Errorf("bulk action needs id and endpoint")
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate bulk action id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// Settings holds process configuration.
type Settings struct {
	BaseURL    string
	LogLevel   string
	GridsDir   string
	Storage    string // memory | sqlite | redis
	SQLitePath string
	RedisAddr  string
	RateLimit  float64 // requests per second, 0 disables
}

// LoadSettings reads process configuration from environment variables.
func LoadSettings() *Settings {
	baseURL := os.Getenv("GRIDCORE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	logLevel := os.Getenv("GRIDCORE_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	gridsDir := os.Getenv("GRIDCORE_GRIDS_DIR")
	if gridsDir == "" {
		gridsDir = "grids"
	}

	storage := strings.ToLower(os.Getenv("GRIDCORE_STORAGE"))
	if storage == "" {
		storage = "memory"
	}

	sqlitePath := os.Getenv("GRIDCORE_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "gridcore.db"
	}

	redisAddr := os.Getenv("GRIDCORE_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rateLimit, _ := strconv.ParseFloat(os.Getenv("GRIDCORE_RATE_LIMIT"), 64)

	return &Settings{
		BaseURL:    baseURL,
		LogLevel:   logLevel,
		GridsDir:   gridsDir,
		Storage:    storage,
		SQLitePath: sqlitePath,
		RedisAddr:  redisAddr,
		RateLimit:  rateLimit,
	}
}
