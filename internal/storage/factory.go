package storage

import (
	"fmt"

	"leaderboard/internal/models"
)

// provider describes one storage backend: the settings it requires and how to open it.
type provider struct {
	needsPath bool
	needsDSN  bool
	open      func(Config) (Storage, error)
}

// opener adapts a concrete constructor so that a failure yields a nil
// interface rather than an interface wrapping a nil pointer.
func opener[S Storage](ctor func(Config) (S, error)) func(Config) (Storage, error) {
	return func(c Config) (Storage, error) {
		s, err := ctor(c)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// providerOrder lists the backends in the order they are documented.
var providerOrder = []string{
	models.StorageTypeJSON,
	models.StorageTypeMemory,
	models.StorageTypePostgres,
	models.StorageTypeSQLite,
}

var providers = map[string]provider{
	// single file replaced atomically; one process owns it
	models.StorageTypeJSON: {needsPath: true, open: opener(NewJSONStorage)},
	// volatile, for tests and local development
	models.StorageTypeMemory: {open: opener(NewMemoryStorage)},
	// shared between several server processes
	models.StorageTypePostgres: {needsDSN: true, open: opener(NewPostgresStorage)},
	models.StorageTypeSQLite:   {needsDSN: true, open: opener(NewSQLiteStorage)},
}

// Factory opens the storage backend named by the configuration.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create validates config and opens the selected backend with the leaderboard's
// retention and view sizes.
func (f *Factory) Create(config models.StorageConfig, lb models.LeaderboardConfig) (Storage, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	return providers[config.Type].open(Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.DSN,
		MaxOpenConns:     config.Database.MaxOpenConns,
		MaxKeep:          lb.MaxKeep,
		TopN:             lb.TopN,
	})
}

// GetSupportedProviders returns the storage types Create accepts.
func (f *Factory) GetSupportedProviders() []string {
	return append([]string(nil), providerOrder...)
}

// ValidateConfig checks that config names a known backend and carries the
// settings that backend requires.
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	p, ok := providers[config.Type]
	if !ok {
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	if p.needsPath && config.Path == "" {
		return fmt.Errorf("path is required for %s storage", config.Type)
	}
	if p.needsDSN && config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s storage", config.Type)
	}
	return nil
}
