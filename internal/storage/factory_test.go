package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/models"
)

func TestNewCatalogueStorage(t *testing.T) {
	tests := []struct {
		name        string
		storageType string
		wantErr     bool
	}{
		{name: "badger", storageType: common.StorageBadger},
		{name: "empty defaults to badger", storageType: ""},
		{name: "sqlite", storageType: common.StorageSQLite},
		{name: "unknown", storageType: "mongodb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := common.NewDefaultConfig()
			cfg.Storage.Type = tt.storageType
			cfg.Storage.Badger.Path = filepath.Join(dir, "badger")
			cfg.Storage.SQL.DSN = filepath.Join(dir, "specials.db")

			store, err := NewCatalogueStorage(arbor.NewLogger(), cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			added, err := store.SeedStores(context.Background(), models.DefaultStores())
			require.NoError(t, err)
			assert.Equal(t, len(models.DefaultStores()), added)
		})
	}
}
