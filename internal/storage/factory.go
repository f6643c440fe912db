package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/storage/badger"
	"github.com/ternarybob/specials/internal/storage/sqlstore"
)

// NewCatalogueStorage creates the catalogue backend selected by config
func NewCatalogueStorage(logger arbor.ILogger, config *common.Config) (interfaces.CatalogueStorage, error) {
	switch config.Storage.Type {
	case common.StorageBadger, "":
		db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewCatalogueStorage(db, logger), nil

	case common.StorageSQLite, common.StoragePostgres:
		driver := sqlstore.DriverSQLite
		if config.Storage.Type == common.StoragePostgres {
			driver = sqlstore.DriverPostgres
		}
		db, err := sqlstore.NewSQLDB(logger, driver, &config.Storage.SQL)
		if err != nil {
			return nil, err
		}
		return sqlstore.NewCatalogueStorage(db, logger), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected badger, sqlite or postgres)", config.Storage.Type)
	}
}
