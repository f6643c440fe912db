package badger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specials/internal/common"
)

// InMemoryPath opens a catalogue that lives only as long as the process
const InMemoryPath = ":memory:"

// gcDiscardRatio is the value log rewrite threshold used on close
const gcDiscardRatio = 0.5

// BadgerDB owns the badgerhold store backing the catalogue
type BadgerDB struct {
	store    *badgerhold.Store
	logger   arbor.ILogger
	inMemory bool
}

// NewBadgerDB opens the catalogue database at config.Path, or an in-memory
// database for InMemoryPath. reset_on_startup wipes an on-disk catalogue first.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil // badger's own logger is replaced by arbor

	inMemory := config.Path == InMemoryPath
	if inMemory {
		options.Options = options.Options.WithInMemory(true)
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if config.ResetOnStartup {
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to reset catalogue database")
			} else {
				logger.Info().Str("path", config.Path).Msg("Catalogue database reset (reset_on_startup)")
			}
		}
		if err := os.MkdirAll(config.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		options.Dir = config.Path
		options.ValueDir = config.Path
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger catalogue at %s: %w", filepath.Clean(config.Path), err)
	}

	logger.Debug().
		Str("path", config.Path).
		Bool("in_memory", inMemory).
		Msg("Badger catalogue opened")

	return &BadgerDB{store: store, logger: logger, inMemory: inMemory}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close reclaims value log space once and closes the database
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	if !b.inMemory {
		if err := b.store.Badger().RunValueLogGC(gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			b.logger.Debug().Err(err).Msg("Value log GC skipped")
		}
	}
	err := b.store.Close()
	b.store = nil
	return err
}
