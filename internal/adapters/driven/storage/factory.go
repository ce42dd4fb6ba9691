// Package storage opens the configured metadata store and vector index.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/mongo"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// Stores holds the opened backends. Close releases every one of them.
type Stores struct {
	Metadata driven.MetadataStore
	Vectors  driven.VectorIndex

	closers []func() error
}

// Close releases all backends, returning the joined errors.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open opens both stores. dimensions is the embedding size, needed by
// backends that declare a vector column.
func Open(ctx context.Context, settings domain.StorageSettings, dimensions int) (*Stores, error) {
	if !settings.Vector.IsValid() {
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrConfiguration, settings.Vector)
	}
	if !settings.Metadata.IsValid() {
		return nil, fmt.Errorf("%w: unknown metadata backend %q", domain.ErrConfiguration, settings.Metadata)
	}

	s := &Stores{}
	var sqliteStore *sqlite.Store
	openSQLite := func() (*sqlite.Store, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		st, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, err
		}
		sqliteStore = st
		s.closers = append(s.closers, st.Close)
		return st, nil
	}

	fail := func(err error) (*Stores, error) {
		_ = s.Close()
		return nil, err
	}

	switch settings.Metadata {
	case domain.MetadataBackendMemory:
		s.Metadata = memory.NewMetadataStore()
	case domain.MetadataBackendSQLite:
		st, err := openSQLite()
		if err != nil {
			return fail(err)
		}
		s.Metadata = st.MetadataStore()
	case domain.MetadataBackendMongo:
		st, err := mongo.New(ctx, mongo.Config{URI: settings.MongoURI, Database: settings.MongoDatabase})
		if err != nil {
			return fail(err)
		}
		s.Metadata = st
		s.closers = append(s.closers, st.Close)
	}

	switch settings.Vector {
	case domain.VectorBackendMemory:
		s.Vectors = memory.NewVectorIndex()
	case domain.VectorBackendSQLite:
		st, err := openSQLite()
		if err != nil {
			return fail(err)
		}
		s.Vectors = st.VectorIndex()
	case domain.VectorBackendQdrant:
		idx, err := qdrant.New(ctx, qdrant.Config{
			Addr:       settings.QdrantURL,
			Collection: settings.QdrantCollection,
			Dimensions: dimensions,
		})
		if err != nil {
			return fail(err)
		}
		s.Vectors = idx
		s.closers = append(s.closers, idx.Close)
	case domain.VectorBackendPGVector:
		idx, err := pgvector.New(ctx, pgvector.Config{
			DSN:        settings.PostgresDSN,
			Table:      settings.PostgresTable,
			Dimensions: dimensions,
		})
		if err != nil {
			return fail(err)
		}
		s.Vectors = idx
		s.closers = append(s.closers, idx.Close)
	}

	return s, nil
}
