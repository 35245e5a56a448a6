/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package peoplestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/suparena/peoplestore/config"
	"github.com/suparena/peoplestore/datastore"
	"github.com/suparena/peoplestore/datastore/ddb"
	"github.com/suparena/peoplestore/datastore/mock"
	"github.com/suparena/peoplestore/datastore/mongo"
	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/models"
)

// Factory opens the person DataStore of one backend.
type Factory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.DataStore[models.Person], error)

var backends = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: make(map[string]Factory),
}

func init() {
	for name, f := range map[string]Factory{
		config.BackendMongoDB:  openMongo,
		config.BackendDynamoDB: openDynamoDB,
		config.BackendMemory:   openMemory,
	} {
		if err := RegisterBackend(name, f); err != nil {
			panic(err)
		}
	}
}

// RegisterBackend makes a backend available to OpenDataStore under name.
func RegisterBackend(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("backend %q has a nil factory", name)
	}

	backends.mu.Lock()
	defer backends.mu.Unlock()

	if _, exists := backends.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	backends.factories[name] = f
	return nil
}

// Backends returns the names of registered backends, sorted.
func Backends() []string {
	backends.mu.RLock()
	defer backends.mu.RUnlock()

	names := make([]string, 0, len(backends.factories))
	for name := range backends.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenDataStore validates cfg and opens the DataStore of the backend it selects.
func OpenDataStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.DataStore[models.Person], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backends.mu.RLock()
	f, exists := backends.factories[cfg.Backend]
	backends.mu.RUnlock()

	if !exists {
		return nil, errors.NewValidationError(config.EnvBackend, fmt.Sprintf("backend %q not found", cfg.Backend))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return f(ctx, cfg, logger)
}

// Open opens the configured DataStore and returns People using it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*People, error) {
	store, err := OpenDataStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	p := New(store, logger)
	p.l.Info("Store opened", zap.String("backend", cfg.Backend))
	return p, nil
}

func openMongo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.DataStore[models.Person], error) {
	client, err := mongo.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}

	store, err := mongo.NewMongoDataStore[models.Person](client, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
	if err == nil {
		err = store.EnsureCollection(ctx)
	}
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func openDynamoDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.DataStore[models.Person], error) {
	c := cfg.DynamoDB
	client, err := ddb.NewDynamoDBClient(ctx, c.AccessKey, c.SecretKey, c.Region, c.Endpoint)
	if err != nil {
		return nil, err
	}
	store, err := ddb.NewDynamodbDataStore[models.Person](client, c.Table, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openMemory(context.Context, *config.Config, *zap.Logger) (datastore.DataStore[models.Person], error) {
	return mock.New[models.Person](), nil
}
