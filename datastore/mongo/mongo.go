/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/suparena/peoplestore/datastore"
	storeerrors "github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/registry"
	"github.com/suparena/peoplestore/storagemodels"
)

// codeNamespaceExists is returned by create on an existing collection.
const codeNamespaceExists = 48

// MongoDataStore implements datastore.DataStore[T] on a MongoDB collection.
type MongoDataStore[T any] struct {
	client *mongo.Client
	coll   *mongo.Collection
	l      *zap.Logger
}

var _ datastore.DataStore[struct{}] = (*MongoDataStore[struct{}])(nil)

// Connect connects to the MongoDB deployment at uri and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storeerrors.NewStoreError("connect", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, storeerrors.NewStoreError("ping", err)
	}

	return client, nil
}

// NewMongoDataStore constructs a MongoDataStore for type T.
// An empty collection name falls back to the collection registered for T.
func NewMongoDataStore[T any](client *mongo.Client, database, collection string, logger *zap.Logger) (*MongoDataStore[T], error) {
	if client == nil {
		return nil, storeerrors.NewValidationError("client", "is required")
	}
	if database == "" {
		return nil, storeerrors.NewValidationError("database", "is required")
	}

	if collection == "" {
		name, ok := registry.CollectionName[T]()
		if !ok {
			return nil, storeerrors.NewValidationError("collection", fmt.Sprintf("no collection registered for %s", registry.EntityName[T]()))
		}
		collection = name
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &MongoDataStore[T]{
		client: client,
		coll:   client.Database(database).Collection(collection),
		l:      logger.Named("mongo").With(zap.String("collection", collection)),
	}, nil
}

// Collection returns the underlying collection.
func (m *MongoDataStore[T]) Collection() *mongo.Collection {
	return m.coll
}

// EnsureCollection creates the collection with the $jsonSchema validator of T,
// or updates the validator if the collection already exists.
func (m *MongoDataStore[T]) EnsureCollection(ctx context.Context) error {
	provider, ok := any(new(T)).(interface{ JSONSchema() bson.M })
	if !ok {
		return nil
	}
	validator := bson.M{"$jsonSchema": provider.JSONSchema()}

	db := m.coll.Database()
	err := db.CreateCollection(ctx, m.coll.Name(), options.CreateCollection().SetValidator(validator))
	if err == nil {
		m.l.Info("Collection created.")
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != codeNamespaceExists {
		return storeerrors.NewStoreError("create collection", err)
	}

	cmd := bson.D{
		{Key: "collMod", Value: m.coll.Name()},
		{Key: "validator", Value: validator},
	}
	if err = db.RunCommand(ctx, cmd).Err(); err != nil {
		return storeerrors.NewStoreError("collMod", err)
	}

	m.l.Debug("Collection validator updated.")
	return nil
}

// Insert stores a new document
func (m *MongoDataStore[T]) Insert(ctx context.Context, entity *T) error {
	id, err := datastore.EnsureID(entity)
	if err != nil {
		return err
	}

	if _, err = m.coll.InsertOne(ctx, entity); err != nil {
		return m.insertError(id, err)
	}
	return nil
}

// InsertMany stores new documents with an ordered insert
func (m *MongoDataStore[T]) InsertMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	docs := make([]any, 0, len(entities))
	for _, e := range entities {
		if _, err := datastore.EnsureID(e); err != nil {
			return err
		}
		docs = append(docs, e)
	}

	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return m.insertError("", err)
	}
	return nil
}

func (m *MongoDataStore[T]) insertError(id string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return storeerrors.NewAlreadyExistsError(registry.EntityName[T](), id, err)
	}
	return storeerrors.NewStoreError("insert", err)
}

// GetOne retrieves a document by identifier
func (m *MongoDataStore[T]) GetOne(ctx context.Context, id string) (*T, error) {
	return m.FindOne(ctx, storagemodels.ByID(id))
}

// Find returns the documents selected by q
func (m *MongoDataStore[T]) Find(ctx context.Context, q *storagemodels.Query) ([]*T, error) {
	var filter storagemodels.Filter
	if q != nil {
		filter = q.Filter
	}
	f, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}

	cursor, err := m.coll.Find(ctx, f, buildFindOptions(q))
	if err != nil {
		return nil, storeerrors.NewStoreError("find", err)
	}

	results := []*T{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, storeerrors.NewStoreError("find", err)
	}
	return results, nil
}

// FindOne returns the first document matching filter
func (m *MongoDataStore[T]) FindOne(ctx context.Context, filter storagemodels.Filter) (*T, error) {
	f, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}

	result := new(T)
	err = m.coll.FindOne(ctx, f).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.NewStoreError("findOne", err)
	}
	return result, nil
}

// Save replaces the stored document with the entity's identifier
func (m *MongoDataStore[T]) Save(ctx context.Context, entity *T) error {
	doc, err := datastore.AsDocument(entity)
	if err != nil {
		return err
	}
	id := doc.DocumentID()
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := m.coll.ReplaceOne(ctx, bson.D{{Key: storagemodels.IDField, Value: oid}}, entity)
	if err != nil {
		return storeerrors.NewStoreError("replaceOne", err)
	}
	if res.MatchedCount == 0 {
		return storeerrors.NewNotFoundError(registry.EntityName[T](), id)
	}
	return nil
}

// FindOneAndUpdate sets fields on the first matching document and returns it after the update
func (m *MongoDataStore[T]) FindOneAndUpdate(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, error) {
	f, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}
	update, err := buildUpdate(updates)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	result := new(T)
	err = m.coll.FindOneAndUpdate(ctx, f, update, opts).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.NewStoreError("findOneAndUpdate", err)
	}
	return result, nil
}

// Delete removes a document by identifier and returns it
func (m *MongoDataStore[T]) Delete(ctx context.Context, id string) (*T, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	result := new(T)
	err = m.coll.FindOneAndDelete(ctx, bson.D{{Key: storagemodels.IDField, Value: oid}}).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeerrors.NewStoreError("findOneAndDelete", err)
	}
	return result, nil
}

// DeleteMany removes all documents matching filter
func (m *MongoDataStore[T]) DeleteMany(ctx context.Context, filter storagemodels.Filter) (*storagemodels.DeleteResult, error) {
	f, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}

	res, err := m.coll.DeleteMany(ctx, f)
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return &storagemodels.DeleteResult{Acknowledged: false}, nil
	}
	if err != nil {
		return nil, storeerrors.NewStoreError("deleteMany", err)
	}

	return &storagemodels.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

// Stream iterates a cursor over the documents selected by q
func (m *MongoDataStore[T]) Stream(ctx context.Context, q *storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	streamOpts := storagemodels.ApplyStreamOptions(opts...)
	resultCh := make(chan storagemodels.StreamResult[T], streamOpts.BufferSize)

	go m.streamWorker(ctx, q, streamOpts, resultCh)

	return resultCh
}

func (m *MongoDataStore[T]) streamWorker(
	ctx context.Context,
	q *storagemodels.Query,
	streamOpts storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	startTime := time.Now()
	var index int64

	send := func(r storagemodels.StreamResult[T]) bool {
		select {
		case <-ctx.Done():
			return false
		case resultCh <- r:
			return true
		}
	}

	var filter storagemodels.Filter
	if q != nil {
		filter = q.Filter
	}
	f, err := buildFilter(filter)
	if err != nil {
		send(storagemodels.StreamResult[T]{Error: err})
		return
	}

	findOpts := buildFindOptions(q)
	if streamOpts.PageSize > 0 {
		findOpts.SetBatchSize(streamOpts.PageSize)
	}

	cursor, err := m.coll.Find(ctx, f, findOpts)
	if err != nil {
		send(storagemodels.StreamResult[T]{Error: storeerrors.NewStoreError("find", err)})
		return
	}
	defer cursor.Close(context.WithoutCancel(ctx))

	var errs []error
	pageNumber := func() int {
		if streamOpts.PageSize <= 0 {
			return 1
		}
		return int(index/int64(streamOpts.PageSize)) + 1
	}

	for cursor.Next(ctx) {
		result := storagemodels.StreamResult[T]{
			Meta: storagemodels.StreamMeta{
				Index:      index,
				PageNumber: pageNumber(),
				Timestamp:  time.Now(),
			},
		}

		var raw bson.M
		if err = bson.Unmarshal(cursor.Current, &raw); err == nil {
			result.Raw = raw
			err = cursor.Decode(&result.Item)
		}
		if err != nil {
			result.Error = fmt.Errorf("failed to decode document: %w", err)
			errs = append(errs, result.Error)
		}

		if !send(result) {
			return
		}
		index++
	}

	if err = cursor.Err(); err != nil && ctx.Err() == nil {
		m.l.Warn("Stream cursor failed.", zap.Int64("items", index), zap.Error(err))
		send(storagemodels.StreamResult[T]{Error: storeerrors.NewStoreError("stream", err)})
		errs = append(errs, err)
	}

	if streamOpts.ProgressHandler != nil {
		progress := storagemodels.StreamProgress{
			ItemsProcessed: index,
			PagesProcessed: pageNumber(),
			Errors:         errs,
			StartTime:      startTime,
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(index) / elapsed
		}
		streamOpts.ProgressHandler(progress)
	}
}

// Close disconnects the client
func (m *MongoDataStore[T]) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return storeerrors.NewStoreError("disconnect", err)
	}
	return nil
}
