/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of the DataStore interface
// for tests and local runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suparena/peoplestore/datastore"
	"github.com/suparena/peoplestore/datastore/match"
	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/registry"
	"github.com/suparena/peoplestore/storagemodels"
)

// DataStore is an in-memory implementation of datastore.DataStore[T].
// Documents are kept bson-encoded, so callers never share memory with the store.
type DataStore[T any] struct {
	mu    sync.RWMutex
	docs  map[string]match.Doc
	order []string

	errMu       sync.RWMutex
	insertError error
	findError   error
	saveError   error
	updateError error
	deleteError error
}

var _ datastore.DataStore[struct{}] = (*DataStore[struct{}])(nil)

// New creates a new empty DataStore
func New[T any]() *DataStore[T] {
	return &DataStore[T]{
		docs: make(map[string]match.Doc),
	}
}

// WithInsertError makes Insert and InsertMany return an error
func (m *DataStore[T]) WithInsertError(err error) *DataStore[T] {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.insertError = err
	return m
}

// WithFindError makes every read return an error
func (m *DataStore[T]) WithFindError(err error) *DataStore[T] {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.findError = err
	return m
}

// WithSaveError makes Save return an error
func (m *DataStore[T]) WithSaveError(err error) *DataStore[T] {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.saveError = err
	return m
}

// WithUpdateError makes FindOneAndUpdate return an error
func (m *DataStore[T]) WithUpdateError(err error) *DataStore[T] {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.updateError = err
	return m
}

// WithDeleteError makes Delete and DeleteMany return an error
func (m *DataStore[T]) WithDeleteError(err error) *DataStore[T] {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.deleteError = err
	return m
}

// Insert stores a new document
func (m *DataStore[T]) Insert(ctx context.Context, entity *T) error {
	if err := m.injected(&m.insertError); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertLocked(entity)
}

// InsertMany stores new documents. Documents before a failing one stay inserted,
// like an ordered insert in MongoDB.
func (m *DataStore[T]) InsertMany(ctx context.Context, entities []*T) error {
	if err := m.injected(&m.insertError); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entities {
		if err := m.insertLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *DataStore[T]) insertLocked(entity *T) error {
	if entity == nil {
		return errors.NewValidationError("", "nil document")
	}
	if err := datastore.Validate(entity); err != nil {
		return err
	}

	id, err := datastore.EnsureID(entity)
	if err != nil {
		return err
	}
	if _, exists := m.docs[id]; exists {
		return errors.NewAlreadyExistsError(registry.EntityName[T](), id, nil)
	}

	doc, err := match.ToDoc(entity)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	m.docs[id] = doc
	m.order = append(m.order, id)
	return nil
}

// GetOne retrieves a document by identifier
func (m *DataStore[T]) GetOne(ctx context.Context, id string) (*T, error) {
	if err := m.injected(&m.findError); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[id]
	if !exists {
		return nil, nil
	}
	return decode[T](doc, nil)
}

// Find returns the documents selected by q in insertion order unless q sorts them
func (m *DataStore[T]) Find(ctx context.Context, q *storagemodels.Query) ([]*T, error) {
	if err := m.injected(&m.findError); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.findLocked(q)
}

func (m *DataStore[T]) findLocked(q *storagemodels.Query) ([]*T, error) {
	selected := match.Apply(m.snapshotLocked(), func(d match.Doc) match.Doc { return d }, q)

	var exclude []string
	if q != nil {
		exclude = q.Exclude
	}

	results := make([]*T, 0, len(selected))
	for _, doc := range selected {
		entity, err := decode[T](doc, exclude)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, nil
}

// FindOne returns the first document matching filter
func (m *DataStore[T]) FindOne(ctx context.Context, filter storagemodels.Filter) (*T, error) {
	res, err := m.Find(ctx, &storagemodels.Query{Filter: filter, Limit: 1})
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0], nil
}

// Save replaces a stored document
func (m *DataStore[T]) Save(ctx context.Context, entity *T) error {
	if err := m.injected(&m.saveError); err != nil {
		return err
	}
	if err := datastore.Validate(entity); err != nil {
		return err
	}

	doc, err := datastore.AsDocument(entity)
	if err != nil {
		return err
	}
	id := doc.DocumentID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; !exists {
		return errors.NewNotFoundError(registry.EntityName[T](), id)
	}

	encoded, err := match.ToDoc(entity)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	m.docs[id] = encoded
	return nil
}

// FindOneAndUpdate sets fields on the first matching document and returns the updated document
func (m *DataStore[T]) FindOneAndUpdate(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, error) {
	if err := m.injected(&m.updateError); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, errors.NewValidationError("updates", "no updates provided")
	}
	if _, ok := updates[storagemodels.IDField]; ok {
		return nil, errors.NewValidationError(storagemodels.IDField, "is immutable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		doc := m.docs[id]
		if !match.Matches(doc, filter) {
			continue
		}

		updated := match.Project(doc, nil)
		for k, v := range updates {
			updated[k] = v
		}

		entity, err := decode[T](updated, nil)
		if err != nil {
			return nil, err
		}
		if err := datastore.Validate(entity); err != nil {
			return nil, err
		}

		// re-encode through the typed document so stored values keep their bson types
		encoded, err := match.ToDoc(entity)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		m.docs[id] = encoded
		return entity, nil
	}

	return nil, nil
}

// Delete removes a document by identifier and returns it
func (m *DataStore[T]) Delete(ctx context.Context, id string) (*T, error) {
	if err := m.injected(&m.deleteError); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[id]
	if !exists {
		return nil, nil
	}

	entity, err := decode[T](doc, nil)
	if err != nil {
		return nil, err
	}
	m.removeLocked(id)
	return entity, nil
}

// DeleteMany removes all documents matching filter
func (m *DataStore[T]) DeleteMany(ctx context.Context, filter storagemodels.Filter) (*storagemodels.DeleteResult, error) {
	if err := m.injected(&m.deleteError); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, id := range m.order {
		if match.Matches(m.docs[id], filter) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		m.removeLocked(id)
	}

	return &storagemodels.DeleteResult{Acknowledged: true, DeletedCount: int64(len(ids))}, nil
}

// Stream returns a channel of results
func (m *DataStore[T]) Stream(ctx context.Context, q *storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.ApplyStreamOptions(opts...)
	resultChan := make(chan storagemodels.StreamResult[T], options.BufferSize)

	if err := m.injected(&m.findError); err != nil {
		resultChan <- storagemodels.StreamResult[T]{Error: err}
		close(resultChan)
		return resultChan
	}

	// snapshot under the lock so the goroutine does not hold it while blocked on sends
	m.mu.RLock()
	selected := match.Apply(m.snapshotLocked(), func(d match.Doc) match.Doc { return d }, q)
	m.mu.RUnlock()

	var exclude []string
	if q != nil {
		exclude = q.Exclude
	}

	go func() {
		defer close(resultChan)

		for i, doc := range selected {
			result := storagemodels.StreamResult[T]{
				Raw: match.Project(doc, exclude),
				Meta: storagemodels.StreamMeta{
					Index:      int64(i),
					PageNumber: 1,
					Timestamp:  time.Now(),
				},
			}
			entity, err := decode[T](doc, exclude)
			if err != nil {
				result.Error = err
			} else {
				result.Item = *entity
			}

			select {
			case <-ctx.Done():
				return
			case resultChan <- result:
			}
		}

		if options.ProgressHandler != nil {
			options.ProgressHandler(storagemodels.StreamProgress{
				ItemsProcessed: int64(len(selected)),
				PagesProcessed: 1,
			})
		}
	}()

	return resultChan
}

// Close is a no-op
func (m *DataStore[T]) Close(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Count returns the number of stored documents
func (m *DataStore[T]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Clear removes all data
func (m *DataStore[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]match.Doc)
	m.order = nil
}

// Raw returns a copy of the stored fields of a document
func (m *DataStore[T]) Raw(id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, false
	}
	return match.Project(doc, nil), true
}

// injected returns the error set by one of the With*Error methods.
func (m *DataStore[T]) injected(err *error) error {
	m.errMu.RLock()
	defer m.errMu.RUnlock()
	return *err
}

func (m *DataStore[T]) snapshotLocked() []match.Doc {
	res := make([]match.Doc, 0, len(m.order))
	for _, id := range m.order {
		res = append(res, m.docs[id])
	}
	return res
}

func (m *DataStore[T]) removeLocked(id string) {
	delete(m.docs, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func decode[T any](doc match.Doc, exclude []string) (*T, error) {
	if len(exclude) > 0 {
		doc = match.Project(doc, exclude)
	}
	entity := new(T)
	if err := match.FromDoc(doc, entity); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return entity, nil
}
