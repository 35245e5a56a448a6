/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/storagemodels"
)

// DataStore is a typed collection of documents in an external store.
// Lookups that find nothing return a nil document and a nil error.
type DataStore[T any] interface {
	// Insert stores a new document, assigning its identifier if it has none.
	Insert(ctx context.Context, entity *T) error

	// InsertMany stores new documents, assigning identifiers as Insert does.
	InsertMany(ctx context.Context, entities []*T) error

	// GetOne returns the document with the given identifier.
	GetOne(ctx context.Context, id string) (*T, error)

	// Find returns the documents selected by q in the requested order.
	Find(ctx context.Context, q *storagemodels.Query) ([]*T, error)

	// FindOne returns the first document matching filter.
	FindOne(ctx context.Context, filter storagemodels.Filter) (*T, error)

	// Save replaces the stored document that has the entity's identifier.
	Save(ctx context.Context, entity *T) error

	// FindOneAndUpdate sets the given fields on the first matching document
	// and returns it as it is after the update.
	FindOneAndUpdate(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, error)

	// Delete removes the document with the given identifier and returns it.
	Delete(ctx context.Context, id string) (*T, error)

	// DeleteMany removes every document matching filter.
	DeleteMany(ctx context.Context, filter storagemodels.Filter) (*storagemodels.DeleteResult, error)

	// Stream returns the documents selected by q through a channel.
	Stream(ctx context.Context, q *storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]

	// Close releases the connection to the store.
	Close(ctx context.Context) error
}

// errNilDocument is returned for a nil entity.
var errNilDocument = errors.NewValidationError("", "nil document")

// isNil reports whether entity is nil or a nil pointer.
func isNil(entity any) bool {
	if entity == nil {
		return true
	}
	v := reflect.ValueOf(entity)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// AsDocument returns entity as a storagemodels.Document.
func AsDocument(entity any) (storagemodels.Document, error) {
	if isNil(entity) {
		return nil, errNilDocument
	}
	doc, ok := entity.(storagemodels.Document)
	if !ok {
		return nil, errors.NewValidationError("", fmt.Sprintf("%T does not implement storagemodels.Document", entity))
	}
	return doc, nil
}

// EnsureID assigns a fresh ObjectId to entity unless it already has an identifier.
// It returns the identifier.
func EnsureID(entity any) (string, error) {
	doc, err := AsDocument(entity)
	if err != nil {
		return "", err
	}
	if id := doc.DocumentID(); id != "" {
		return id, nil
	}
	id := primitive.NewObjectID().Hex()
	if err := doc.AssignID(id); err != nil {
		return "", err
	}
	return id, nil
}

// Validate runs the entity's own validation, if it has one.
func Validate(entity any) error {
	if isNil(entity) {
		return errNilDocument
	}
	if v, ok := entity.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
