/*
Package datastore defines the persistence interface shared by every peoplestore backend.

DataStore[T] provides the document operations used by the People service:

	type DataStore[T any] interface {
	    Insert(ctx context.Context, entity *T) error
	    InsertMany(ctx context.Context, entities []*T) error
	    GetOne(ctx context.Context, id string) (*T, error)
	    Find(ctx context.Context, q *storagemodels.Query) ([]*T, error)
	    FindOne(ctx context.Context, filter storagemodels.Filter) (*T, error)
	    Save(ctx context.Context, entity *T) error
	    FindOneAndUpdate(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, error)
	    Delete(ctx context.Context, id string) (*T, error)
	    DeleteMany(ctx context.Context, filter storagemodels.Filter) (*storagemodels.DeleteResult, error)
	    Stream(ctx context.Context, q *storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
	    Close(ctx context.Context) error
	}

*T must implement storagemodels.Document so backends can read and assign identifiers.

Implementations:
  - mongo: MongoDB implementation using the official driver
  - ddb: DynamoDB implementation with single-table design
  - mock: in-memory implementation for tests and local runs

Package match holds the filter, sort and projection evaluation used by
backends that cannot push a whole query down to the store.
*/
package datastore
