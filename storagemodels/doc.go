/*
Package storagemodels defines the store-independent types shared by all backends.

Filter and Query:
A Filter is a conjunction of field conditions; a Query adds sort keys, a limit
and a field-exclusion projection:

	q := &storagemodels.Query{
	    Filter:  storagemodels.Filter{storagemodels.Contains("favoriteFoods", "burrito")},
	    Sort:    []storagemodels.SortField{{Field: "name"}},
	    Limit:   2,
	    Exclude: []string{"age"},
	}

Each backend translates these into its native form: a bson filter with
SetSort/SetLimit/SetProjection for MongoDB, a FilterExpression plus
client-side ordering for DynamoDB.

StreamResult:
Results from streaming reads carry metadata and the raw document:

	type StreamResult[T any] struct {
	    Item  T
	    Raw   map[string]any
	    Error error
	    Meta  StreamMeta
	}

Streaming behaviour is configured with functional options such as
WithBufferSize, WithPageSize, WithMaxRetries and WithProgressHandler.
*/
package storagemodels
