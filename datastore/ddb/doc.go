/*
Package ddb provides a DynamoDB implementation of the DataStore interface.

The DynamodbDataStore supports:
  - Single-table design patterns
  - Macro-based key expansion (e.g., "PERSON#{_id}")
  - Global Secondary Index (GSI) lookups for equality filters
  - Streaming with retry logic
  - Conditional writes for insert, save and update

Macro Expansion:
Keys are rendered from the item attributes of the registered index map:

	indexMap := map[string]string{
	    "PK":     "PERSON#{_id}",  // Becomes "PERSON#65f1c0ffee..."
	    "SK":     "PERSON#{_id}",
	    "GSI1PK": "NAME#{name}",   // Becomes "NAME#Mary"
	    "GSI1SK": "PERSON#{_id}",
	}

Every item also carries the "_id" and "EntityType" attributes.

Reads:
An equality condition on the only macro of a GSI partition key template is
answered by a Query on that GSI. Any other filter is a Scan with a
FilterExpression. Results are matched exactly, sorted, limited and projected
on the client.

Streaming:

	results := store.Stream(ctx, q,
	    storagemodels.WithBufferSize(100),
	    storagemodels.WithPageSize(25),
	    storagemodels.WithMaxRetries(3),
	    storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) {
	        logger.Info("Progress", zap.Int64("items", p.ItemsProcessed))
	    }),
	)
*/
package ddb
