/*
Package registry records how each Go type is persisted.

An Entity carries the logical type name (stored as EntityType in single-table
DynamoDB designs), the default MongoDB collection, and the DynamoDB index map:

	registry.RegisterEntity[Person](registry.Entity{
	    Name:       "Person",
	    Collection: "people",
	    IndexMap: map[string]string{
	        "PK":     "PERSON#{_id}",
	        "SK":     "PERSON#{_id}",
	        "GSI1PK": "NAME#{name}",
	        "GSI1SK": "PERSON#{_id}",
	    },
	})

Macros in index map templates name document fields by their wire name.
The registry is thread-safe and is normally populated from init() functions
of model packages.
*/
package registry
