/*
Package errors provides semantic error types for peoplestore.

Backends wrap driver failures in StoreError, so every failed call to the
external store matches ErrStoreFailed while the driver error stays reachable:

	person, err := store.GetOne(ctx, id)
	if err != nil {
	    if errors.IsStoreError(err) {
	        // the store rejected or failed the call
	    }
	    return nil, err
	}

The remaining types describe conditions detected on the client side:

	errors.NewNotFoundError("Person", id)          // save or edit of a missing document
	errors.NewValidationError("age", "must be >= 0")
	errors.NewAlreadyExistsError("Person", id, err) // duplicate _id on insert
	errors.NewConditionFailedError("findOneAndUpdate", cond) // matched item kept changing

All types support errors.Is against the matching sentinel.
*/
package errors
