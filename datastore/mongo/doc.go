/*
Package mongo provides a MongoDB implementation of the DataStore interface.

Each store wraps one collection. Operations map one-to-one onto driver calls:

	Insert            -> InsertOne
	InsertMany        -> InsertMany (ordered)
	GetOne, FindOne   -> FindOne
	Find              -> Find with SetSort, SetLimit and SetProjection
	Save              -> ReplaceOne by _id
	FindOneAndUpdate  -> FindOneAndUpdate with $set and ReturnDocument(After)
	Delete            -> FindOneAndDelete
	DeleteMany        -> DeleteMany

Usage:

	client, err := mongo.Connect(ctx, os.Getenv("MONGO_URI"))
	if err != nil {
	    return err
	}

	store, err := mongo.NewMongoDataStore[models.Person](client, "test", "", logger)
	if err != nil {
	    return err
	}
	if err := store.EnsureCollection(ctx); err != nil {
	    return err
	}

Driver errors are wrapped in errors.StoreError. Duplicate identifiers on insert
become errors.AlreadyExistsError.
*/
package mongo
