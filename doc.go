/*
Package peoplestore stores Person documents (name, age and favorite foods)
in MongoDB, DynamoDB or memory behind one typed DataStore interface.

People exposes the operations of the collection: create one or many,
find by name, by favorite food or by identifier, append a favorite food and
save, atomically set an age, delete by identifier or by name, and a chained
query with filter, sort, limit and field exclusion.

Basic Usage:

	cfg, _ := config.Load("", "")
	people, _ := peoplestore.Open(ctx, cfg, logger)
	defer people.Close(ctx)

	jane, _ := people.CreateAndSavePerson(ctx, models.SamplePerson())
	jane, _ = people.FindEditThenSave(ctx, jane.DocumentID())

	lovers, _ := people.Find().
		Where(models.FieldFavoriteFoods, "burrito").
		SortBy(models.FieldName, true).
		Limit(2).
		Exclude(models.FieldAge).
		Execute(ctx)

Every operation also has an error-first callback form through Callback and Async.
*/
package peoplestore
