/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package peoplestore

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/peoplestore/datastore"
	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/models"
	"github.com/suparena/peoplestore/storagemodels"
)

// Defaults used by the fixed-argument operations.
const (
	// DefaultFood is appended by FindEditThenSave.
	DefaultFood = "hamburger"
	// DefaultAge is set by FindAndUpdate.
	DefaultAge = 20
	// DefaultRemoveName is the name removed by RemoveManyPeople when none is given.
	DefaultRemoveName = "Mary"
	// DefaultQueryFood filters QueryChain when no food is given.
	DefaultQueryFood = "burrito"
	// DefaultQueryLimit caps QueryChain results.
	DefaultQueryLimit = 2
)

// People runs the person operations against a DataStore.
// It holds no mutable state and is safe for concurrent use.
type People struct {
	store datastore.DataStore[models.Person]
	l     *zap.Logger
}

// New returns People backed by store. A nil logger discards log output.
func New(store datastore.DataStore[models.Person], logger *zap.Logger) *People {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &People{store: store, l: logger}
}

// Store returns the underlying DataStore.
func (p *People) Store() datastore.DataStore[models.Person] {
	return p.store
}

// Close disconnects the store.
func (p *People) Close(ctx context.Context) error {
	return p.done("close", p.store.Close(ctx))
}

// done logs the outcome of op and returns err unchanged.
func (p *People) done(op string, err error, fields ...zap.Field) error {
	if err != nil {
		p.l.Error("Operation failed", append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
		return err
	}
	p.l.Debug("Operation succeeded", append([]zap.Field{zap.String("op", op)}, fields...)...)
	return nil
}

func checkID(id string) error {
	if !models.IsValidID(id) {
		return errors.NewValidationError(models.FieldID, "must be a 24 character hex ObjectId")
	}
	return nil
}

// CreateAndSavePerson inserts person and returns it with its assigned identifier.
func (p *People) CreateAndSavePerson(ctx context.Context, person *models.Person) (*models.Person, error) {
	if err := p.store.Insert(ctx, person); err != nil {
		return nil, p.done("create-one", err)
	}
	return person, p.done("create-one", nil, zap.String("id", person.DocumentID()))
}

// CreateManyPeople inserts people and returns them with their assigned identifiers.
func (p *People) CreateManyPeople(ctx context.Context, people []*models.Person) ([]*models.Person, error) {
	if err := p.store.InsertMany(ctx, people); err != nil {
		return nil, p.done("create-many", err)
	}
	return people, p.done("create-many", nil, zap.Int("count", len(people)))
}

// FindPeopleByName returns every person with the given name, in no particular order.
func (p *People) FindPeopleByName(ctx context.Context, name string) ([]*models.Person, error) {
	res, err := p.store.Find(ctx, &storagemodels.Query{
		Filter: storagemodels.Filter{storagemodels.Eq(models.FieldName, name)},
	})
	if err != nil {
		return nil, p.done("find-by-field", err)
	}
	return res, p.done("find-by-field", nil, zap.Int("count", len(res)))
}

// FindOneByFood returns one person whose favorite foods include food, or nil.
func (p *People) FindOneByFood(ctx context.Context, food string) (*models.Person, error) {
	res, err := p.store.FindOne(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldFavoriteFoods, food)})
	if err != nil {
		return nil, p.done("find-one-by-field", err)
	}
	return res, p.done("find-one-by-field", nil, zap.Bool("found", res != nil))
}

// FindPersonByID returns the person with the given identifier, or nil.
func (p *People) FindPersonByID(ctx context.Context, id string) (*models.Person, error) {
	if err := checkID(id); err != nil {
		return nil, p.done("find-by-id", err)
	}
	res, err := p.store.GetOne(ctx, id)
	if err != nil {
		return nil, p.done("find-by-id", err)
	}
	return res, p.done("find-by-id", nil, zap.String("id", id), zap.Bool("found", res != nil))
}

// FindEditThenSave appends DefaultFood to the favorite foods of the person with the given identifier.
func (p *People) FindEditThenSave(ctx context.Context, id string) (*models.Person, error) {
	return p.AddFavoriteFood(ctx, id, DefaultFood)
}

// AddFavoriteFood loads the person with the given identifier, appends food
// to its favorite foods and saves the whole document back.
// It is not atomic: a concurrent write between load and save is overwritten.
func (p *People) AddFavoriteFood(ctx context.Context, id, food string) (*models.Person, error) {
	if err := checkID(id); err != nil {
		return nil, p.done("load-mutate-save", err)
	}

	person, err := p.store.GetOne(ctx, id)
	if err != nil {
		return nil, p.done("load-mutate-save", err)
	}
	if person == nil {
		return nil, p.done("load-mutate-save", errors.NewNotFoundError(models.PersonEntity, id))
	}

	person.FavoriteFoods = append(person.FavoriteFoods, food)
	if err := p.store.Save(ctx, person); err != nil {
		return nil, p.done("load-mutate-save", err)
	}
	return person, p.done("load-mutate-save", nil, zap.String("id", id), zap.String("food", food))
}

// FindAndUpdate sets the age of the first person named name to DefaultAge.
func (p *People) FindAndUpdate(ctx context.Context, name string) (*models.Person, error) {
	return p.SetAge(ctx, name, DefaultAge)
}

// SetAge atomically sets the age of the first person named name and returns
// the person as it is after the update, or nil if nobody has that name.
func (p *People) SetAge(ctx context.Context, name string, age int) (*models.Person, error) {
	res, err := p.store.FindOneAndUpdate(ctx,
		storagemodels.Filter{storagemodels.Eq(models.FieldName, name)},
		map[string]any{models.FieldAge: age},
	)
	if err != nil {
		return nil, p.done("atomic-find-and-update", err)
	}
	return res, p.done("atomic-find-and-update", nil, zap.String("name", name), zap.Bool("found", res != nil))
}

// RemoveByID deletes the person with the given identifier and returns it, or nil.
func (p *People) RemoveByID(ctx context.Context, id string) (*models.Person, error) {
	if err := checkID(id); err != nil {
		return nil, p.done("delete-by-id", err)
	}
	res, err := p.store.Delete(ctx, id)
	if err != nil {
		return nil, p.done("delete-by-id", err)
	}
	return res, p.done("delete-by-id", nil, zap.String("id", id), zap.Bool("found", res != nil))
}

// RemoveManyPeople deletes every person named name, DefaultRemoveName if empty.
func (p *People) RemoveManyPeople(ctx context.Context, name string) (*storagemodels.DeleteResult, error) {
	if name == "" {
		name = DefaultRemoveName
	}
	res, err := p.store.DeleteMany(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldName, name)})
	if err != nil {
		return nil, p.done("delete-many-by-field", err)
	}
	return res, p.done("delete-many-by-field", nil, zap.String("name", name), zap.Int64("deleted", res.DeletedCount))
}

// QueryChain returns at most DefaultQueryLimit people who like food
// (DefaultQueryFood if empty), sorted by name, without their age.
func (p *People) QueryChain(ctx context.Context, food string) ([]*models.Person, error) {
	if food == "" {
		food = DefaultQueryFood
	}
	return p.Find().
		Where(models.FieldFavoriteFoods, food).
		SortBy(models.FieldName, true).
		Limit(DefaultQueryLimit).
		Exclude(models.FieldAge).
		Execute(ctx)
}
