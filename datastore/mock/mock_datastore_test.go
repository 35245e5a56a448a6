/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/suparena/peoplestore/datastore/mock"
	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/models"
	"github.com/suparena/peoplestore/storagemodels"
)

func seed(t *testing.T, store *mock.DataStore[models.Person]) []*models.Person {
	t.Helper()

	people := []*models.Person{
		models.NewPerson("Sol", 76, "roast chicken", "burrito"),
		models.NewPerson("Frankie", 74, "Del Taco", "burrito"),
		models.NewPerson("Robert", 78, "wine"),
		models.NewPerson("Arnold", 50, "burrito"),
	}
	if err := store.InsertMany(context.Background(), people); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	return people
}

func TestMockDataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("BasicOperations", func(t *testing.T) {
		store := mock.New[models.Person]()

		// Insert assigns an identifier
		p := models.SamplePerson()
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if p.DocumentID() == "" {
			t.Fatal("Insert should assign an identifier")
		}

		retrieved, err := store.GetOne(ctx, p.DocumentID())
		if err != nil {
			t.Fatalf("GetOne failed: %v", err)
		}
		if retrieved == nil || retrieved.Name != "Jane Fonda" || retrieved.Age != 84 {
			t.Fatalf("Retrieved entity mismatch: %+v", retrieved)
		}

		deleted, err := store.Delete(ctx, p.DocumentID())
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if deleted == nil || deleted.ID != p.ID {
			t.Fatalf("Delete should return the removed document, got %+v", deleted)
		}

		// Absent documents are not errors
		retrieved, err = store.GetOne(ctx, p.DocumentID())
		if err != nil || retrieved != nil {
			t.Fatalf("Expected nil, nil after delete, got %+v, %v", retrieved, err)
		}
		deleted, err = store.Delete(ctx, p.DocumentID())
		if err != nil || deleted != nil {
			t.Fatalf("Expected nil, nil deleting twice, got %+v, %v", deleted, err)
		}
	})

	t.Run("InsertValidation", func(t *testing.T) {
		store := mock.New[models.Person]()

		err := store.Insert(ctx, &models.Person{Age: 3, FavoriteFoods: []string{}})
		if !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error, got: %v", err)
		}
		if store.Count() != 0 {
			t.Fatalf("Invalid document should not be stored")
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		store := mock.New[models.Person]()

		p := models.NewPerson("Ann", 30)
		p.ID = primitive.NewObjectID()
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		dup := models.NewPerson("Bob", 31)
		dup.ID = p.ID
		if err := store.Insert(ctx, dup); !errors.IsAlreadyExists(err) {
			t.Fatalf("Expected already exists error, got: %v", err)
		}
	})

	t.Run("InsertManyStopsAtFirstFailure", func(t *testing.T) {
		store := mock.New[models.Person]()

		people := []*models.Person{
			models.NewPerson("Ann", 30),
			{Name: "", Age: 1, FavoriteFoods: []string{}},
			models.NewPerson("Bob", 31),
		}
		if err := store.InsertMany(ctx, people); !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error, got: %v", err)
		}
		if store.Count() != 1 {
			t.Fatalf("Expected 1 stored document, got %d", store.Count())
		}
	})

	t.Run("StoredCopyIsIsolated", func(t *testing.T) {
		store := mock.New[models.Person]()

		p := models.NewPerson("Ann", 30, "pie")
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		p.FavoriteFoods[0] = "cake"

		got, _ := store.GetOne(ctx, p.DocumentID())
		if got.FavoriteFoods[0] != "pie" {
			t.Fatalf("Stored document changed through caller memory: %v", got.FavoriteFoods)
		}
	})

	t.Run("FindFilterSortLimitExclude", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		results, err := store.Find(ctx, &storagemodels.Query{
			Filter:  storagemodels.Filter{storagemodels.Contains(models.FieldFavoriteFoods, "burrito")},
			Sort:    []storagemodels.SortField{{Field: models.FieldName}},
			Limit:   2,
			Exclude: []string{models.FieldAge},
		})
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results[0].Name != "Arnold" || results[1].Name != "Frankie" {
			t.Fatalf("Unexpected order: %s, %s", results[0].Name, results[1].Name)
		}
		for _, r := range results {
			if r.Age != 0 {
				t.Fatalf("Excluded age should decode as zero, got %d", r.Age)
			}
			if r.DocumentID() == "" {
				t.Fatal("Identifier should survive projection")
			}
		}

		// Unsorted reads keep insertion order
		all, err := store.Find(ctx, nil)
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if len(all) != 4 || all[0].Name != "Sol" || all[3].Name != "Arnold" {
			t.Fatalf("Expected insertion order, got %+v", all)
		}
	})

	t.Run("FindOne", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		p, err := store.FindOne(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldFavoriteFoods, "burrito")})
		if err != nil {
			t.Fatalf("FindOne failed: %v", err)
		}
		if p == nil || p.Name != "Sol" {
			t.Fatalf("Expected Sol, got %+v", p)
		}

		p, err = store.FindOne(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldName, "Nobody")})
		if err != nil || p != nil {
			t.Fatalf("Expected nil, nil, got %+v, %v", p, err)
		}
	})

	t.Run("Save", func(t *testing.T) {
		store := mock.New[models.Person]()
		people := seed(t, store)

		p, _ := store.GetOne(ctx, people[0].DocumentID())
		p.FavoriteFoods = append(p.FavoriteFoods, "hamburger")
		if err := store.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, _ := store.GetOne(ctx, p.DocumentID())
		if len(got.FavoriteFoods) != 3 || got.FavoriteFoods[2] != "hamburger" {
			t.Fatalf("Save not persisted: %v", got.FavoriteFoods)
		}

		missing := models.NewPerson("Ghost", 1)
		missing.ID = primitive.NewObjectID()
		if err := store.Save(ctx, missing); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found error, got: %v", err)
		}
	})

	t.Run("FindOneAndUpdate", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		updated, err := store.FindOneAndUpdate(ctx,
			storagemodels.Filter{storagemodels.Eq(models.FieldName, "Robert")},
			map[string]any{models.FieldAge: 20})
		if err != nil {
			t.Fatalf("FindOneAndUpdate failed: %v", err)
		}
		if updated == nil || updated.Age != 20 || updated.Name != "Robert" {
			t.Fatalf("Expected updated document, got %+v", updated)
		}

		updated, err = store.FindOneAndUpdate(ctx,
			storagemodels.Filter{storagemodels.Eq(models.FieldName, "Nobody")},
			map[string]any{models.FieldAge: 20})
		if err != nil || updated != nil {
			t.Fatalf("Expected nil, nil, got %+v, %v", updated, err)
		}

		_, err = store.FindOneAndUpdate(ctx,
			storagemodels.Filter{storagemodels.Eq(models.FieldName, "Robert")},
			map[string]any{models.FieldName: ""})
		if !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error, got: %v", err)
		}
	})

	t.Run("DeleteMany", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		res, err := store.DeleteMany(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldFavoriteFoods, "burrito")})
		if err != nil {
			t.Fatalf("DeleteMany failed: %v", err)
		}
		if !res.Acknowledged || res.DeletedCount != 3 {
			t.Fatalf("Unexpected result: %+v", res)
		}
		if store.Count() != 1 {
			t.Fatalf("Expected 1 remaining document, got %d", store.Count())
		}

		res, err = store.DeleteMany(ctx, storagemodels.Filter{storagemodels.Eq(models.FieldName, "Nobody")})
		if err != nil || res.DeletedCount != 0 {
			t.Fatalf("Expected zero deletions, got %+v, %v", res, err)
		}
	})

	t.Run("ErrorSimulation", func(t *testing.T) {
		store := mock.New[models.Person]()

		insertErr := errors.NewStoreError("insert", context.DeadlineExceeded)
		store.WithInsertError(insertErr)
		if err := store.Insert(ctx, models.SamplePerson()); err != insertErr {
			t.Fatalf("Expected insert error, got: %v", err)
		}

		findErr := errors.NewStoreError("find", context.Canceled)
		store.WithFindError(findErr)
		if _, err := store.GetOne(ctx, primitive.NewObjectID().Hex()); err != findErr {
			t.Fatalf("Expected find error, got: %v", err)
		}

		deleteErr := errors.NewConditionFailedError("delete", "locked")
		store.WithDeleteError(deleteErr)
		if _, err := store.DeleteMany(ctx, nil); err != deleteErr {
			t.Fatalf("Expected delete error, got: %v", err)
		}
	})

	t.Run("Stream", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		streamCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		var progress storagemodels.StreamProgress
		resultChan := store.Stream(streamCtx,
			&storagemodels.Query{Sort: []storagemodels.SortField{{Field: models.FieldAge, Descending: true}}},
			storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) { progress = p }))

		var names []string
		for result := range resultChan {
			if result.Error != nil {
				t.Fatalf("Stream error: %v", result.Error)
			}
			names = append(names, result.Item.Name)
		}

		expected := []string{"Robert", "Sol", "Frankie", "Arnold"}
		if len(names) != len(expected) {
			t.Fatalf("Expected %d streamed items, got %d", len(expected), len(names))
		}
		for i := range expected {
			if names[i] != expected[i] {
				t.Fatalf("Expected %v, got %v", expected, names)
			}
		}
		if progress.ItemsProcessed != 4 {
			t.Fatalf("Expected progress for 4 items, got %d", progress.ItemsProcessed)
		}
	})

	t.Run("HelperMethods", func(t *testing.T) {
		store := mock.New[models.Person]()
		people := seed(t, store)

		raw, ok := store.Raw(people[0].DocumentID())
		if !ok || raw[models.FieldName] != "Sol" {
			t.Fatalf("Unexpected raw document: %v", raw)
		}

		store.Clear()
		if store.Count() != 0 {
			t.Fatalf("Expected count 0 after clear, got %d", store.Count())
		}
	})

	t.Run("ErrorInjectionWhileRunning", func(t *testing.T) {
		store := mock.New[models.Person]()
		seed(t, store)

		injected := errors.NewStoreError("find", context.DeadlineExceeded)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					store.WithFindError(injected)
					store.WithFindError(nil)
				}
			}()
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if _, err := store.Find(ctx, nil); err != nil && err != injected {
						t.Errorf("Unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		if _, err := store.Find(ctx, nil); err != nil {
			t.Fatalf("Find failed after the injected error was cleared: %v", err)
		}
	})

	t.Run("NilDocument", func(t *testing.T) {
		store := mock.New[models.Person]()

		if err := store.Insert(ctx, nil); !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error for nil insert, got %v", err)
		}
		if err := store.Save(ctx, nil); !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error for nil save, got %v", err)
		}
	})
}
