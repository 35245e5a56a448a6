/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package peoplestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/peoplestore"
	"github.com/suparena/peoplestore/models"
)

func TestCallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := setup(t)

	var calls int
	peoplestore.Callback(func() (*models.Person, error) {
		return p.CreateAndSavePerson(ctx, models.SamplePerson())
	}, func(err error, person *models.Person) {
		calls++
		require.NoError(t, err)
		assert.Equal(t, "Jane Fonda", person.Name)
	})
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	peoplestore.Callback(func() (int, error) {
		return 42, boom
	}, func(err error, n int) {
		calls++
		assert.Same(t, boom, err)
		assert.Zero(t, n)
	})
	assert.Equal(t, 2, calls)
}

func TestAsync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := setup(t)
	seed(t, p)

	results := make(chan []*models.Person, 1)
	done := peoplestore.Async(ctx, func(ctx context.Context) ([]*models.Person, error) {
		return p.FindPeopleByName(ctx, "Mary")
	}, func(err error, people []*models.Person) {
		assert.NoError(t, err)
		results <- people
	})

	<-done
	require.Len(t, results, 1)
	assert.Len(t, <-results, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	errs := make(chan error, 1)
	<-peoplestore.Async(cancelled, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ctx.Err()
	}, func(err error, _ struct{}) {
		errs <- err
	})
	assert.ErrorIs(t, <-errs, context.Canceled)
}
