/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongo

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	storeerrors "github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/storagemodels"
)

// buildFilter translates filter into a MongoDB query document.
//
// Both operators become {field: value}: MongoDB already matches an array field
// when any element equals the value. Conditions repeating a field are combined with $and.
func buildFilter(filter storagemodels.Filter) (bson.D, error) {
	res := bson.D{}
	seen := make(map[string]bool, len(filter))
	var and bson.A

	for _, c := range filter {
		switch c.Op {
		case storagemodels.OpEq, storagemodels.OpContains:
		default:
			return nil, storeerrors.NewValidationError(c.Field, fmt.Sprintf("unsupported operator %q", c.Op))
		}

		value, err := filterValue(c)
		if err != nil {
			return nil, err
		}

		if seen[c.Field] {
			and = append(and, bson.D{{Key: c.Field, Value: value}})
			continue
		}
		seen[c.Field] = true
		res = append(res, bson.E{Key: c.Field, Value: value})
	}

	if len(and) > 0 {
		res = append(res, bson.E{Key: "$and", Value: and})
	}
	return res, nil
}

// filterValue converts hex identifiers to ObjectIDs.
func filterValue(c storagemodels.Condition) (any, error) {
	if c.Field != storagemodels.IDField {
		return c.Value, nil
	}
	s, ok := c.Value.(string)
	if !ok {
		return c.Value, nil
	}
	return objectID(s)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, storeerrors.NewValidationError(storagemodels.IDField, err.Error())
	}
	return oid, nil
}

// buildFindOptions applies sort, limit and projection of q.
func buildFindOptions(q *storagemodels.Query) *options.FindOptions {
	opts := options.Find()
	if q == nil {
		return opts
	}

	if len(q.Sort) > 0 {
		sortDoc := make(bson.D, 0, len(q.Sort))
		for _, s := range q.Sort {
			dir := 1
			if s.Descending {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: s.Field, Value: dir})
		}
		opts.SetSort(sortDoc)
	}

	if q.HasLimit() {
		opts.SetLimit(q.Limit)
	}

	if len(q.Exclude) > 0 {
		projection := make(bson.D, 0, len(q.Exclude))
		for _, f := range q.Exclude {
			projection = append(projection, bson.E{Key: f, Value: 0})
		}
		opts.SetProjection(projection)
	}

	return opts
}

// buildUpdate returns a $set update document with fields in a stable order.
func buildUpdate(updates map[string]any) (bson.D, error) {
	if len(updates) == 0 {
		return nil, storeerrors.NewValidationError("updates", "no updates provided")
	}
	if _, ok := updates[storagemodels.IDField]; ok {
		return nil, storeerrors.NewValidationError(storagemodels.IDField, "is immutable")
	}

	fields := make([]string, 0, len(updates))
	for f := range updates {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	set := make(bson.D, 0, len(fields))
	for _, f := range fields {
		set = append(set, bson.E{Key: f, Value: updates[f]})
	}
	return bson.D{{Key: "$set", Value: set}}, nil
}
