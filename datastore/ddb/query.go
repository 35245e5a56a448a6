/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/peoplestore/datastore/match"
	storeerrors "github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/registry"
	"github.com/suparena/peoplestore/storagemodels"
)

// readPlan is a Query on a GSI when keyCondition is set, a Scan otherwise.
type readPlan struct {
	indexName    *string
	keyCondition *string
	filter       *string
	names        map[string]string
	values       map[string]types.AttributeValue
}

// exprBuilder allocates expression attribute name and value placeholders.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (b *exprBuilder) name(attr string) string {
	for placeholder, n := range b.names {
		if n == attr {
			return placeholder
		}
	}
	placeholder := fmt.Sprintf("#f%d", len(b.names))
	b.names[placeholder] = attr
	return placeholder
}

func (b *exprBuilder) value(av types.AttributeValue) string {
	placeholder := fmt.Sprintf(":v%d", len(b.values))
	b.values[placeholder] = av
	return placeholder
}

// condition renders c as a filter expression clause.
//
// An equality on a scalar also accepts lists holding the value, since {field: value}
// matches array elements. contains() is a substring test on strings, so the results
// are a superset and get matched exactly on the client.
func (b *exprBuilder) condition(c storagemodels.Condition) (string, error) {
	av, err := attributevalue.Marshal(c.Value)
	if err != nil {
		return "", storeerrors.NewValidationError(c.Field, fmt.Sprintf("unsupported value: %v", err))
	}

	name := b.name(c.Field)
	value := b.value(av)

	switch c.Op {
	case storagemodels.OpEq:
		switch av.(type) {
		case *types.AttributeValueMemberS, *types.AttributeValueMemberN:
			return fmt.Sprintf("(%s = %s OR contains(%s, %s))", name, value, name, value), nil
		default:
			return fmt.Sprintf("%s = %s", name, value), nil
		}
	case storagemodels.OpContains:
		return fmt.Sprintf("contains(%s, %s)", name, value), nil
	default:
		return "", storeerrors.NewValidationError(c.Field, fmt.Sprintf("unsupported operator %q", c.Op))
	}
}

// guard renders c as a condition expression clause that holds exactly while the item
// still matches c. current is the item as read; it tells list attributes from scalars.
func (b *exprBuilder) guard(c storagemodels.Condition, current map[string]types.AttributeValue) (string, error) {
	av, err := attributevalue.Marshal(c.Value)
	if err != nil {
		return "", storeerrors.NewValidationError(c.Field, fmt.Sprintf("unsupported value: %v", err))
	}

	name := b.name(c.Field)
	value := b.value(av)
	_, isList := current[c.Field].(*types.AttributeValueMemberL)

	switch c.Op {
	case storagemodels.OpEq:
		if isList {
			switch av.(type) {
			case *types.AttributeValueMemberS, *types.AttributeValueMemberN:
				return fmt.Sprintf("contains(%s, %s)", name, value), nil
			}
		}
		return fmt.Sprintf("%s = %s", name, value), nil
	case storagemodels.OpContains:
		return fmt.Sprintf("contains(%s, %s)", name, value), nil
	default:
		return "", storeerrors.NewValidationError(c.Field, fmt.Sprintf("unsupported operator %q", c.Op))
	}
}

// planRead builds the request selecting items of T that may match filter.
func (d *DynamodbDataStore[T]) planRead(filter storagemodels.Filter) (*readPlan, error) {
	indexMap, err := d.indexMap()
	if err != nil {
		return nil, err
	}

	b := newExprBuilder()
	plan := &readPlan{}

	skip := -1
	if m, ok := findGSI(indexMap, filter); ok {
		keyCondition := fmt.Sprintf("%s = %s",
			b.name(m.config.PartitionKeyName),
			b.value(&types.AttributeValueMemberS{Value: m.key}),
		)
		plan.indexName = aws.String(m.config.IndexName)
		plan.keyCondition = &keyCondition
		skip = m.condition
	}

	clauses := []string{
		fmt.Sprintf("%s = %s", b.name(attrEntityType), b.value(&types.AttributeValueMemberS{Value: registry.EntityName[T]()})),
	}
	for i, c := range filter {
		if i == skip {
			continue
		}
		clause, err := b.condition(c)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	expr := strings.Join(clauses, " AND ")
	plan.filter = &expr
	plan.names = b.names
	plan.values = b.values
	return plan, nil
}

// readPage executes one page of plan.
func (d *DynamodbDataStore[T]) readPage(
	ctx context.Context,
	plan *readPlan,
	startKey map[string]types.AttributeValue,
	limit *int32,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	if plan.keyCondition != nil {
		out, err := d.client.Query(ctx, &sdk.QueryInput{
			TableName:                 &d.tableName,
			IndexName:                 plan.indexName,
			KeyConditionExpression:    plan.keyCondition,
			FilterExpression:          plan.filter,
			ExpressionAttributeNames:  plan.names,
			ExpressionAttributeValues: plan.values,
			ExclusiveStartKey:         startKey,
			Limit:                     limit,
		})
		if err != nil {
			return nil, nil, storeerrors.NewStoreError("query", err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	}

	out, err := d.client.Scan(ctx, &sdk.ScanInput{
		TableName:                 &d.tableName,
		FilterExpression:          plan.filter,
		ExpressionAttributeNames:  plan.names,
		ExpressionAttributeValues: plan.values,
		ExclusiveStartKey:         startKey,
		Limit:                     limit,
	})
	if err != nil {
		return nil, nil, storeerrors.NewStoreError("scan", err)
	}
	return out.Items, out.LastEvaluatedKey, nil
}

// record is a stored item with its decoded form used for matching and sorting.
type record struct {
	item map[string]types.AttributeValue
	doc  match.Doc
}

func recordDoc(r record) match.Doc {
	return r.doc
}

func newRecord(item map[string]types.AttributeValue) (record, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return record{}, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return record{item: item, doc: doc}, nil
}

// collect appends the items matching filter exactly.
func collect(records []record, items []map[string]types.AttributeValue, filter storagemodels.Filter) ([]record, error) {
	for _, item := range items {
		r, err := newRecord(item)
		if err != nil {
			return nil, err
		}
		if match.Matches(r.doc, filter) {
			records = append(records, r)
		}
	}
	return records, nil
}

// findRecords reads every page of the plan for q and applies q's filter, sort and limit.
func (d *DynamodbDataStore[T]) findRecords(ctx context.Context, q *storagemodels.Query) ([]record, error) {
	if q == nil {
		q = &storagemodels.Query{}
	}

	plan, err := d.planRead(q.Filter)
	if err != nil {
		return nil, err
	}

	d.l.Debug("Reading items.", zap.Bool("gsi", plan.keyCondition != nil), zap.Stringp("filter", plan.filter))

	var records []record
	var startKey map[string]types.AttributeValue
	for {
		items, lastKey, err := d.readPage(ctx, plan, startKey, nil)
		if err != nil {
			return nil, err
		}
		if records, err = collect(records, items, q.Filter); err != nil {
			return nil, err
		}

		// without a sort order the first matches are the result
		if len(q.Sort) == 0 && q.HasLimit() && int64(len(records)) >= q.Limit {
			break
		}
		if len(lastKey) == 0 {
			break
		}
		startKey = lastKey
	}

	return match.Apply(records, recordDoc, q), nil
}

// findItems returns the raw items selected by q.
func (d *DynamodbDataStore[T]) findItems(ctx context.Context, q *storagemodels.Query) ([]map[string]types.AttributeValue, error) {
	records, err := d.findRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]types.AttributeValue, 0, len(records))
	for _, r := range records {
		items = append(items, r.item)
	}
	return items, nil
}

// project returns a copy of item without the excluded attributes.
func project(item map[string]types.AttributeValue, exclude []string) map[string]types.AttributeValue {
	if len(exclude) == 0 {
		return item
	}
	res := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		res[k] = v
	}
	for _, f := range exclude {
		delete(res, f)
	}
	return res
}

// Find returns the items selected by q. Equality on a field with a GSI template
// is served by a GSI Query, anything else by a Scan; sort, limit and projection
// are applied on the client.
func (d *DynamodbDataStore[T]) Find(ctx context.Context, q *storagemodels.Query) ([]*T, error) {
	items, err := d.findItems(ctx, q)
	if err != nil {
		return nil, err
	}

	var exclude []string
	if q != nil {
		exclude = q.Exclude
	}

	results := make([]*T, 0, len(items))
	for _, item := range items {
		entity, err := unmarshalItem[T](project(item, exclude))
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, nil
}

// FindOne returns the first item matching filter, or nil if there is none.
func (d *DynamodbDataStore[T]) FindOne(ctx context.Context, filter storagemodels.Filter) (*T, error) {
	res, err := d.Find(ctx, &storagemodels.Query{Filter: filter, Limit: 1})
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0], nil
}
