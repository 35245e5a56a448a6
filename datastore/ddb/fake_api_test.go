/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory table understanding the expressions built by this package.
type fakeAPI struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	order []string

	// readErrors are returned by the next Query or Scan calls, one per call
	readErrors []error

	queries    int
	scans      int
	lastQuery  *sdk.QueryInput
	lastScan   *sdk.ScanInput
	lastUpdate *sdk.UpdateItemInput
	updates    int

	// beforeUpdate runs inside UpdateItem before the condition check, with the lock held,
	// to simulate a concurrent writer; it gets the item key
	beforeUpdate func(key string)
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

var (
	reEquals   = regexp.MustCompile(`^(#\w+) = (:\w+)$`)
	reEqOrList = regexp.MustCompile(`^\((#\w+) = (:\w+) OR contains\((#\w+), (:\w+)\)\)$`)
	reContains = regexp.MustCompile(`^contains\((#\w+), (:\w+)\)$`)
	reSet      = regexp.MustCompile(`(#\w+) = (:\w+)`)
)

func itemKey(key map[string]types.AttributeValue) string {
	pk, _ := key[attrPK].(*types.AttributeValueMemberS)
	sk, _ := key[attrSK].(*types.AttributeValueMemberS)
	if pk == nil || sk == nil {
		return ""
	}
	return pk.Value + "|" + sk.Value
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	res := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		res[k] = v
	}
	return res
}

// checkCondition evaluates a condition expression against item, which is nil when absent.
func checkCondition(cond *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	for _, clause := range strings.Split(*cond, " AND ") {
		var ok bool
		switch clause {
		case "attribute_not_exists(PK)":
			ok = item == nil
		case "attribute_exists(PK)":
			ok = item != nil
		default:
			if item != nil {
				var err error
				if ok, err = evalFilter(item, aws.String(clause), names, values); err != nil {
					return fmt.Errorf("fake: unsupported condition %q: %w", *cond, err)
				}
			}
		}
		if !ok {
			return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	return nil
}

func containsValue(attr, value types.AttributeValue) bool {
	switch a := attr.(type) {
	case *types.AttributeValueMemberL:
		for _, e := range a.Value {
			if reflect.DeepEqual(e, value) {
				return true
			}
		}
	case *types.AttributeValueMemberSS:
		if v, ok := value.(*types.AttributeValueMemberS); ok {
			for _, e := range a.Value {
				if e == v.Value {
					return true
				}
			}
		}
	case *types.AttributeValueMemberS:
		if v, ok := value.(*types.AttributeValueMemberS); ok {
			return strings.Contains(a.Value, v.Value)
		}
	}
	return false
}

func evalFilter(item map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		var ok bool
		switch {
		case reEquals.MatchString(clause):
			m := reEquals.FindStringSubmatch(clause)
			ok = reflect.DeepEqual(item[names[m[1]]], values[m[2]])
		case reEqOrList.MatchString(clause):
			m := reEqOrList.FindStringSubmatch(clause)
			attr := item[names[m[1]]]
			ok = reflect.DeepEqual(attr, values[m[2]]) || containsValue(attr, values[m[2]])
		case reContains.MatchString(clause):
			m := reContains.FindStringSubmatch(clause)
			ok = containsValue(item[names[m[1]]], values[m[2]])
		default:
			return false, fmt.Errorf("fake: unsupported clause %q", clause)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, params *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &sdk.GetItemOutput{Item: copyItem(f.items[itemKey(params.Key)])}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, params *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := itemKey(params.Item)
	if k == "" {
		return nil, fmt.Errorf("fake: item has no key")
	}
	_, exists := f.items[k]
	if err := checkCondition(params.ConditionExpression, f.items[k], params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if !exists {
		f.order = append(f.order, k)
	}
	f.items[k] = copyItem(params.Item)
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastUpdate = params
	f.updates++

	k := itemKey(params.Key)
	if f.beforeUpdate != nil {
		f.beforeUpdate(k)
	}

	item := f.items[k]
	if err := checkCondition(params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}

	expr := aws.ToString(params.UpdateExpression)
	if !strings.HasPrefix(expr, "SET ") {
		return nil, fmt.Errorf("fake: unsupported update %q", expr)
	}
	for _, m := range reSet.FindAllStringSubmatch(expr, -1) {
		item[params.ExpressionAttributeNames[m[1]]] = params.ExpressionAttributeValues[m[2]]
	}

	return &sdk.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := itemKey(params.Key)
	old, exists := f.items[k]
	if !exists {
		return &sdk.DeleteItemOutput{}, nil
	}
	delete(f.items, k)
	for i, o := range f.order {
		if o == k {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return &sdk.DeleteItemOutput{Attributes: old}, nil
}

// page evaluates up to limit items after startKey, like DynamoDB does before filtering.
func (f *fakeAPI) page(
	candidates []string,
	startKey map[string]types.AttributeValue,
	limit *int32,
	filter *string,
	names map[string]string,
	values map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	start := 0
	if sk := itemKey(startKey); sk != "" {
		for i, k := range candidates {
			if k == sk {
				start = i + 1
				break
			}
		}
	}

	end := len(candidates)
	if limit != nil && start+int(*limit) < end {
		end = start + int(*limit)
	}

	var items []map[string]types.AttributeValue
	for _, k := range candidates[start:end] {
		ok, err := evalFilter(f.items[k], filter, names, values)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			items = append(items, copyItem(f.items[k]))
		}
	}

	var lastKey map[string]types.AttributeValue
	if end < len(candidates) {
		lastKey, _ = keyOf(f.items[candidates[end-1]])
	}
	return items, lastKey, nil
}

func (f *fakeAPI) popReadError() error {
	if len(f.readErrors) == 0 {
		return nil
	}
	err := f.readErrors[0]
	f.readErrors = f.readErrors[1:]
	return err
}

func (f *fakeAPI) Query(ctx context.Context, params *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	f.lastQuery = params
	if err := f.popReadError(); err != nil {
		return nil, err
	}

	m := reEquals.FindStringSubmatch(aws.ToString(params.KeyConditionExpression))
	if m == nil {
		return nil, fmt.Errorf("fake: unsupported key condition %q", aws.ToString(params.KeyConditionExpression))
	}
	keyAttr := params.ExpressionAttributeNames[m[1]]
	keyValue := params.ExpressionAttributeValues[m[2]]

	var candidates []string
	for _, k := range f.order {
		if reflect.DeepEqual(f.items[k][keyAttr], keyValue) {
			candidates = append(candidates, k)
		}
	}

	items, lastKey, err := f.page(candidates, params.ExclusiveStartKey, params.Limit,
		params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &sdk.QueryOutput{Items: items, LastEvaluatedKey: lastKey, Count: int32(len(items))}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, params *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scans++
	f.lastScan = params
	if err := f.popReadError(); err != nil {
		return nil, err
	}

	candidates := append([]string(nil), f.order...)
	items, lastKey, err := f.page(candidates, params.ExclusiveStartKey, params.Limit,
		params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &sdk.ScanOutput{Items: items, LastEvaluatedKey: lastKey, Count: int32(len(items))}, nil
}
