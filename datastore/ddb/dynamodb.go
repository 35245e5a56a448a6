/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/peoplestore/datastore"
	storeerrors "github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/registry"
	"github.com/suparena/peoplestore/storagemodels"
)

// Attribute names written by the datastore next to the entity fields.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
)

// API is the subset of the DynamoDB client used by DynamodbDataStore.
// *dynamodb.Client implements it.
type API interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
}

// DynamodbDataStore implements datastore.DataStore[T] on a single DynamoDB table.
type DynamodbDataStore[T any] struct {
	client    API
	tableName string
	l         *zap.Logger
}

var _ datastore.DataStore[struct{}] = (*DynamodbDataStore[struct{}])(nil)

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

// expandMacros fills every template of indexMap with the attribute values of item.
func expandMacros(indexMap map[string]string, item map[string]types.AttributeValue) map[string]string {
	res := make(map[string]string, len(indexMap))

	for fieldName, template := range indexMap {
		res[fieldName] = macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			key := strings.Trim(macro, "{}")

			switch tv := item[key].(type) {
			case *types.AttributeValueMemberS:
				return tv.Value
			case *types.AttributeValueMemberN:
				return tv.Value
			case *types.AttributeValueMemberBOOL:
				return fmt.Sprintf("%v", tv.Value)
			default:
				// missing, NULL, binary, lists and sets do not render into keys
				return ""
			}
		})
	}

	return res
}

// expandStringKey replaces every macro of the PK and SK templates with key.
func expandStringKey(indexMap map[string]string, key string) map[string]string {
	expanded := make(map[string]string, 2)
	for _, field := range []string{attrPK, attrSK} {
		if template, ok := indexMap[field]; ok {
			expanded[field] = macroPattern.ReplaceAllLiteralString(template, key)
		}
	}
	return expanded
}

// buildKeyFromExpanded builds a DynamoDB key from the expanded index map.
func buildKeyFromExpanded(expanded map[string]string) (map[string]types.AttributeValue, error) {
	pk, okPK := expanded[attrPK]
	sk, okSK := expanded[attrSK]

	if !okPK || !okSK || pk == "" || sk == "" {
		return nil, fmt.Errorf("expanded index map missing valid PK or SK")
	}

	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}, nil
}

// keyOf returns the primary key attributes of a stored item.
func keyOf(item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	pk, okPK := item[attrPK]
	sk, okSK := item[attrSK]
	if !okPK || !okSK {
		return nil, fmt.Errorf("item has no PK or SK attribute")
	}
	return map[string]types.AttributeValue{attrPK: pk, attrSK: sk}, nil
}

// NewDynamoDBClient initializes a DynamoDB client.
// Static credentials are used when awsAccessKey is set, the default chain otherwise.
// A non-empty endpoint overrides the service endpoint, e.g. for DynamoDB Local.
func NewDynamoDBClient(ctx context.Context, awsAccessKey, awsSecretKey, awsRegion, endpoint string) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(awsRegion),
	}
	if awsAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsAccessKey, awsSecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewDynamodbDataStore constructs a new DynamodbDataStore for type T.
// T must have an index map registered with PK and SK templates.
func NewDynamodbDataStore[T any](client API, tableName string, logger *zap.Logger) (*DynamodbDataStore[T], error) {
	if client == nil {
		return nil, storeerrors.NewValidationError("client", "is required")
	}
	if tableName == "" {
		return nil, storeerrors.NewValidationError("tableName", "is required")
	}

	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %s", storeerrors.ErrNoIndexMap, registry.EntityName[T]())
	}
	if indexMap[attrPK] == "" || indexMap[attrSK] == "" {
		return nil, storeerrors.NewValidationError("indexMap", "PK and SK templates are required")
	}
	if err := checkGSIKeys(indexMap); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &DynamodbDataStore[T]{
		client:    client,
		tableName: tableName,
		l:         logger.Named("ddb").With(zap.String("table", tableName)),
	}, nil
}

func (d *DynamodbDataStore[T]) indexMap() (map[string]string, error) {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %s", storeerrors.ErrNoIndexMap, registry.EntityName[T]())
	}
	return indexMap, nil
}

// keyForID builds the primary key of the document with identifier id.
func (d *DynamodbDataStore[T]) keyForID(id string) (map[string]types.AttributeValue, error) {
	if id == "" {
		return nil, storeerrors.NewValidationError(storagemodels.IDField, "is required")
	}
	indexMap, err := d.indexMap()
	if err != nil {
		return nil, err
	}
	key, err := buildKeyFromExpanded(expandStringKey(indexMap, id))
	if err != nil {
		return nil, fmt.Errorf("failed to build key: %w", err)
	}
	return key, nil
}

// marshalItem encodes entity with its identifier, entity type and expanded index keys.
func (d *DynamodbDataStore[T]) marshalItem(entity *T, id string) (map[string]types.AttributeValue, error) {
	indexMap, err := d.indexMap()
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	av[storagemodels.IDField] = &types.AttributeValueMemberS{Value: id}
	av[attrEntityType] = &types.AttributeValueMemberS{Value: registry.EntityName[T]()}

	for k, v := range expandMacros(indexMap, av) {
		if v == "" {
			// an empty string is not a valid key attribute value
			continue
		}
		av[k] = &types.AttributeValueMemberS{Value: v}
	}
	return av, nil
}

// unmarshalItem decodes a stored item into a new T.
func unmarshalItem[T any](item map[string]types.AttributeValue) (*T, error) {
	result := new(T)
	if err := attributevalue.UnmarshalMap(item, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	if idAttr, ok := item[storagemodels.IDField].(*types.AttributeValueMemberS); ok {
		doc, err := datastore.AsDocument(result)
		if err != nil {
			return nil, err
		}
		if err := doc.AssignID(idAttr.Value); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Insert stores a new document. It fails with errors.AlreadyExistsError if the key is taken.
func (d *DynamodbDataStore[T]) Insert(ctx context.Context, entity *T) error {
	if entity == nil {
		return storeerrors.NewValidationError("", "nil document")
	}
	if err := datastore.Validate(entity); err != nil {
		return err
	}

	id, err := datastore.EnsureID(entity)
	if err != nil {
		return err
	}

	item, err := d.marshalItem(entity, id)
	if err != nil {
		return err
	}

	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return storeerrors.NewAlreadyExistsError(registry.EntityName[T](), id, err)
		}
		return storeerrors.NewStoreError("putItem", err)
	}
	return nil
}

// InsertMany stores documents one by one, stopping at the first failure.
func (d *DynamodbDataStore[T]) InsertMany(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := d.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// GetOne retrieves a single item by identifier.
// It returns nil, nil if no item is found.
func (d *DynamodbDataStore[T]) GetOne(ctx context.Context, id string) (*T, error) {
	key, err := d.keyForID(id)
	if err != nil {
		return nil, err
	}

	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName: &d.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, storeerrors.NewStoreError("getItem", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	return unmarshalItem[T](out.Item)
}

// Save replaces the stored document. It fails with errors.NotFoundError if there is none.
func (d *DynamodbDataStore[T]) Save(ctx context.Context, entity *T) error {
	if err := datastore.Validate(entity); err != nil {
		return err
	}

	doc, err := datastore.AsDocument(entity)
	if err != nil {
		return err
	}
	id := doc.DocumentID()
	if id == "" {
		return storeerrors.NewValidationError(storagemodels.IDField, "is required")
	}

	item, err := d.marshalItem(entity, id)
	if err != nil {
		return err
	}

	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return storeerrors.NewNotFoundError(registry.EntityName[T](), id)
		}
		return storeerrors.NewStoreError("putItem", err)
	}
	return nil
}

// buildUpdateExpression transforms a map of field->value into:
//   - an "update expression" (e.g., "SET #u0 = :u0, #u1 = :u1")
//   - a corresponding map of expression attribute names
//   - a corresponding map of expression attribute values
//
// Fields are emitted in sorted order.
func buildUpdateExpression(updates map[string]any) (string,
	map[string]string,
	map[string]types.AttributeValue,
	error) {

	if len(updates) == 0 {
		return "", nil, nil, errors.New("no updates provided")
	}

	fields := make([]string, 0, len(updates))
	for f := range updates {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	setClauses := make([]string, 0, len(updates))
	exprAttrNames := make(map[string]string, len(updates))
	exprAttrValues := make(map[string]types.AttributeValue, len(updates))

	for i, field := range fields {
		placeholderName := fmt.Sprintf("#u%d", i)
		placeholderValue := fmt.Sprintf(":u%d", i)

		av, err := attributevalue.Marshal(updates[field])
		if err != nil {
			return "", nil, nil, fmt.Errorf("unhandled update value for field %q: %w", field, err)
		}

		setClauses = append(setClauses, fmt.Sprintf("%s = %s", placeholderName, placeholderValue))
		exprAttrNames[placeholderName] = field
		exprAttrValues[placeholderValue] = av
	}

	return "SET " + strings.Join(setClauses, ", "), exprAttrNames, exprAttrValues, nil
}

// maxUpdateAttempts bounds the read-then-update rounds of FindOneAndUpdate.
const maxUpdateAttempts = 3

// errItemChanged reports that the item read by FindOneAndUpdate no longer matched at update time.
var errItemChanged = errors.New("matched item changed before update")

// FindOneAndUpdate sets fields on the first matching item with UpdateItem and returns
// the item as it is after the update. Index keys derived from updated fields are rewritten too.
//
// The update is conditioned on the item still matching filter. When another writer changes
// the item in between, the read is repeated; after maxUpdateAttempts conflicting rounds
// it fails with errors.ConditionFailedError.
func (d *DynamodbDataStore[T]) FindOneAndUpdate(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, error) {
	if len(updates) == 0 {
		return nil, storeerrors.NewValidationError("updates", "no updates provided")
	}
	for f := range updates {
		switch f {
		case storagemodels.IDField, attrPK, attrSK, attrEntityType:
			return nil, storeerrors.NewValidationError(f, "is immutable")
		}
	}

	var condition string
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		res, cond, err := d.updateFirst(ctx, filter, updates)
		if !errors.Is(err, errItemChanged) {
			return res, err
		}
		condition = cond
		d.l.Debug("Matched item changed before update", zap.Int("attempt", attempt))
	}

	return nil, storeerrors.NewConditionFailedError("findOneAndUpdate", condition)
}

// updateFirst runs one read-then-update round of FindOneAndUpdate.
// It returns errItemChanged and the condition expression when the condition check fails.
func (d *DynamodbDataStore[T]) updateFirst(ctx context.Context, filter storagemodels.Filter, updates map[string]any) (*T, string, error) {
	items, err := d.findItems(ctx, &storagemodels.Query{Filter: filter, Limit: 1})
	if err != nil {
		return nil, "", err
	}
	if len(items) == 0 {
		return nil, "", nil
	}
	current := items[0]

	key, err := keyOf(current)
	if err != nil {
		return nil, "", err
	}

	// validate the merged document before writing
	merged := make(map[string]types.AttributeValue, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("unhandled update value for field %q: %w", k, err)
		}
		merged[k] = av
	}
	entity, err := unmarshalItem[T](merged)
	if err != nil {
		return nil, "", err
	}
	if err = datastore.Validate(entity); err != nil {
		return nil, "", err
	}

	indexMap, err := d.indexMap()
	if err != nil {
		return nil, "", err
	}

	set := make(map[string]any, len(updates))
	for k, v := range updates {
		set[k] = v
	}
	for k, v := range expandMacros(indexMap, merged) {
		if k == attrPK || k == attrSK || v == "" {
			continue
		}
		if old, ok := current[k].(*types.AttributeValueMemberS); !ok || old.Value != v {
			set[k] = v
		}
	}

	updateExpr, exprAttrNames, exprAttrValues, err := buildUpdateExpression(set)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build update expression: %w", err)
	}

	b := newExprBuilder()
	clauses := []string{"attribute_exists(PK)"}
	for _, c := range filter {
		clause, err := b.guard(c, current)
		if err != nil {
			return nil, "", err
		}
		clauses = append(clauses, clause)
	}
	condition := strings.Join(clauses, " AND ")
	for k, v := range b.names {
		exprAttrNames[k] = v
	}
	for k, v := range b.values {
		exprAttrValues[k] = v
	}

	out, err := d.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName:                 &d.tableName,
		Key:                       key,
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  exprAttrNames,
		ExpressionAttributeValues: exprAttrValues,
		ConditionExpression:       &condition,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		// deleted or changed to no longer match between the read and the update
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, condition, errItemChanged
		}
		return nil, "", storeerrors.NewStoreError("updateItem", err)
	}

	res, err := unmarshalItem[T](out.Attributes)
	return res, "", err
}

// Delete removes an item by identifier and returns it, or nil if there was none.
func (d *DynamodbDataStore[T]) Delete(ctx context.Context, id string) (*T, error) {
	key, err := d.keyForID(id)
	if err != nil {
		return nil, err
	}

	old, err := d.deleteKey(ctx, key)
	if err != nil || len(old) == 0 {
		return nil, err
	}
	return unmarshalItem[T](old)
}

func (d *DynamodbDataStore[T]) deleteKey(ctx context.Context, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out, err := d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:    &d.tableName,
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, storeerrors.NewStoreError("deleteItem", err)
	}
	return out.Attributes, nil
}

// DeleteMany removes all items matching filter. Matching items are found first,
// then deleted one by one; DeletedCount counts items that still existed.
func (d *DynamodbDataStore[T]) DeleteMany(ctx context.Context, filter storagemodels.Filter) (*storagemodels.DeleteResult, error) {
	items, err := d.findItems(ctx, &storagemodels.Query{Filter: filter})
	if err != nil {
		return nil, err
	}

	res := &storagemodels.DeleteResult{Acknowledged: true}
	for _, item := range items {
		key, err := keyOf(item)
		if err != nil {
			return nil, err
		}
		old, err := d.deleteKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(old) > 0 {
			res.DeletedCount++
		}
	}

	d.l.Debug("Items deleted.", zap.Int("matched", len(items)), zap.Int64("deleted", res.DeletedCount))
	return res, nil
}

// Close is a no-op; the DynamoDB client holds no connection state.
func (d *DynamodbDataStore[T]) Close(ctx context.Context) error {
	return nil
}
