// Package store provides the DynamoDB persistence layer for item
// documents, relationship link mirrors and refcode uniqueness records.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/internal/shard"
	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/model"
)

// Store provides DynamoDB operations over the item, link, constraint,
// collection and user tables.
type Store struct {
	client *dynamodb.Client
	config Config
	logger *zap.Logger
}

// New creates a new Store instance.
func New(client *dynamodb.Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		logger: logger.Get(),
	}
}

// CreateItem persists a fully assembled item atomically with its refcode
// uniqueness record and relationship mirror records. The conditional puts
// are the final arbiter for both uniqueness invariants: the constraint
// table rejects refcode reuse and the items table rejects item_id reuse,
// regardless of any advisory pre-checks the caller performed.
func (s *Store) CreateItem(ctx context.Context, it *model.Item) error {
	doc, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	items := []types.TransactWriteItem{}

	// Index 0: refcode constraint.
	refcodeIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.ConstraintsTable),
			Item: map[string]types.AttributeValue{
				"pk":      &types.AttributeValueMemberS{Value: shard.ConstraintPK(string(it.Refcode))},
				"sk":      &types.AttributeValueMemberS{Value: "REFCODE"},
				"refcode": &types.AttributeValueMemberS{Value: string(it.Refcode)},
				"item_id": &types.AttributeValueMemberS{Value: it.ItemID},
			},
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	})

	// Index 1: the item document itself.
	itemIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.config.ItemsTable),
			Item:                doc,
			ConditionExpression: aws.String("attribute_not_exists(item_id)"),
		},
	})

	// Relationship mirror records.
	for _, record := range s.linkRecords(it) {
		linkItem, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("marshal link record: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.LinksTable),
				Item:      linkItem,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	return mapCreateTransactionError(err, refcodeIndex, itemIndex)
}

// GetItem retrieves a full item document by item_id, applying the
// principal's visibility rules.
func (s *Store) GetItem(ctx context.Context, itemID string, p Principal, userOnly bool) (*model.Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.ItemsTable),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return s.unmarshalVisibleItem(result.Item, p, userOnly)
}

// GetItemByRefcode retrieves a full item document via the refcode GSI.
func (s *Store) GetItemByRefcode(ctx context.Context, refcode model.Refcode, p Principal, userOnly bool) (*model.Item, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.ItemsTable),
		IndexName:              aws.String(RefcodeIndex),
		KeyConditionExpression: aws.String("refcode = :rc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rc": &types.AttributeValueMemberS{Value: string(refcode)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	return s.unmarshalVisibleItem(result.Items[0], p, userOnly)
}

// ItemIDExists reports whether any document holds the given item_id.
// This is an advisory fast path; the create transaction is authoritative.
func (s *Store) ItemIDExists(ctx context.Context, itemID string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.ItemsTable),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
		ProjectionExpression: aws.String("item_id"),
	})
	if err != nil {
		return false, err
	}
	return result.Item != nil, nil
}

// RefcodeExists reports whether a refcode has been allocated.
// This is an advisory fast path; the create transaction is authoritative.
func (s *Store) RefcodeExists(ctx context.Context, refcode model.Refcode) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.ConstraintsTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: shard.ConstraintPK(string(refcode))},
			"sk": &types.AttributeValueMemberS{Value: "REFCODE"},
		},
		ProjectionExpression: aws.String("pk"),
	})
	if err != nil {
		return false, err
	}
	return result.Item != nil, nil
}

// UpdateItem replaces an item document and rewrites its relationship
// mirror records. oldRelationships must be the relationships of the
// stored document being replaced, so stale mirrors can be deleted.
func (s *Store) UpdateItem(ctx context.Context, it *model.Item, oldRelationships []model.TypedRelationship) error {
	doc, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.config.ItemsTable),
			Item:                doc,
			ConditionExpression: aws.String("attribute_exists(item_id)"),
		},
	}}

	old := model.Item{ItemID: it.ItemID, Relationships: oldRelationships}
	oldKeys := map[string]LinkRecord{}
	for _, record := range s.linkRecords(&old) {
		oldKeys[record.PK+"|"+record.SK] = record
	}

	for _, record := range s.linkRecords(it) {
		key := record.PK + "|" + record.SK
		if _, kept := oldKeys[key]; kept {
			delete(oldKeys, key)
			continue
		}
		linkItem, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("marshal link record: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.LinksTable),
				Item:      linkItem,
			},
		})
	}

	for _, stale := range oldKeys {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.config.LinksTable),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: stale.PK},
					"sk": &types.AttributeValueMemberS{Value: stale.SK},
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var txErr *types.TransactionCanceledException
		if errors.As(err, &txErr) {
			for _, reason := range txErr.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return ErrNotFound
				}
			}
		}
		return err
	}
	return nil
}

// UpdateCreatorIDs sets the creator list of an item.
func (s *Store) UpdateCreatorIDs(ctx context.Context, itemID string, creatorIDs []string) error {
	ids, err := attributevalue.MarshalList(creatorIDs)
	if err != nil {
		return fmt.Errorf("marshal creator ids: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.ItemsTable),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
		UpdateExpression:    aws.String("SET creator_ids = :ids"),
		ConditionExpression: aws.String("attribute_exists(item_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ids": &types.AttributeValueMemberL{Value: ids},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

// DeleteItem removes an item document. Only creators (or admins) may
// delete; the permission check rides on the delete condition so there is
// no read-check-write race. Link mirrors and the refcode constraint are
// swept asynchronously from the table's stream.
func (s *Store) DeleteItem(ctx context.Context, itemID string, p Principal) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.ItemsTable),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
		ConditionExpression: aws.String("attribute_exists(item_id)"),
	}
	if !p.Admin {
		input.ConditionExpression = aws.String("attribute_exists(item_id) AND contains(creator_ids, :uid)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: p.UserID},
		}
	}

	_, err := s.client.DeleteItem(ctx, input)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrForbidden
	}
	return err
}

// DeleteConstraint removes a refcode uniqueness record. Used by the
// link sweeper after an item document is removed.
func (s *Store) DeleteConstraint(ctx context.Context, refcode model.Refcode) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.ConstraintsTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: shard.ConstraintPK(string(refcode))},
			"sk": &types.AttributeValueMemberS{Value: "REFCODE"},
		},
	})
	return err
}

// DeleteLinksForHolder removes the mirror records a deleted item held for
// the given relationships.
func (s *Store) DeleteLinksForHolder(ctx context.Context, holderItemID string, relationships []model.TypedRelationship) error {
	holder := model.Item{ItemID: holderItemID, Relationships: relationships}
	for _, record := range s.linkRecords(&holder) {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.config.LinksTable),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: record.PK},
				"sk": &types.AttributeValueMemberS{Value: record.SK},
			},
		})
		if err != nil {
			return fmt.Errorf("delete link %s/%s: %w", record.PK, record.SK, err)
		}
	}
	return nil
}

// unmarshalVisibleItem decodes an item document and applies visibility.
func (s *Store) unmarshalVisibleItem(raw map[string]types.AttributeValue, p Principal, userOnly bool) (*model.Item, error) {
	var it model.Item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if !p.Visible(it.Type, it.CreatorIDs, userOnly) {
		return nil, ErrNotFound
	}
	return &it, nil
}

// mapCreateTransactionError maps DynamoDB transaction cancellations for
// CreateItem onto the uniqueness sentinel errors, using the transaction
// item indices of the refcode constraint and the item put.
func mapCreateTransactionError(err error, refcodeIndex, itemIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == refcodeIndex {
					return ErrRefcodeTaken
				}
				if i == itemIndex {
					return ErrItemIDTaken
				}
			}
		}
	}

	return err
}
