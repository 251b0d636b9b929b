package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/specimen/internal/shard"
	"github.com/jacentio/specimen/model"
)

// GraphDoc is the projection of an item used by graph construction:
// identity, display fields and the relationship list, nothing more.
type GraphDoc struct {
	ItemID        string                    `dynamodbav:"item_id"`
	Refcode       model.Refcode             `dynamodbav:"refcode"`
	ImmutableID   string                    `dynamodbav:"immutable_id"`
	Name          string                    `dynamodbav:"name"`
	Type          model.ItemType            `dynamodbav:"type"`
	CreatorIDs    []string                  `dynamodbav:"creator_ids"`
	Relationships []model.TypedRelationship `dynamodbav:"relationships"`
}

// graphDocProjection limits reads to the fields GraphDoc carries.
const graphDocProjection = "item_id, refcode, immutable_id, #n, #t, creator_ids, relationships"

func graphDocNames() map[string]string {
	return map[string]string{"#n": "name", "#t": "type"}
}

// Collection is a collection document.
type Collection struct {
	ImmutableID  string         `dynamodbav:"immutable_id"`
	CollectionID string         `dynamodbav:"collection_id"`
	Title        string         `dynamodbav:"title"`
	Type         model.ItemType `dynamodbav:"type"`
	CreatorIDs   []string       `dynamodbav:"creator_ids"`
}

// AllGraphDocs scans every item visible to the principal.
func (s *Store) AllGraphDocs(ctx context.Context, p Principal) ([]GraphDoc, error) {
	filter, names, values := mergeFilter("", graphDocNames(), nil, p, false)

	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.config.ItemsTable),
		ProjectionExpression:     aws.String(graphDocProjection),
		ExpressionAttributeNames: names,
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeValues = values
	}

	var docs []GraphDoc
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var pageDocs []GraphDoc
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageDocs); err != nil {
			return nil, fmt.Errorf("unmarshal graph docs: %w", err)
		}
		docs = append(docs, pageDocs...)
	}
	return docs, nil
}

// DocsByItemIDs batch-fetches graph projections for the given item IDs,
// dropping documents the principal cannot see.
func (s *Store) DocsByItemIDs(ctx context.Context, itemIDs []string, p Principal) ([]GraphDoc, error) {
	var docs []GraphDoc
	for start := 0; start < len(itemIDs); start += 100 {
		end := start + 100
		if end > len(itemIDs) {
			end = len(itemIDs)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range itemIDs[start:end] {
			keys = append(keys, map[string]types.AttributeValue{
				"item_id": &types.AttributeValueMemberS{Value: id},
			})
		}

		request := map[string]types.KeysAndAttributes{
			s.config.ItemsTable: {
				Keys:                     keys,
				ProjectionExpression:     aws.String(graphDocProjection),
				ExpressionAttributeNames: graphDocNames(),
			},
		}
		for len(request) > 0 {
			result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, err
			}
			var pageDocs []GraphDoc
			if err := attributevalue.UnmarshalListOfMaps(result.Responses[s.config.ItemsTable], &pageDocs); err != nil {
				return nil, fmt.Errorf("unmarshal graph docs: %w", err)
			}
			for _, doc := range pageDocs {
				if p.Visible(doc.Type, doc.CreatorIDs, false) {
					docs = append(docs, doc)
				}
			}
			request = result.UnprocessedKeys
		}
	}
	return docs, nil
}

// LinksTo returns every link record targeting any of the given references,
// i.e. every relationship some other document declares against them.
func (s *Store) LinksTo(ctx context.Context, targetRefs ...string) ([]LinkRecord, error) {
	var records []LinkRecord
	for _, ref := range targetRefs {
		if ref == "" {
			continue
		}
		for _, pk := range shard.LinkPKs(ref, s.config.LinkShards) {
			paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
				TableName:              aws.String(s.config.LinksTable),
				KeyConditionExpression: aws.String("pk = :pk"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk": &types.AttributeValueMemberS{Value: pk},
				},
			})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				var pageRecords []LinkRecord
				if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageRecords); err != nil {
					return nil, fmt.Errorf("unmarshal link records: %w", err)
				}
				records = append(records, pageRecords...)
			}
		}
	}
	return records, nil
}

// DocsMentioning fetches the graph projections of every document whose
// relationships reference any of the given targets.
func (s *Store) DocsMentioning(ctx context.Context, p Principal, targetRefs ...string) ([]GraphDoc, error) {
	links, err := s.LinksTo(ctx, targetRefs...)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var holderIDs []string
	for _, link := range links {
		if _, ok := seen[link.HolderItemID]; ok {
			continue
		}
		seen[link.HolderItemID] = struct{}{}
		holderIDs = append(holderIDs, link.HolderItemID)
	}
	return s.DocsByItemIDs(ctx, holderIDs, p)
}

// GetCollectionByID resolves a collection by its human-readable ID.
func (s *Store) GetCollectionByID(ctx context.Context, collectionID string, p Principal, userOnly bool) (*Collection, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.CollectionsTable),
		Key: map[string]types.AttributeValue{
			"collection_id": &types.AttributeValueMemberS{Value: collectionID},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return s.unmarshalVisibleCollection(result.Item, p, userOnly)
}

// GetCollectionByImmutableID resolves a collection via the immutable GSI.
func (s *Store) GetCollectionByImmutableID(ctx context.Context, immutableID string, p Principal, userOnly bool) (*Collection, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.CollectionsTable),
		IndexName:              aws.String(CollectionImmutableIndex),
		KeyConditionExpression: aws.String("immutable_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: immutableID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	return s.unmarshalVisibleCollection(result.Items[0], p, userOnly)
}

func (s *Store) unmarshalVisibleCollection(raw map[string]types.AttributeValue, p Principal, userOnly bool) (*Collection, error) {
	var c Collection
	if err := attributevalue.UnmarshalMap(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal collection: %w", err)
	}
	if !p.Visible(c.Type, c.CreatorIDs, userOnly) {
		return nil, ErrNotFound
	}
	return &c, nil
}

// MissingUsers returns the subset of the given user IDs that do not
// resolve to known users.
func (s *Store) MissingUsers(ctx context.Context, userIDs []string) ([]string, error) {
	found := map[string]struct{}{}
	for start := 0; start < len(userIDs); start += 100 {
		end := start + 100
		if end > len(userIDs) {
			end = len(userIDs)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range userIDs[start:end] {
			keys = append(keys, map[string]types.AttributeValue{
				"immutable_id": &types.AttributeValueMemberS{Value: id},
			})
		}

		request := map[string]types.KeysAndAttributes{
			s.config.UsersTable: {
				Keys:                 keys,
				ProjectionExpression: aws.String("immutable_id"),
			},
		}
		for len(request) > 0 {
			result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, err
			}
			for _, raw := range result.Responses[s.config.UsersTable] {
				if v, ok := raw["immutable_id"].(*types.AttributeValueMemberS); ok {
					found[v.Value] = struct{}{}
				}
			}
			request = result.UnprocessedKeys
		}
	}

	var missing []string
	for _, id := range userIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// GetUsers resolves user projections for the given IDs, preserving order.
// Unknown IDs are skipped.
func (s *Store) GetUsers(ctx context.Context, userIDs []string) ([]model.Person, error) {
	byID := map[string]model.Person{}
	for start := 0; start < len(userIDs); start += 100 {
		end := start + 100
		if end > len(userIDs) {
			end = len(userIDs)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range userIDs[start:end] {
			keys = append(keys, map[string]types.AttributeValue{
				"immutable_id": &types.AttributeValueMemberS{Value: id},
			})
		}

		request := map[string]types.KeysAndAttributes{
			s.config.UsersTable: {Keys: keys},
		}
		for len(request) > 0 {
			result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, err
			}
			for _, raw := range result.Responses[s.config.UsersTable] {
				var person struct {
					ImmutableID  string `dynamodbav:"immutable_id"`
					DisplayName  string `dynamodbav:"display_name"`
					ContactEmail string `dynamodbav:"contact_email"`
				}
				if err := attributevalue.UnmarshalMap(raw, &person); err != nil {
					return nil, fmt.Errorf("unmarshal user: %w", err)
				}
				byID[person.ImmutableID] = model.Person{
					ImmutableID:  person.ImmutableID,
					DisplayName:  person.DisplayName,
					ContactEmail: person.ContactEmail,
				}
			}
			request = result.UnprocessedKeys
		}
	}

	var people []model.Person
	for _, id := range userIDs {
		if person, ok := byID[id]; ok {
			people = append(people, person)
		}
	}
	return people, nil
}

// ListItems scans items of the given types visible to the principal.
func (s *Store) ListItems(ctx context.Context, p Principal, itemTypes ...model.ItemType) ([]model.Item, error) {
	names := map[string]string{"#t": "type"}
	values := map[string]types.AttributeValue{}
	typeFilter := ""
	for i, t := range itemTypes {
		placeholder := fmt.Sprintf(":lt%d", i)
		values[placeholder] = &types.AttributeValueMemberS{Value: string(t)}
		if i > 0 {
			typeFilter += " OR "
		}
		typeFilter += "#t = " + placeholder
	}
	filter, names, values := mergeFilter(typeFilter, names, values, p, false)

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.config.ItemsTable),
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var items []model.Item
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var pageItems []model.Item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		items = append(items, pageItems...)
	}
	return items, nil
}
