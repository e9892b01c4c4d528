package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ignite/memorial-crm/internal/docstore"
)

// maxTransactItems is DynamoDB's limit on a single TransactWriteItems call.
const maxTransactItems = 100

// documentItem is the table layout: one partition per collection, sorted by
// document id, with the document body stored as JSON.
type documentItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// DynamoStore implements docstore.Store on a single DynamoDB table keyed by
// PK (collection) and SK (document id).
//
// Merge writes read the current item first. A BatchSet larger than 100
// writes is committed as consecutive transactions of at most 100 items.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a store on tableName.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the commit clock.
func (s *DynamoStore) WithClock(now func() time.Time) *DynamoStore {
	s.now = now
	return s
}

func (s *DynamoStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	item, err := s.item(collection, id, data)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("creating %s document in DynamoDB: %w", collection, err)
	}
	return id, nil
}

func (s *DynamoStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	item, err := s.prepare(ctx, collection, id, data, merge)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing %s/%s to DynamoDB: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            documentKey(collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("getting %s/%s from DynamoDB: %w", collection, id, err)
	}
	if len(result.Item) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return decodeItem(result.Item)
}

func (s *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       documentKey(collection, id),
	})
	if err != nil {
		return fmt.Errorf("deleting %s/%s from DynamoDB: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoStore) BatchSet(ctx context.Context, ops []docstore.WriteOp) error {
	if err := docstore.ValidateBatch(ops); err != nil {
		return err
	}
	for start := 0; start < len(ops); start += maxTransactItems {
		end := min(start+maxTransactItems, len(ops))
		items := make([]types.TransactWriteItem, 0, end-start)
		for _, op := range ops[start:end] {
			item, err := s.prepare(ctx, op.Collection, op.ID, op.Data, op.Merge)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{TableName: aws.String(s.tableName), Item: item},
			})
		}
		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
			return fmt.Errorf("committing batch to DynamoDB: %w", err)
		}
	}
	return nil
}

// List pages natively on the sort key for unfiltered id-ordered queries and
// falls back to loading the partition otherwise.
func (s *DynamoStore) List(ctx context.Context, collection string, q docstore.Query) (docstore.Page, error) {
	if len(q.Filters) > 0 || q.OrderBy != "" || q.Limit <= 0 {
		docs, err := s.loadAll(ctx, collection)
		if err != nil {
			return docstore.Page{}, err
		}
		return docstore.Apply(docs, q)
	}

	var docs []docstore.Document
	var startKey map[string]types.AttributeValue
	if q.StartAfter != "" {
		startKey = documentKey(collection, q.StartAfter)
	}
	for len(docs) <= q.Limit {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    aws.String("PK = :pk"),
			ExpressionAttributeValues: partitionValues(collection),
			ExclusiveStartKey:         startKey,
			Limit:                     aws.Int32(int32(q.Limit + 1 - len(docs))),
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return docstore.Page{}, fmt.Errorf("querying %s from DynamoDB: %w", collection, err)
		}
		for _, item := range result.Items {
			doc, err := decodeItem(item)
			if err != nil {
				return docstore.Page{}, err
			}
			docs = append(docs, doc)
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	var page docstore.Page
	if len(docs) > q.Limit {
		docs = docs[:q.Limit]
		page.Next = docs[len(docs)-1].ID
	}
	page.Docs = docs
	return page, nil
}

func (s *DynamoStore) Count(ctx context.Context, collection string, filters []docstore.Filter) (int, error) {
	if len(filters) > 0 {
		docs, err := s.loadAll(ctx, collection)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, d := range docs {
			if docstore.Matches(d.Data, filters) {
				n++
			}
		}
		return n, nil
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    aws.String("PK = :pk"),
		ExpressionAttributeValues: partitionValues(collection),
		Select:                    types.SelectCount,
	})
	total := 0
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting %s in DynamoDB: %w", collection, err)
		}
		total += int(out.Count)
	}
	return total, nil
}

func (s *DynamoStore) loadAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    aws.String("PK = :pk"),
		ExpressionAttributeValues: partitionValues(collection),
		ConsistentRead:            aws.Bool(true),
	})
	var docs []docstore.Document
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying %s from DynamoDB: %w", collection, err)
		}
		for _, item := range out.Items {
			doc, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// prepare builds the item for a write, folding in the stored document when
// merging.
func (s *DynamoStore) prepare(ctx context.Context, collection, id string, data map[string]any, merge bool) (map[string]types.AttributeValue, error) {
	if merge {
		existing, err := s.Get(ctx, collection, id)
		switch {
		case err == nil:
			data = docstore.Merge(existing.Data, docstore.Prepare(data, s.now()))
		case errors.Is(err, docstore.ErrNotFound):
		default:
			return nil, err
		}
	}
	return s.item(collection, id, data)
}

func (s *DynamoStore) item(collection, id string, data map[string]any) (map[string]types.AttributeValue, error) {
	now := s.now()
	body, err := json.Marshal(docstore.Prepare(data, now))
	if err != nil {
		return nil, fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	item, err := attributevalue.MarshalMap(documentItem{
		PK:        collection,
		SK:        id,
		Data:      string(body),
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s/%s: %w", collection, id, err)
	}
	return item, nil
}

func decodeItem(av map[string]types.AttributeValue) (docstore.Document, error) {
	var item documentItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return docstore.Document{}, fmt.Errorf("unmarshaling item: %w", err)
	}
	data := map[string]any{}
	if strings.TrimSpace(item.Data) != "" {
		if err := json.Unmarshal([]byte(item.Data), &data); err != nil {
			return docstore.Document{}, fmt.Errorf("decoding %s/%s: %w", item.PK, item.SK, err)
		}
	}
	return docstore.Document{ID: item.SK, Data: data}, nil
}

func documentKey(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: collection},
		"SK": &types.AttributeValueMemberS{Value: id},
	}
}

func partitionValues(collection string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: collection},
	}
}
