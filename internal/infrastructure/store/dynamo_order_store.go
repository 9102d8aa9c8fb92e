package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/storefront/internal/domain/order"
)

const (
	dynamoCustomerIndex   = "customer_index"
	dynamoIdempotencyPref = "idempotency#"
)

// DynamoOrderStore keeps one item per order plus one guard item per
// idempotency key, written in the same transaction so a key maps to at most
// one order.
type DynamoOrderStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoOrder is the DynamoDB item for an order. The order body is kept as
// JSON; only the attributes used by keys and indexes are lifted out.
type dynamoOrder struct {
	ID         string `dynamodbav:"id"`
	CustomerID string `dynamodbav:"customer_id"`
	OrderDate  string `dynamodbav:"order_date"`
	Status     string `dynamodbav:"status"`
	Data       string `dynamodbav:"data"`
}

// dynamoKeyGuard claims an idempotency key for an order.
type dynamoKeyGuard struct {
	ID      string `dynamodbav:"id"`
	OrderID string `dynamodbav:"order_id"`
}

func NewDynamoOrderStore(client *dynamodb.Client, tableName string) *DynamoOrderStore {
	return &DynamoOrderStore{client: client, tableName: tableName}
}

// ConnectDynamoDB builds a client from the default AWS credential chain.
// A non-empty endpoint points it at DynamoDB Local or LocalStack.
func ConnectDynamoDB(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// EnsureTable creates the orders table and its customer index when missing.
func (s *DynamoOrderStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("customer_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("order_date"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(dynamoCustomerIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("customer_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("order_date"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, 2*time.Minute)
}

func toDynamoOrder(o *order.Order) (map[string]types.AttributeValue, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return attributevalue.MarshalMap(dynamoOrder{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		OrderDate:  o.OrderDate.UTC().Format(time.RFC3339Nano),
		Status:     string(o.Status),
		Data:       string(data),
	})
}

func fromDynamoOrder(item map[string]types.AttributeValue) (*order.Order, error) {
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	var o order.Order
	if err := json.Unmarshal([]byte(do.Data), &o); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", do.ID, err)
	}
	return &o, nil
}

func (s *DynamoOrderStore) Create(ctx context.Context, o *order.Order) error {
	av, err := toDynamoOrder(o)
	if err != nil {
		return err
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	}}
	if o.IdempotencyKey != "" {
		guard, err := attributevalue.MarshalMap(dynamoKeyGuard{ID: dynamoIdempotencyPref + o.IdempotencyKey, OrderID: o.ID})
		if err != nil {
			return fmt.Errorf("failed to marshal idempotency key: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                guard,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return ErrDuplicateOrder
				}
			}
		}
		return fmt.Errorf("failed to put order: %w", err)
	}
	return nil
}

func (s *DynamoOrderStore) Update(ctx context.Context, o *order.Order) error {
	av, err := toDynamoOrder(o)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return order.ErrOrderNotFound
		}
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func (s *DynamoOrderStore) getItem(ctx context.Context, id string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, order.ErrOrderNotFound
	}
	return result.Item, nil
}

func (s *DynamoOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromDynamoOrder(item)
}

func (s *DynamoOrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	item, err := s.getItem(ctx, dynamoIdempotencyPref+key)
	if err != nil {
		return nil, err
	}
	var guard dynamoKeyGuard
	if err := attributevalue.UnmarshalMap(item, &guard); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency key: %w", err)
	}
	return s.Get(ctx, guard.OrderID)
}

func (s *DynamoOrderStore) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoCustomerIndex),
		KeyConditionExpression: aws.String("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: customerID},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	})

	orders := make([]*order.Order, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query orders: %w", err)
		}
		for _, item := range page.Items {
			o, err := fromDynamoOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// List scans the whole table, skipping idempotency guards.
func (s *DynamoOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("attribute_exists(customer_id)"),
	})

	orders := make([]*order.Order, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		for _, item := range page.Items {
			o, err := fromDynamoOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	order.SortNewestFirst(orders)
	return orders, nil
}
