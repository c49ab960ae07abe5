// Package dynamo implements the Table collaborator on DynamoDB (or a
// DynamoDB-compatible local endpoint). The schema is the classic
// single-table layout: partition key "pk", sort key "sk", everything else
// plain attributes.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore"
)

type Table struct {
	client *dynamodb.Client
	table  string
}

// NewClient builds a DynamoDB client. endpoint is optional and points the
// client at a local emulator; accessKey/secretKey are used as static
// credentials when both are set, otherwise the default chain applies.
func NewClient(ctx context.Context, region, endpoint, accessKey, secretKey string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func NewTable(client *dynamodb.Client, table string) *Table {
	return &Table{client: client, table: table}
}

// EnsureTable creates the table if it does not exist yet. Used by the dev
// server on startup against a local endpoint; in production the table is
// provisioned out of band.
func (t *Table) EnsureTable(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(t.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var exists *types.ResourceInUseException
		if errors.As(err, &exists) {
			return nil
		}
		return storeErr(err)
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func keyAttrs(key kvstore.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key.PK},
		"sk": &types.AttributeValueMemberS{Value: key.SK},
	}
}

func unmarshalItem(av map[string]types.AttributeValue) (kvstore.Item, error) {
	var item map[string]any
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, storeErr(err)
	}
	return item, nil
}

func (t *Table) Get(ctx context.Context, key kvstore.Key) (kvstore.Item, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.table),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if out.Item == nil {
		return nil, common.ErrNotFound
	}
	return unmarshalItem(out.Item)
}

func (t *Table) Put(ctx context.Context, key kvstore.Key, item kvstore.Item) error {
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return storeErr(err)
	}
	av["pk"] = &types.AttributeValueMemberS{Value: key.PK}
	av["sk"] = &types.AttributeValueMemberS{Value: key.SK}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      av,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (t *Table) Update(ctx context.Context, key kvstore.Key, assign kvstore.Item) error {
	names := make(map[string]string, len(assign))
	values := make(map[string]types.AttributeValue, len(assign))
	expr := "SET "

	i := 0
	for field, value := range assign {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return storeErr(err)
		}
		n := fmt.Sprintf("#f%d", i)
		v := fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += n + " = " + v
		names[n] = field
		values[v] = av
		i++
	}

	_, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.table),
		Key:                       keyAttrs(key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return common.ErrNotFound
		}
		return storeErr(err)
	}
	return nil
}

func (t *Table) BatchGet(ctx context.Context, keys []kvstore.Key) ([]kvstore.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pending := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, key := range keys {
		pending = append(pending, keyAttrs(key))
	}

	var items []kvstore.Item
	for len(pending) > 0 {
		out, err := t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				t.table: {Keys: pending},
			},
		})
		if err != nil {
			return nil, storeErr(err)
		}

		for _, av := range out.Responses[t.table] {
			item, err := unmarshalItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}

		pending = out.UnprocessedKeys[t.table].Keys
	}

	return items, nil
}

func (t *Table) QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int) ([]kvstore.Item, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(t.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	var items []kvstore.Item
	p := dynamodb.NewQueryPaginator(t.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		for _, av := range page.Items {
			item, err := unmarshalItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if limit > 0 && len(items) >= limit {
			items = items[:limit]
			break
		}
	}

	return items, nil
}

func (t *Table) Delete(ctx context.Context, key kvstore.Key) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key:       keyAttrs(key),
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}
