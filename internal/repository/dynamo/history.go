// Package dynamo stores the pipeline run history in a DynamoDB table with
// a string partition key PK and sort key SK. Items expire through the
// table's TTL attribute.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/churn-radar/internal/pipeline"
)

const (
	runsPartition = "RUNS"
	skLayout      = "2006-01-02T15:04:05.000000000Z"
	defaultTTL    = 90 * 24 * time.Hour
)

// API is the subset of the DynamoDB client used here.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Stage     string `dynamodbav:"Stage"`
	BatchID   string `dynamodbav:"BatchID"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// HistoryRepo implements pipeline.History.
type HistoryRepo struct {
	client API
	table  string
	ttl    time.Duration
}

// NewHistoryRepo writes to table. ttl <= 0 keeps records for 90 days.
func NewHistoryRepo(client API, table string, ttl time.Duration) *HistoryRepo {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &HistoryRepo{client: client, table: table, ttl: ttl}
}

func (r *HistoryRepo) Record(ctx context.Context, rec pipeline.RunRecord) error {
	at := rec.CreatedAt.UTC()
	av, err := attributevalue.MarshalMap(item{
		PK:        runsPartition,
		SK:        fmt.Sprintf("%s#%s#%s", at.Format(skLayout), rec.Stage, rec.BatchID),
		Stage:     rec.Stage,
		BatchID:   rec.BatchID,
		Data:      string(rec.Body),
		Timestamp: at.Format(time.RFC3339Nano),
		TTL:       at.Add(r.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting run record to DynamoDB: %w", err)
	}
	return nil
}

func (r *HistoryRepo) Recent(ctx context.Context, limit int) ([]pipeline.RunRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: runsPartition},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}

	recs := make([]pipeline.RunRecord, 0, len(out.Items))
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshaling run record: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, it.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("run record %s: %w", it.SK, err)
		}
		recs = append(recs, pipeline.RunRecord{
			Stage:     it.Stage,
			BatchID:   it.BatchID,
			CreatedAt: at,
			Body:      []byte(it.Data),
		})
	}
	return recs, nil
}
