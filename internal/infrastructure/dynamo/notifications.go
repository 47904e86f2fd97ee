package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fazil2161/pingme/internal/domain"
)

const recipientCreatedIndex = "recipient_id-created_at-index"

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    DB
	tableName string
}

func NewNotificationRepo(client DB, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// FindRecent queries the recipient GSI for a non-deleted notification with
// the same (sender, type, related post, related comment) tuple created at or
// after since. Used by the dispatcher to collapse rapid repeats of the same
// action into one record.
//
// No Limit is set on the query: DynamoDB counts Limit against items
// evaluated before the FilterExpression runs, so Limit 1 would only ever
// inspect the oldest notification in the window regardless of whether it
// matches the tuple. Instead the whole window is paged until a match.
func (r *NotificationRepo) FindRecent(ctx context.Context, recipientID, senderID string, t domain.NotificationType, relatedPostID, relatedCommentID string, since time.Time) (*domain.Notification, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(recipientCreatedIndex),
		KeyConditionExpression: aws.String("recipient_id = :r AND created_at >= :since"),
		FilterExpression:       aws.String("sender_id = :s AND #t = :t AND related_post_id = :p AND related_comment_id = :c AND is_deleted = :f"),
		ExpressionAttributeNames: map[string]string{
			"#t": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r":     &types.AttributeValueMemberS{Value: recipientID},
			":since": &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)},
			":s":     &types.AttributeValueMemberS{Value: senderID},
			":t":     &types.AttributeValueMemberS{Value: string(t)},
			":p":     &types.AttributeValueMemberS{Value: relatedPostID},
			":c":     &types.AttributeValueMemberS{Value: relatedCommentID},
			":f":     &types.AttributeValueMemberBOOL{Value: false},
		},
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		if len(out.Items) > 0 {
			var n domain.Notification
			if err := attributevalue.UnmarshalMap(out.Items[0], &n); err != nil {
				return nil, err
			}
			return &n, nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, fmt.Errorf("no recent notification: %w", domain.ErrNotFound)
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ListByRecipient returns a page of non-deleted notifications, newest first.
// cursor is the encoded LastEvaluatedKey of the previous page; an empty
// next-cursor means no more pages. Because the is_deleted/is_read filter runs
// after Limit, a single query can come back short (or empty) while records
// remain, so pages are accumulated until limit items are collected or the
// index is exhausted.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error) {
	filter := "is_deleted = :f"
	if unreadOnly {
		filter += " AND is_read = :f"
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(recipientCreatedIndex),
		KeyConditionExpression: aws.String("recipient_id = :r"),
		FilterExpression:       aws.String(filter),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberS{Value: recipientID},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if cursor != "" {
		start, err := decodePageCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = start
	}

	notifications := make([]domain.Notification, 0, limit)
	for {
		input.Limit = aws.Int32(limit - int32(len(notifications)))
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, "", err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, "", err
		}
		notifications = append(notifications, page...)
		if out.LastEvaluatedKey == nil {
			return notifications, "", nil
		}
		if int32(len(notifications)) >= limit {
			next, err := encodePageCursor(out.LastEvaluatedKey)
			if err != nil {
				return nil, "", err
			}
			return notifications, next, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// UnreadCount sums unread, non-deleted notifications across every query
// page. A query stops at 1 MB of evaluated data, so large inboxes span
// multiple pages.
func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(recipientCreatedIndex),
		KeyConditionExpression: aws.String("recipient_id = :r"),
		FilterExpression:       aws.String("is_read = :f AND is_deleted = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberS{Value: recipientID},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
		Select: types.SelectCount,
	}
	total := 0
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *NotificationRepo) Update(ctx context.Context, notificationID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// ListReadBefore scans for read notifications created before cutoff. Only
// used by the retention sweep, so a scan is acceptable. Pages are followed
// until limit matches are collected or the table is exhausted.
func (r *NotificationRepo) ListReadBefore(ctx context.Context, cutoff time.Time, limit int32) ([]domain.Notification, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("is_read = :t AND created_at < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":      &types.AttributeValueMemberBOOL{Value: true},
			":cutoff": &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339Nano)},
		},
		Limit: aws.Int32(limit),
	}
	notifications := make([]domain.Notification, 0, limit)
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
		if out.LastEvaluatedKey == nil || int32(len(notifications)) >= limit {
			return notifications, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *NotificationRepo) HardDelete(ctx context.Context, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	return err
}
