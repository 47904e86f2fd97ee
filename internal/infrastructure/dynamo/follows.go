package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fazil2161/pingme/internal/domain"
)

// FollowRepo provides typed DynamoDB operations for the follow-graph table.
// The edge key is (follower_id, followee_id).
type FollowRepo struct {
	client    DB
	tableName string
}

func NewFollowRepo(client DB, tableName string) *FollowRepo {
	return &FollowRepo{client: client, tableName: tableName}
}

func (r *FollowRepo) Put(ctx context.Context, f *domain.Follow) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal follow: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *FollowRepo) Delete(ctx context.Context, followerID, followeeID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("follower_id", followerID, "followee_id", followeeID),
	})
	return err
}

// Exists reports whether follower already follows followee.
func (r *FollowRepo) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("follower_id", followerID, "followee_id", followeeID),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// ListFollowers returns the user ids following followeeID, via the followee GSI.
func (r *FollowRepo) ListFollowers(ctx context.Context, followeeID string) ([]string, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("followee_id-index"),
		KeyConditionExpression: aws.String("followee_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: followeeID},
		},
	})
	if err != nil {
		return nil, err
	}
	followers := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if v, ok := item["follower_id"].(*types.AttributeValueMemberS); ok {
			followers = append(followers, v.Value)
		}
	}
	return followers, nil
}

// ListFollowing returns the user ids that followerID follows.
func (r *FollowRepo) ListFollowing(ctx context.Context, followerID string) ([]string, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("follower_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: followerID},
		},
	})
	if err != nil {
		return nil, err
	}
	following := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if v, ok := item["followee_id"].(*types.AttributeValueMemberS); ok {
			following = append(following, v.Value)
		}
	}
	return following, nil
}
