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

// PostRepo provides typed DynamoDB operations for the posts table.
type PostRepo struct {
	client    DB
	tableName string
}

func NewPostRepo(client DB, tableName string) *PostRepo {
	return &PostRepo{client: client, tableName: tableName}
}

func (r *PostRepo) Put(ctx context.Context, p *domain.Post) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PostRepo) Get(ctx context.Context, postID string) (*domain.Post, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("post_id", postID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("post not found: %w", domain.ErrNotFound)
	}
	var p domain.Post
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, fmt.Errorf("post not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// ListByAuthor returns a page of the author's posts, newest first. cursor is
// the encoded LastEvaluatedKey of the previous page; an empty next-cursor
// means no more pages. Same paging contract as the notification listing: the
// soft-delete filter runs after Limit, so pages are accumulated until limit
// posts are collected or the index is exhausted.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID string, limit int32, cursor string) ([]domain.Post, string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("author_id-created_at-index"),
		KeyConditionExpression: aws.String("author_id = :a"),
		FilterExpression:       aws.String("is_deleted = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a": &types.AttributeValueMemberS{Value: authorID},
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

	posts := make([]domain.Post, 0, limit)
	for {
		input.Limit = aws.Int32(limit - int32(len(posts)))
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, "", err
		}
		var page []domain.Post
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, "", err
		}
		posts = append(posts, page...)
		if out.LastEvaluatedKey == nil {
			return posts, "", nil
		}
		if int32(len(posts)) >= limit {
			next, err := encodePageCursor(out.LastEvaluatedKey)
			if err != nil {
				return nil, "", err
			}
			return posts, next, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// AddLike records userID in the like set and bumps the counter. Safe to call
// repeatedly: the string set absorbs duplicates, but callers check
// IsLikedBy first so the counter stays honest.
func (r *PostRepo) AddLike(ctx context.Context, postID, userID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("post_id", postID),
		UpdateExpression: aws.String("ADD liked_by :u, like_count :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u":   &types.AttributeValueMemberSS{Value: []string{userID}},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}

func (r *PostRepo) RemoveLike(ctx context.Context, postID, userID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("post_id", postID),
		UpdateExpression: aws.String("DELETE liked_by :u ADD like_count :minus"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u":     &types.AttributeValueMemberSS{Value: []string{userID}},
			":minus": &types.AttributeValueMemberN{Value: "-1"},
		},
	})
	return err
}

func (r *PostRepo) IncrementCommentCount(ctx context.Context, postID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("post_id", postID),
		UpdateExpression: aws.String("ADD comment_count :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}

func (r *PostRepo) SoftDelete(ctx context.Context, postID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldIsDeleted: true,
		"updated_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("post_id", postID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
