package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organic-hub/models"
	"organic-hub/repository"
)

// fakeDynamo keeps items keyed by user then product.
type fakeDynamo struct {
	items map[string]map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]map[string]types.AttributeValue{}}
}

func str(av types.AttributeValue) string {
	return av.(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	uid, pid := str(in.Item["user_id"]), str(in.Item["product_id"])
	if f.items[uid] == nil {
		f.items[uid] = map[string]map[string]types.AttributeValue{}
	}
	if _, ok := f.items[uid][pid]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[uid][pid] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.items[str(in.Key["user_id"])], str(in.Key["product_id"]))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out := &dynamodb.QueryOutput{}
	for _, item := range f.items[str(in.ExpressionAttributeValues[":uid"])] {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func TestWishlistAddListRemove(t *testing.T) {
	fake := newFakeDynamo()
	repo := repository.NewDynamoWishlistRepository(fake, "wishlists")
	ctx := context.Background()

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, repo.Add(ctx, models.WishlistItem{UserID: "u1", ProductID: "p1", AddedAt: older}))
	require.NoError(t, repo.Add(ctx, models.WishlistItem{UserID: "u1", ProductID: "p2", AddedAt: newer}))
	// duplicate add keeps the first timestamp
	require.NoError(t, repo.Add(ctx, models.WishlistItem{UserID: "u1", ProductID: "p1", AddedAt: newer.Add(time.Hour)}))

	items, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, "p1", items[1].ProductID)
	assert.True(t, items[1].AddedAt.Equal(older))

	require.NoError(t, repo.Remove(ctx, "u1", "p2"))
	items, err = repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWishlistItemAttributeNames(t *testing.T) {
	av, err := attributevalue.MarshalMap(models.WishlistItem{UserID: "u", ProductID: "p"})
	require.NoError(t, err)
	assert.Contains(t, av, "user_id")
	assert.Contains(t, av, "product_id")
	assert.Contains(t, av, "added_at")
}
