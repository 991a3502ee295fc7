package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-notify-api/internal/domain"
)

const tenantUserIndex = "tenant_user-created_at-index"

// NotificationRepo provides typed DynamoDB operations for the notifications
// table. The table key is tenant_id + notification_id, so every operation is
// tenant-scoped by construction: there is no code path that can touch another
// tenant's rows.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// TenantUserKey derives the GSI hash key for a tenant+user pair.
func TenantUserKey(tenantID, userID string) string {
	return tenantID + "#" + userID
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	n.TenantUser = TenantUserKey(n.TenantID, n.UserID)
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

// Get is a tenant-scoped point lookup. An id owned by a different tenant is
// indistinguishable from a missing one.
func (r *NotificationRepo) Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("tenant_id", tenantID, "notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns every non-expired notification for the tenant+user pair
// matching the filter, newest first. Expiry and date-range checks run on the
// unmarshalled rows so ordering and cut-offs are exact regardless of how the
// SDK encodes timestamps.
func (r *NotificationRepo) ListByUser(ctx context.Context, tenantID, userID string, f domain.NotificationFilter) ([]domain.Notification, error) {
	items, err := r.queryUser(ctx, tenantID, userID, f)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]domain.Notification, 0, len(items))
	for i := range items {
		n := &items[i]
		if n.Expired(now) {
			continue
		}
		if f.DateFrom != nil && n.CreatedAt.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && n.CreatedAt.After(*f.DateTo) {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UnreadCount counts unread, non-expired notifications for the tenant+user pair.
func (r *NotificationRepo) UnreadCount(ctx context.Context, tenantID, userID string) (int, error) {
	unread := false
	items, err := r.queryUser(ctx, tenantID, userID, domain.NotificationFilter{Read: &unread})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	count := 0
	for i := range items {
		if !items[i].Expired(now) {
			count++
		}
	}
	return count, nil
}

// MarkAsRead flips the read flag and stamps read_at. The condition on user_id
// makes an id belonging to another user fail as not-found.
func (r *NotificationRepo) MarkAsRead(ctx context.Context, tenantID, userID, notificationID string, readAt time.Time) (*domain.Notification, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"read":    true,
		"read_at": readAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	ue.Values[":u"] = &types.AttributeValueMemberS{Value: userID}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("tenant_id", tenantID, "notification_id", notificationID),
		ConditionExpression:       aws.String("user_id = :u"),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return nil, err
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkAllAsRead marks every currently-unread, non-expired notification for the
// tenant+user pair. Already-read rows are untouched, so their read_at stamps
// are preserved. Returns the number of rows updated.
func (r *NotificationRepo) MarkAllAsRead(ctx context.Context, tenantID, userID string, readAt time.Time) (int, error) {
	unread := false
	items, err := r.queryUser(ctx, tenantID, userID, domain.NotificationFilter{Read: &unread})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	updated := 0
	for i := range items {
		if items[i].Expired(now) {
			continue
		}
		if _, err := r.MarkAsRead(ctx, tenantID, userID, items[i].NotificationID, readAt); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Delete hard-deletes a single notification owned by the user.
func (r *NotificationRepo) Delete(ctx context.Context, tenantID, userID, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("tenant_id", tenantID, "notification_id", notificationID),
		ConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
	}
	return err
}

// DeleteAllRead hard-deletes every read notification for the tenant+user pair,
// expired ones included. Returns the number of rows deleted.
func (r *NotificationRepo) DeleteAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	read := true
	items, err := r.queryUser(ctx, tenantID, userID, domain.NotificationFilter{Read: &read})
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	// BatchWriteItem accepts at most 25 requests per call.
	deleted := 0
	for start := 0; start < len(items); start += 25 {
		end := start + 25
		if end > len(items) {
			end = len(items)
		}
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, n := range items[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: compositeKey("tenant_id", tenantID, "notification_id", n.NotificationID),
				},
			})
		}
		_, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: reqs},
		})
		if err != nil {
			return deleted, err
		}
		deleted += len(reqs)
	}
	return deleted, nil
}

// queryUser drains the tenant_user GSI for the pair, applying the read, type
// and priority filters server-side. The key condition carries the tenant
// component, so cross-tenant rows are never transferred.
func (r *NotificationRepo) queryUser(ctx context.Context, tenantID, userID string, f domain.NotificationFilter) ([]domain.Notification, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":tu": &types.AttributeValueMemberS{Value: TenantUserKey(tenantID, userID)},
	}

	var conds []string
	if f.Read != nil {
		names["#rd"] = "read"
		values[":rd"] = &types.AttributeValueMemberBOOL{Value: *f.Read}
		conds = append(conds, "#rd = :rd")
	}
	if len(f.Types) > 0 {
		names["#ty"] = "type"
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			ph := fmt.Sprintf(":ty%d", i)
			values[ph] = &types.AttributeValueMemberS{Value: string(t)}
			placeholders[i] = ph
		}
		conds = append(conds, fmt.Sprintf("#ty IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.Priority != "" {
		names["#pr"] = "priority"
		values[":pr"] = &types.AttributeValueMemberS{Value: string(f.Priority)}
		conds = append(conds, "#pr = :pr")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(tenantUserIndex),
		KeyConditionExpression:    aws.String("tenant_user = :tu"),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if len(conds) > 0 {
		input.FilterExpression = aws.String(strings.Join(conds, " AND "))
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	var all []domain.Notification
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return all, nil
}
