package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-notify-api/internal/domain"
)

// TenantRepo provides typed DynamoDB operations for the tenants table.
type TenantRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTenantRepo(client *dynamodb.Client, tableName string) *TenantRepo {
	return &TenantRepo{client: client, tableName: tableName}
}

func (r *TenantRepo) Get(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, domain.ErrNotFound)
	}
	var t domain.Tenant
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepo) Put(ctx context.Context, t *domain.Tenant) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal tenant: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// MembershipRepo provides typed DynamoDB operations for the memberships table
// (user_id hash + tenant_id range).
type MembershipRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMembershipRepo(client *dynamodb.Client, tableName string) *MembershipRepo {
	return &MembershipRepo{client: client, tableName: tableName}
}

func (r *MembershipRepo) Get(ctx context.Context, userID, tenantID string) (*domain.Membership, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("user_id", userID, "tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("membership %s/%s: %w", userID, tenantID, domain.ErrNotFound)
	}
	var m domain.Membership
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepo) Put(ctx context.Context, m *domain.Membership) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}
