// Package dynamo persists user profiles in a DynamoDB table keyed by email.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	auth "github.com/grantlab/auth-go"
)

// api is the slice of the DynamoDB SDK surface the store uses.
type api interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store implements auth.ProfileStore on a DynamoDB table.
type Store struct {
	api   api
	table string
}

var _ auth.ProfileStore = (*Store)(nil)

// record is the table item layout. The role is stored under "position" to
// match the grant-tracking data model the table is shared with.
type record struct {
	Email string `dynamodbav:"email"`
	Role  string `dynamodbav:"position"`
	Name  string `dynamodbav:"name,omitempty"`
}

// New creates a profile store over the given table.
func New(client *dynamodb.Client, table string) *Store {
	return &Store{api: client, table: table}
}

// Get loads the profile for an email, or auth.ErrProfileNotFound.
func (s *Store) Get(ctx context.Context, email string) (*auth.Profile, error) {
	if s.table == "" {
		return nil, &auth.ConfigError{Missing: "profile table name"}
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"email": &ddbtypes.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auth/dynamo: get profile: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, auth.ErrProfileNotFound
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("auth/dynamo: decode profile: %w", err)
	}
	return &auth.Profile{Email: rec.Email, Role: rec.Role, Name: rec.Name}, nil
}

// Put writes a profile, replacing any existing item for that email.
func (s *Store) Put(ctx context.Context, profile *auth.Profile) error {
	if s.table == "" {
		return &auth.ConfigError{Missing: "profile table name"}
	}

	item, err := attributevalue.MarshalMap(record{
		Email: profile.Email,
		Role:  profile.Role,
		Name:  profile.Name,
	})
	if err != nil {
		return fmt.Errorf("auth/dynamo: encode profile: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("auth/dynamo: put profile: %w", err)
	}
	return nil
}
