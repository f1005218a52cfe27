package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// UserRepo provides typed DynamoDB operations for the users table.
//
// Email and username uniqueness is enforced by guard items in a second table
// keyed by "email#<addr>" and "username#<name>", written in the same
// transaction as the user item.
type UserRepo struct {
	client     API
	tableName  string
	identities string
}

func NewUserRepo(client API, tableName, identitiesTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, identities: identitiesTable}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			r.claimIdentity(emailIdentity(u.Email), u.UserID),
			r.claimIdentity(usernameIdentity(u.Username), u.UserID),
		},
	})
	if err == nil {
		return nil
	}
	switch failedIndex(err) {
	case 0:
		return fmt.Errorf("user id collision: %w", domain.ErrConflict)
	case 1:
		return domain.ErrDuplicateEmail
	case 2:
		return domain.ErrDuplicateUsername
	}
	return fmt.Errorf("create user: %w", err)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getByIdentity(ctx, usernameIdentity(username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getByIdentity(ctx, emailIdentity(email))
}

// Update applies a partial update to the user selected by match. Changing
// email or username moves the matching guard item in the same transaction.
func (r *UserRepo) Update(ctx context.Context, match domain.UserMatch, updates map[string]interface{}) error {
	u, err := r.resolve(ctx, match)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	cond := "attribute_exists(user_id)"
	if match.CodeHash != nil {
		ue.Names["#code"] = domain.FieldVerificationCode
		ue.Values[":expected_code"] = &types.AttributeValueMemberS{Value: *match.CodeHash}
		cond += " AND #code = :expected_code"
	}
	if len(ue.Values) == 0 {
		ue.Values = nil
	}
	update := &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrUserID, u.UserID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}

	items := []types.TransactWriteItem{{Update: update}}
	var moved []error
	if v, ok := updates[domain.FieldEmail].(string); ok && v != u.Email {
		items = append(items, r.claimIdentity(emailIdentity(v), u.UserID), r.releaseIdentity(emailIdentity(u.Email)))
		moved = append(moved, domain.ErrDuplicateEmail)
	}
	if v, ok := updates[domain.FieldUsername].(string); ok && v != u.Username {
		items = append(items, r.claimIdentity(usernameIdentity(v), u.UserID), r.releaseIdentity(usernameIdentity(u.Username)))
		moved = append(moved, domain.ErrDuplicateUsername)
	}

	if len(items) == 1 {
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 update.TableName,
			Key:                       update.Key,
			UpdateExpression:          update.UpdateExpression,
			ConditionExpression:       update.ConditionExpression,
			ExpressionAttributeNames:  update.ExpressionAttributeNames,
			ExpressionAttributeValues: update.ExpressionAttributeValues,
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return r.staleMatch(match)
		}
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	idx := failedIndex(err)
	switch {
	case idx == 0:
		return r.staleMatch(match)
	case idx > 0 && idx%2 == 1:
		return moved[idx/2]
	}
	return fmt.Errorf("update user: %w", err)
}

func (r *UserRepo) DeleteByUsername(ctx context.Context, username string) error {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 strKey(attrUserID, u.UserID),
				ConditionExpression: aws.String("attribute_exists(user_id)"),
			}},
			r.releaseIdentity(emailIdentity(u.Email)),
			r.releaseIdentity(usernameIdentity(u.Username)),
		},
	})
	if failedIndex(err) == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// List scans the whole users table.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	input := &dynamodb.ScanInput{TableName: aws.String(r.tableName)}
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var page []domain.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		users = append(users, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return users, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *UserRepo) resolve(ctx context.Context, match domain.UserMatch) (*domain.User, error) {
	if match.Email != "" {
		return r.GetByEmail(ctx, match.Email)
	}
	if match.Username != "" {
		return r.GetByUsername(ctx, match.Username)
	}
	return nil, errors.New("empty user match")
}

func (r *UserRepo) staleMatch(match domain.UserMatch) error {
	if match.CodeHash != nil {
		return fmt.Errorf("verification code already consumed: %w", domain.ErrConflict)
	}
	return fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (r *UserRepo) claimIdentity(identity, userID string) types.TransactWriteItem {
	item := map[string]types.AttributeValue{
		attrIdentity: &types.AttributeValueMemberS{Value: identity},
		attrUserID:   &types.AttributeValueMemberS{Value: userID},
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:                aws.String(r.identities),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrIdentity},
	}}
}

func (r *UserRepo) releaseIdentity(identity string) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(r.identities),
		Key:       strKey(attrIdentity, identity),
	}}
}

// failedIndex returns the index of the transaction item whose condition
// failed, or -1.
func failedIndex(err error) int {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return -1
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == conditionalCheckFailed {
			return i
		}
	}
	return -1
}

// getByIdentity resolves a guard item to its user with two strongly
// consistent reads, so a lookup always sees the latest committed write.
func (r *UserRepo) getByIdentity(ctx context.Context, identity string) (*domain.User, error) {
	guard, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.identities),
		Key:            strKey(attrIdentity, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	owner, ok := guard.Item[attrUserID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrUserID, owner.Value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
