package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}
func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

// --- helpers ---

func cancelledAt(idx, n int) error {
	reasons := make([]types.CancellationReason, n)
	for i := range reasons {
		reasons[i].Code = aws.String("None")
	}
	reasons[idx].Code = aws.String(conditionalCheckFailed)
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func getFrom(table string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToString(in.TableName) == table && aws.ToBool(in.ConsistentRead)
	})
}

// expectLookup stubs the guard read and the user read for u.
func expectLookup(t *testing.T, api *mockAPI, u domain.User) {
	t.Helper()
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, getFrom("user_identities")).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			attrIdentity: &types.AttributeValueMemberS{Value: "any"},
			attrUserID:   &types.AttributeValueMemberS{Value: u.UserID},
		},
	}, nil)
	api.On("GetItem", mock.Anything, getFrom("users")).Return(&dynamodb.GetItemOutput{Item: item}, nil)
}

func identityOf(item types.TransactWriteItem) string {
	if item.Put != nil {
		return item.Put.Item[attrIdentity].(*types.AttributeValueMemberS).Value
	}
	return item.Delete.Key[attrIdentity].(*types.AttributeValueMemberS).Value
}

var stored = domain.User{UserID: "u1", Username: "alice", Email: "alice@x.com", PasswordHash: "h"}

// --- Create ---

func TestCreate_WritesUserAndGuards(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 3 &&
			identityOf(in.TransactItems[1]) == "email#alice@x.com" &&
			identityOf(in.TransactItems[2]) == "username#alice"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	repo := NewUserRepo(api, "users", "user_identities")
	u := stored
	require.NoError(t, repo.Create(context.Background(), &u))
	api.AssertExpectations(t)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelledAt(1, 3))

	u := stored
	err := NewUserRepo(api, "users", "user_identities").Create(context.Background(), &u)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestCreate_DuplicateUsername(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelledAt(2, 3))

	u := stored
	err := NewUserRepo(api, "users", "user_identities").Create(context.Background(), &u)
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestCreate_InfrastructureError(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	u := stored
	err := NewUserRepo(api, "users", "user_identities").Create(context.Background(), &u)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

// --- lookups ---

func TestGetByEmail_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, getFrom("user_identities")).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewUserRepo(api, "users", "user_identities").GetByEmail(context.Background(), "x@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	api.AssertNotCalled(t, "GetItem", mock.Anything, getFrom("users"))
}

func TestGetByUsername_ReadsGuardThenUserConsistently(t *testing.T) {
	item, err := attributevalue.MarshalMap(stored)
	require.NoError(t, err)

	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		key, _ := in.Key[attrIdentity].(*types.AttributeValueMemberS)
		return aws.ToString(in.TableName) == "user_identities" && aws.ToBool(in.ConsistentRead) &&
			key != nil && key.Value == "username#alice"
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		attrIdentity: &types.AttributeValueMemberS{Value: "username#alice"},
		attrUserID:   &types.AttributeValueMemberS{Value: "u1"},
	}}, nil).Once()
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		key, _ := in.Key[attrUserID].(*types.AttributeValueMemberS)
		return aws.ToString(in.TableName) == "users" && aws.ToBool(in.ConsistentRead) &&
			key != nil && key.Value == "u1"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil).Once()

	u, err := NewUserRepo(api, "users", "user_identities").GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, "h", u.PasswordHash)
	api.AssertExpectations(t)
}

func TestGetByEmail_GuardWithoutUser(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, getFrom("user_identities")).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{attrUserID: &types.AttributeValueMemberS{Value: "gone"}},
	}, nil)
	api.On("GetItem", mock.Anything, getFrom("users")).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewUserRepo(api, "users", "user_identities").GetByEmail(context.Background(), "alice@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- Update ---

func TestUpdate_CodeGuardLost_ReturnsConflict(t *testing.T) {
	api := &mockAPI{}
	expectLookup(t, api, stored)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "attribute_exists(user_id) AND #code = :expected_code" &&
			aws.ToString(in.UpdateExpression) == "SET #f1 = :v1 REMOVE #f0"
	})).Return(nil, &types.ConditionalCheckFailedException{})

	repo := NewUserRepo(api, "users", "user_identities")
	err := repo.Update(context.Background(), domain.ByEmail("alice@x.com").WithCode("digest"), map[string]interface{}{
		domain.FieldVerified:         true,
		domain.FieldVerificationCode: nil,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	api.AssertExpectations(t)
}

func TestUpdate_VanishedUser_ReturnsNotFound(t *testing.T) {
	api := &mockAPI{}
	expectLookup(t, api, stored)
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	err := NewUserRepo(api, "users", "user_identities").Update(context.Background(), domain.ByUsername("alice"),
		map[string]interface{}{domain.FieldPasswordHash: "new"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_EmailChange_MovesGuard(t *testing.T) {
	api := &mockAPI{}
	expectLookup(t, api, stored)
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 3 &&
			identityOf(in.TransactItems[1]) == "email#new@x.com" &&
			identityOf(in.TransactItems[2]) == "email#alice@x.com"
	})).Return(nil, cancelledAt(1, 3))

	err := NewUserRepo(api, "users", "user_identities").Update(context.Background(), domain.ByUsername("alice"),
		map[string]interface{}{domain.FieldEmail: "new@x.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	api.AssertExpectations(t)
}

func TestUpdate_UsernameOnlyChange(t *testing.T) {
	api := &mockAPI{}
	expectLookup(t, api, stored)
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelledAt(1, 3))

	err := NewUserRepo(api, "users", "user_identities").Update(context.Background(), domain.ByUsername("alice"),
		map[string]interface{}{domain.FieldUsername: "alice2", domain.FieldEmail: "alice@x.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

// --- Delete / List ---

func TestDeleteByUsername_ReleasesGuards(t *testing.T) {
	api := &mockAPI{}
	expectLookup(t, api, stored)
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 3 &&
			identityOf(in.TransactItems[1]) == "email#alice@x.com" &&
			identityOf(in.TransactItems[2]) == "username#alice"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	require.NoError(t, NewUserRepo(api, "users", "user_identities").DeleteByUsername(context.Background(), "alice"))
	api.AssertExpectations(t)
}

func TestList_FollowsPagination(t *testing.T) {
	first, err := attributevalue.MarshalMap(stored)
	require.NoError(t, err)
	bob := domain.User{UserID: "u2", Username: "bobby", Email: "bob@x.com"}
	second, err := attributevalue.MarshalMap(bob)
	require.NoError(t, err)

	api := &mockAPI{}
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: strKey(attrUserID, "u1")}, nil).Once()
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{second}}, nil).Once()

	users, err := NewUserRepo(api, "users", "user_identities").List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bobby", users[1].Username)
}
