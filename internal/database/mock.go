package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) DeleteUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) GetRoomByRoomId(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) ListFeaturedRooms(ctx context.Context, limit int) ([]Room, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockChatRepository) SearchRooms(ctx context.Context, query string, limit int) ([]Room, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockChatRepository) UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) DeleteRoom(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

func (m *MockChatRepository) AppendRoomMessage(ctx context.Context, roomId string, msg Message) error {
	args := m.Called(ctx, roomId, msg)
	return args.Error(0)
}

func (m *MockChatRepository) GetRoomHistory(ctx context.Context, roomId string) ([]Message, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockChatRepository) AddRoomToUser(ctx context.Context, username, roomId string) error {
	args := m.Called(ctx, username, roomId)
	return args.Error(0)
}

func (m *MockChatRepository) RemoveRoomFromUser(ctx context.Context, username, roomId string) error {
	args := m.Called(ctx, username, roomId)
	return args.Error(0)
}

func (m *MockChatRepository) AddMemberToRoom(ctx context.Context, roomId, username string) error {
	args := m.Called(ctx, roomId, username)
	return args.Error(0)
}

func (m *MockChatRepository) RemoveMemberFromRoom(ctx context.Context, roomId, username string) error {
	args := m.Called(ctx, roomId, username)
	return args.Error(0)
}

func (m *MockChatRepository) FindConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}

func (m *MockChatRepository) CreateConversation(ctx context.Context, userA, userB string, msg Message) (Conversation, error) {
	args := m.Called(ctx, userA, userB, msg)
	return args.Get(0).(Conversation), args.Error(1)
}

func (m *MockChatRepository) AppendConversationMessage(ctx context.Context, userA, userB string, msg Message) error {
	args := m.Called(ctx, userA, userB, msg)
	return args.Error(0)
}

func (m *MockChatRepository) AddChatPartner(ctx context.Context, username, partner string) error {
	args := m.Called(ctx, username, partner)
	return args.Error(0)
}

func (m *MockChatRepository) AddFriendRequest(ctx context.Context, sender, receiver string) error {
	args := m.Called(ctx, sender, receiver)
	return args.Error(0)
}

func (m *MockChatRepository) AcceptFriendRequest(ctx context.Context, acceptor, requester string) error {
	args := m.Called(ctx, acceptor, requester)
	return args.Error(0)
}

func (m *MockChatRepository) RejectFriendRequest(ctx context.Context, rejector, requester string) error {
	args := m.Called(ctx, rejector, requester)
	return args.Error(0)
}
