package database

import "context"

type ChatRepository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, params UpdateUserParams) (User, error)
	DeleteUser(ctx context.Context, username string) error

	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoomByRoomId(ctx context.Context, roomId string) (Room, error)
	ListFeaturedRooms(ctx context.Context, limit int) ([]Room, error)
	SearchRooms(ctx context.Context, query string, limit int) ([]Room, error)
	UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error)
	DeleteRoom(ctx context.Context, roomId string) error

	AppendRoomMessage(ctx context.Context, roomId string, msg Message) error
	GetRoomHistory(ctx context.Context, roomId string) ([]Message, error)

	AddRoomToUser(ctx context.Context, username, roomId string) error
	RemoveRoomFromUser(ctx context.Context, username, roomId string) error
	AddMemberToRoom(ctx context.Context, roomId, username string) error
	RemoveMemberFromRoom(ctx context.Context, roomId, username string) error

	FindConversation(ctx context.Context, userA, userB string) (Conversation, error)
	CreateConversation(ctx context.Context, userA, userB string, msg Message) (Conversation, error)
	AppendConversationMessage(ctx context.Context, userA, userB string, msg Message) error
	AddChatPartner(ctx context.Context, username, partner string) error

	AddFriendRequest(ctx context.Context, sender, receiver string) error
	AcceptFriendRequest(ctx context.Context, acceptor, requester string) error
	RejectFriendRequest(ctx context.Context, rejector, requester string) error
}
