package database

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message position tags. Relative is stored as-is and resolved per
// viewer at render time.
const (
	PositionLeft     = "left"
	PositionRight    = "right"
	PositionCenter   = "center"
	PositionRelative = "relative"
)

// Message delivery statuses. Pending and failed exist only on the
// client; a persisted message is always sent.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

type Media struct {
	Url  string `bson:"url"`
	Name string `bson:"name"`
	Type string `bson:"type"`
}

type Message struct {
	Id             primitive.ObjectID `bson:"_id"`
	Message        string             `bson:"message,omitempty"`
	Media          []Media            `bson:"media,omitempty"`
	Position       string             `bson:"position"`
	SenderUsername string             `bson:"senderUsername"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

type User struct {
	Id           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username"`
	EmailAddress string             `bson:"email,omitempty"`
	PasswordHash string             `bson:"password"`
	Pfp          string             `bson:"pfp"`
	RoomsJoined  []RoomRef          `bson:"roomsJoined"`
	ChatPartners []UserRef          `bson:"chatWithUsers"`
	Friends      []UserRef          `bson:"friends"`
	Requests     []UserRef          `bson:"requests"`
	SentRequests []UserRef          `bson:"sentFriendRequests"`
}

// RoomRef and UserRef are single-field subdocuments, kept as wrappers
// rather than bare strings so the stored documents match the original
// collection shape.
type RoomRef struct {
	RoomId string `bson:"roomId"`
}

type UserRef struct {
	Username string `bson:"username"`
}

type MemberRef struct {
	Username string `bson:"memberUsername"`
}

type Room struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	RoomId         string             `bson:"roomId"`
	Name           string             `bson:"roomName"`
	Pfp            string             `bson:"roomPfp"`
	Description    string             `bson:"roomDescription,omitempty"`
	Owner          string             `bson:"roomOwner"`
	Members        []MemberRef        `bson:"roomMembers"`
	MessageHistory []Message          `bson:"messageHistory"`
}

type Conversation struct {
	Id       primitive.ObjectID `bson:"_id,omitempty"`
	Users    []string           `bson:"users"`
	Messages []Message          `bson:"messages"`
}

type CreateUserParams struct {
	Name         string
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	RoomId      string
	Name        string
	Pfp         string
	Description string
	Owner       string
}

type UpdateRoomParams struct {
	RoomId      string
	Name        string
	Pfp         string
	Description string
}

type UpdateUserParams struct {
	Username    string
	Name        string
	NewUsername string
	Pfp         string
}

// Now returns the server-assigned timestamp used on persisted
// messages, truncated so round-tripped values compare equal.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

func (u User) HasRoom(roomId string) bool {
	for _, r := range u.RoomsJoined {
		if r.RoomId == roomId {
			return true
		}
	}
	return false
}

func (u User) HasFriend(username string) bool {
	for _, f := range u.Friends {
		if f.Username == username {
			return true
		}
	}
	return false
}

func (u User) HasRequestFrom(username string) bool {
	for _, r := range u.Requests {
		if r.Username == username {
			return true
		}
	}
	return false
}
