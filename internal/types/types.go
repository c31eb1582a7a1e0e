package types

import (
	"time"
)

type User struct {
	Name         string   `json:"name"`
	Username     string   `json:"username"`
	EmailAddress string   `json:"email_address,omitempty"`
	Password     string   `json:"-"`
	Pfp          string   `json:"pfp,omitempty"`
	RoomsJoined  []string `json:"roomsJoined,omitempty"`
	ChatPartners []string `json:"chatWithUsers,omitempty"`
}

type Room struct {
	RoomId      string   `json:"roomId"`
	Name        string   `json:"roomName"`
	Pfp         string   `json:"roomPfp,omitempty"`
	Description string   `json:"roomDescription,omitempty"`
	Owner       string   `json:"roomOwner"`
	Members     []string `json:"roomMembers"`
}

// RoomSummary is the listing shape used by featured rooms and search
// results, which never carry members or history.
type RoomSummary struct {
	RoomId string `json:"roomId"`
	Name   string `json:"roomName"`
	Pfp    string `json:"roomPfp,omitempty"`
}

type Media struct {
	Url  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Message struct {
	Id             string    `json:"_id"`
	Message        string    `json:"message,omitempty"`
	Media          []Media   `json:"media,omitempty"`
	Position       string    `json:"position"`
	SenderUsername string    `json:"senderUsername"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type FriendLists struct {
	Friends  []string `json:"friends"`
	Requests []string `json:"requests"`
	Sent     []string `json:"sentFriendRequests"`
	Partners []string `json:"chatWithUsers"`
}
