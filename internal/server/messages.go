package server

import (
	"encoding/json"
	"time"

	"github.com/cdiaz/chatwire/internal/types"
)

// Inbound event names.
const (
	EventUserJoined     = "userJoined"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSend           = "send"
	EventPrivateConnect = "privateConnect"
	EventPrivateMessage = "privateMessage"
	EventUpdatePfp      = "updatePfp"
)

// Outbound event names.
const (
	EventReceive                 = "receive"
	EventMessageConfirmed        = "messageConfirmed"
	EventOtherUserLeftRoom       = "otherUserLeftRoom"
	EventReceivePrivateMessage   = "receivePrivateMessage"
	EventPrivateMessageConfirmed = "privateMessageConfirmed"
	EventPfpUpdated              = "pfpUpdated"
)

// ClientEvent is the envelope for one inbound frame. Data is decoded
// per event once the name is known.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the envelope for one outbound frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type UserJoined struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId"`
}

type JoinRoom struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId"`
}

type LeaveRoom struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId"`
}

type Send struct {
	Message        string        `json:"message"`
	Media          []types.Media `json:"media,omitempty"`
	SenderUsername string        `json:"senderUsername"`
	ClientId       string        `json:"clientId"`
}

type PrivateConnect struct {
	Username string `json:"username"`
}

type PrivateMessage struct {
	SenderUsername   string        `json:"senderUsername"`
	ReceiverUsername string        `json:"receiverUsername"`
	Message          string        `json:"message"`
	Media            []types.Media `json:"media,omitempty"`
	ClientId         string        `json:"clientId"`
}

type UpdatePfp struct {
	Username  string `json:"username"`
	NewPfpUrl string `json:"newPfpUrl"`
}

// Receive carries a persisted room message to every subscriber other
// than the sender. It never exposes the sender's clientId.
type Receive struct {
	Message        string        `json:"message,omitempty"`
	Media          []types.Media `json:"media,omitempty"`
	Position       string        `json:"position"`
	SenderUsername string        `json:"senderUsername"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// MessageConfirmed closes the confirmation loop: the persisted record
// plus the correlation id the client generated before rendering the
// message as pending.
type MessageConfirmed struct {
	Receive
	Id       string `json:"_id"`
	ClientId string `json:"clientId"`
}

type OtherUserLeftRoom struct {
	Username string `json:"username"`
}

type ReceivePrivateMessage struct {
	Message        string        `json:"message,omitempty"`
	Media          []types.Media `json:"media,omitempty"`
	SenderUsername string        `json:"senderUsername"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type PrivateMessageConfirmed struct {
	ReceivePrivateMessage
	Id       string `json:"_id"`
	ClientId string `json:"clientId"`
}

type PfpUpdated struct {
	Username  string `json:"username"`
	NewPfpUrl string `json:"newPfpUrl"`
}
