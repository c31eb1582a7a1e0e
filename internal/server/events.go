package server

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/types"
)

// Event handlers. Failures on this path are deliberately invisible to
// the client: a dropped event or a failed write produces no error
// frame, only the absence of the expected broadcast or confirmation.

// handleUserJoined binds the user and room context to the connection
// and establishes the live subscription for an already-joined room,
// e.g. on page load or reconnect. It persists nothing.
func (cs *ChatServer) handleUserJoined(c *Client, data *UserJoined) {
	if data.Username == "" || data.RoomId == "" {
		return
	}

	c.username = data.Username
	c.room = data.RoomId

	if cs.tracker.JoinIfNew(c, data.RoomId) {
		cs.subscribe(c, data.RoomId)
	}
}

// handleJoinRoom makes the user a persisted member of the room. The
// membership check makes duplicate joins silent no-ops; the broadcast
// is gated on all three writes succeeding.
func (cs *ChatServer) handleJoinRoom(c *Client, data *JoinRoom) {
	if data.Username == "" || data.RoomId == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	user, err := cs.db.GetUserByUsername(ctx, data.Username)
	if err != nil {
		cs.log.Println("joinRoom: get user:", err)
		return
	}

	if user.HasRoom(data.RoomId) {
		return
	}

	msg := database.Message{
		Id:             primitive.NewObjectID(),
		Message:        "joined the room",
		Position:       database.PositionCenter,
		SenderUsername: data.Username,
		Status:         database.StatusSent,
		CreatedAt:      database.Now(),
	}

	if err := cs.db.AppendRoomMessage(ctx, data.RoomId, msg); err != nil {
		cs.log.Println("joinRoom: append message:", err)
		return
	}

	if err := cs.db.AddRoomToUser(ctx, data.Username, data.RoomId); err != nil {
		cs.log.Println("joinRoom: add room to user:", err)
		return
	}

	if err := cs.db.AddMemberToRoom(ctx, data.RoomId, data.Username); err != nil {
		cs.log.Println("joinRoom: add member to room:", err)
		return
	}

	cs.broadcastGroup(data.RoomId, &ServerEvent{
		Event: EventReceive,
		Data: Receive{
			Message:        msg.Message,
			Position:       msg.Position,
			SenderUsername: msg.SenderUsername,
			Status:         msg.Status,
			CreatedAt:      msg.CreatedAt,
		},
	}, c)
}

// handleLeaveRoom removes persisted membership from both sides and
// appends the departure system message. Only full success emits the
// otherUserLeftRoom event and tears down the live subscription.
func (cs *ChatServer) handleLeaveRoom(c *Client, data *LeaveRoom) {
	if data.Username == "" || data.RoomId == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if err := cs.db.RemoveRoomFromUser(ctx, data.Username, data.RoomId); err != nil {
		cs.log.Println("leaveRoom: remove room from user:", err)
		return
	}

	if err := cs.db.RemoveMemberFromRoom(ctx, data.RoomId, data.Username); err != nil {
		cs.log.Println("leaveRoom: remove member from room:", err)
		return
	}

	msg := database.Message{
		Id:             primitive.NewObjectID(),
		Message:        "left the room",
		Position:       database.PositionCenter,
		SenderUsername: data.Username,
		Status:         database.StatusSent,
		CreatedAt:      database.Now(),
	}

	if err := cs.db.AppendRoomMessage(ctx, data.RoomId, msg); err != nil {
		cs.log.Println("leaveRoom: append message:", err)
		return
	}

	cs.broadcastGroup(data.RoomId, &ServerEvent{
		Event: EventOtherUserLeftRoom,
		Data:  OtherUserLeftRoom{Username: data.Username},
	}, c)

	cs.unsubscribe(c, data.RoomId)
	cs.tracker.Release(c, data.RoomId)
	if c.room == data.RoomId {
		c.room = ""
	}
}

// handleSend is the primary message path: persist into the connection's
// bound room, broadcast receive to everyone else in the group, and
// confirm back to the sender with their correlation id.
func (cs *ChatServer) handleSend(c *Client, data *Send) {
	if c.room == "" || data.SenderUsername == "" {
		return
	}
	if data.Message == "" && len(data.Media) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	msg := database.Message{
		Id:             primitive.NewObjectID(),
		Message:        data.Message,
		Media:          toDBMedia(data.Media),
		Position:       database.PositionRelative,
		SenderUsername: data.SenderUsername,
		Status:         database.StatusSent,
		CreatedAt:      database.Now(),
	}

	if err := cs.db.AppendRoomMessage(ctx, c.room, msg); err != nil {
		cs.log.Println("send: append message:", err)
		return
	}
	cs.stats.Incr(MetricMessages)

	received := Receive{
		Message:        msg.Message,
		Media:          data.Media,
		Position:       msg.Position,
		SenderUsername: msg.SenderUsername,
		Status:         msg.Status,
		CreatedAt:      msg.CreatedAt,
	}

	cs.broadcastGroup(c.room, &ServerEvent{
		Event: EventReceive,
		Data:  received,
	}, c)

	c.queueEvent(&ServerEvent{
		Event: EventMessageConfirmed,
		Data: MessageConfirmed{
			Receive:  received,
			Id:       msg.Id.Hex(),
			ClientId: data.ClientId,
		},
	})
}

// handlePrivateConnect binds the username and registers the connection
// for private-message addressing. Idempotent; a user may hold many
// simultaneous connections.
func (cs *ChatServer) handlePrivateConnect(c *Client, data *PrivateConnect) {
	if data.Username == "" {
		return
	}

	c.username = data.Username
	cs.registry.Register(data.Username, c)
}

// handlePrivateMessage appends to the pair's conversation, creating it
// lazily on first contact. Fan-out covers every connection of the
// receiver plus the sender's other connections; the originating
// connection gets the confirmation instead.
func (cs *ChatServer) handlePrivateMessage(c *Client, data *PrivateMessage) {
	if data.SenderUsername == "" || data.ReceiverUsername == "" {
		return
	}
	if data.SenderUsername == data.ReceiverUsername {
		return
	}
	if data.Message == "" && len(data.Media) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	msg := database.Message{
		Id:             primitive.NewObjectID(),
		Message:        data.Message,
		Media:          toDBMedia(data.Media),
		Position:       database.PositionRelative,
		SenderUsername: data.SenderUsername,
		Status:         database.StatusSent,
		CreatedAt:      database.Now(),
	}

	_, err := cs.db.FindConversation(ctx, data.SenderUsername, data.ReceiverUsername)
	switch {
	case err == nil:
		if err := cs.db.AppendConversationMessage(ctx, data.SenderUsername, data.ReceiverUsername, msg); err != nil {
			cs.log.Println("privateMessage: append:", err)
			return
		}
	case errors.Is(err, database.ErrNotFound):
		if _, err := cs.db.CreateConversation(ctx, data.SenderUsername, data.ReceiverUsername, msg); err != nil {
			cs.log.Println("privateMessage: create conversation:", err)
			return
		}

		// Chat-partner listings are only updated when the conversation
		// is first created.
		if err := cs.db.AddChatPartner(ctx, data.SenderUsername, data.ReceiverUsername); err != nil {
			cs.log.Println("privateMessage: add partner:", err)
			return
		}
		if err := cs.db.AddChatPartner(ctx, data.ReceiverUsername, data.SenderUsername); err != nil {
			cs.log.Println("privateMessage: add partner:", err)
			return
		}
	default:
		cs.log.Println("privateMessage: find conversation:", err)
		return
	}
	cs.stats.Incr(MetricPrivateMessages)

	received := ReceivePrivateMessage{
		Message:        msg.Message,
		Media:          data.Media,
		SenderUsername: msg.SenderUsername,
		Status:         msg.Status,
		CreatedAt:      msg.CreatedAt,
	}
	ev := &ServerEvent{
		Event: EventReceivePrivateMessage,
		Data:  received,
	}

	for _, target := range cs.registry.Lookup(data.ReceiverUsername) {
		target.queueEvent(ev)
	}
	// The sender's other tabs see the message too; the originating
	// connection reconciles through the confirmation instead.
	for _, target := range targetsExcept(cs.registry.Lookup(data.SenderUsername), c) {
		target.queueEvent(ev)
	}

	c.queueEvent(&ServerEvent{
		Event: EventPrivateMessageConfirmed,
		Data: PrivateMessageConfirmed{
			ReceivePrivateMessage: received,
			Id:                    msg.Id.Hex(),
			ClientId:              data.ClientId,
		},
	})
}

// handleUpdatePfp propagates an already-persisted avatar change to
// every live viewer. The profile-edit endpoint owns the persistence.
func (cs *ChatServer) handleUpdatePfp(c *Client, data *UpdatePfp) {
	if data.Username == "" {
		return
	}

	cs.broadcastAll(&ServerEvent{
		Event: EventPfpUpdated,
		Data: PfpUpdated{
			Username:  data.Username,
			NewPfpUrl: data.NewPfpUrl,
		},
	})
}

// handleDisconnect discards the connection's live state. Persisted
// membership is untouched; only explicit leaveRoom events change it.
func (cs *ChatServer) handleDisconnect(c *Client) {
	if c.username != "" {
		cs.registry.Unregister(c.username, c)
	}

	for _, roomId := range cs.tracker.ReleaseAll(c) {
		cs.unsubscribe(c, roomId)
	}
}

// ResolvePosition maps a stored position tag to the one the viewing
// user should render: relative resolves to right for the sender's own
// messages and left otherwise.
func ResolvePosition(msg types.Message, viewer string) string {
	if msg.Position != database.PositionRelative {
		return msg.Position
	}
	if msg.SenderUsername == viewer {
		return database.PositionRight
	}
	return database.PositionLeft
}

func toDBMedia(media []types.Media) []database.Media {
	if len(media) == 0 {
		return nil
	}

	out := make([]database.Media, len(media))
	for i, m := range media {
		out[i] = database.Media{Url: m.Url, Name: m.Name, Type: m.Type}
	}
	return out
}
