package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultPfp = "/assets/defaultPfp.png"

func (r *MongoChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user := User{
		Name:         params.Name,
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		Pfp:          defaultPfp,
		RoomsJoined:  []RoomRef{},
		ChatPartners: []UserRef{},
		Friends:      []UserRef{},
		Requests:     []UserRef{},
		SentRequests: []UserRef{},
	}

	res, err := r.users().InsertOne(ctx, user)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	user.Id = res.InsertedID.(primitive.ObjectID)
	return user, nil
}

func (r *MongoChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := r.users().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	return user, err
}

// UpdateUser applies a profile edit. A username change cascades through
// room member lists, message sender references, conversation
// participants and friend lists as a sequence of best-effort updates;
// a crash mid-way leaves the rename partially applied.
func (r *MongoChatRepository) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	set := bson.M{
		"name": params.Name,
		"pfp":  params.Pfp,
	}
	if params.NewUsername != "" {
		set["username"] = params.NewUsername
	}

	var user User
	err := r.users().FindOneAndUpdate(ctx,
		bson.M{"username": params.Username},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return User{}, err
	}

	if params.NewUsername != "" && params.NewUsername != params.Username {
		if err := r.renameUserReferences(ctx, params.Username, params.NewUsername); err != nil {
			return user, err
		}
	}

	return user, nil
}

func (r *MongoChatRepository) renameUserReferences(ctx context.Context, oldName, newName string) error {
	// Room ownership, member lists and embedded message senders.
	if _, err := r.rooms().UpdateMany(ctx,
		bson.M{"roomOwner": oldName},
		bson.M{"$set": bson.M{"roomOwner": newName}},
	); err != nil {
		return fmt.Errorf("rename room owner: %w", err)
	}

	if _, err := r.rooms().UpdateMany(ctx,
		bson.M{"roomMembers.memberUsername": oldName},
		bson.M{"$set": bson.M{"roomMembers.$[m].memberUsername": newName}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.memberUsername": oldName}},
		}),
	); err != nil {
		return fmt.Errorf("rename room members: %w", err)
	}

	if _, err := r.rooms().UpdateMany(ctx,
		bson.M{"messageHistory.senderUsername": oldName},
		bson.M{"$set": bson.M{"messageHistory.$[m].senderUsername": newName}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.senderUsername": oldName}},
		}),
	); err != nil {
		return fmt.Errorf("rename message senders: %w", err)
	}

	// Conversation participants and their embedded messages.
	if _, err := r.conversations().UpdateMany(ctx,
		bson.M{"users": oldName},
		bson.M{"$set": bson.M{"users.$[u]": newName}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"u": oldName}},
		}),
	); err != nil {
		return fmt.Errorf("rename conversation users: %w", err)
	}

	if _, err := r.conversations().UpdateMany(ctx,
		bson.M{"messages.senderUsername": oldName},
		bson.M{"$set": bson.M{"messages.$[m].senderUsername": newName}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.senderUsername": oldName}},
		}),
	); err != nil {
		return fmt.Errorf("rename conversation senders: %w", err)
	}

	// Friend, request and chat-partner references on other users.
	for _, field := range []string{"friends", "requests", "sentFriendRequests", "chatWithUsers"} {
		if _, err := r.users().UpdateMany(ctx,
			bson.M{field + ".username": oldName},
			bson.M{"$set": bson.M{field + ".$[u].username": newName}},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"u.username": oldName}},
			}),
		); err != nil {
			return fmt.Errorf("rename %s references: %w", field, err)
		}
	}

	return nil
}

// DeleteUser removes the user from the member list of every room they
// joined, then deletes the user document. Best effort, no rollback.
func (r *MongoChatRepository) DeleteUser(ctx context.Context, username string) error {
	user, err := r.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	for _, room := range user.RoomsJoined {
		if err := r.RemoveMemberFromRoom(ctx, room.RoomId, username); err != nil {
			return fmt.Errorf("remove member from %q: %w", room.RoomId, err)
		}
	}

	_, err = r.users().DeleteOne(ctx, bson.M{"username": username})
	return err
}

func (r *MongoChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	pfp := params.Pfp
	if pfp == "" {
		pfp = defaultPfp
	}

	room := Room{
		RoomId:      params.RoomId,
		Name:        params.Name,
		Pfp:         pfp,
		Description: params.Description,
		Owner:       params.Owner,
		Members:     []MemberRef{{Username: params.Owner}},
		MessageHistory: []Message{
			{
				Id:             primitive.NewObjectID(),
				Message:        fmt.Sprintf("created the room on %s", Now().Format("1/2/2006, 3:04:05 PM")),
				Position:       PositionCenter,
				SenderUsername: params.Owner,
				Status:         StatusSent,
				CreatedAt:      Now(),
			},
		},
	}

	res, err := r.rooms().InsertOne(ctx, room)
	if err != nil {
		return Room{}, fmt.Errorf("insert room: %w", err)
	}
	room.Id = res.InsertedID.(primitive.ObjectID)

	if err := r.AddRoomToUser(ctx, params.Owner, params.RoomId); err != nil {
		return room, fmt.Errorf("add room to owner: %w", err)
	}

	return room, nil
}

func (r *MongoChatRepository) GetRoomByRoomId(ctx context.Context, roomId string) (Room, error) {
	var room Room
	err := r.rooms().FindOne(ctx, bson.M{"roomId": roomId}).Decode(&room)
	return room, err
}

func (r *MongoChatRepository) ListFeaturedRooms(ctx context.Context, limit int) ([]Room, error) {
	opts := options.Find().
		SetProjection(bson.M{"roomId": 1, "roomName": 1, "roomPfp": 1}).
		SetLimit(int64(limit))

	cur, err := r.rooms().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *MongoChatRepository) SearchRooms(ctx context.Context, query string, limit int) ([]Room, error) {
	filter := bson.M{
		"roomName": primitive.Regex{Pattern: query, Options: "i"},
	}
	opts := options.Find().
		SetProjection(bson.M{"roomId": 1, "roomName": 1, "roomPfp": 1}).
		SetLimit(int64(limit))

	cur, err := r.rooms().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *MongoChatRepository) UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error) {
	var room Room
	err := r.rooms().FindOneAndUpdate(ctx,
		bson.M{"roomId": params.RoomId},
		bson.M{"$set": bson.M{
			"roomName":        params.Name,
			"roomPfp":         params.Pfp,
			"roomDescription": params.Description,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&room)
	return room, err
}

// DeleteRoom pulls the room id from every member's membership list
// before deleting the room document. Each update is atomic on its own
// document; the cascade as a whole is best effort.
func (r *MongoChatRepository) DeleteRoom(ctx context.Context, roomId string) error {
	room, err := r.GetRoomByRoomId(ctx, roomId)
	if err != nil {
		return err
	}

	for _, member := range room.Members {
		if err := r.RemoveRoomFromUser(ctx, member.Username, roomId); err != nil {
			return fmt.Errorf("remove room from %q: %w", member.Username, err)
		}
	}

	_, err = r.rooms().DeleteOne(ctx, bson.M{"roomId": roomId})
	return err
}

func (r *MongoChatRepository) AppendRoomMessage(ctx context.Context, roomId string, msg Message) error {
	res, err := r.rooms().UpdateOne(ctx,
		bson.M{"roomId": roomId},
		bson.M{"$push": bson.M{"messageHistory": msg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoChatRepository) GetRoomHistory(ctx context.Context, roomId string) ([]Message, error) {
	var room Room
	err := r.rooms().FindOne(ctx,
		bson.M{"roomId": roomId},
		options.FindOne().SetProjection(bson.M{"messageHistory": 1}),
	).Decode(&room)
	if err != nil {
		return nil, err
	}
	return room.MessageHistory, nil
}

func (r *MongoChatRepository) AddRoomToUser(ctx context.Context, username, roomId string) error {
	res, err := r.users().UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$push": bson.M{"roomsJoined": RoomRef{RoomId: roomId}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoChatRepository) RemoveRoomFromUser(ctx context.Context, username, roomId string) error {
	_, err := r.users().UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$pull": bson.M{"roomsJoined": bson.M{"roomId": roomId}}},
	)
	return err
}

func (r *MongoChatRepository) AddMemberToRoom(ctx context.Context, roomId, username string) error {
	res, err := r.rooms().UpdateOne(ctx,
		bson.M{"roomId": roomId},
		bson.M{"$push": bson.M{"roomMembers": MemberRef{Username: username}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoChatRepository) RemoveMemberFromRoom(ctx context.Context, roomId, username string) error {
	_, err := r.rooms().UpdateOne(ctx,
		bson.M{"roomId": roomId},
		bson.M{"$pull": bson.M{"roomMembers": bson.M{"memberUsername": username}}},
	)
	return err
}

// FindConversation resolves the conversation for an unordered pair of
// usernames. The pair is stored in insertion order, so the lookup has
// to try both orderings.
func (r *MongoChatRepository) FindConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	var conv Conversation
	err := r.conversations().FindOne(ctx, bson.M{"users": bson.A{userA, userB}}).Decode(&conv)
	if err == nil {
		return conv, nil
	}
	if err != mongo.ErrNoDocuments {
		return Conversation{}, err
	}

	err = r.conversations().FindOne(ctx, bson.M{"users": bson.A{userB, userA}}).Decode(&conv)
	return conv, err
}

func (r *MongoChatRepository) CreateConversation(ctx context.Context, userA, userB string, msg Message) (Conversation, error) {
	conv := Conversation{
		Users:    []string{userA, userB},
		Messages: []Message{msg},
	}

	res, err := r.conversations().InsertOne(ctx, conv)
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	conv.Id = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (r *MongoChatRepository) AppendConversationMessage(ctx context.Context, userA, userB string, msg Message) error {
	conv, err := r.FindConversation(ctx, userA, userB)
	if err != nil {
		return err
	}

	res, err := r.conversations().UpdateOne(ctx,
		bson.M{"_id": conv.Id},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddChatPartner records partner in username's inbox listing. $addToSet
// keeps a retried creation from duplicating the entry.
func (r *MongoChatRepository) AddChatPartner(ctx context.Context, username, partner string) error {
	_, err := r.users().UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$addToSet": bson.M{"chatWithUsers": UserRef{Username: partner}}},
	)
	return err
}

func (r *MongoChatRepository) AddFriendRequest(ctx context.Context, sender, receiver string) error {
	res, err := r.users().UpdateOne(ctx,
		bson.M{"username": receiver},
		bson.M{"$addToSet": bson.M{"requests": UserRef{Username: sender}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	_, err = r.users().UpdateOne(ctx,
		bson.M{"username": sender},
		bson.M{"$addToSet": bson.M{"sentFriendRequests": UserRef{Username: receiver}}},
	)
	return err
}

// AcceptFriendRequest moves both users into each other's friends lists
// and clears the pending markers on both sides.
func (r *MongoChatRepository) AcceptFriendRequest(ctx context.Context, acceptor, requester string) error {
	_, err := r.users().UpdateOne(ctx,
		bson.M{"username": acceptor},
		bson.M{
			"$addToSet": bson.M{"friends": UserRef{Username: requester}},
			"$pull":     bson.M{"requests": bson.M{"username": requester}},
		},
	)
	if err != nil {
		return err
	}

	_, err = r.users().UpdateOne(ctx,
		bson.M{"username": requester},
		bson.M{
			"$addToSet": bson.M{"friends": UserRef{Username: acceptor}},
			"$pull":     bson.M{"sentFriendRequests": bson.M{"username": acceptor}},
		},
	)
	return err
}

func (r *MongoChatRepository) RejectFriendRequest(ctx context.Context, rejector, requester string) error {
	_, err := r.users().UpdateOne(ctx,
		bson.M{"username": rejector},
		bson.M{"$pull": bson.M{"requests": bson.M{"username": requester}}},
	)
	if err != nil {
		return err
	}

	_, err = r.users().UpdateOne(ctx,
		bson.M{"username": requester},
		bson.M{"$pull": bson.M{"sentFriendRequests": bson.M{"username": rejector}}},
	)
	return err
}
