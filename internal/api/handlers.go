package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/types"
)

const (
	featuredRoomsLimit = 10
	searchRoomsLimit   = 15
)

type CreateRoomRequest struct {
	Name        string `json:"roomName"`
	Pfp         string `json:"roomPfp"`
	Description string `json:"roomDescription"`
}

type UpdateRoomRequest struct {
	RoomId      string `json:"roomId"`
	Name        string `json:"roomName"`
	Pfp         string `json:"roomPfp"`
	Description string `json:"roomDescription"`
}

type UpdateUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Pfp      string `json:"pfp"`
}

type SearchRoomsRequest struct {
	Query string `json:"searchRooms"`
}

type FriendRequest struct {
	Username string `json:"username"`
}

func (s *ChatwireApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatwireApp) writeRepoError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	if errors.Is(err, database.ErrNotFound) {
		errResp = NewNotFoundError()
	} else {
		errResp = NewInternalServerError(err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func roomResponse(room database.Room) types.Room {
	members := make([]string, len(room.Members))
	for i, m := range room.Members {
		members[i] = m.Username
	}

	return types.Room{
		RoomId:      room.RoomId,
		Name:        room.Name,
		Pfp:         room.Pfp,
		Description: room.Description,
		Owner:       room.Owner,
		Members:     members,
	}
}

func roomSummaries(rooms []database.Room) []types.RoomSummary {
	summaries := make([]types.RoomSummary, len(rooms))
	for i, r := range rooms {
		summaries[i] = types.RoomSummary{
			RoomId: r.RoomId,
			Name:   r.Name,
			Pfp:    r.Pfp,
		}
	}
	return summaries
}

func messageResponses(msgs []database.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		media := make([]types.Media, len(m.Media))
		for j, md := range m.Media {
			media[j] = types.Media{Url: md.Url, Name: md.Name, Type: md.Type}
		}
		if len(media) == 0 {
			media = nil
		}

		out[i] = types.Message{
			Id:             m.Id.Hex(),
			Message:        m.Message,
			Media:          media,
			Position:       m.Position,
			SenderUsername: m.SenderUsername,
			Status:         m.Status,
			CreatedAt:      m.CreatedAt,
		}
	}
	return out
}

func (s *ChatwireApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByRoomId(r.Context(), roomId)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse(room))
}

func (s *ChatwireApp) getFeaturedRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.db.ListFeaturedRooms(r.Context(), featuredRoomsLimit)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, roomSummaries(rooms))
}

func (s *ChatwireApp) searchRooms(w http.ResponseWriter, r *http.Request) {
	var req SearchRoomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms, err := s.db.SearchRooms(r.Context(), req.Query, searchRoomsLimit)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, roomSummaries(rooms))
}

func (s *ChatwireApp) createRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if len(req.Name) < 3 || len(req.Name) > 25 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateRoomId()
	if err != nil {
		s.log.Println("generateRoomId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.CreateRoom(r.Context(), database.CreateRoomParams{
		RoomId:      sid,
		Name:        req.Name,
		Pfp:         req.Pfp,
		Description: req.Description,
		Owner:       username,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, roomResponse(room))
}

func (s *ChatwireApp) updateRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByRoomId(r.Context(), req.RoomId)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	if room.Owner != username {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.UpdateRoom(r.Context(), database.UpdateRoomParams{
		RoomId:      req.RoomId,
		Name:        req.Name,
		Pfp:         req.Pfp,
		Description: req.Description,
	})
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse(updated))
}

func (s *ChatwireApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByRoomId(r.Context(), roomId)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	if room.Owner != username {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteRoom(r.Context(), roomId); err != nil {
		s.log.Println("delete room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// Drop the live broadcast group so stale connections stop
	// receiving traffic for the deleted room.
	s.cs.EvictGroup(roomId)

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatwireApp) getUserRooms(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	roomIds := make([]string, len(user.RoomsJoined))
	for i, room := range user.RoomsJoined {
		roomIds[i] = room.RoomId
	}

	s.writeJson(w, http.StatusOK, map[string][]string{"roomsJoined": roomIds})
}

func (s *ChatwireApp) getUserPfp(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"pfp": user.Pfp})
}

func (s *ChatwireApp) updateUser(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username != "" && req.Username != username && !usernamePattern.MatchString(req.Username) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.UpdateUserParams{
		Username: username,
		Name:     req.Name,
		Pfp:      req.Pfp,
	}
	if req.Username != "" && req.Username != username {
		if _, err := s.db.GetUserByUsername(r.Context(), req.Username); err == nil {
			errResp := NewConflictError("username already exists")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		} else if !errors.Is(err, database.ErrNotFound) {
			s.writeRepoError(w, err)
			return
		}
		params.NewUsername = req.Username
	}

	user, err := s.db.UpdateUser(r.Context(), params)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	// The rename invalidates the old username claim, so reissue the
	// session cookie for the new identity.
	if params.NewUsername != "" {
		token, err := s.createJwtForSession(params.NewUsername, defaultJwtExpiration)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	}

	s.writeJson(w, http.StatusOK, types.User{
		Name:     user.Name,
		Username: user.Username,
		Pfp:      user.Pfp,
	})
}

func (s *ChatwireApp) deleteUser(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteUser(r.Context(), username); err != nil {
		s.writeRepoError(w, err)
		return
	}

	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChatwireApp) getFriends(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	refNames := func(refs []database.UserRef) []string {
		names := make([]string, len(refs))
		for i, ref := range refs {
			names[i] = ref.Username
		}
		return names
	}

	s.writeJson(w, http.StatusOK, types.FriendLists{
		Friends:  refNames(user.Friends),
		Requests: refNames(user.Requests),
		Sent:     refNames(user.SentRequests),
		Partners: refNames(user.ChatPartners),
	})
}

func (s *ChatwireApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Username == username {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sender, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	// Already being friends is a success no-op, not an error.
	if sender.HasFriend(req.Username) {
		s.writeJson(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if err := s.db.AddFriendRequest(r.Context(), username, req.Username); err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *ChatwireApp) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	if !user.HasRequestFrom(req.Username) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.AcceptFriendRequest(r.Context(), username, req.Username); err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *ChatwireApp) rejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.RejectFriendRequest(r.Context(), username, req.Username); err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *ChatwireApp) getRoomHistory(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	history, err := s.db.GetRoomHistory(r.Context(), roomId)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"history": messageResponses(history)})
}

func (s *ChatwireApp) getDirectHistory(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	partner := r.URL.Query().Get("username")
	if partner == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.FindConversation(r.Context(), username, partner)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// No conversation yet is an empty history, not an error.
			s.writeJson(w, http.StatusOK, map[string]any{"history": []types.Message{}})
			return
		}
		s.writeRepoError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"history": messageResponses(conv.Messages)})
}
