package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cdiaz/chatwire/internal/config"
	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/server"
	"github.com/cdiaz/chatwire/internal/stats"
	"github.com/cdiaz/chatwire/internal/testutil"
	"github.com/cdiaz/chatwire/internal/types"
)

func newTestApp(t *testing.T, db database.ChatRepository) *ChatwireApp {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	su.On("Incr", mock.Anything)
	su.On("Decr", mock.Anything)

	cs, err := server.NewChatServer(testutil.TestLogger(t), db, su)
	if err != nil {
		t.Fatalf("failed to create chat server: %s", err)
	}

	uploadDir := t.TempDir()
	uploads, err := NewDiskObjectStore(uploadDir)
	if err != nil {
		t.Fatalf("failed to create object store: %s", err)
	}

	app, err := NewChatwireApp(http.NewServeMux(), testutil.TestLogger(t), cs, db, uploads, &config.Config{
		ServerAddr:     "localhost:8080",
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "chatwire_test",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
		UploadDir:      uploadDir,
	})
	if err != nil {
		t.Fatalf("failed to create app: %s", err)
	}
	return app
}

// findCookie returns the named cookie from the recorded response, or
// nil when absent.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func authedRequest(method, target string, body []byte, username string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(WithUsername(req.Context(), username))
}

func TestGetRoomHandler(t *testing.T) {
	dbRoom := database.Room{
		RoomId:      "abc123",
		Name:        "general",
		Description: "the general room",
		Owner:       "alice",
		Members:     []database.MemberRef{{Username: "alice"}, {Username: "bob"}},
	}

	t.Run("returns the room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "abc123").Return(dbRoom, nil).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms?id=abc123", nil, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room), "expected valid json response")
		assert.Equal(t, "abc123", room.RoomId, "expected room id in response")
		assert.ElementsMatch(t, []string{"alice", "bob"}, room.Members, "expected flattened member names")
	})

	t.Run("missing id is a bad request", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms", nil, "alice"))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("unknown room is not found", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "nope").Return(database.Room{}, database.ErrNotFound).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms?id=nope", nil, "alice"))

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("creates a room owned by the caller", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateRoom", mock.Anything, mock.MatchedBy(func(p database.CreateRoomParams) bool {
			return p.Name == "general" && p.Owner == "alice" && p.RoomId != ""
		})).Return(database.Room{RoomId: "abc123", Name: "general", Owner: "alice"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(CreateRoomRequest{Name: "general", Description: "hello"})
		rr := httptest.NewRecorder()
		app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, "alice"))

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room), "expected valid json response")
		assert.Equal(t, "alice", room.Owner, "expected caller as owner")
	})

	t.Run("rejects names outside bounds", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})

		for _, name := range []string{"ab", "this room name is way too long to allow"} {
			body, _ := json.Marshal(CreateRoomRequest{Name: name})
			rr := httptest.NewRecorder()
			app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, "alice"))

			assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400 for %q", name)
		}
	})
}

func TestUpdateRoomHandler(t *testing.T) {
	dbRoom := database.Room{RoomId: "abc123", Name: "general", Owner: "alice"}

	t.Run("owner can update", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "abc123").Return(dbRoom, nil).Once()
		mockRepo.On("UpdateRoom", mock.Anything, database.UpdateRoomParams{
			RoomId: "abc123",
			Name:   "renamed",
		}).Return(database.Room{RoomId: "abc123", Name: "renamed", Owner: "alice"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateRoomRequest{RoomId: "abc123", Name: "renamed"})
		rr := httptest.NewRecorder()
		app.updateRoom(rr, authedRequest(http.MethodPut, "/api/rooms", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "abc123").Return(dbRoom, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateRoomRequest{RoomId: "abc123", Name: "hijacked"})
		rr := httptest.NewRecorder()
		app.updateRoom(rr, authedRequest(http.MethodPut, "/api/rooms", body, "mallory"))

		assert.Equal(t, http.StatusForbidden, rr.Code, "expected status code to be 403")
	})
}

func TestDeleteRoomHandler(t *testing.T) {
	dbRoom := database.Room{RoomId: "abc123", Name: "general", Owner: "alice"}

	t.Run("owner can delete", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "abc123").Return(dbRoom, nil).Once()
		mockRepo.On("DeleteRoom", mock.Anything, "abc123").Return(nil).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.deleteRoom(rr, authedRequest(http.MethodDelete, "/api/rooms?id=abc123", nil, "alice"))

		assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByRoomId", mock.Anything, "abc123").Return(dbRoom, nil).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.deleteRoom(rr, authedRequest(http.MethodDelete, "/api/rooms?id=abc123", nil, "mallory"))

		assert.Equal(t, http.StatusForbidden, rr.Code, "expected status code to be 403")
	})
}

func TestSearchRoomsHandler(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("SearchRooms", mock.Anything, "gen", searchRoomsLimit).
		Return([]database.Room{{RoomId: "abc123", Name: "general"}}, nil).Once()
	app := newTestApp(t, mockRepo)

	body, _ := json.Marshal(SearchRoomsRequest{Query: "gen"})
	rr := httptest.NewRecorder()
	app.searchRooms(rr, authedRequest(http.MethodPost, "/api/rooms/search", body, "alice"))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var summaries []types.RoomSummary
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&summaries), "expected valid json response")
	assert.Len(t, summaries, 1, "expected matching room in response")
	assert.Equal(t, "general", summaries[0].Name, "expected room name in summary")
}

func TestGetUserRoomsHandler(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetUserByUsername", mock.Anything, "alice").Return(database.User{
		Username:    "alice",
		RoomsJoined: []database.RoomRef{{RoomId: "r1"}, {RoomId: "r2"}},
	}, nil).Once()
	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.getUserRooms(rr, authedRequest(http.MethodGet, "/api/user/rooms", nil, "alice"))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var resp map[string][]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "expected valid json response")
	assert.Equal(t, []string{"r1", "r2"}, resp["roomsJoined"], "expected joined room ids")
}

func TestUpdateUserHandler(t *testing.T) {
	t.Run("rename reissues the session cookie", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "alice_new").
			Return(database.User{}, database.ErrNotFound).Once()
		mockRepo.On("UpdateUser", mock.Anything, database.UpdateUserParams{
			Username:    "alice",
			NewUsername: "alice_new",
		}).Return(database.User{Username: "alice_new"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateUserRequest{Username: "alice_new"})
		rr := httptest.NewRecorder()
		app.updateUser(rr, authedRequest(http.MethodPut, "/api/user", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		cookie := findCookie(rr, tokenCookieKey)
		assert.NotNil(t, cookie, "expected reissued cookie after rename")

		username, err := app.extractUsernameFromToken(cookie.Value)
		assert.NoError(t, err, "expected reissued cookie to hold a valid token")
		assert.Equal(t, "alice_new", username, "expected token for the new username")
	})

	t.Run("rename to a taken username conflicts", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "bob").
			Return(database.User{Username: "bob"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateUserRequest{Username: "bob"})
		rr := httptest.NewRecorder()
		app.updateUser(rr, authedRequest(http.MethodPut, "/api/user", body, "alice"))

		assert.Equal(t, http.StatusConflict, rr.Code, "expected status code to be 409")
	})

	t.Run("avatar-only update keeps the cookie", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("UpdateUser", mock.Anything, database.UpdateUserParams{
			Username: "alice",
			Pfp:      "/uploads/new.png",
		}).Return(database.User{Username: "alice", Pfp: "/uploads/new.png"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateUserRequest{Pfp: "/uploads/new.png"})
		rr := httptest.NewRecorder()
		app.updateUser(rr, authedRequest(http.MethodPut, "/api/user", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no cookie reissue without a rename")
	})
}

func TestDeleteUserHandler(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("DeleteUser", mock.Anything, "alice").Return(nil).Once()
	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.deleteUser(rr, authedRequest(http.MethodDelete, "/api/user", nil, "alice"))

	assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")

	cookie := findCookie(rr, tokenCookieKey)
	assert.NotNil(t, cookie, "expected session cookie expired on delete")
	assert.Empty(t, cookie.Value, "expected cookie value cleared")
}

func TestFriendRequestHandlers(t *testing.T) {
	t.Run("send request", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "alice").Return(database.User{Username: "alice"}, nil).Once()
		mockRepo.On("AddFriendRequest", mock.Anything, "alice", "bob").Return(nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(FriendRequest{Username: "bob"})
		rr := httptest.NewRecorder()
		app.sendFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/request", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})

	t.Run("send request to an existing friend is a no-op", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "alice").Return(database.User{
			Username: "alice",
			Friends:  []database.UserRef{{Username: "bob"}},
		}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(FriendRequest{Username: "bob"})
		rr := httptest.NewRecorder()
		app.sendFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/request", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		mockRepo.AssertNotCalled(t, "AddFriendRequest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("send request to self is a bad request", func(t *testing.T) {
		app := newTestApp(t, &database.MockChatRepository{})

		body, _ := json.Marshal(FriendRequest{Username: "alice"})
		rr := httptest.NewRecorder()
		app.sendFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/request", body, "alice"))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("accept a pending request", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "bob").Return(database.User{
			Username: "bob",
			Requests: []database.UserRef{{Username: "alice"}},
		}, nil).Once()
		mockRepo.On("AcceptFriendRequest", mock.Anything, "bob", "alice").Return(nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(FriendRequest{Username: "alice"})
		rr := httptest.NewRecorder()
		app.acceptFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/accept", body, "bob"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})

	t.Run("accept without a pending request is not found", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetUserByUsername", mock.Anything, "bob").Return(database.User{Username: "bob"}, nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(FriendRequest{Username: "alice"})
		rr := httptest.NewRecorder()
		app.acceptFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/accept", body, "bob"))

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})

	t.Run("reject a request", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("RejectFriendRequest", mock.Anything, "bob", "alice").Return(nil).Once()
		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(FriendRequest{Username: "alice"})
		rr := httptest.NewRecorder()
		app.rejectFriendRequest(rr, authedRequest(http.MethodPost, "/api/friends/reject", body, "bob"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})
}

func TestGetFriendsHandler(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetUserByUsername", mock.Anything, "alice").Return(database.User{
		Username:     "alice",
		Friends:      []database.UserRef{{Username: "bob"}},
		Requests:     []database.UserRef{{Username: "carol"}},
		SentRequests: []database.UserRef{{Username: "dave"}},
		ChatPartners: []database.UserRef{{Username: "bob"}},
	}, nil).Once()
	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.getFriends(rr, authedRequest(http.MethodGet, "/api/friends", nil, "alice"))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var lists types.FriendLists
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&lists), "expected valid json response")
	assert.Equal(t, []string{"bob"}, lists.Friends, "expected friend names")
	assert.Equal(t, []string{"carol"}, lists.Requests, "expected incoming request names")
	assert.Equal(t, []string{"dave"}, lists.Sent, "expected sent request names")
	assert.Equal(t, []string{"bob"}, lists.Partners, "expected chat partner names")
}

func TestGetRoomHistoryHandler(t *testing.T) {
	msgId := primitive.NewObjectID()
	createdAt := time.Now().UTC().Round(time.Millisecond)

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomHistory", mock.Anything, "abc123").Return([]database.Message{
		{
			Id:             msgId,
			Message:        "hello",
			Position:       database.PositionRelative,
			SenderUsername: "alice",
			Status:         database.StatusSent,
			CreatedAt:      createdAt,
		},
	}, nil).Once()
	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.getRoomHistory(rr, authedRequest(http.MethodGet, "/api/history/room?room_id=abc123", nil, "bob"))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var resp struct {
		History []types.Message `json:"history"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "expected valid json response")
	assert.Len(t, resp.History, 1, "expected one message in history")
	assert.Equal(t, msgId.Hex(), resp.History[0].Id, "expected hex object id")
	assert.Equal(t, "hello", resp.History[0].Message, "expected message body")
}

func TestGetDirectHistoryHandler(t *testing.T) {
	t.Run("returns conversation messages", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("FindConversation", mock.Anything, "alice", "bob").Return(database.Conversation{
			Users: []string{"alice", "bob"},
			Messages: []database.Message{
				{Id: primitive.NewObjectID(), Message: "psst", SenderUsername: "alice"},
			},
		}, nil).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getDirectHistory(rr, authedRequest(http.MethodGet, "/api/history/direct?username=bob", nil, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var resp struct {
			History []types.Message `json:"history"`
		}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "expected valid json response")
		assert.Len(t, resp.History, 1, "expected one message in history")
	})

	t.Run("no conversation yet is an empty history", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("FindConversation", mock.Anything, "alice", "ghost").
			Return(database.Conversation{}, database.ErrNotFound).Once()
		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getDirectHistory(rr, authedRequest(http.MethodGet, "/api/history/direct?username=ghost", nil, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var resp struct {
			History []types.Message `json:"history"`
		}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "expected valid json response")
		assert.Empty(t, resp.History, "expected empty history, not an error")
	})
}
