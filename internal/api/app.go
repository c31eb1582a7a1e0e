package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/cdiaz/chatwire/internal/config"
	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/server"
)

type ChatwireApp struct {
	log            *log.Logger
	db             database.ChatRepository
	srv            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
	uploads        ObjectStore
	sid            *shortid.Shortid
}

func NewChatwireApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, uploads ObjectStore, cfg *config.Config) (*ChatwireApp, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	s := &ChatwireApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		uploads:        uploads,
		sid:            sid,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("PUT /api/rooms", s.authMiddleware(s.updateRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("GET /api/rooms/featured", s.authMiddleware(s.getFeaturedRooms))
	mux.Handle("POST /api/rooms/search", s.authMiddleware(s.searchRooms))
	mux.Handle("GET /api/user/rooms", s.authMiddleware(s.getUserRooms))
	mux.Handle("GET /api/user/pfp", s.authMiddleware(s.getUserPfp))
	mux.Handle("PUT /api/user", s.authMiddleware(s.updateUser))
	mux.Handle("DELETE /api/user", s.authMiddleware(s.deleteUser))
	mux.Handle("GET /api/friends", s.authMiddleware(s.getFriends))
	mux.Handle("POST /api/friends/request", s.authMiddleware(s.sendFriendRequest))
	mux.Handle("POST /api/friends/accept", s.authMiddleware(s.acceptFriendRequest))
	mux.Handle("POST /api/friends/reject", s.authMiddleware(s.rejectFriendRequest))
	mux.Handle("GET /api/history/room", s.authMiddleware(s.getRoomHistory))
	mux.Handle("GET /api/history/direct", s.authMiddleware(s.getDirectHistory))
	mux.Handle("POST /api/upload", s.authMiddleware(s.upload))
	mux.Handle("GET /uploads/", http.StripPrefix(uploadsPath, http.FileServer(http.Dir(cfg.UploadDir))))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s, nil
}

func (s *ChatwireApp) generateRoomId() (string, error) {
	return s.sid.Generate()
}

func (s *ChatwireApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *ChatwireApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
