package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"guildchat-backend/internal/channels"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/identity"
	"guildchat-backend/internal/membership"
	"guildchat-backend/internal/messages"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/voice"
)

var sugar *zap.SugaredLogger
var db *sql.DB
var cfg *models.ConfigFile

var users *identity.Store
var auth *credentials.Service
var servers *membership.Service
var channelService *channels.Service
var messageService *messages.Service
var voiceService *voice.Service

// Services are the domain services the routes call into.
type Services struct {
	Users       *identity.Store
	Credentials *credentials.Service
	Membership  *membership.Service
	Channels    *channels.Service
	Messages    *messages.Service
	Voice       *voice.Service
}

func NewRouter(_cfg *models.ConfigFile, _sugar *zap.SugaredLogger, _db *sql.DB, services Services) http.Handler {
	sugar = _sugar
	db = _db
	cfg = _cfg

	users = services.Users
	auth = services.Credentials
	servers = services.Membership
	channelService = services.Channels
	messageService = services.Messages
	voiceService = services.Voice

	r := chi.NewRouter()
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(recoverer)
	if cfg.Cors {
		r.Use(AllowCors)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/api/health", Health)

		r.Post("/register", Register)
		r.Post("/login", Login)
		r.Post("/login/oidc", LoginOIDC)
		r.Post("/requestRefreshToken", RequestRefreshToken)
		r.With(UserVerifier).Post("/logout", Logout)

		r.Route("/users", func(r chi.Router) {
			r.Use(UserVerifier)
			r.With(RequireAdmin).Get("/", ListUsers)
			r.Get("/me", GetCurrentUser)
			r.Put("/me", UpdateCurrentUser)
			r.Get("/{id}", GetUser)
			r.Delete("/{id}", DeleteUser)
			r.With(RequireAdmin).Put("/{id}/role", SetUserRole)
		})

		r.Route("/server", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/", GetServerList)
			r.Post("/", CreateServer)
			r.Post("/join/{inviteCode}", JoinServer)

			r.Route("/{serverId}", func(r chi.Router) {
				r.Get("/", GetServer)
				r.Put("/", UpdateServer)
				r.Delete("/", DeleteServer)

				r.Get("/members", GetMemberList)
				r.Post("/members", AddMember)
				r.Delete("/members/{userId}", RemoveMember)
				r.Post("/leave", LeaveServer)
				r.Post("/invite", RegenerateInvite)

				r.Get("/channels", GetChannelList)
				r.Post("/channels", CreateChannel)
				r.Put("/channels/{channelId}", UpdateChannel)
				r.Delete("/channels/{channelId}", DeleteChannel)
			})
		})

		r.Route("/api", func(api chi.Router) {
			api.Use(UserVerifier)

			// channel id for GET and POST, message id for PUT and DELETE
			api.Route("/messages/{id}", func(r chi.Router) {
				r.Get("/", GetMessageList)
				r.Post("/", CreateMessage)
				r.Put("/", EditMessage)
				r.Delete("/", DeleteMessage)
			})

			api.Post("/voice/token/{channelId}", VoiceToken)
			api.Get("/voice/room/{channelId}", VoiceRoom)
		})

		r.Route("/upload", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/user-avatar", UploadUserAvatar)
			r.Delete("/user-avatar", DeleteUserAvatar)
			r.Post("/server-avatar/{serverId}", UploadServerAvatar)
		})

		r.Handle("/cdn/*", http.StripPrefix("/cdn/", http.FileServer(http.Dir(cfg.UploadDir))))
	})

	// websockets live longer than the request timeout
	r.With(WebSocketVerifier).Get("/ws", HandleWebSocket)

	return r
}

func Setup(_cfg *models.ConfigFile, _sugar *zap.SugaredLogger, _db *sql.DB, services Services) error {
	r := NewRouter(_cfg, _sugar, _db, services)

	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)

	if cfg.IsHttps() {
		sugar.Infof("Listening on https://%s", address)
		return http.ListenAndServeTLS(address, cfg.TlsCert, cfg.TlsKey, r)
	}
	sugar.Infof("Listening on http://%s", address)
	return http.ListenAndServe(address, r)
}
