// Package voice issues room-join tokens in the LiveKit access token format.
package voice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/models"
)

type Config struct {
	APIKey    string        `env:"LIVEKIT_API_KEY"`
	APISecret string        `env:"LIVEKIT_API_SECRET"`
	URL       string        `env:"LIVEKIT_URL"        envDefault:"ws://localhost:7880"`
	TokenTTL  time.Duration `env:"VOICE_TOKEN_TTL"    envDefault:"6h"`
}

// LoadConfigFromEnv reads the voice settings. Missing credentials aren't an error, the
// token endpoint answers 500 until they are configured.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse voice env: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("VOICE_TOKEN_TTL must be positive")
	}
	return cfg, nil
}

func (cfg Config) Configured() bool {
	return cfg.APIKey != "" && cfg.APISecret != ""
}

type VideoGrant struct {
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

type claims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

type Token struct {
	Token string `json:"token"`
	Room  string `json:"room"`
	URL   string `json:"url"`
}

type RoomInfo struct {
	Room         string   `json:"room"`
	Participants []string `json:"participants"`
	IsActive     bool     `json:"isActive"`
}

type ChannelLookup interface {
	Get(ctx context.Context, channelID int64) (*models.Channel, error)
}

type Gate interface {
	RequireMember(ctx context.Context, serverID int64, userID int64) (*models.Server, error)
}

type Service struct {
	cfg      Config
	sugar    *zap.SugaredLogger
	channels ChannelLookup
	gate     Gate
}

func New(cfg Config, sugar *zap.SugaredLogger, channels ChannelLookup, gate Gate) *Service {
	return &Service{cfg: cfg, sugar: sugar, channels: channels, gate: gate}
}

func RoomName(channelID int64) string {
	return "voice-" + strconv.FormatInt(channelID, 10)
}

func (s *Service) voiceChannel(ctx context.Context, channelID int64, userID int64) (*models.Channel, error) {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.RequireMember(ctx, channel.ServerID, userID); err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeVoice {
		return nil, apperrors.Validation("Not a voice channel")
	}
	return channel, nil
}

// IssueToken signs a token that lets the user join the room of a voice channel.
func (s *Service) IssueToken(ctx context.Context, channelID int64, user *models.User) (*Token, error) {
	if !s.cfg.Configured() {
		return nil, apperrors.Internal(fmt.Errorf("voice server credentials are not configured"))
	}

	channel, err := s.voiceChannel(ctx, channelID, user.ID)
	if err != nil {
		return nil, err
	}

	room := RoomName(channel.ID)
	name := user.DisplayName
	if name == "" {
		name = user.UserName
	}

	allow := true
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: name,
		Video: &VideoGrant{
			RoomJoin:       true,
			Room:           room,
			CanPublish:     &allow,
			CanSubscribe:   &allow,
			CanPublishData: &allow,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.APIKey,
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        strconv.FormatInt(user.ID, 10),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	})

	signed, err := token.SignedString([]byte(s.cfg.APISecret))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.sugar.Debugf("Issued voice token for user ID [%d] in room [%s]", user.ID, room)
	return &Token{Token: signed, Room: room, URL: s.cfg.URL}, nil
}

// RoomInfo describes the room of a voice channel. Participants aren't tracked here.
func (s *Service) RoomInfo(ctx context.Context, channelID int64, userID int64) (*RoomInfo, error) {
	channel, err := s.voiceChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	return &RoomInfo{Room: RoomName(channel.ID), Participants: []string{}, IsActive: true}, nil
}
