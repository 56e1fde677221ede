package voice

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/models"
)

type fakeChannels map[int64]*models.Channel

func (f fakeChannels) Get(ctx context.Context, channelID int64) (*models.Channel, error) {
	channel, ok := f[channelID]
	if !ok {
		return nil, apperrors.NotFound("Channel not found")
	}
	return channel, nil
}

// members of server 1: user 10
type fakeGate struct{}

func (fakeGate) RequireMember(ctx context.Context, serverID int64, userID int64) (*models.Server, error) {
	if serverID == 1 && userID == 10 {
		return &models.Server{ID: 1, OwnerID: 10}, nil
	}
	return nil, apperrors.Forbidden("You are not a member of this server")
}

func newService(cfg Config) *Service {
	channels := fakeChannels{
		100: {ID: 100, ServerID: 1, Name: "general", Type: models.ChannelTypeText},
		200: {ID: 200, ServerID: 1, Name: "General Voice", Type: models.ChannelTypeVoice},
	}
	return New(cfg, zap.NewNop().Sugar(), channels, fakeGate{})
}

var testConfig = Config{APIKey: "key", APISecret: "secret", URL: "wss://voice.example.com", TokenTTL: time.Hour}

func TestIssueToken(t *testing.T) {
	service := newService(testConfig)
	user := &models.User{ID: 10, UserName: "someone"}

	token, err := service.IssueToken(context.Background(), 200, user)
	require.NoError(t, err)
	assert.Equal(t, "voice-200", token.Room)
	assert.Equal(t, "wss://voice.example.com", token.URL)

	var parsed claims
	_, err = jwt.ParseWithClaims(token.Token, &parsed, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "key", parsed.Issuer)
	assert.Equal(t, "10", parsed.Subject)
	assert.Equal(t, "someone", parsed.Name)
	require.NotNil(t, parsed.Video)
	assert.True(t, parsed.Video.RoomJoin)
	assert.Equal(t, "voice-200", parsed.Video.Room)
}

func TestIssueTokenErrors(t *testing.T) {
	service := newService(testConfig)
	ctx := context.Background()

	tests := []struct {
		name      string
		channelID int64
		userID    int64
		status    int
	}{
		{"text channel", 100, 10, http.StatusBadRequest},
		{"not a member", 200, 11, http.StatusForbidden},
		{"missing channel", 300, 10, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.IssueToken(ctx, tc.channelID, &models.User{ID: tc.userID, UserName: "someone"})
			require.Error(t, err)
			assert.Equal(t, tc.status, apperrors.From(err).HTTPStatus())
		})
	}

	unconfigured := newService(Config{TokenTTL: time.Hour})
	_, err := unconfigured.IssueToken(ctx, 200, &models.User{ID: 10})
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestRoomInfo(t *testing.T) {
	service := newService(testConfig)

	info, err := service.RoomInfo(context.Background(), 200, 10)
	require.NoError(t, err)
	assert.Equal(t, "voice-200", info.Room)
	assert.True(t, info.IsActive)
	assert.Empty(t, info.Participants)

	_, err = service.RoomInfo(context.Background(), 100, 10)
	assert.Equal(t, http.StatusBadRequest, apperrors.From(err).HTTPStatus())

	_, err = service.RoomInfo(context.Background(), 200, 11)
	assert.Equal(t, http.StatusForbidden, apperrors.From(err).HTTPStatus())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LIVEKIT_API_KEY", " key ")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("VOICE_TOKEN_TTL", "30m")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "ws://localhost:7880", cfg.URL)
	assert.True(t, cfg.Configured())
}
