package channels

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
	"guildchat-backend/internal/validator"
)

const channelColumns = "id, server_id, name, type, description, is_active, created_at"

var errChannelNotFound = apperrors.NotFound("Channel not found")

func duplicateName() *apperrors.Error {
	return apperrors.Conflict("A channel with this name already exists in this server").WithStatus(http.StatusBadRequest)
}

// Gate answers the membership and ownership questions for a server.
type Gate interface {
	RequireMember(ctx context.Context, serverID int64, userID int64) (*models.Server, error)
	RequireOwner(ctx context.Context, serverID int64, userID int64) (*models.Server, error)
}

type Service struct {
	db    *sql.DB
	sugar *zap.SugaredLogger
	gate  Gate
}

func New(db *sql.DB, sugar *zap.SugaredLogger, gate Gate) *Service {
	return &Service{db: db, sugar: sugar, gate: gate}
}

// Patch holds the fields of an update, nil means unchanged.
type Patch struct {
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(row scanner) (*models.Channel, error) {
	var channel models.Channel
	var description sql.NullString
	var createdAt int64

	err := row.Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Type, &description, &channel.IsActive, &createdAt)
	if err != nil {
		return nil, err
	}

	channel.Description = description.String
	channel.CreatedAt = time.UnixMilli(createdAt)
	return &channel, nil
}

// Insert assigns id and creation time and stores the channel. Name and type must
// already be validated.
func Insert(ctx context.Context, q database.Querier, channel *models.Channel) error {
	channelID, err := snowflake.Generate()
	if err != nil {
		return apperrors.Internal(err)
	}

	channel.ID = channelID
	channel.IsActive = true
	channel.CreatedAt = time.UnixMilli(time.Now().UnixMilli())

	_, err = q.ExecContext(ctx,
		"INSERT INTO channels (id, server_id, name, type, description, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		channel.ID, channel.ServerID, channel.Name, channel.Type, channel.Description, channel.IsActive, channel.CreatedAt.UnixMilli())
	if database.IsUniqueViolation(err) {
		return duplicateName()
	} else if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ForServer lists the channels of a server in creation order.
func ForServer(ctx context.Context, q database.Querier, serverID int64) ([]models.Channel, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE server_id = ? ORDER BY created_at, id", serverID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		channels = append(channels, *channel)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return channels, nil
}

func load(ctx context.Context, q database.Querier, channelID int64) (*models.Channel, error) {
	row := q.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = ?", channelID)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errChannelNotFound
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}
	return channel, nil
}

func nameTaken(ctx context.Context, q database.Querier, serverID int64, name string, exceptChannelID int64) (bool, error) {
	var taken bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM channels WHERE server_id = ? AND name = ? AND id <> ?)", serverID, name, exceptChannelID).Scan(&taken)
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return taken, nil
}

// Get is used by the message, voice and realtime gates.
func (s *Service) Get(ctx context.Context, channelID int64) (*models.Channel, error) {
	return load(ctx, s.db, channelID)
}

func (s *Service) List(ctx context.Context, serverID int64, userID int64) ([]models.Channel, error) {
	if _, err := s.gate.RequireMember(ctx, serverID, userID); err != nil {
		return nil, err
	}
	return ForServer(ctx, s.db, serverID)
}

func (s *Service) Create(ctx context.Context, serverID int64, callerID int64, name string, channelType string, description string) (*models.Channel, error) {
	if _, err := s.gate.RequireOwner(ctx, serverID, callerID); err != nil {
		return nil, err
	}

	name, err := validator.ChannelName(name)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.ChannelType(channelType); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.Description(description); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	taken, err := nameTaken(ctx, s.db, serverID, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, duplicateName()
	}

	channel := &models.Channel{
		ServerID:    serverID,
		Name:        name,
		Type:        channelType,
		Description: description,
	}
	if err := Insert(ctx, s.db, channel); err != nil {
		return nil, err
	}

	s.sugar.Debugf("Created channel [%s] with ID [%d] in server ID [%d]", channel.Name, channel.ID, serverID)
	return channel, nil
}

// loadInServer hides channels of other servers behind NotFound.
func (s *Service) loadInServer(ctx context.Context, serverID int64, channelID int64) (*models.Channel, error) {
	channel, err := load(ctx, s.db, channelID)
	if err != nil {
		return nil, err
	}
	if channel.ServerID != serverID {
		return nil, errChannelNotFound
	}
	return channel, nil
}

func (s *Service) Update(ctx context.Context, serverID int64, channelID int64, callerID int64, patch Patch) (*models.Channel, error) {
	if _, err := s.gate.RequireOwner(ctx, serverID, callerID); err != nil {
		return nil, err
	}

	channel, err := s.loadInServer(ctx, serverID, channelID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name, err := validator.ChannelName(*patch.Name)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		taken, err := nameTaken(ctx, s.db, serverID, name, channelID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, duplicateName()
		}
		channel.Name = name
	}
	if patch.Type != nil {
		if err := validator.ChannelType(*patch.Type); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		channel.Type = *patch.Type
	}
	if patch.Description != nil {
		if err := validator.Description(*patch.Description); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		channel.Description = *patch.Description
	}

	_, err = s.db.ExecContext(ctx, "UPDATE channels SET name = ?, type = ?, description = ? WHERE id = ?",
		channel.Name, channel.Type, channel.Description, channel.ID)
	if database.IsUniqueViolation(err) {
		return nil, duplicateName()
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	return channel, nil
}

// Delete removes the channel and its messages.
func (s *Service) Delete(ctx context.Context, serverID int64, channelID int64, callerID int64) error {
	if _, err := s.gate.RequireOwner(ctx, serverID, callerID); err != nil {
		return err
	}

	if _, err := s.loadInServer(ctx, serverID, channelID); err != nil {
		return err
	}

	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE channel_id = ?", channelID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", channelID)
		return err
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	s.sugar.Debugf("Deleted channel ID [%d] of server ID [%d]", channelID, serverID)
	return nil
}
