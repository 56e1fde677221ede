package messages

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

const messageColumns = "id, channel_id, author_id, author_username, author_avatar, message, created_at, edited, edited_at"

var (
	errMessageNotFound = apperrors.NotFound("Message not found")
	errEmptyMessage    = apperrors.Validation("Message cannot be empty")
	errNotAuthor       = apperrors.Forbidden("You can only change your own messages")
)

type ChannelLookup interface {
	Get(ctx context.Context, channelID int64) (*models.Channel, error)
}

type Gate interface {
	RequireMember(ctx context.Context, serverID int64, userID int64) (*models.Server, error)
}

type AuthorLookup interface {
	Snapshot(ctx context.Context, userID int64) (models.Author, error)
}

type Service struct {
	db       *sql.DB
	sugar    *zap.SugaredLogger
	channels ChannelLookup
	gate     Gate
	authors  AuthorLookup
	// when false anyone logged in can read and post in any channel
	enforceMembership bool
}

func New(db *sql.DB, sugar *zap.SugaredLogger, channels ChannelLookup, gate Gate, authors AuthorLookup, enforceMembership bool) *Service {
	return &Service{
		db:                db,
		sugar:             sugar,
		channels:          channels,
		gate:              gate,
		authors:           authors,
		enforceMembership: enforceMembership,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*models.Message, error) {
	var message models.Message
	var avatar sql.NullString
	var createdAt int64
	var editedAt sql.NullInt64

	err := row.Scan(&message.ID, &message.ChannelID, &message.User.ID, &message.User.UserName, &avatar,
		&message.Message, &createdAt, &message.Edited, &editedAt)
	if err != nil {
		return nil, err
	}

	if avatar.Valid {
		message.User.Avatar = &avatar.String
	}
	message.Timestamp = time.UnixMilli(createdAt)
	if editedAt.Valid {
		t := time.UnixMilli(editedAt.Int64)
		message.EditedAt = &t
	}
	return &message, nil
}

// checkAccess loads the channel and applies the relationship gate of its server.
func (s *Service) checkAccess(ctx context.Context, channelID int64, userID int64) (*models.Channel, error) {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if s.enforceMembership {
		if _, err := s.gate.RequireMember(ctx, channel.ServerID, userID); err != nil {
			return nil, err
		}
	}
	return channel, nil
}

func (s *Service) Append(ctx context.Context, channelID int64, authorID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyMessage
	}

	if _, err := s.checkAccess(ctx, channelID, authorID); err != nil {
		return nil, err
	}

	author, err := s.authors.Snapshot(ctx, authorID)
	if err != nil {
		return nil, err
	}

	messageID, err := snowflake.Generate()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	message := &models.Message{
		ID:        messageID,
		ChannelID: channelID,
		Message:   body,
		User:      author,
		Timestamp: time.UnixMilli(time.Now().UnixMilli()),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (id, channel_id, author_id, author_username, author_avatar, message, created_at, edited) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		message.ID, message.ChannelID, author.ID, author.UserName, author.Avatar, message.Message, message.Timestamp.UnixMilli(), false)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.sugar.Debugf("User ID [%d] sent message ID [%d] to channel ID [%d]", authorID, message.ID, channelID)
	return message, nil
}

// Page returns one window of the channel history. Windows are counted from the newest
// message backwards, the messages inside a window are oldest first.
func (s *Service) Page(ctx context.Context, channelID int64, userID int64, page int, limit int) (*models.MessagePage, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	if _, err := s.checkAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}

	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE channel_id = ?", channelID).Scan(&total)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE channel_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		channelID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		messages = append(messages, *message)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return &models.MessagePage{
		Data:       messages,
		Pagination: models.Pagination{Page: page, Limit: limit, Total: total},
	}, nil
}

func (s *Service) loadOwn(ctx context.Context, messageID int64, callerID int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", messageID)
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errMessageNotFound
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	if message.User.ID != callerID {
		return nil, errNotAuthor
	}
	return message, nil
}

func (s *Service) Edit(ctx context.Context, messageID int64, callerID int64, body string) (*models.Message, error) {
	message, err := s.loadOwn(ctx, messageID, callerID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errEmptyMessage
	}

	editedAt := time.UnixMilli(time.Now().UnixMilli())
	_, err = s.db.ExecContext(ctx, "UPDATE messages SET message = ?, edited = ?, edited_at = ? WHERE id = ?",
		body, true, editedAt.UnixMilli(), messageID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	message.Message = body
	message.Edited = true
	message.EditedAt = &editedAt
	return message, nil
}

// Delete returns the removed message so callers know which channel it was in.
func (s *Service) Delete(ctx context.Context, messageID int64, callerID int64) (*models.Message, error) {
	message, err := s.loadOwn(ctx, messageID, callerID)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", messageID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.sugar.Debugf("User ID [%d] deleted message ID [%d]", callerID, messageID)
	return message, nil
}
