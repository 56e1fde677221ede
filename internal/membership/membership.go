package membership

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/channels"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
	"guildchat-backend/internal/validator"
)

const serverColumns = "id, owner_id, name, description, avatar, invite_code, is_active, created_at"

var (
	errServerNotFound = apperrors.NotFound("Server not found")
	errNotMember      = apperrors.Forbidden("You are not a member of this server")
	errNotOwner       = apperrors.Forbidden("Only the server owner can do this")
	errUserNotFound   = apperrors.NotFound("User not found")
)

func alreadyMember() *apperrors.Error {
	return apperrors.Conflict("User is already a member of this server").WithStatus(http.StatusBadRequest)
}

var defaultChannels = []models.Channel{
	{Name: "general", Type: models.ChannelTypeText, Description: "General discussion channel"},
	{Name: "General Voice", Type: models.ChannelTypeVoice, Description: "General voice channel"},
}

// Service owns servers and their rosters.
type Service struct {
	db    *sql.DB
	sugar *zap.SugaredLogger
}

func New(db *sql.DB, sugar *zap.SugaredLogger) *Service {
	return &Service{db: db, sugar: sugar}
}

// Patch holds the fields of a server update, nil means unchanged.
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (*models.Server, error) {
	var server models.Server
	var description, avatar, inviteCode sql.NullString
	var createdAt int64

	err := row.Scan(&server.ID, &server.OwnerID, &server.Name, &description, &avatar, &inviteCode, &server.IsActive, &createdAt)
	if err != nil {
		return nil, err
	}

	server.Description = description.String
	server.Avatar = avatar.String
	server.InviteCode = inviteCode.String
	server.CreatedAt = time.UnixMilli(createdAt)
	return &server, nil
}

func loadServer(ctx context.Context, q database.Querier, serverID int64) (*models.Server, error) {
	row := q.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE id = ?", serverID)
	server, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errServerNotFound
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}
	return server, nil
}

func isMember(ctx context.Context, q database.Querier, serverID int64, userID int64) (bool, error) {
	var member bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, userID).Scan(&member)
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return member, nil
}

func loadMembers(ctx context.Context, q database.Querier, serverID int64) ([]models.Member, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.user_id, m.joined_at, m.nickname, u.username, u.display_name, u.avatar
		FROM server_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.server_id = ?
		ORDER BY m.joined_at, m.user_id`, serverID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var member models.Member
		var joinedAt int64
		var nickname, displayName, avatar sql.NullString

		err := rows.Scan(&member.UserID, &joinedAt, &nickname, &member.UserName, &displayName, &avatar)
		if err != nil {
			return nil, apperrors.Internal(err)
		}

		member.JoinedAt = time.UnixMilli(joinedAt)
		if nickname.Valid {
			member.Nickname = &nickname.String
		}
		member.DisplayName = displayName.String
		member.Avatar = avatar.String
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return members, nil
}

func insertMember(ctx context.Context, q database.Querier, serverID int64, userID int64, nickname *string) (*models.Member, error) {
	joinedAt := time.UnixMilli(time.Now().UnixMilli())

	_, err := q.ExecContext(ctx, "INSERT INTO server_members (server_id, user_id, joined_at, nickname) VALUES (?, ?, ?, ?)",
		serverID, userID, joinedAt.UnixMilli(), nickname)
	if database.IsUniqueViolation(err) {
		return nil, alreadyMember()
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &models.Member{UserID: userID, JoinedAt: joinedAt, Nickname: nickname}, nil
}

// populate fills in the roster and the channels.
func (s *Service) populate(ctx context.Context, q database.Querier, server *models.Server) error {
	members, err := loadMembers(ctx, q, server.ID)
	if err != nil {
		return err
	}
	serverChannels, err := channels.ForServer(ctx, q, server.ID)
	if err != nil {
		return err
	}

	server.Members = members
	server.Channels = serverChannels
	return nil
}

// RequireMember is the relationship gate: the server must exist and the user must be in
// its roster.
func (s *Service) RequireMember(ctx context.Context, serverID int64, userID int64) (*models.Server, error) {
	server, err := loadServer(ctx, s.db, serverID)
	if err != nil {
		return nil, err
	}
	if server.IsOwner(userID) {
		return server, nil
	}

	member, err := isMember(ctx, s.db, serverID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errNotMember
	}
	return server, nil
}

// RequireOwner is the ownership gate.
func (s *Service) RequireOwner(ctx context.Context, serverID int64, userID int64) (*models.Server, error) {
	server, err := loadServer(ctx, s.db, serverID)
	if err != nil {
		return nil, err
	}
	if !server.IsOwner(userID) {
		return nil, errNotOwner
	}
	return server, nil
}

// ListServersForUser returns every server the user owns or belongs to.
func (s *Service) ListServersForUser(ctx context.Context, userID int64) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serverColumns+` FROM servers
		WHERE owner_id = ? OR id IN (SELECT server_id FROM server_members WHERE user_id = ?)
		ORDER BY created_at, id`, userID, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		servers = append(servers, *server)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return servers, nil
}

func (s *Service) GetServer(ctx context.Context, serverID int64, userID int64) (*models.Server, error) {
	server, err := s.RequireMember(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.populate(ctx, s.db, server); err != nil {
		return nil, err
	}
	return server, nil
}

// CreateServer stores the server with its owner as the only member and the two
// default channels.
func (s *Service) CreateServer(ctx context.Context, ownerID int64, name string, description string) (*models.Server, error) {
	name, err := validator.ServerName(name)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.Description(description); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	serverID, err := snowflake.Generate()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	server := &models.Server{
		ID:          serverID,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   time.UnixMilli(time.Now().UnixMilli()),
	}

	err = database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		inviteCode, err := uniqueInviteCode(ctx, tx, serverID)
		if err != nil {
			return err
		}
		server.InviteCode = inviteCode

		_, err = tx.ExecContext(ctx,
			"INSERT INTO servers (id, owner_id, name, description, invite_code, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			server.ID, server.OwnerID, server.Name, server.Description, server.InviteCode, server.IsActive, server.CreatedAt.UnixMilli())
		if err != nil {
			return err
		}

		if _, err := insertMember(ctx, tx, server.ID, ownerID, nil); err != nil {
			return err
		}

		for _, template := range defaultChannels {
			channel := template
			channel.ServerID = server.ID
			if err := channels.Insert(ctx, tx, &channel); err != nil {
				return err
			}
		}

		return s.populate(ctx, tx, server)
	})
	if err != nil {
		return nil, apperrors.From(err)
	}

	s.sugar.Infof("User ID [%d] created server [%s] with ID [%d]", ownerID, server.Name, server.ID)
	return server, nil
}

func (s *Service) UpdateServer(ctx context.Context, serverID int64, callerID int64, patch Patch) (*models.Server, error) {
	server, err := s.RequireOwner(ctx, serverID, callerID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name, err := validator.ServerName(*patch.Name)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		server.Name = name
	}
	if patch.Description != nil {
		if err := validator.Description(*patch.Description); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		server.Description = *patch.Description
	}

	_, err = s.db.ExecContext(ctx, "UPDATE servers SET name = ?, description = ? WHERE id = ?", server.Name, server.Description, server.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return server, nil
}

// SetAvatar stores the avatar path of a server, only its owner may change it.
func (s *Service) SetAvatar(ctx context.Context, serverID int64, callerID int64, avatar string) (*models.Server, error) {
	server, err := s.RequireOwner(ctx, serverID, callerID)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, "UPDATE servers SET avatar = ? WHERE id = ?", avatar, serverID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	server.Avatar = avatar
	return server, nil
}

// DeleteServer removes the server with its channels, messages and roster.
func (s *Service) DeleteServer(ctx context.Context, serverID int64, callerID int64) error {
	if _, err := s.RequireOwner(ctx, serverID, callerID); err != nil {
		return err
	}

	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		statements := []string{
			"DELETE FROM messages WHERE channel_id IN (SELECT id FROM channels WHERE server_id = ?)",
			"DELETE FROM channels WHERE server_id = ?",
			"DELETE FROM server_members WHERE server_id = ?",
			"DELETE FROM servers WHERE id = ?",
		}
		for _, statement := range statements {
			if _, err := tx.ExecContext(ctx, statement, serverID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	s.sugar.Infof("User ID [%d] deleted server ID [%d]", callerID, serverID)
	return nil
}

func (s *Service) AddMember(ctx context.Context, serverID int64, callerID int64, targetUserID int64, nickname *string) (*models.Member, error) {
	if _, err := s.RequireOwner(ctx, serverID, callerID); err != nil {
		return nil, err
	}
	if nickname != nil {
		if err := validator.Nickname(*nickname); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
	}

	var member *models.Member
	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		var userExists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", targetUserID).Scan(&userExists)
		if err != nil {
			return err
		}
		if !userExists {
			return errUserNotFound
		}

		already, err := isMember(ctx, tx, serverID, targetUserID)
		if err != nil {
			return err
		}
		if already {
			return alreadyMember()
		}

		member, err = insertMember(ctx, tx, serverID, targetUserID, nickname)
		return err
	})
	if err != nil {
		return nil, apperrors.From(err)
	}

	s.sugar.Debugf("User ID [%d] added user ID [%d] to server ID [%d]", callerID, targetUserID, serverID)
	return member, nil
}

// RemoveMember checks in a fixed order: the owner can never be removed, not even by
// themselves, then only the owner may remove anyone.
func (s *Service) RemoveMember(ctx context.Context, serverID int64, callerID int64, targetUserID int64) error {
	server, err := loadServer(ctx, s.db, serverID)
	if err != nil {
		return err
	}
	if server.IsOwner(targetUserID) {
		return apperrors.Validation("Cannot remove server owner")
	}
	if !server.IsOwner(callerID) {
		return errNotOwner
	}

	return s.deleteMember(ctx, serverID, targetUserID)
}

func (s *Service) deleteMember(ctx context.Context, serverID int64, userID int64) error {
	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return apperrors.Validation("User is not a member of this server")
		}
		return nil
	})
	if err != nil {
		return apperrors.From(err)
	}

	s.sugar.Debugf("Removed user ID [%d] from server ID [%d]", userID, serverID)
	return nil
}

// LeaveServer removes the caller from a server they don't own.
func (s *Service) LeaveServer(ctx context.Context, serverID int64, userID int64) error {
	server, err := loadServer(ctx, s.db, serverID)
	if err != nil {
		return err
	}
	if server.IsOwner(userID) {
		return apperrors.Validation("The owner can't leave their own server")
	}

	return s.deleteMember(ctx, serverID, userID)
}

func (s *Service) ListMembers(ctx context.Context, serverID int64, userID int64) ([]models.Member, error) {
	if _, err := s.RequireMember(ctx, serverID, userID); err != nil {
		return nil, err
	}
	return loadMembers(ctx, s.db, serverID)
}

func (s *Service) JoinByInviteCode(ctx context.Context, inviteCode string, userID int64) (*models.Server, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE invite_code = ? AND is_active = ?", inviteCode, true)
	server, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Invalid invite code")
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	err = database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		already, err := isMember(ctx, tx, server.ID, userID)
		if err != nil {
			return err
		}
		if already || server.IsOwner(userID) {
			return apperrors.Conflict("You are already a member of this server").WithStatus(http.StatusBadRequest)
		}

		if _, err := insertMember(ctx, tx, server.ID, userID, nil); err != nil {
			return err
		}
		return s.populate(ctx, tx, server)
	})
	if err != nil {
		return nil, apperrors.From(err)
	}

	s.sugar.Debugf("User ID [%d] joined server ID [%d] with an invite code", userID, server.ID)
	return server, nil
}

// RegenerateInvite replaces the invite code, the old one stops working.
func (s *Service) RegenerateInvite(ctx context.Context, serverID int64, callerID int64) (string, error) {
	if _, err := s.RequireOwner(ctx, serverID, callerID); err != nil {
		return "", err
	}

	var inviteCode string
	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		inviteCode, err = uniqueInviteCode(ctx, tx, serverID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE servers SET invite_code = ? WHERE id = ?", inviteCode, serverID)
		return err
	})
	if err != nil {
		return "", apperrors.From(err)
	}
	return inviteCode, nil
}
