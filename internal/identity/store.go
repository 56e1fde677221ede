package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
)

const authorCacheSize = 4096

const userColumns = "id, email, username, display_name, avatar, role, password, created_at"

var errUserNotFound = apperrors.NotFound("User not found")

// Store owns the users table.
type Store struct {
	db      *sql.DB
	sugar   *zap.SugaredLogger
	authors *lru.Cache
}

func New(db *sql.DB, sugar *zap.SugaredLogger) (*Store, error) {
	authors, err := lru.New(authorCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sugar: sugar, authors: authors}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	var displayName, avatar sql.NullString
	var createdAt int64

	err := row.Scan(&user.ID, &user.Email, &user.UserName, &displayName, &avatar, &user.Role, &user.Password, &createdAt)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName.String
	user.Avatar = avatar.String
	user.CreatedAt = time.UnixMilli(createdAt)
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create assigns the id and creation time and inserts the user. Password may be nil
// for accounts that only log in through OIDC.
func (s *Store) Create(ctx context.Context, user *models.User) error {
	userID, err := snowflake.Generate()
	if err != nil {
		return apperrors.Internal(err)
	}

	user.ID = userID
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.UnixMilli(time.Now().UnixMilli())
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	var password any
	if len(user.Password) > 0 {
		password = user.Password
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, username, display_name, avatar, role, password, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.UserName, nullString(user.DisplayName), nullString(user.Avatar), user.Role, password, user.CreatedAt.UnixMilli())
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("Username or email already exists")
	} else if err != nil {
		return apperrors.Internal(err)
	}

	s.sugar.Debugf("Created user [%s] with ID [%d]", user.UserName, user.ID)
	return nil
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errUserNotFound
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *Store) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return s.getOne(ctx, "id = ?", userID)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "email = ?", strings.ToLower(email))
}

// GetByLogin accepts either a username or an email address.
func (s *Store) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.getOne(ctx, "username = ? OR email = ?", login, strings.ToLower(login))
}

// Taken reports whether the username or the email is already used by someone.
func (s *Store) Taken(ctx context.Context, username string, email string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)", username, strings.ToLower(email)).Scan(&taken)
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return taken, nil
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username).Scan(&taken)
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return taken, nil
}

func (s *Store) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return exists, nil
}

func (s *Store) update(ctx context.Context, userID int64, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Internal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(err)
	}
	if rowsAffected == 0 {
		// mysql reports 0 for updates that didn't change anything
		exists, err := s.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return errUserNotFound
		}
	}

	s.authors.Remove(userID)
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, displayName string) error {
	return s.update(ctx, userID, "UPDATE users SET display_name = ? WHERE id = ?", nullString(displayName), userID)
}

func (s *Store) SetAvatar(ctx context.Context, userID int64, avatar string) error {
	return s.update(ctx, userID, "UPDATE users SET avatar = ? WHERE id = ?", nullString(avatar), userID)
}

func (s *Store) SetRole(ctx context.Context, userID int64, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return apperrors.Validation(fmt.Sprintf("Role must be %s or %s", models.RoleUser, models.RoleAdmin))
	}
	return s.update(ctx, userID, "UPDATE users SET role = ? WHERE id = ?", role, userID)
}

func (s *Store) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

// Delete removes the user together with every server they own and all of their
// memberships. Messages they wrote keep their author snapshot.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		statements := []string{
			"DELETE FROM messages WHERE channel_id IN (SELECT c.id FROM channels c JOIN servers s ON s.id = c.server_id WHERE s.owner_id = ?)",
			"DELETE FROM channels WHERE server_id IN (SELECT id FROM servers WHERE owner_id = ?)",
			"DELETE FROM server_members WHERE server_id IN (SELECT id FROM servers WHERE owner_id = ?)",
			"DELETE FROM servers WHERE owner_id = ?",
			"DELETE FROM server_members WHERE user_id = ?",
		}
		for _, statement := range statements {
			if _, err := tx.ExecContext(ctx, statement, userID); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return errUserNotFound
		}
		return nil
	})
	if err != nil {
		return apperrors.From(err)
	}

	s.authors.Remove(userID)
	s.sugar.Infof("Deleted user ID [%d]", userID)
	return nil
}

// Snapshot returns the author data copied into new messages, cached per user.
func (s *Store) Snapshot(ctx context.Context, userID int64) (models.Author, error) {
	if cached, ok := s.authors.Get(userID); ok {
		return cached.(models.Author), nil
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return models.Author{}, err
	}

	author := models.Author{ID: user.ID, UserName: user.UserName}
	if user.Avatar != "" {
		avatar := user.Avatar
		author.Avatar = &avatar
	}

	s.authors.Add(userID, author)
	return author, nil
}
