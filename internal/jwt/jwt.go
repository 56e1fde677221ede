package jwt

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"guildchat-backend/internal/models"
)

const RefreshCookieName = "refreshToken"

type AccessToken struct {
	UserID   int64  `json:"id,string"`
	UserName string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type RefreshToken struct {
	UserID    int64  `json:"id,string"`
	UserName  string `json:"username"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar,omitempty"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
	jwt.RegisteredClaims
}

var accessSecret []byte
var refreshSecret []byte
var accessLifetime time.Duration
var refreshLifetime time.Duration
var isHttps bool

var errInvalidToken = errors.New("invalid token")

func Setup(cfg *models.ConfigFile) {
	accessSecret = []byte(cfg.AccessTokenSecret)
	refreshSecret = []byte(cfg.RefreshTokenSecret)
	accessLifetime = cfg.AccessTokenLifetime
	refreshLifetime = cfg.RefreshTokenLifetime
	isHttps = cfg.IsHttps()
}

func RefreshLifetime() time.Duration {
	return refreshLifetime
}

func CreateAccessToken(user *models.User) (string, error) {
	currentTime := time.Now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessToken{
		UserID:   user.ID,
		UserName: user.UserName,
		Email:    user.Email,
		Avatar:   user.Avatar,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(accessLifetime)),
		},
	})

	return token.SignedString(accessSecret)
}

// CreateRefreshToken returns the signed token together with its unique id, which is the
// key the revocation store tracks.
func CreateRefreshToken(user *models.User) (string, string, error) {
	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", "", err
	}

	currentTime := time.Now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshToken{
		UserID:    user.ID,
		UserName:  user.UserName,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(refreshLifetime)),
		},
	})

	signed, err := token.SignedString(refreshSecret)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID.String(), nil
}

func VerifyAccessToken(tokenString string) (AccessToken, error) {
	var claims AccessToken
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return AccessToken{}, err
	}
	if claims.UserID == 0 {
		return AccessToken{}, errInvalidToken
	}
	return claims, nil
}

func VerifyRefreshToken(tokenString string) (RefreshToken, error) {
	var claims RefreshToken
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return RefreshToken{}, err
	}
	if claims.ID == "" || claims.UserID == 0 {
		return RefreshToken{}, errInvalidToken
	}
	return claims, nil
}

// UnverifiedTokenID reads the jti of a refresh token without checking signature or expiry,
// so a rejected token can still be revoked.
func UnverifiedTokenID(tokenString string) string {
	var claims RefreshToken
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims)
	if err != nil {
		return ""
	}
	return claims.ID
}

func RefreshCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(refreshLifetime.Seconds()),
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteStrictMode,
	}
}

func ClearRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteStrictMode,
	}
}
