package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ChannelTypeText  = "text"
	ChannelTypeVoice = "voice"
)

type User struct {
	ID          int64     `json:"id,string"`
	UserName    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      string    `json:"avatar"`
	Role        string    `json:"role,omitempty"`
	Password    []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public strips the fields other users shouldn't see.
func (u User) Public() User {
	return User{
		ID:          u.ID,
		UserName:    u.UserName,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		CreatedAt:   u.CreatedAt,
	}
}

type Member struct {
	UserID      int64     `json:"userId,string"`
	JoinedAt    time.Time `json:"joinedAt"`
	Nickname    *string   `json:"nickname"`
	UserName    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
}

type Server struct {
	ID          int64     `json:"id,string"`
	OwnerID     int64     `json:"ownerId,string"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar"`
	InviteCode  string    `json:"inviteCode,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	Members     []Member  `json:"members,omitempty"`
	Channels    []Channel `json:"channels,omitempty"`
}

func (s *Server) IsOwner(userID int64) bool {
	return s.OwnerID == userID
}

// IsMember only looks at the loaded roster, the owner always counts.
func (s *Server) IsMember(userID int64) bool {
	if s.IsOwner(userID) {
		return true
	}
	for _, m := range s.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

type Channel struct {
	ID          int64     `json:"id,string"`
	ServerID    int64     `json:"serverId,string"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Author is copied into every message so attribution survives later profile changes.
type Author struct {
	ID       int64   `json:"id,string"`
	UserName string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

type Message struct {
	ID        int64      `json:"id,string"`
	ChannelID int64      `json:"channelId,string"`
	Message   string     `json:"message"`
	User      Author     `json:"user"`
	Timestamp time.Time  `json:"timestamp"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type MessagePage struct {
	Data       []Message  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type OIDCProvider struct {
	Name        string
	ClientID    string
	ProviderURL string
}

type ConfigFile struct {
	Address                  string
	Port                     string
	TlsCert                  string
	TlsKey                   string
	Cors                     bool
	AllowedOrigins           []string
	PrintHttpRequests        bool
	LogToFile                bool
	LogLevel                 string
	Environment              string
	AccessTokenSecret        string
	RefreshTokenSecret       string
	AccessTokenLifetime      time.Duration
	RefreshTokenLifetime     time.Duration
	SnowflakeWorkerID        int64
	SelfContained            bool
	SqlitePath               string
	DbUser                   string
	DbPassword               string
	DbAddress                string
	DbPort                   string
	DbDatabase               string
	RedisAddress             string
	RedisPassword            string
	RedisDB                  int
	EnforceMessageMembership bool
	UploadDir                string
	MaxAvatarBytes           int64
	OIDC                     []OIDCProvider
}

func (cfg *ConfigFile) IsDevelopment() bool {
	return cfg.Environment == "development"
}

func (cfg *ConfigFile) IsHttps() bool {
	return cfg.TlsCert != "" && cfg.TlsKey != ""
}
