package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	StatusOpen   = "open"
	StatusSolved = "solved"

	// SentinelUsername owns content whose author was deleted. It is never
	// deleted itself.
	SentinelUsername = "system"

	MigratedPrefix = "[MIGRATED]"
)

type User struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:50" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	DisplayName  string    `gorm:"not null;size:40" json:"display_name"`
	Role         string    `gorm:"not null;default:'user';size:10" json:"role"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// UserPublic is the identity shape returned to clients and kept in the
// request context. It maps onto the users table so memos and comments can
// preload their author without the password hash.
type UserPublic struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (u User) Public() UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}

func (u UserPublic) IsAdmin() bool { return u.Role == RoleAdmin }

type Session struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"-"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type Memo struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	AuthorID   string     `gorm:"type:uuid;not null;index" json:"author_id"`
	Title      string     `gorm:"type:text;not null" json:"title"`
	Body       string     `gorm:"type:text;not null" json:"body"`
	Category   string     `gorm:"not null;size:20;index" json:"category"`
	Status     string     `gorm:"not null;default:'open';size:10;index" json:"status"`
	AssigneeID *string    `gorm:"type:uuid" json:"assignee_id"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;index" json:"updated_at"`
	SolvedAt   *time.Time `json:"solved_at"`

	Author   *UserPublic `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT" json:"author,omitempty"`
	Comments []Comment   `gorm:"foreignKey:MemoID;constraint:OnDelete:CASCADE" json:"-"`
}

type Comment struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	MemoID    string    `gorm:"type:uuid;not null;index" json:"memo_id"`
	AuthorID  string    `gorm:"type:uuid;not null;index" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsAnswer  bool      `gorm:"not null;default:false" json:"is_answer"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Author *UserPublic `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT" json:"author,omitempty"`
}

func (User) TableName() string       { return "board.users" }
func (UserPublic) TableName() string { return "board.users" }
func (Session) TableName() string    { return "board.sessions" }
func (Memo) TableName() string       { return "board.memos" }
func (Comment) TableName() string    { return "board.comments" }

// Schema is the postgres schema every table lives in.
const Schema = "board"
