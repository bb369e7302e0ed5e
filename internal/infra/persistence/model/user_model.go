package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. Email is stored normalized and is unique.
type UserModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex:uq_users_email;not null"`
	UserName      string    `gorm:"type:varchar(255);not null"`
	Nickname      string    `gorm:"type:varchar(100);not null"`
	PasswordHash  *string   `gorm:"type:varchar(255)"`
	SecurityStamp string    `gorm:"type:varchar(64);not null"`
	Roles         []string  `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	ExternalLogins []ExternalLoginModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}

// ExternalLoginModel mirrors the 'user_external_logins' table.
// A provider subject belongs to one user, and a user has at most one link per provider.
type ExternalLoginModel struct {
	Provider  string    `gorm:"type:varchar(32);primaryKey;uniqueIndex:uq_external_logins_user_provider,priority:2"`
	SubjectID string    `gorm:"type:varchar(255);primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_external_logins_user_provider,priority:1"`
	CreatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (ExternalLoginModel) TableName() string {
	return "user_external_logins"
}
