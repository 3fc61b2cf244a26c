package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByNIF(ctx context.Context, nif string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID snowflake.ID) error
}
