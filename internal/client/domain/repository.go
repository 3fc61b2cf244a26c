package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Client, error)
	FindByNIF(ctx context.Context, db *gorm.DB, companyID snowflake.ID, nif string) (*Client, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*Client, error)
	Update(ctx context.Context, db *gorm.DB, client *Client) error
	Delete(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) error
}
