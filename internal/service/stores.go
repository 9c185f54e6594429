package service

import (
	"context"
	"time"

	"github.com/xxxsen/chanlink/internal/model"
)

type AccountStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByChannelAddress(ctx context.Context, address string) (*model.User, error)
	LinkChannel(ctx context.Context, userID, address string, mtime int64) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error
}

type CodeStore interface {
	Issue(ctx context.Context, code *model.ChannelCode) error
	Consume(ctx context.Context, userID, purpose, codeHash string, now time.Time) (*model.ChannelCode, error)
	ConsumeByCode(ctx context.Context, purpose, codeHash string, now time.Time) (*model.ChannelCode, error)
}
