package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/chanlink/internal/model"
	"github.com/xxxsen/chanlink/internal/pkg/dbutil"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
)

var userFields = []string{"id", "name", "email", "password_hash", "channel_address", "ctime", "mtime"}

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	data := map[string]interface{}{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"ctime":         user.Ctime,
		"mtime":         user.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("users", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"email": email})
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"id": userID})
}

// GetByChannelAddress returns the account owning address, if any.
func (r *UserRepo) GetByChannelAddress(ctx context.Context, address string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"channel_address": address})
}

func (r *UserRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", where, userFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var user model.User
	var address sql.NullString
	if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &address, &user.Ctime, &user.Mtime); err != nil {
		return nil, err
	}
	user.ChannelAddress = address.String
	return &user, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error {
	where := map[string]interface{}{"id": userID}
	update := map[string]interface{}{
		"password_hash": passwordHash,
		"mtime":         mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("users", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// LinkChannel binds address to the user in one conditional write. The unique
// index on channel_address rejects an address owned by someone else, and the
// IS NULL guard rejects a second link for the same user.
func (r *UserRepo) LinkChannel(ctx context.Context, userID, address string, mtime int64) error {
	query := r.db.Rebind(`UPDATE users SET channel_address = ?, mtime = ? WHERE id = ? AND channel_address IS NULL`)
	result, err := r.db.ExecContext(ctx, query, address, mtime, userID)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrChannelTaken
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ChannelAddress == address {
		return nil
	}
	return appErr.ErrAlreadyLinked
}
