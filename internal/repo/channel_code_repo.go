package repo

import (
	"context"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/chanlink/internal/model"
	"github.com/xxxsen/chanlink/internal/pkg/dbutil"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
)

// consumeRetries bounds how often Consume looks for another candidate after
// losing the compare-and-set on a row to a concurrent caller.
const consumeRetries = 4

var channelCodeFields = []string{"id", "user_id", "purpose", "code_hash", "used", "ctime", "utime", "expires_at"}

type ChannelCodeRepo struct {
	db *sqlx.DB
}

func NewChannelCodeRepo(db *sqlx.DB) *ChannelCodeRepo {
	return &ChannelCodeRepo{db: db}
}

// Issue stores a new unused code. A link code whose hash is still held by
// another live link code yields ErrConflict.
func (r *ChannelCodeRepo) Issue(ctx context.Context, code *model.ChannelCode) error {
	if code.Purpose == model.CodePurposeLink {
		if err := r.retireExpiredLink(ctx, code.CodeHash, code.Ctime); err != nil {
			return err
		}
	}
	data := map[string]interface{}{
		"id":         code.ID,
		"user_id":    code.UserID,
		"purpose":    code.Purpose,
		"code_hash":  code.CodeHash,
		"used":       0,
		"ctime":      code.Ctime,
		"utime":      code.Ctime,
		"expires_at": code.ExpiresAt,
	}
	sqlStr, args, err := builder.BuildInsert("channel_codes", []map[string]interface{}{data})
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

// retireExpiredLink marks expired unused link codes with codeHash as used so
// they stop holding the hash before the cleanup job removes them.
func (r *ChannelCodeRepo) retireExpiredLink(ctx context.Context, codeHash string, now int64) error {
	query := r.db.Rebind(`UPDATE channel_codes SET used = 1, utime = ? WHERE purpose = ? AND code_hash = ? AND used = 0 AND expires_at <= ?`)
	_, err := r.db.ExecContext(ctx, query, now, model.CodePurposeLink, codeHash, now*1000)
	return err
}

// Consume marks one live code of userID matching codeHash as used and returns
// it. ErrNotFound means nothing was consumable at now.
func (r *ChannelCodeRepo) Consume(ctx context.Context, userID, purpose, codeHash string, now time.Time) (*model.ChannelCode, error) {
	return r.consume(ctx, map[string]interface{}{
		"user_id":   userID,
		"purpose":   purpose,
		"code_hash": codeHash,
		"used":      0,
	}, now)
}

// ConsumeByCode is Consume for callers that only know the code.
func (r *ChannelCodeRepo) ConsumeByCode(ctx context.Context, purpose, codeHash string, now time.Time) (*model.ChannelCode, error) {
	return r.consume(ctx, map[string]interface{}{
		"purpose":   purpose,
		"code_hash": codeHash,
		"used":      0,
	}, now)
}

func (r *ChannelCodeRepo) consume(ctx context.Context, where map[string]interface{}, now time.Time) (*model.ChannelCode, error) {
	for i := 0; i < consumeRetries; i++ {
		candidate, err := r.findLive(ctx, where, now)
		if err != nil {
			return nil, err
		}
		ok, err := r.markUsed(ctx, candidate.ID, now)
		if err != nil {
			return nil, err
		}
		if ok {
			candidate.Used = 1
			candidate.Utime = now.Unix()
			return candidate, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (r *ChannelCodeRepo) findLive(ctx context.Context, base map[string]interface{}, now time.Time) (*model.ChannelCode, error) {
	where := make(map[string]interface{}, len(base)+3)
	for k, v := range base {
		where[k] = v
	}
	where["_custom_live"] = builder.Custom("expires_at > ?", now.UnixMilli())
	where["_orderby"] = "ctime desc"
	where["_limit"] = []uint{0, 1}
	sqlStr, args, err := builder.BuildSelect("channel_codes", where, channelCodeFields)
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
	var code model.ChannelCode
	if err := rows.Scan(&code.ID, &code.UserID, &code.Purpose, &code.CodeHash, &code.Used, &code.Ctime, &code.Utime, &code.ExpiresAt); err != nil {
		return nil, err
	}
	return &code, nil
}

// markUsed flips used from 0 to 1. It reports false when the row was already
// used or expired by the time the update ran.
func (r *ChannelCodeRepo) markUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	query := r.db.Rebind(`UPDATE channel_codes SET used = 1, utime = ? WHERE id = ? AND used = 0 AND expires_at > ?`)
	result, err := r.db.ExecContext(ctx, query, now.Unix(), id, now.UnixMilli())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ChannelCodeRepo) ListByUser(ctx context.Context, userID, purpose string) ([]model.ChannelCode, error) {
	where := map[string]interface{}{"user_id": userID, "purpose": purpose, "_orderby": "ctime desc"}
	sqlStr, args, err := builder.BuildSelect("channel_codes", where, channelCodeFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	codes := make([]model.ChannelCode, 0)
	for rows.Next() {
		var code model.ChannelCode
		if err := rows.Scan(&code.ID, &code.UserID, &code.Purpose, &code.CodeHash, &code.Used, &code.Ctime, &code.Utime, &code.ExpiresAt); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *ChannelCodeRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM channel_codes WHERE expires_at < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
