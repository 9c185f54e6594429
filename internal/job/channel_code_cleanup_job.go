package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type expiredCodeDeleter interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChannelCodeCleanupJob drops channel codes that expired more than retention
// ago. Live codes are never touched.
type ChannelCodeCleanupJob struct {
	codes     expiredCodeDeleter
	retention time.Duration
	now       func() time.Time
}

func NewChannelCodeCleanupJob(codes expiredCodeDeleter, retention time.Duration) *ChannelCodeCleanupJob {
	return &ChannelCodeCleanupJob{codes: codes, retention: retention, now: time.Now}
}

func (j *ChannelCodeCleanupJob) Name() string {
	return "channel_code_cleanup"
}

func (j *ChannelCodeCleanupJob) Run(ctx context.Context) error {
	if j.codes == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	cutoff := j.now().Add(-retention)
	deleted, err := j.codes.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("expired channel codes removed", zap.Int64("count", deleted))
	}
	return nil
}
