package model

import "time"

const (
	CodePurposeLink  = "link"
	CodePurposeReset = "reset"
)

// ChannelCode is a one-time code issued for a user and delivered over a
// chat channel. Used moves from 0 to 1 once and never back. ExpiresAt is in
// unix milliseconds, the other times in seconds.
type ChannelCode struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Purpose   string `json:"purpose"`
	CodeHash  string `json:"-"`
	Used      int    `json:"used"`
	Ctime     int64  `json:"ctime"`
	Utime     int64  `json:"utime"`
	ExpiresAt int64  `json:"expires_at"`
}

func (c *ChannelCode) Live(now time.Time) bool {
	return c.Used == 0 && c.ExpiresAt > now.UnixMilli()
}
