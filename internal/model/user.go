package model

type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PasswordHash   string `json:"-"`
	ChannelAddress string `json:"channel_address,omitempty"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

func (u *User) IsLinked() bool {
	return u != nil && u.ChannelAddress != ""
}
