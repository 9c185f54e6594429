package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/chanlink/internal/pkg/verifycode"
	"github.com/xxxsen/chanlink/internal/repo"
	"github.com/xxxsen/chanlink/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	address string
	text    string
}

// fakeSender records every message, including the ones it fails.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, address, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{address: address, text: text})
	return f.err
}

func (f *fakeSender) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no message sent")
	return f.sent[len(f.sent)-1]
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(f.last(t).text)
	require.NotEmpty(t, code, "no code in message")
	return code
}

type testEnv struct {
	auth    *AuthService
	channel *ChannelService
	users   *repo.UserRepo
	codes   *repo.ChannelCodeRepo
	sender  *fakeSender
	clock   *fakeClock
	hasher  *verifycode.Hasher
}

func newTestEnv(t *testing.T, opts ...ChannelOption) *testEnv {
	t.Helper()
	conn := testutil.OpenTestDB(t)
	env := &testEnv{
		users:  repo.NewUserRepo(conn),
		codes:  repo.NewChannelCodeRepo(conn),
		sender: &fakeSender{},
		clock:  newFakeClock(),
	}
	hasher, err := verifycode.NewHasher([]byte("code-secret"))
	require.NoError(t, err)
	env.hasher = hasher
	env.auth = NewAuthService(env.users, []byte("test-secret"), time.Hour)
	opts = append([]ChannelOption{WithChannelClock(env.clock.Now)}, opts...)
	env.channel = NewChannelService(env.users, env.codes, env.sender, hasher, opts...)
	return env
}

func (e *testEnv) register(t *testing.T, email, pass string) string {
	t.Helper()
	user, _, err := e.auth.Register(context.Background(), "", email, pass)
	require.NoError(t, err)
	return user.ID
}

func (e *testEnv) link(t *testing.T, email, address string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.channel.RequestLink(ctx, email)
	require.NoError(t, err)
	_, err = e.channel.ConfirmLink(ctx, res.Code, address)
	require.NoError(t, err)
}
