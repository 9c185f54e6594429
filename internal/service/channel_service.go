package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/chanlink/internal/delivery"
	"github.com/xxxsen/chanlink/internal/limiter"
	"github.com/xxxsen/chanlink/internal/model"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
	"github.com/xxxsen/chanlink/internal/pkg/password"
	"github.com/xxxsen/chanlink/internal/pkg/verifycode"
)

const (
	flowLink  = "link"
	flowReset = "reset"

	// link codes are looked up without an account; an unused one must be
	// unique, so a colliding code is drawn again
	linkCodeAttempts = 5
)

type LinkCodeResult struct {
	Code         string
	Instructions string
	ExpiresAt    time.Time
}

type LinkStatus struct {
	Linked         bool
	ChannelAddress string
}

type ChannelOption func(*ChannelService)

func WithChannelClock(now func() time.Time) ChannelOption {
	return func(s *ChannelService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithChannelLimiter(l limiter.Limiter) ChannelOption {
	return func(s *ChannelService) {
		if l != nil {
			s.limiter = l
		}
	}
}

func WithCodeTTL(ttl time.Duration) ChannelOption {
	return func(s *ChannelService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// ChannelService runs the link and password reset flows on top of the
// account store, the code store and a delivery channel.
type ChannelService struct {
	accounts AccountStore
	codes    CodeStore
	sender   delivery.Sender
	limiter  limiter.Limiter
	now      func() time.Time
	ttl      time.Duration
	gen      *verifycode.Generator
	hasher   *verifycode.Hasher
}

func NewChannelService(accounts AccountStore, codes CodeStore, sender delivery.Sender, hasher *verifycode.Hasher, opts ...ChannelOption) *ChannelService {
	s := &ChannelService{
		accounts: accounts,
		codes:    codes,
		sender:   sender,
		hasher:   hasher,
		limiter:  limiter.Nop(),
		now:      time.Now,
		ttl:      verifycode.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gen = verifycode.NewGenerator(verifycode.WithClock(s.now), verifycode.WithTTL(s.ttl))
	return s
}

// RequestLink issues a link code for the account behind email. The code is
// handed back to the caller, who relays it to the chat the user wants to link.
func (s *ChannelService) RequestLink(ctx context.Context, email string) (*LinkCodeResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, appErr.ErrInvalid
	}
	if err := s.limiter.Allow(ctx, "link:request:"+email); err != nil {
		return nil, err
	}
	user, err := s.lookupAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.requestLink(ctx, user)
}

// RequestLinkForUser is RequestLink for an authenticated caller. A non-empty
// email must name the caller's own account, otherwise ErrForbidden.
func (s *ChannelService) RequestLinkForUser(ctx context.Context, userID, email string) (*LinkCodeResult, error) {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrAccountNotFound
		}
		return nil, err
	}
	if email = normalizeEmail(email); email != "" && email != user.Email {
		return nil, appErr.ErrForbidden
	}
	if err := s.limiter.Allow(ctx, "link:request:"+user.Email); err != nil {
		return nil, err
	}
	return s.requestLink(ctx, user)
}

func (s *ChannelService) requestLink(ctx context.Context, user *model.User) (*LinkCodeResult, error) {
	if user.IsLinked() {
		return nil, appErr.ErrAlreadyLinked
	}
	code, expiresAt, err := s.issueLinkCode(ctx, user.ID)
	if err != nil {
		logutil.GetLogger(ctx).Error("issue link code failed",
			zap.String("user_id", user.ID), zap.String("flow", flowLink), zap.Error(err))
		return nil, err
	}
	return &LinkCodeResult{
		Code:         code,
		Instructions: fmt.Sprintf("Send /link %s to the bot within %d minutes.", code, s.ttlMinutes()),
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ChannelService) issueLinkCode(ctx context.Context, userID string) (string, time.Time, error) {
	for i := 0; i < linkCodeAttempts; i++ {
		code, expiresAt, err := s.gen.Generate()
		if err != nil {
			return "", time.Time{}, err
		}
		err = s.issue(ctx, userID, model.CodePurposeLink, code, expiresAt)
		if errors.Is(err, appErr.ErrConflict) {
			continue
		}
		if err != nil {
			return "", time.Time{}, err
		}
		return code, expiresAt, nil
	}
	return "", time.Time{}, fmt.Errorf("no free link code after %d attempts", linkCodeAttempts)
}

func (s *ChannelService) issue(ctx context.Context, userID, purpose, code string, expiresAt time.Time) error {
	now := s.now().Unix()
	return s.codes.Issue(ctx, &model.ChannelCode{
		ID:        newID(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  s.hasher.Sum(code),
		Ctime:     now,
		Utime:     now,
		ExpiresAt: expiresAt.UnixMilli(),
	})
}

// ConfirmLink consumes a link code and binds channelAddress to the account
// that requested it. A consumed code stays consumed even if binding fails.
func (s *ChannelService) ConfirmLink(ctx context.Context, code, channelAddress string) (*model.User, error) {
	code = strings.TrimSpace(code)
	channelAddress = strings.TrimSpace(channelAddress)
	if channelAddress == "" {
		return nil, appErr.ErrInvalid
	}
	limitKey := "link:confirm:" + channelAddress
	if err := s.limiter.Allow(ctx, limitKey); err != nil {
		return nil, err
	}
	if !verifycode.Valid(code) {
		return nil, appErr.ErrInvalidCode
	}
	now := s.now()
	item, err := s.codes.ConsumeByCode(ctx, model.CodePurposeLink, s.hasher.Sum(code), now)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrInvalidCode
		}
		return nil, err
	}
	owner, err := s.accounts.GetByChannelAddress(ctx, channelAddress)
	switch {
	case err == nil && owner.ID != item.UserID:
		return nil, appErr.ErrChannelTaken
	case err != nil && !appErr.IsNotFound(err):
		return nil, err
	}
	if err := s.accounts.LinkChannel(ctx, item.UserID, channelAddress, now.Unix()); err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrAccountNotFound
		}
		return nil, err
	}
	user, err := s.accounts.GetByID(ctx, item.UserID)
	if err != nil {
		return nil, err
	}
	s.resetLimit(ctx, limitKey)

	text := fmt.Sprintf("This chat is now linked to <b>%s</b>. Password reset codes will be sent here.", html.EscapeString(user.Email))
	if err := s.sender.Send(ctx, channelAddress, text); err != nil {
		logutil.GetLogger(ctx).Warn("send link confirmation failed",
			zap.String("user_id", user.ID), zap.String("flow", flowLink), zap.Error(err))
	}
	return user, nil
}

func (s *ChannelService) LinkStatus(ctx context.Context, email string) (*LinkStatus, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, appErr.ErrInvalid
	}
	user, err := s.lookupAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	return &LinkStatus{Linked: user.IsLinked(), ChannelAddress: user.ChannelAddress}, nil
}

func (s *ChannelService) LinkStatusByID(ctx context.Context, userID string) (*LinkStatus, error) {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrAccountNotFound
		}
		return nil, err
	}
	return &LinkStatus{Linked: user.IsLinked(), ChannelAddress: user.ChannelAddress}, nil
}

// RequestReset issues a reset code and sends it to the linked chat. When the
// send fails the code is kept and ErrDeliveryFailed is returned.
func (s *ChannelService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return appErr.ErrInvalid
	}
	if err := s.limiter.Allow(ctx, "reset:request:"+email); err != nil {
		return err
	}
	user, err := s.lookupAccount(ctx, email)
	if err != nil {
		return err
	}
	if !user.IsLinked() {
		return appErr.ErrChannelNotLinked
	}
	code, expiresAt, err := s.gen.Generate()
	if err != nil {
		return err
	}
	if err := s.issue(ctx, user.ID, model.CodePurposeReset, code, expiresAt); err != nil {
		logutil.GetLogger(ctx).Error("issue reset code failed",
			zap.String("user_id", user.ID), zap.String("flow", flowReset), zap.Error(err))
		return err
	}
	text := fmt.Sprintf("Your password reset code is <b>%s</b>. It expires in %d minutes.", code, s.ttlMinutes())
	if err := s.sender.Send(ctx, user.ChannelAddress, text); err != nil {
		logutil.GetLogger(ctx).Error("deliver reset code failed",
			zap.String("user_id", user.ID), zap.String("flow", flowReset), zap.Error(err))
		return appErr.ErrDeliveryFailed
	}
	return nil
}

// ConfirmReset consumes a reset code of the account and replaces its password.
func (s *ChannelService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return appErr.ErrInvalid
	}
	if err := password.Validate(newPassword); err != nil {
		return appErr.ErrInvalid
	}
	limitKey := "reset:confirm:" + email
	if err := s.limiter.Allow(ctx, limitKey); err != nil {
		return err
	}
	user, err := s.lookupAccount(ctx, email)
	if err != nil {
		return err
	}
	if !verifycode.Valid(code) {
		return appErr.ErrInvalidCode
	}
	now := s.now()
	if _, err := s.codes.Consume(ctx, user.ID, model.CodePurposeReset, s.hasher.Sum(code), now); err != nil {
		if appErr.IsNotFound(err) {
			return appErr.ErrInvalidCode
		}
		return err
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, user.ID, hash, now.Unix()); err != nil {
		logutil.GetLogger(ctx).Error("update password failed",
			zap.String("user_id", user.ID), zap.String("flow", flowReset), zap.Error(err))
		return err
	}
	s.resetLimit(ctx, limitKey)
	return nil
}

func (s *ChannelService) resetLimit(ctx context.Context, key string) {
	if err := s.limiter.Reset(ctx, key); err != nil {
		logutil.GetLogger(ctx).Warn("reset attempt limit failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ChannelService) lookupAccount(ctx context.Context, email string) (*model.User, error) {
	user, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrAccountNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *ChannelService) ttlMinutes() int {
	m := int(s.ttl / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
