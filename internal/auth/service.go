package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	pkgauth "github.com/tinysprouts/tinysprouts-backend/pkg/auth"
	"github.com/tinysprouts/tinysprouts-backend/pkg/auth/session"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	redisclient "github.com/tinysprouts/tinysprouts-backend/pkg/redis"
	"github.com/tinysprouts/tinysprouts-backend/pkg/security"
	"github.com/tinysprouts/tinysprouts-backend/pkg/types"
)

const otpLength = 6

type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	OTPKey(phone string) string
}

type userResolver interface {
	ResolveUser(ctx context.Context, phone types.PhoneNumber) (*catalog.User, error)
}

type sessionIssuer interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// CodeSender delivers a one-time code to a phone number.
type CodeSender interface {
	Send(ctx context.Context, phone types.PhoneNumber, code string) error
}

// LogSender writes codes to the log instead of sending SMS. Dev only.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, phone types.PhoneNumber, code string) error {
	ctx = s.Logger.WithField(ctx, "phone", string(phone))
	s.Logger.Info(ctx, fmt.Sprintf("sign-in code issued: %s", code))
	return nil
}

// VerifyResult is the signed-in session handed back after a correct code.
type VerifyResult struct {
	User         *catalog.User `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
}

// Service implements the phone sign-in flow.
type Service interface {
	RequestCode(ctx context.Context, rawPhone string) error
	Verify(ctx context.Context, rawPhone, code string) (*VerifyResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*VerifyResult, error)
	SignOut(ctx context.Context, accessID string) error
}

type service struct {
	codes    codeStore
	users    userResolver
	sessions sessionIssuer
	sender   CodeSender
	jwtCfg   config.JWTConfig
	otpCfg   config.OTPConfig
	rateCfg  config.AuthRateLimitConfig
	logger   *logger.Logger
}

// NewService builds the sign-in service.
func NewService(
	codes codeStore,
	users userResolver,
	sessions sessionIssuer,
	sender CodeSender,
	jwtCfg config.JWTConfig,
	otpCfg config.OTPConfig,
	rateCfg config.AuthRateLimitConfig,
	logg *logger.Logger,
) (Service, error) {
	if codes == nil {
		return nil, fmt.Errorf("code store required")
	}
	if users == nil {
		return nil, fmt.Errorf("user resolver required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if sender == nil {
		return nil, fmt.Errorf("code sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if otpCfg.CodeTTL <= 0 {
		return nil, fmt.Errorf("otp code ttl must be positive")
	}
	return &service{
		codes:    codes,
		users:    users,
		sessions: sessions,
		sender:   sender,
		jwtCfg:   jwtCfg,
		otpCfg:   otpCfg,
		rateCfg:  rateCfg,
		logger:   logg,
	}, nil
}

// RequestCode issues a one-time sign-in code for a 10-digit phone number.
func (s *service) RequestCode(ctx context.Context, rawPhone string) error {
	phone, ok := types.ParsePhoneNumber(rawPhone)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number must be 10 digits")
	}

	allowed, _, err := s.codes.FixedWindowAllow(ctx, "otp:request:"+string(phone),
		int64(s.rateCfg.RequestCodePhoneLimit), s.rateCfg.RequestCodeWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking request rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many code requests, try again later")
	}

	code, err := security.GenerateCode(otpLength)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating sign-in code")
	}
	hash, err := security.HashCode(code, s.otpCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing sign-in code")
	}
	if err := s.codes.Set(ctx, s.codes.OTPKey(string(phone)), hash, s.otpCfg.CodeTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing sign-in code")
	}
	if err := s.sender.Send(ctx, phone, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivering sign-in code")
	}
	return nil
}

// Verify checks a submitted code and, when correct, opens a session: the
// upstream user record plus an access/refresh token pair. Codes are single
// use.
func (s *service) Verify(ctx context.Context, rawPhone, code string) (*VerifyResult, error) {
	phone, ok := types.ParsePhoneNumber(rawPhone)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number must be 10 digits")
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	allowed, _, err := s.codes.FixedWindowAllow(ctx, "otp:verify:"+string(phone),
		int64(s.rateCfg.VerifyPhoneLimit), s.rateCfg.VerifyWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking verify rate limit")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, request a new code")
	}

	key := s.codes.OTPKey(string(phone))
	hash, err := s.codes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "code expired or was never requested")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading sign-in code")
	}

	match, err := security.VerifyCode(code, hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying sign-in code")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "incorrect code")
	}

	if err := s.codes.Del(ctx, key); err != nil {
		// The code was accepted; a failed delete only shortens nothing.
		s.logger.Warn(s.logger.WithField(ctx, "phone", string(phone)), "consuming sign-in code failed")
	}

	user, err := s.users.ResolveUser(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user, phone)
}

// Refresh rotates a refresh token into a fresh access/refresh pair.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*VerifyResult, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Phone:  types.PhoneNumber(claims.Phone),
		Name:   claims.Name,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &VerifyResult{
		AccessToken:  token,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute / time.Second),
	}, nil
}

// SignOut revokes the refresh session behind an access token id.
func (s *service) SignOut(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

func (s *service) openSession(ctx context.Context, user *catalog.User, phone types.PhoneNumber) (*VerifyResult, error) {
	accessID := session.NewAccessID()
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "opening session")
	}
	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Phone:  phone,
		Name:   user.Name,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &VerifyResult{
		User:         user,
		AccessToken:  token,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute / time.Second),
	}, nil
}
