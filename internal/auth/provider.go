package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"school-directory/internal/mailer"
	"school-directory/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const codeLength = 6

// Provider is the auth issuer the sign-in flow talks to.
type Provider interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*Session, error)
	// Restore resolves a session token. It returns ErrInvalidToken or
	// ErrSessionNotFound when the token no longer grants access.
	Restore(ctx context.Context, token string) (*Session, error)
	// SignOut revokes the session behind token. Unknown or empty tokens are ignored.
	SignOut(ctx context.Context, token string) error
}

type OTPConfig struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	SessionTTL     time.Duration
}

func (c OTPConfig) withDefaults() OTPConfig {
	if c.CodeTTL <= 0 {
		c.CodeTTL = 10 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	return c
}

// OTPProvider issues emailed one-time codes and turns a verified code into a session.
type OTPProvider struct {
	challenges ChallengeStore
	mailer     mailer.Mailer
	repo       Repository
	tokens     *TokenIssuer
	cfg        OTPConfig
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *metrics.Metrics

	now      func() time.Time
	hashCost int
}

func NewOTPProvider(challenges ChallengeStore, m mailer.Mailer, repo Repository, tokens *TokenIssuer, cfg OTPConfig, logger *slog.Logger, metrics *metrics.Metrics) *OTPProvider {
	return &OTPProvider{
		challenges: challenges,
		mailer:     m,
		repo:       repo,
		tokens:     tokens,
		cfg:        cfg.withDefaults(),
		validate:   validator.New(),
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		hashCost:   bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(math.Pow10(codeLength))))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}

func (p *OTPProvider) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return providerError(msgInvalidEmail, err)
	}

	now := p.now()

	existing, err := p.challenges.Get(ctx, email)
	switch {
	case err == nil && p.cfg.ResendCooldown > 0:
		if wait := existing.IssuedAt.Add(p.cfg.ResendCooldown).Sub(now); wait > 0 {
			seconds := int(math.Ceil(wait.Seconds()))
			return providerError(fmt.Sprintf(msgRateLimitedFmt, seconds), nil)
		}
	case err != nil && !errors.Is(err, ErrChallengeNotFound):
		p.logger.ErrorContext(ctx, "failed to read otp challenge", "error", err)
		return providerError(msgSendFailed, err)
	}

	code, err := generateCode()
	if err != nil {
		return providerError(msgSendFailed, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), p.hashCost)
	if err != nil {
		return providerError(msgSendFailed, err)
	}

	challenge := Challenge{
		CodeHash:  string(hash),
		IssuedAt:  now,
		ExpiresAt: now.Add(p.cfg.CodeTTL),
	}
	if err := p.challenges.Save(ctx, email, challenge); err != nil {
		p.logger.ErrorContext(ctx, "failed to store otp challenge", "error", err)
		return providerError(msgSendFailed, err)
	}

	msg := mailer.Message{
		To:      email,
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your sign-in code is %s\n\nIt expires in %d minutes. If you did not request it, ignore this email.",
			code, int(p.cfg.CodeTTL.Minutes())),
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send otp email", "error", err)
		_ = p.challenges.Delete(ctx, email)
		return providerError(msgSendFailed, err)
	}

	p.metrics.RecordOTPRequested(ctx)
	p.logger.InfoContext(ctx, "otp sent", "email", email, "expires_at", challenge.ExpiresAt)
	return nil
}

func (p *OTPProvider) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if len(code) != codeLength {
		return nil, providerError(msgInvalidCode, nil)
	}

	now := p.now()

	challenge, err := p.challenges.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrChallengeNotFound) {
			p.logger.ErrorContext(ctx, "failed to read otp challenge", "error", err)
		}
		return nil, providerError(msgInvalidCode, err)
	}
	if !now.Before(challenge.ExpiresAt) {
		_ = p.challenges.Delete(ctx, email)
		return nil, providerError(msgInvalidCode, nil)
	}

	// Count the attempt before comparing so concurrent guesses cannot share
	// one slot of the budget.
	attempts, err := p.challenges.RecordAttempt(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrChallengeNotFound) {
			p.logger.ErrorContext(ctx, "failed to record otp attempt", "error", err)
		}
		return nil, providerError(msgInvalidCode, err)
	}
	if attempts > p.cfg.MaxAttempts {
		_ = p.challenges.Delete(ctx, email)
		return nil, providerError(msgInvalidCode, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)); err != nil {
		if attempts >= p.cfg.MaxAttempts {
			_ = p.challenges.Delete(ctx, email)
		}
		return nil, providerError(msgInvalidCode, err)
	}

	// A code is good for one sign-in only.
	consumed, err := p.challenges.Consume(ctx, email)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to consume otp challenge", "error", err)
		return nil, providerError(msgSignInFailed, err)
	}
	if !consumed {
		return nil, providerError(msgInvalidCode, nil)
	}

	session, err := p.startSession(ctx, email, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to start session", "error", err)
		return nil, providerError(msgSignInFailed, err)
	}

	p.metrics.RecordOTPVerified(ctx)
	p.logger.InfoContext(ctx, "user signed in", "user_id", session.UserID)
	return session, nil
}

func (p *OTPProvider) startSession(ctx context.Context, email string, now time.Time) (*Session, error) {
	user, err := p.repo.GetOrCreateUser(ctx, email, now)
	if err != nil {
		return nil, err
	}

	record, err := p.repo.CreateSession(ctx, user.ID, now, now.Add(p.cfg.SessionTTL))
	if err != nil {
		return nil, err
	}

	token, err := p.tokens.Issue(record, user.Email)
	if err != nil {
		return nil, err
	}

	return &Session{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (p *OTPProvider) Restore(ctx context.Context, token string) (*Session, error) {
	claims, sessionID, err := p.parse(token)
	if err != nil {
		return nil, err
	}

	record, err := p.repo.GetSession(ctx, sessionID, p.now())
	if err != nil {
		return nil, err
	}

	return &Session{
		UserID:    record.UserID.String(),
		Email:     claims.Email,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (p *OTPProvider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, sessionID, err := p.parse(token)
	if err != nil {
		return nil
	}

	if err := p.repo.DeleteSession(ctx, sessionID); err != nil {
		// The row stays until the expired-session purge removes it.
		p.logger.ErrorContext(ctx, "failed to revoke session", "session_id", sessionID, "error", err)
		return err
	}

	p.metrics.RecordSignOut(ctx)
	return nil
}

func (p *OTPProvider) parse(token string) (*Claims, uuid.UUID, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, sessionID, nil
}

// PurgeExpiredSessions deletes expired session rows and returns how many were removed.
func (p *OTPProvider) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return p.repo.DeleteExpiredSessions(ctx, p.now())
}
