package app

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"convoai/pkg/auth"
	"convoai/pkg/domain"
	mailpkg "convoai/pkg/mail"
)

// RegisterRequest carries a signup.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an unverified account and enqueues a verification email.
// Mail delivery is best effort; a broker outage never fails the signup.
func (a *App) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return domain.User{}, ErrWeakPassword
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := a.store.CreateUser(domain.User{
		Email:             email,
		Username:          strings.TrimSpace(req.Username),
		PasswordHash:      hash,
		VerificationToken: uuid.NewString(),
	})
	if err != nil {
		return domain.User{}, err
	}
	a.publishVerification(ctx, user)
	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns an access token. Unverified accounts
// cannot log in.
func (a *App) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return "", domain.User{}, err
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return "", domain.User{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return "", domain.User{}, ErrEmailNotVerified
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// VerifyEmail consumes a verification token: marks the account verified and
// provisions the default Free subscription.
func (a *App) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	user, ok, err := a.store.GetUserByVerificationToken(strings.TrimSpace(token))
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	user.EmailVerified = true
	user.VerificationToken = ""
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, err
	}
	if err := a.quota.ProvisionFreeSubscription(user.ID); err != nil {
		// The first admission check provisions it again; verification
		// itself succeeded.
		slog.Error("free subscription provisioning failed", "user_id", user.ID, "error", err)
	}
	slog.Info("email verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification enqueues a fresh verification email. It reports success
// for unknown and already verified addresses alike, so the endpoint cannot
// be used to probe which emails are registered.
func (a *App) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return err
	}
	if !ok || user.EmailVerified {
		return nil
	}
	if user.VerificationToken == "" {
		user.VerificationToken = uuid.NewString()
		if err := a.store.UpdateUser(user); err != nil {
			return err
		}
	}
	a.publishVerification(ctx, user)
	return nil
}

// UserFromToken resolves an access token to its account.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, ErrInvalidToken
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

// ActiveSubscription returns the user's effective subscription, provisioning
// the Free tier when none exists.
func (a *App) ActiveSubscription(ctx context.Context, user domain.User) (domain.UserSubscription, error) {
	now := time.Now().UTC()
	sub, ok, err := a.store.ActiveSubscription(user.ID, now)
	if err != nil {
		return domain.UserSubscription{}, err
	}
	if ok {
		return sub, nil
	}
	if err := a.quota.ProvisionFreeSubscription(user.ID); err != nil {
		return domain.UserSubscription{}, err
	}
	sub, _, err = a.store.ActiveSubscription(user.ID, now)
	return sub, err
}

// ListPlans returns the plan catalog ordered by price, making sure the Free
// tier exists.
func (a *App) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	plans, err := a.store.ListPlans()
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		if err := a.quota.EnsureFreePlan(); err != nil {
			return nil, err
		}
		plans, err = a.store.ListPlans()
		if err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (a *App) publishVerification(ctx context.Context, user domain.User) {
	if a.mail == nil || user.VerificationToken == "" {
		return
	}
	job := mailpkg.Job{Email: user.Email, Username: user.Username, Token: user.VerificationToken}
	if err := a.mail.Publish(ctx, job); err != nil {
		slog.Error("verification email enqueue failed", "user_id", user.ID, "error", err)
	}
}
