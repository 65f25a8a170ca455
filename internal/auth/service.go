package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriqo/server/internal/apperr"
	"github.com/veriqo/server/internal/model"
	"github.com/veriqo/server/internal/notify"
	"github.com/veriqo/server/internal/repo"
)

// SignupInput is the payload for registering a new user.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     *string
	Phone     string
	Password  string
}

// Service orchestrates signup, sign-in, OTP verification, magic-link and
// password-reset flows.
type Service struct {
	users       repo.UserRepo
	sink        notify.Sink
	creds       *CredentialStore
	tokens      *TokenIssuer
	otp         *OTPLifecycle
	secret      []byte
	frontendURL string
	log         *zap.Logger
}

// NewService creates an authentication service. secret is the global
// session signing key; frontendURL is the base for magic-link and
// reset-password URLs.
func NewService(
	users repo.UserRepo,
	sink notify.Sink,
	creds *CredentialStore,
	tokens *TokenIssuer,
	otp *OTPLifecycle,
	secret string,
	frontendURL string,
	log *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		sink:        sink,
		creds:       creds,
		tokens:      tokens,
		otp:         otp,
		secret:      []byte(secret),
		frontendURL: frontendURL,
		log:         log,
	}
}

func otpMessage(code string) string {
	return fmt.Sprintf("Here is your OTP %s. Please don't share it with anyone. OTP is valid for only 5 min", code)
}

// mapRepoErr converts repository conflict signals into the user-visible
// taxonomy; anything else propagates unmodified.
func mapRepoErr(err error) error {
	var conflict *repo.ConflictError
	if errors.As(err, &conflict) {
		return apperr.Conflict("%s already exists", conflict.Field)
	}
	return err
}

// Signup registers a user with a hashed password and a freshly issued
// OTP, dispatching the code by SMS. Persistence and dispatch run
// concurrently; both are joined before the call reports success, and a
// dispatch failure does not roll back the persisted record.
func (s *Service) Signup(ctx context.Context, in SignupInput) (model.Response, error) {
	if _, err := s.users.FindByPhone(ctx, in.Phone); err == nil {
		return model.Response{}, apperr.Conflict("Provided Phone number was already registered")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.Response{}, err
	}
	if in.Email != nil {
		if _, err := s.users.FindByEmail(ctx, *in.Email); err == nil {
			return model.Response{}, apperr.Conflict("Provided email was already registered")
		} else if !errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, err
		}
	}

	password, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return model.Response{}, err
	}
	issued, err := s.otp.Generate()
	if err != nil {
		return model.Response{}, err
	}

	var id uuid.UUID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		created, err := s.users.Create(gctx, repo.CreateUser{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Email:        in.Email,
			Password:     password,
			OTPHash:      issued.Hash,
			OTPExpiresAt: issued.ExpiresAt,
		})
		if err != nil {
			return mapRepoErr(err)
		}
		id = created
		return nil
	})
	g.Go(func() error {
		if err := s.sink.SendSMS(gctx, in.Phone, otpMessage(issued.Code)); err != nil {
			s.log.Error("failed to send signup OTP", zap.Error(err))
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Response{}, err
	}

	return model.Response{
		Message: fmt.Sprintf("We sent you an OTP on %s. OTP expires in 5 min", in.Phone),
		Data:    model.IDPayload{ID: id},
	}, nil
}

// Signin checks the password of a verified user and issues a fresh
// sign-in OTP, overwriting any outstanding code.
func (s *Service) Signin(ctx context.Context, phone, password string) (model.Response, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.Unauthorized("Invalid credentials")
		}
		return model.Response{}, err
	}
	if !s.creds.VerifyPassword(password, user.Password) {
		return model.Response{}, apperr.Unauthorized("Invalid credentials")
	}
	if !user.IsPhoneVerified {
		return model.Response{}, apperr.Unauthorized("Your phone is not verified")
	}

	issued, err := s.otp.Generate()
	if err != nil {
		return model.Response{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.users.Update(gctx, user.ID, repo.UserUpdate{
			OTPHash:      &issued.Hash,
			OTPExpiresAt: &issued.ExpiresAt,
		})
		return mapRepoErr(err)
	})
	g.Go(func() error {
		if err := s.sink.SendSMS(gctx, phone, otpMessage(issued.Code)); err != nil {
			s.log.Error("failed to send signin OTP", zap.Error(err))
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Response{}, err
	}

	return model.Response{Message: "We have sent you an OTP message"}, nil
}

// LoginOTPVerification exchanges a valid sign-in OTP for a session token.
func (s *Service) LoginOTPVerification(ctx context.Context, phone, code string) (model.Response, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}
	if !s.otp.Validate(code, user.OTPHash, user.OTPExpiresAt) {
		return model.Response{}, apperr.Unauthorized("Invalid OTP or OTP has expired")
	}

	token, err := s.tokens.Issue(ClaimsFor(user), s.secret, SessionTTL)
	if err != nil {
		return model.Response{}, err
	}

	return model.Response{
		Message: "You have logged in successfully",
		Data:    model.TokenPayload{Token: token},
	}, nil
}

// OTPVerification marks the phone verified on first successful OTP
// check. Verifying twice is an invalid transition.
func (s *Service) OTPVerification(ctx context.Context, phone, code string) (model.Response, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}
	if user.IsPhoneVerified {
		return model.Response{}, apperr.BadRequest("Phone is already verified")
	}
	if !s.otp.Validate(code, user.OTPHash, user.OTPExpiresAt) {
		return model.Response{}, apperr.Unauthorized("Invalid OTP or OTP has expired")
	}

	verified := true
	if _, err := s.users.Update(ctx, user.ID, repo.UserUpdate{IsPhoneVerified: &verified}); err != nil {
		return model.Response{}, err
	}

	return model.Response{
		Message: "Your phone was verified successfully",
		Data:    model.IDPayload{ID: user.ID},
	}, nil
}

// ResendOTP regenerates the OTP for a not-yet-verified phone,
// overwriting the previous code.
func (s *Service) ResendOTP(ctx context.Context, phone string) (model.Response, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User with phone %s was not found", phone)
		}
		return model.Response{}, err
	}
	if user.IsPhoneVerified {
		return model.Response{}, apperr.BadRequest("Phone is already verified")
	}

	issued, err := s.otp.Generate()
	if err != nil {
		return model.Response{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.users.Update(gctx, user.ID, repo.UserUpdate{
			OTPHash:      &issued.Hash,
			OTPExpiresAt: &issued.ExpiresAt,
		})
		return mapRepoErr(err)
	})
	g.Go(func() error {
		if err := s.sink.SendSMS(gctx, phone, otpMessage(issued.Code)); err != nil {
			s.log.Error("failed to resend OTP", zap.Error(err))
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Response{}, err
	}

	return model.Response{
		Message: fmt.Sprintf("We sent you an OTP on %s. OTP expires in 5 min", phone),
		Data:    model.IDPayload{ID: user.ID},
	}, nil
}

// MagicLink emails a login URL carrying a fresh session token to a
// verified user.
func (s *Service) MagicLink(ctx context.Context, email string) (model.Response, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User with email %s was not found", email)
		}
		return model.Response{}, err
	}
	if !user.IsPhoneVerified {
		return model.Response{}, apperr.BadRequest("User account is not verified")
	}

	token, err := s.tokens.Issue(ClaimsFor(user), s.secret, SessionTTL)
	if err != nil {
		return model.Response{}, err
	}

	body := fmt.Sprintf("Click the following link to login %s/%s", s.frontendURL, token)
	if err := s.sink.SendEmail(ctx, email, "Magic Login link", body); err != nil {
		s.log.Error("failed to send magic link", zap.Error(err))
	}

	return model.Response{
		Message: "We sent you a magic link to your email address",
		Data:    model.IDPayload{ID: user.ID},
	}, nil
}

// ForgotPassword emails a reset URL carrying a token signed with the
// user's current password hash. Changing the password invalidates every
// token issued before the change.
func (s *Service) ForgotPassword(ctx context.Context, email string) (model.Response, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.BadRequest("Provided email was not found")
		}
		return model.Response{}, err
	}

	token, err := s.tokens.Issue(ClaimsFor(user), []byte(user.Password), SessionTTL)
	if err != nil {
		return model.Response{}, err
	}

	body := fmt.Sprintf("Click the button below to reset your password\n%s/reset-password?t=%s", s.frontendURL, token)
	if err := s.sink.SendEmail(ctx, email, "Reset Password", body); err != nil {
		s.log.Error("failed to send reset link", zap.Error(err))
	}

	return model.Response{
		Message: fmt.Sprintf("Reset password link was sent to %s", email),
		Data:    model.IDPayload{ID: user.ID},
	}, nil
}

// ResetPassword verifies the reset token against the current stored
// password hash and overwrites the password with a new hash.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) (model.Response, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User with email: %s was not found", email)
		}
		return model.Response{}, err
	}

	if _, err := s.tokens.Verify(token, []byte(user.Password)); err != nil {
		return model.Response{}, apperr.Unauthorized("Invalid Link or link has expired")
	}
	if s.creds.VerifyPassword(newPassword, user.Password) {
		return model.Response{}, apperr.Forbidden("New password should not be the same as the old password")
	}

	password, err := s.creds.HashPassword(newPassword)
	if err != nil {
		return model.Response{}, err
	}
	if _, err := s.users.Update(ctx, user.ID, repo.UserUpdate{Password: &password}); err != nil {
		return model.Response{}, err
	}

	return model.Response{Message: "Your password has been successfully updated"}, nil
}

// VerifySession verifies a session token against the global secret.
func (s *Service) VerifySession(token string) (*Claims, error) {
	claims, err := s.tokens.Verify(token, s.secret)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return claims, nil
}
