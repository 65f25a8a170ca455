// Package verification manages the account-verification state machine:
// users submit identity documents, admins approve or reject pending
// requests. Distinct from phone-number OTP verification.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriqo/server/internal/apperr"
	"github.com/veriqo/server/internal/authz"
	"github.com/veriqo/server/internal/model"
	"github.com/veriqo/server/internal/notify"
	"github.com/veriqo/server/internal/repo"
	"github.com/veriqo/server/internal/storage"
)

// ProfileInput is the identity payload submitted for verification. Nil
// fields are left untouched.
type ProfileInput struct {
	FirstName     *string
	LastName      *string
	Email         *string
	Country       *string
	DocType       *string
	DocNumber     *string
	Gender        *string
	MaritalStatus *string
	DateOfBirth   *time.Time
}

// Document is an uploaded identity document or profile image.
type Document struct {
	Filename string
	File     io.Reader
}

// Workflow orchestrates profile submission and the admin review of
// pending verification requests.
type Workflow struct {
	users  repo.UserRepo
	sink   notify.Sink
	assets storage.AssetStore
	log    *zap.Logger
}

// NewWorkflow creates a verification workflow.
func NewWorkflow(users repo.UserRepo, sink notify.Sink, assets storage.AssetStore, log *zap.Logger) *Workflow {
	return &Workflow{users: users, sink: sink, assets: assets, log: log}
}

// ListPending returns all users awaiting a verification decision, with
// credential and OTP fields stripped. Admin only.
func (w *Workflow) ListPending(ctx context.Context, actor authz.Actor) (model.Response, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return model.Response{}, err
	}

	users, err := w.users.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return model.Response{}, err
	}

	public := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}

	return model.Response{
		Message: "Pending requests has been retrieved successfully",
		Data:    public,
	}, nil
}

// Decide applies an admin's verification decision to a pending request
// and notifies the user by SMS and, when an email is present, by email.
// Only PENDING accounts can be decided, and only to VERIFIED or REJECTED.
func (w *Workflow) Decide(ctx context.Context, actor authz.Actor, userID uuid.UUID, decision model.AccountStatus) (model.Response, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return model.Response{}, err
	}
	if decision != model.StatusVerified && decision != model.StatusRejected {
		return model.Response{}, apperr.BadRequest("Decision must be VERIFIED or REJECTED")
	}

	user, err := w.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}
	if user.AccountStatus == nil || *user.AccountStatus != model.StatusPending {
		return model.Response{}, apperr.BadRequest("Verification request is not pending")
	}

	updated, err := w.users.Update(ctx, userID, repo.UserUpdate{AccountStatus: &decision})
	if err != nil {
		return model.Response{}, err
	}

	w.notifyDecision(ctx, updated, decision)

	return model.Response{
		Message: fmt.Sprintf("Account has been %s successfully", strings.ToLower(string(decision))),
		Data:    updated.Public(),
	}, nil
}

// notifyDecision delivers the decision out-of-band. Delivery failures
// are logged, never retried, and never fail the decision itself.
func (w *Workflow) notifyDecision(ctx context.Context, user model.User, decision model.AccountStatus) {
	text := fmt.Sprintf("Your identity verification request has been %s", strings.ToLower(string(decision)))

	if err := w.sink.SendSMS(ctx, user.Phone, text); err != nil {
		w.log.Error("failed to send decision SMS", zap.Error(err))
	}
	if user.Email != nil {
		if err := w.sink.SendEmail(ctx, *user.Email, "Identity verification", text); err != nil {
			w.log.Error("failed to send decision email", zap.Error(err))
		}
	}
}

// SubmitForVerification stores the submitted profile fields and document
// reference and resets the account status to PENDING, regardless of any
// prior decision.
func (w *Workflow) SubmitForVerification(ctx context.Context, userID uuid.UUID, profile ProfileInput, doc *Document) (model.Response, error) {
	if _, err := w.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}

	update := repo.UserUpdate{
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Email:         profile.Email,
		Country:       profile.Country,
		DocType:       profile.DocType,
		DocNumber:     profile.DocNumber,
		Gender:        profile.Gender,
		MaritalStatus: profile.MaritalStatus,
		DateOfBirth:   profile.DateOfBirth,
	}

	if doc != nil {
		url, err := w.assets.Upload(ctx, doc.Filename, doc.File)
		if err != nil {
			return model.Response{}, apperr.BadRequest("%s", err.Error())
		}
		update.DocPath = &url
	}

	pending := model.StatusPending
	update.AccountStatus = &pending

	updated, err := w.users.Update(ctx, userID, update)
	if err != nil {
		return model.Response{}, mapRepoErr(err)
	}

	return model.Response{
		Message: "Your profile information has been updated successfully",
		Data:    updated.Public(),
	}, nil
}

// GetProfile returns the secret-stripped profile of the user.
func (w *Workflow) GetProfile(ctx context.Context, userID uuid.UUID) (model.Response, error) {
	user, err := w.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}

	return model.Response{
		Message: "Your profile information has been retrieved successfully",
		Data:    user.Public(),
	}, nil
}

// UploadProfileImage stores a new profile picture and records its URL.
func (w *Workflow) UploadProfileImage(ctx context.Context, userID uuid.UUID, image Document) (model.Response, error) {
	if _, err := w.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Response{}, apperr.NotFound("User not found")
		}
		return model.Response{}, err
	}

	url, err := w.assets.Upload(ctx, image.Filename, image.File)
	if err != nil {
		return model.Response{}, apperr.BadRequest("%s", err.Error())
	}

	if _, err := w.users.Update(ctx, userID, repo.UserUpdate{ProfilePath: &url}); err != nil {
		return model.Response{}, err
	}

	return model.Response{
		Message: "Your profile picture has been updated successfully",
		Data:    map[string]string{"url": url},
	}, nil
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
