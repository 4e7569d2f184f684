package service

import (
	"context"
	"errors"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"
	"achieveit/internal/models/user"
	repo "achieveit/internal/repository"

	"go.uber.org/zap"
)

type Profiles struct {
	store repo.Store
	now   func() time.Time
}

func NewProfiles(store repo.Store) *Profiles {
	return &Profiles{store: store, now: time.Now}
}

// Provision writes users/{uid} unless it already exists.
func (p *Profiles) Provision(ctx context.Context, u user.User) error {
	scoped := repo.ForUser(p.store, u.UID)
	path := repo.UserDoc(u.UID)

	_, err := scoped.Get(ctx, path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.AppError(err, "profile", u.UID)
	}

	profile := user.Profile{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   p.now(),
		StepGoal:    user.DefaultStepGoal,
	}
	if err := scoped.Set(ctx, path, profile.Fields(), false); err != nil {
		logger.Error("Service: error provisioning profile", err, zap.String("uid", u.UID))
		return repo.AppError(err, "profile", u.UID)
	}
	logger.Info("Service: profile provisioned", zap.String("uid", u.UID))
	return nil
}

func (p *Profiles) Get(ctx context.Context, uid string) (user.Profile, error) {
	doc, err := repo.ForUser(p.store, uid).Get(ctx, repo.UserDoc(uid))
	if err != nil {
		return user.Profile{}, repo.AppError(err, "profile", uid)
	}
	var profile user.Profile
	if err := repo.Decode(doc, &profile); err != nil {
		return user.Profile{}, apperr.Wrap(apperr.CodeRemoteUnavailable, "Profile record is unreadable.", err)
	}
	if profile.StepGoal <= 0 {
		profile.StepGoal = user.DefaultStepGoal
	}
	return profile, nil
}

func (p *Profiles) SetStepGoal(ctx context.Context, uid string, goal int) error {
	if goal <= 0 {
		return apperr.NewValidation("stepGoal", "must be greater than 0")
	}
	err := repo.ForUser(p.store, uid).Set(ctx, repo.UserDoc(uid), map[string]any{"stepGoal": goal}, true)
	if err != nil {
		logger.Error("Service: error saving step goal", err, zap.String("uid", uid))
		return repo.AppError(err, "profile", uid)
	}
	return nil
}
