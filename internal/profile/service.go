package profile

import (
	"context"
	"strconv"

	"ripplechat/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// Identity is what the identity provider hands over for an authenticated user.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
	// Username is set when the user chose a handle at sign-up.
	Username string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Bootstrap returns the stored profile for id.UID, creating it on first
// sight and backfilling a missing username. Safe to call on every request.
func (s *Service) Bootstrap(ctx context.Context, id Identity) (models.User, error) {
	if id.UID == "" {
		return models.User{}, errors.New("identity without uid")
	}

	var u models.User
	err := s.db.WithContext(ctx).Where("uid = ?", id.UID).First(&u).Error
	switch {
	case err == nil:
		if u.Username != nil && *u.Username != "" {
			return u, nil
		}
		return s.backfill(ctx, u)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.User{}, errors.Wrap(err, "profile.Bootstrap.First")
	}

	u = models.User{
		UID:         id.UID,
		DisplayName: optional(id.DisplayName),
		Email:       optional(id.Email),
		PhotoURL:    optional(id.PhotoURL),
	}
	if ValidateHandle(id.Username) == nil {
		u.Username = &id.Username
	}
	u = EnsureHandle(u)
	handle, err := s.freeHandle(ctx, *u.Username, u.UID)
	if err != nil {
		return models.User{}, err
	}
	u.Username = &handle

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, DoNothing: true}).Create(&u).Error; err != nil {
		return models.User{}, errors.Wrap(err, "profile.Bootstrap.Create")
	}
	// A concurrent first request may have won the insert; return what is stored.
	return s.Get(ctx, id.UID)
}

// Get loads a profile by uid.
func (s *Service) Get(ctx context.Context, uid string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, errors.Wrap(err, "profile.Get.First")
	}
	return u, nil
}

func (s *Service) backfill(ctx context.Context, u models.User) (models.User, error) {
	u = EnsureHandle(u)
	handle, err := s.freeHandle(ctx, *u.Username, u.UID)
	if err != nil {
		return models.User{}, err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ? AND (username IS NULL OR username = '')", u.UID).
		Update("username", handle)
	if res.Error != nil {
		return models.User{}, errors.Wrap(res.Error, "profile.backfill.Update")
	}
	return s.Get(ctx, u.UID)
}

// freeHandle returns want, or want with a numeric suffix when another user
// already holds it.
func (s *Service) freeHandle(ctx context.Context, want, uid string) (string, error) {
	base := want[len(Sigil):]
	candidate := want
	for i := 1; i <= 50; i++ {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ? AND uid <> ?", candidate, uid).Count(&n).Error
		if err != nil {
			return "", errors.Wrap(err, "profile.freeHandle.Count")
		}
		if n == 0 {
			return candidate, nil
		}
		suffix := strconv.Itoa(i)
		b := base
		if len(b)+len(suffix) > MaxHandleChars {
			b = b[:MaxHandleChars-len(suffix)]
		}
		candidate = Sigil + b + suffix
	}
	return "", errors.Errorf("no free handle for %q", want)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
