package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

func (s *Service) CreateUser(ctx context.Context, u *models.User) error {
	if err := store.PrepareUser(u); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)

	// Check if username or email already exists
	var existing models.User
	err := db.Where("email = ? OR username_key = ?", u.Email, u.UsernameKey).First(&existing).Error
	switch {
	case err == nil:
		if existing.Email == u.Email {
			return errs.Conflict("email already registered")
		}
		return errs.Conflict("username already taken")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("checking existing user: %w", err)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Wrap(errs.KindConflict, err, "username or email already exists")
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user not found")
		}
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user not found")
		}
		return nil, fmt.Errorf("loading user by email: %w", err)
	}
	return &u, nil
}

func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
