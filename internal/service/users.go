// Package service implements the business operations behind the accounts
// and audios resources. Services own the rules that need data access, such
// as uniqueness and existence checks, and translate storage failures into
// the domain error kinds the HTTP layer maps to problem responses.
package service

import (
	"context"
	"errors"
	"fmt"

	"concha-api/internal/models"
	"concha-api/internal/problem"
	"concha-api/internal/storage"
	"concha-api/internal/validate"
)

// ImageObjectKey derives the blob key for an account's uploaded image. The
// original filename is deliberately omitted; it is unknown at retrieval
// time and irrelevant for addressing.
func ImageObjectKey(userID int64) string {
	return fmt.Sprintf("user_%d-image", userID)
}

// UserService implements account operations on top of the relational
// repository and the image object store.
type UserService struct {
	repo   storage.UserRepository
	images storage.ObjectStore
}

// NewUserService wires the service with its storage dependencies.
func NewUserService(repo storage.UserRepository, images storage.ObjectStore) *UserService {
	return &UserService{repo: repo, images: images}
}

func duplicateEmailError(email string) error {
	return problem.NewValidation(fmt.Sprintf("Email '%s' is already registered.", email))
}

func userNotFoundError(id int64) error {
	return problem.NewNotFound(fmt.Sprintf("No user info exists with id '%d'.", id))
}

// Create inserts the account and returns the persisted record including the
// assigned id and the null image link.
func (s *UserService) Create(ctx context.Context, info models.UserInfo) (models.UserInfo, error) {
	created, err := s.repo.Create(ctx, info)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return models.UserInfo{}, duplicateEmailError(info.Email)
		}
		return models.UserInfo{}, err
	}
	return created, nil
}

// Get fetches the account by id.
func (s *UserService) Get(ctx context.Context, id int64) (models.UserInfo, error) {
	info, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.UserInfo{}, userNotFoundError(id)
		}
		return models.UserInfo{}, err
	}
	return info, nil
}

// List returns every account matching the filter conjunction. The email
// term is normalized before matching so a search matches the stored form.
// No match yields an empty slice, never an error.
func (s *UserService) List(ctx context.Context, filter storage.UserFilter) ([]models.UserInfo, error) {
	if filter.Email != nil {
		normalized := validate.NormalizeEmail(*filter.Email)
		filter.Email = &normalized
	}
	return s.repo.Search(ctx, filter)
}

// Update replaces name, email, and address of the account and returns the
// refreshed record.
func (s *UserService) Update(ctx context.Context, id int64, info models.UserInfo) (models.UserInfo, error) {
	updated, err := s.repo.Update(ctx, id, info)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return models.UserInfo{}, userNotFoundError(id)
		case errors.Is(err, storage.ErrDuplicateEmail):
			return models.UserInfo{}, duplicateEmailError(info.Email)
		default:
			return models.UserInfo{}, err
		}
	}
	return updated, nil
}

// Delete removes the account row and then best-effort deletes any stored
// image blob. Blob absence never fails the operation; delete is idempotent.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.images.Delete(ctx, ImageObjectKey(id))
	return nil
}

// UploadImage replaces the stored image of an existing account and persists
// the public link of the new blob. The account must already exist; the
// previous blob, if any, is removed first.
func (s *UserService) UploadImage(ctx context.Context, id int64, contentType string, data []byte) (models.UserInfo, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return models.UserInfo{}, err
	}

	key := ImageObjectKey(id)
	_ = s.images.Delete(ctx, key)

	ref, err := s.images.Upload(ctx, key, contentType, data)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("upload image for user %d: %w", id, err)
	}
	if err := s.repo.SetImageHostedLink(ctx, id, ref.URL); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.UserInfo{}, userNotFoundError(id)
		}
		return models.UserInfo{}, err
	}
	return s.Get(ctx, id)
}
