// Package storage provides the two persistence backends of the service: a
// relational repository for account records and an object store for blobs
// (audio session JSON documents and account images).
//
// Both come in a production flavour (Postgres, S3-compatible endpoint) and a
// memory flavour used by tests and local development. Callers receive the
// interfaces and never reach for a concrete backend directly.
package storage

import (
	"context"
	"errors"

	"concha-api/internal/models"
)

// Failures handlers care to distinguish. Anything else returned by a
// repository is an infrastructure fault and surfaces as a 500-class error.
var (
	// ErrUserNotFound reports a lookup, update, or image-link write against
	// an id with no matching row.
	ErrUserNotFound = errors.New("user info not found")

	// ErrDuplicateEmail reports a violation of the unique email constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserFilter restricts Search to exact matches on the set fields, combined
// as a conjunction. A nil field does not participate; the zero filter
// matches every record.
type UserFilter struct {
	Name    *string
	Email   *string
	Address *string
}

func (f UserFilter) empty() bool {
	return f.Name == nil && f.Email == nil && f.Address == nil
}

func (f UserFilter) matches(info models.UserInfo) bool {
	if f.Name != nil && info.Name != *f.Name {
		return false
	}
	if f.Email != nil && info.Email != *f.Email {
		return false
	}
	if f.Address != nil && info.Address != *f.Address {
		return false
	}
	return true
}

// UserRepository is the persistence contract for account records. Emails are
// expected to arrive already normalized; the repository only enforces the
// uniqueness constraint.
type UserRepository interface {
	// Create inserts a record and returns the persisted row including the
	// assigned id. A duplicate email maps to ErrDuplicateEmail.
	Create(ctx context.Context, info models.UserInfo) (models.UserInfo, error)

	// Get fetches a record by id; ErrUserNotFound when absent.
	Get(ctx context.Context, id int64) (models.UserInfo, error)

	// Search returns every record matching the filter conjunction. No match
	// yields an empty slice, never an error.
	Search(ctx context.Context, filter UserFilter) ([]models.UserInfo, error)

	// Update replaces name, email, and address of the row with the given id
	// and returns the refreshed record. Zero rows affected maps to
	// ErrUserNotFound, a duplicate email to ErrDuplicateEmail.
	Update(ctx context.Context, id int64, info models.UserInfo) (models.UserInfo, error)

	// Delete removes the row with the given id. Deleting an absent id is not
	// an error.
	Delete(ctx context.Context, id int64) error

	// SetImageHostedLink persists the public link of the account's uploaded
	// image; ErrUserNotFound when the id has no row.
	SetImageHostedLink(ctx context.Context, id int64, link string) error

	// Close releases the backing connections.
	Close(ctx context.Context) error
}
