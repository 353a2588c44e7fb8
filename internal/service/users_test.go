package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concha-api/internal/models"
	"concha-api/internal/problem"
	"concha-api/internal/storage"
)

func newUserFixture() (*UserService, *storage.MemoryRepository, *storage.MemoryObjectStore) {
	repo := storage.NewMemoryRepository()
	images := storage.NewMemoryObjectStore("https://cdn.example.com/images")
	return NewUserService(repo, images), repo, images
}

func TestUserCreateThenGetRoundTrip(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, models.UserInfo{Name: "Foo Bar", Email: "foo.bar@gmail.com", Address: "X"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Foo Bar", fetched.Name)
	assert.Equal(t, "foo.bar@gmail.com", fetched.Email)
	assert.Equal(t, "X", fetched.Address)
	assert.Nil(t, fetched.ImageHostedLink)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	svc, repo, _ := newUserFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "dup@x.com", Address: "1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.UserInfo{Name: "b", Email: "dup@x.com", Address: "2"})
	var validation *problem.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Title, "dup@x.com")
	assert.Equal(t, 1, repo.Count())
}

func TestUserGetMissing(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.Get(context.Background(), 42)
	var notFound *problem.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Title, "'42'")
}

func TestUserListNormalizesEmailTerm(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()
	_, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "foo@bar.com", Address: "1"})
	require.NoError(t, err)

	term := "foo@BAR.COM"
	matches, err := svc.List(ctx, storage.UserFilter{Email: &term})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "foo@bar.com", matches[0].Email)
}

func TestUserListEmptyFilterReturnsAll(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := svc.Create(ctx, models.UserInfo{Name: "n", Email: email, Address: "s"})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, storage.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserUpdate(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "a@x.com", Address: "1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.UserInfo{Name: "b", Email: "b@x.com", Address: "2"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, models.UserInfo{Name: "a2", Email: "a2@x.com", Address: "3"})
	require.NoError(t, err)
	assert.Equal(t, "a2@x.com", updated.Email)

	_, err = svc.Update(ctx, 999, models.UserInfo{Name: "x", Email: "x@x.com", Address: "x"})
	var notFound *problem.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = svc.Update(ctx, created.ID, models.UserInfo{Name: "a2", Email: "b@x.com", Address: "3"})
	var validation *problem.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestUserDeleteRemovesImageBlob(t *testing.T) {
	svc, _, images := newUserFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "a@x.com", Address: "1"})
	require.NoError(t, err)

	_, err = svc.UploadImage(ctx, created.ID, "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 1, images.Len())

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Zero(t, images.Len())

	// Deleting again, with neither row nor blob present, still succeeds.
	assert.NoError(t, svc.Delete(ctx, created.ID))
}

func TestUserUploadImageSetsHostedLink(t *testing.T) {
	svc, _, images := newUserFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "a@x.com", Address: "1"})
	require.NoError(t, err)

	refreshed, err := svc.UploadImage(ctx, created.ID, "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	require.NotNil(t, refreshed.ImageHostedLink)
	assert.Equal(t, "https://cdn.example.com/images/user_1-image", *refreshed.ImageHostedLink)

	contentType, ok := images.ContentType(ImageObjectKey(created.ID))
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
}

func TestUserUploadImageReplacesExisting(t *testing.T) {
	svc, _, images := newUserFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, models.UserInfo{Name: "a", Email: "a@x.com", Address: "1"})
	require.NoError(t, err)

	_, err = svc.UploadImage(ctx, created.ID, "image/png", []byte{1})
	require.NoError(t, err)
	_, err = svc.UploadImage(ctx, created.ID, "image/jpeg", []byte{2})
	require.NoError(t, err)

	assert.Equal(t, 1, images.Len())
	contentType, _ := images.ContentType(ImageObjectKey(created.ID))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestUserUploadImageRequiresExistingUser(t *testing.T) {
	svc, _, images := newUserFixture()

	_, err := svc.UploadImage(context.Background(), 7, "image/png", []byte{1})
	var notFound *problem.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Zero(t, images.Len())
}
