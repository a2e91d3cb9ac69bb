package services

import (
	"context"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProfile_EnsureAndUpdate(t *testing.T) {
	svc := NewProfileService(newTestDB(t), nil)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	p, err := svc.Ensure(ctx, alice())
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)

	p, err = svc.Update(ctx, alice(), ProfileInput{Name: strPtr("Zoë"), AvatarURL: strPtr("https://cdn/a.png")})
	require.NoError(t, err)
	assert.Equal(t, "Zoë", p.Name)
	assert.Equal(t, "https://cdn/a.png", p.AvatarURL)

	// name only leaves the avatar alone
	p, err = svc.Update(ctx, alice(), ProfileInput{Name: strPtr("Zoe A.")})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", p.AvatarURL)

	_, err = svc.Update(ctx, alice(), ProfileInput{Name: strPtr("  ")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, nil, ProfileInput{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfile_GetMissing(t *testing.T) {
	svc := NewProfileService(newTestDB(t), nil)

	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfile_SearchIgnoresCaseAndDiacritics(t *testing.T) {
	svc := NewProfileService(newTestDB(t), nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, alice(), ProfileInput{Name: strPtr("Zoë Quinn")})
	require.NoError(t, err)
	_, err = svc.Ensure(ctx, bob())
	require.NoError(t, err)

	found, err := svc.Search(ctx, "ZOE", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u-alice", found[0].ID)

	found, err = svc.Search(ctx, "zoë", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	all, err := svc.Search(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProfile_UploadAvatarNeedsR2(t *testing.T) {
	svc := NewProfileService(newTestDB(t), nil)

	_, err := svc.UploadAvatar(context.Background(), alice(), &multipart.FileHeader{Filename: "a.png", Size: 10})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
