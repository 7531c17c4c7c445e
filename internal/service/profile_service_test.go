package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

func TestProfileService_Upsert(t *testing.T) {
	svc := NewProfileService(newFakeProfileRepo())
	ctx := context.Background()

	created, err := svc.Upsert(ctx, "sub-1", &models.UserProfileInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleClient, created.Role)

	provider := "provider"
	replaced, err := svc.Upsert(ctx, "sub-1", &models.UserProfileInput{
		Username: "alice",
		Email:    "alice@tours.example.com",
		Role:     &provider,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.Equal(t, models.UserRoleProvider, replaced.Role)

	me, err := svc.GetMe(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@tours.example.com", me.Email)

	byName, err := svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", byName.SubjectID)
}

func TestProfileService_Validation(t *testing.T) {
	admin := "ADMIN"
	age := 200
	tests := []struct {
		name  string
		input models.UserProfileInput
		field string
	}{
		{"missing username", models.UserProfileInput{Email: "a@b.co"}, "username"},
		{"missing email", models.UserProfileInput{Username: "a"}, "email"},
		{"bad email", models.UserProfileInput{Username: "a", Email: "not-an-email"}, "email"},
		{"bad age", models.UserProfileInput{Username: "a", Email: "a@b.co", Age: &age}, "age"},
		{"unknown role", models.UserProfileInput{Username: "a", Email: "a@b.co", Role: &admin}, "role"},
	}

	svc := NewProfileService(newFakeProfileRepo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), "sub-1", &tt.input)
			v, ok := errors.IsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, v.Field)
		})
	}
}

func TestProfileService_DeleteMe(t *testing.T) {
	svc := NewProfileService(newFakeProfileRepo())
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "sub-1", &models.UserProfileInput{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMe(ctx, "sub-1"))
	require.NoError(t, svc.DeleteMe(ctx, "sub-1"))

	_, err = svc.GetMe(ctx, "sub-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
