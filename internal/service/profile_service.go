package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
)

// ProfileService manages user profiles keyed by identity subject.
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *logrus.Entry
}

func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		repo:   repo,
		logger: logging.New("profile-service"),
	}
}

func (s *ProfileService) GetMe(ctx context.Context, subjectID string) (*models.UserProfile, error) {
	return s.repo.GetBySubject(ctx, subjectID)
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Upsert creates the caller's profile or replaces every field of the stored one.
func (s *ProfileService) Upsert(ctx context.Context, subjectID string, in *models.UserProfileInput) (*models.UserProfile, error) {
	role, err := ValidateProfileInput(in)
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		SubjectID:   subjectID,
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.TrimSpace(in.Email),
		Age:         in.Age,
		PhotoBase64: in.PhotoBase64,
		Description: in.Description,
		Role:        role,
		Phone:       in.Phone,
		Website:     in.Website,
		SocialMedia: in.SocialMedia,
	}

	saved, err := s.repo.Save(ctx, profile)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logging.Fields{
		"subject_id": subjectID,
		"role":       saved.Role,
	}).Info("Profile saved")
	return saved, nil
}

// DeleteMe removes the caller's profile. Deleting an absent profile succeeds.
func (s *ProfileService) DeleteMe(ctx context.Context, subjectID string) error {
	return s.repo.DeleteBySubject(ctx, subjectID)
}
