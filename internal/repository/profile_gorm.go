package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var _ ProfileRepository = (*GormProfileRepository)(nil)

// GormProfileRepository implements ProfileRepository on top of gorm.
type GormProfileRepository struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// OpenGorm wraps an existing pool so gorm and database/sql share connections.
func OpenGorm(sqlDB *sql.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// NewGormProfileRepository creates a profile repository.
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{
		db:     db,
		logger: logging.New("profile-repository"),
	}
}

func (r *GormProfileRepository) GetBySubject(ctx context.Context, subjectID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&profile).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormProfileRepository) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Save inserts the profile or replaces the one stored for its subject.
func (r *GormProfileRepository) Save(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "age", "photo_base64", "description",
			"role", "phone", "website", "social_media", "updated_at",
		}),
	}).Create(profile).Error
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"subject_id": profile.SubjectID,
			"error":      err.Error(),
		}).Error("Failed to save profile")
		return nil, err
	}

	// Re-read so callers get the stored id and created_at on conflict.
	return r.GetBySubject(ctx, profile.SubjectID)
}

// DeleteBySubject is idempotent.
func (r *GormProfileRepository) DeleteBySubject(ctx context.Context, subjectID string) error {
	result := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Delete(&models.UserProfile{})
	if result.Error != nil {
		return result.Error
	}
	r.logger.WithFields(logging.Fields{
		"subject_id": subjectID,
		"deleted":    result.RowsAffected,
	}).Info("Profile deleted")
	return nil
}
