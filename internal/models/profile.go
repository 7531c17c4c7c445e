package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleClient   UserRole = "CLIENT"
	UserRoleProvider UserRole = "PROVIDER"
)

// UserProfile is keyed by the identity provider's subject id.
type UserProfile struct {
	ID          uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	SubjectID   string    `json:"subjectId" gorm:"column:subject_id;uniqueIndex;not null"`
	Username    string    `json:"username" gorm:"not null;index"`
	Email       string    `json:"email" gorm:"not null"`
	Age         *int      `json:"age"`
	PhotoBase64 *string   `json:"photoBase64" gorm:"column:photo_base64;type:text"`
	Description *string   `json:"description" gorm:"type:text"`
	Role        UserRole  `json:"role" gorm:"not null;default:CLIENT"`
	Phone       *string   `json:"phone"`
	Website     *string   `json:"website"`
	SocialMedia *string   `json:"socialMedia" gorm:"column:social_media"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// UserProfileInput is the body of POST /users/profile.
type UserProfileInput struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Age         *int    `json:"age"`
	PhotoBase64 *string `json:"photoBase64"`
	Description *string `json:"description"`
	Role        *string `json:"role"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	SocialMedia *string `json:"socialMedia"`
}

// Principal is the caller identity attached by the auth middleware.
type Principal struct {
	UserID   string
	Username string
	Roles    []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
