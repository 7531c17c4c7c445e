package service

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const (
	maxNameLength     = 255
	maxCommentLength  = 2000
	maxQuestionLength = 2000
)

// ParseID parses a path or query identifier, reporting field on failure.
func ParseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, errors.NewValidationError(field, "must be a valid UUID")
	}
	return id, nil
}

func validateAddQuantity(quantity int) error {
	if quantity < 1 {
		return errors.NewValidationError("quantity", "must be at least 1")
	}
	return nil
}

func validateRating(rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return errors.NewValidationError("rating", "must be between 1 and 5")
	}
	return nil
}

// ValidateReviewInput checks a review submission and returns the parsed service id.
func ValidateReviewInput(in *models.ReviewInput) (uuid.UUID, error) {
	if in.ServiceID == "" {
		return uuid.Nil, errors.NewValidationError("serviceId", "service ID is required")
	}
	serviceID, err := ParseID("serviceId", in.ServiceID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := validateRating(in.Rating); err != nil {
		return uuid.Nil, err
	}
	if len(in.Comment) > maxCommentLength {
		return uuid.Nil, errors.NewValidationError("comment", "is too long")
	}
	return serviceID, nil
}

// ValidateCatalogItemInput checks a listing body for create and update.
func ValidateCatalogItemInput(in *models.CatalogItemInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return errors.NewValidationError("name", "name is required")
	}
	if len(name) > maxNameLength {
		return errors.NewValidationError("name", "is too long")
	}

	if in.Price != nil && in.Price.IsNegative() {
		return errors.NewValidationError("price", "cannot be negative")
	}

	if in.CountryCode != nil && *in.CountryCode != "" && len(*in.CountryCode) != 2 {
		return errors.NewValidationError("countryCode", "must be a 2-letter ISO code")
	}

	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return errors.NewValidationError("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return errors.NewValidationError("longitude", "must be between -180 and 180")
	}

	if in.DepartureTime != nil && in.ArrivalTime != nil && in.ArrivalTime.Before(*in.DepartureTime) {
		return errors.NewValidationError("arrivalTime", "must not be before departure")
	}

	return nil
}

func validateQuestionText(field, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NewValidationError(field, field+" is required")
	}
	if len(text) > maxQuestionLength {
		return errors.NewValidationError(field, "is too long")
	}
	return nil
}

// ValidateProfileInput checks a profile body and returns the effective role.
func ValidateProfileInput(in *models.UserProfileInput) (models.UserRole, error) {
	if strings.TrimSpace(in.Username) == "" {
		return "", errors.NewValidationError("username", "username is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return "", errors.NewValidationError("email", "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return "", errors.NewValidationError("email", "invalid email format")
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		return "", errors.NewValidationError("age", "must be between 0 and 150")
	}

	role := models.UserRoleClient
	if in.Role != nil && *in.Role != "" {
		role = models.UserRole(strings.ToUpper(*in.Role))
		if role != models.UserRoleClient && role != models.UserRoleProvider {
			return "", errors.NewValidationError("role", "must be CLIENT or PROVIDER")
		}
	}
	return role, nil
}
