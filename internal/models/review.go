package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (service, user).
type Review struct {
	ID        uuid.UUID `json:"id"`
	ServiceID uuid.UUID `json:"serviceId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReviewInput is the body of POST/PUT /reviews.
type ReviewInput struct {
	ServiceID string `json:"serviceId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// ReviewStats summarises the reviews of one service.
type ReviewStats struct {
	ServiceID     string  `json:"serviceId"`
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int64   `json:"totalReviews"`
	FiveStars     int64   `json:"fiveStars"`
	FourStars     int64   `json:"fourStars"`
	ThreeStars    int64   `json:"threeStars"`
	TwoStars      int64   `json:"twoStars"`
	OneStar       int64   `json:"oneStar"`
}

// SetStarCount records the number of reviews with the given star value.
func (s *ReviewStats) SetStarCount(stars int, count int64) {
	switch stars {
	case 5:
		s.FiveStars = count
	case 4:
		s.FourStars = count
	case 3:
		s.ThreeStars = count
	case 2:
		s.TwoStars = count
	case 1:
		s.OneStar = count
	}
}
