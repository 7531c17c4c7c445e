package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogItem is a tourism service listing.
type CatalogItem struct {
	ID               uuid.UUID        `json:"id"`
	ProviderID       string           `json:"providerId"`
	Name             string           `json:"name"`
	Description      *string          `json:"description"`
	Price            *decimal.Decimal `json:"price"`
	Category         *string          `json:"category"`
	City             *string          `json:"city"`
	CountryCode      *string          `json:"countryCode"`
	Rating           decimal.Decimal  `json:"rating"`
	RatingCount      int              `json:"ratingCount"`
	Latitude         *float64         `json:"latitude"`
	Longitude        *float64         `json:"longitude"`
	TransportType    *string          `json:"transportType"`
	DepartureTime    *time.Time       `json:"departureTime"`
	ArrivalTime      *time.Time       `json:"arrivalTime"`
	RouteDescription *string          `json:"routeDescription"`
	Images           []ServiceImage   `json:"images"`
	Questions        []Question       `json:"questions"`
	CountryInfo      *CountryInfo     `json:"countryInfo,omitempty"`
	WeatherInfo      *WeatherInfo     `json:"weatherInfo,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type ServiceImage struct {
	ID          uuid.UUID `json:"id"`
	ImageURL    *string   `json:"imageUrl"`
	ImageBase64 *string   `json:"imageBase64"`
	IsPrimary   bool      `json:"isPrimary"`
}

type Question struct {
	ID         uuid.UUID  `json:"id"`
	ServiceID  uuid.UUID  `json:"serviceId"`
	UserID     string     `json:"userId"`
	Question   string     `json:"question"`
	Answer     *string    `json:"answer"`
	AnsweredAt *time.Time `json:"answeredAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// CatalogItemInput is the body of POST/PUT /services.
type CatalogItemInput struct {
	Name             string           `json:"name"`
	Description      *string          `json:"description"`
	Price            *decimal.Decimal `json:"price"`
	Category         *string          `json:"category"`
	City             *string          `json:"city"`
	CountryCode      *string          `json:"countryCode"`
	Latitude         *float64         `json:"latitude"`
	Longitude        *float64         `json:"longitude"`
	TransportType    *string          `json:"transportType"`
	DepartureTime    *time.Time       `json:"departureTime"`
	ArrivalTime      *time.Time       `json:"arrivalTime"`
	RouteDescription *string          `json:"routeDescription"`
	ImageURLs        []string         `json:"imageUrls"`
}

// QuestionInput is the body of POST /questions.
type QuestionInput struct {
	ServiceID string `json:"serviceId"`
	Question  string `json:"question"`
}

type CountryInfo struct {
	Name       string   `json:"name"`
	Capital    string   `json:"capital"`
	Region     string   `json:"region"`
	Population int64    `json:"population"`
	Currency   string   `json:"currency"`
	Flag       string   `json:"flag"`
	Languages  []string `json:"languages"`
}

type WeatherInfo struct {
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Icon        string  `json:"icon"`
}
