package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const upstreamCatalog = "catalog"

// HeaderAPIKey carries the shared key on service-to-service calls.
const HeaderAPIKey = "X-API-Key"

// CatalogClient reads catalog items on behalf of other services.
type CatalogClient interface {
	// FetchItemSnapshot returns false when the item cannot be obtained for
	// any reason. Callers degrade to a placeholder instead of failing.
	FetchItemSnapshot(ctx context.Context, serviceID uuid.UUID) (*models.ItemSnapshot, bool)
}

// RatingNotifier forwards an accepted review rating to the catalog.
type RatingNotifier interface {
	NotifyRating(ctx context.Context, review *models.Review) error
}

var (
	_ CatalogClient  = (*HTTPCatalogClient)(nil)
	_ RatingNotifier = (*HTTPCatalogClient)(nil)
)

// RatingRequest is the body of PUT /services/:id/rating. On the wire it is
// the bare rating value; {"rating": n} is accepted as well.
type RatingRequest struct {
	Rating int `json:"rating"`
}

func (r RatingRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Rating)
}

func (r *RatingRequest) UnmarshalJSON(data []byte) error {
	var value int
	if err := json.Unmarshal(data, &value); err == nil {
		r.Rating = value
		return nil
	}
	var body struct {
		Rating *int `json:"rating"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	if body.Rating == nil {
		return fmt.Errorf("rating body has no rating")
	}
	r.Rating = *body.Rating
	return nil
}

// HTTPCatalogClient talks to the catalog service over HTTP. Calls go through
// a circuit breaker and are never retried.
type HTTPCatalogClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	snapshots  *gobreaker.CircuitBreaker[*models.ItemSnapshot]
	ratings    *gobreaker.CircuitBreaker[struct{}]
	logger     *logrus.Entry
}

// NewHTTPCatalogClient creates a new HTTP-based catalog client.
func NewHTTPCatalogClient(cfg config.ServiceConfig) *HTTPCatalogClient {
	logger := logging.New("catalog-client")

	return &HTTPCatalogClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:    cfg.APIKey,
		snapshots: gobreaker.NewCircuitBreaker[*models.ItemSnapshot](breakerSettings("catalog-snapshot", logger)),
		ratings:   gobreaker.NewCircuitBreaker[struct{}](breakerSettings("catalog-rating", logger)),
		logger:    logger,
	}
}

func breakerSettings(name string, logger *logrus.Entry) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
}

// FetchItemSnapshot retrieves the name, category and price of a catalog item.
func (c *HTTPCatalogClient) FetchItemSnapshot(ctx context.Context, serviceID uuid.UUID) (*models.ItemSnapshot, bool) {
	snapshot, err := c.snapshots.Execute(func() (*models.ItemSnapshot, error) {
		return c.getItem(ctx, serviceID)
	})
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(upstreamCatalog, "snapshot").Inc()
		c.logger.WithFields(logging.Fields{
			"service_id": serviceID,
			"error":      err.Error(),
		}).Warn("Catalog snapshot unavailable")
		return nil, false
	}
	return snapshot, true
}

func (c *HTTPCatalogClient) getItem(ctx context.Context, serviceID uuid.UUID) (*models.ItemSnapshot, error) {
	url := fmt.Sprintf("%s/services/%s", c.baseURL, serviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog returned status %d", errors.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var snapshot models.ItemSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", errors.ErrUpstreamUnavailable, err)
	}

	c.logger.WithFields(logging.Fields{
		"service_id": serviceID,
		"name":       snapshot.Name,
	}).Debug("Catalog snapshot fetched")

	return &snapshot, nil
}

// NotifyRating submits the review's rating to the catalog's aggregate.
func (c *HTTPCatalogClient) NotifyRating(ctx context.Context, review *models.Review) error {
	_, err := c.ratings.Execute(func() (struct{}, error) {
		return struct{}{}, c.putRating(ctx, review.ServiceID, review.Rating)
	})
	return err
}

func (c *HTTPCatalogClient) putRating(ctx context.Context, serviceID uuid.UUID, rating int) error {
	body, err := json.Marshal(RatingRequest{Rating: rating})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/services/%s/rating", c.baseURL, serviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: catalog returned status %d", errors.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPCatalogClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
}
