package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

// EnrichmentClient looks up public data shown next to a catalog item.
// Both methods return nil when nothing could be fetched.
type EnrichmentClient interface {
	CountryInfo(ctx context.Context, countryCode string) *models.CountryInfo
	WeatherInfo(ctx context.Context, city, countryCode string) *models.WeatherInfo
}

var _ EnrichmentClient = (*HTTPExternalClient)(nil)

// HTTPExternalClient queries restcountries and openweather.
type HTTPExternalClient struct {
	countriesURL  string
	weatherURL    string
	weatherAPIKey string
	httpClient    *http.Client
	logger        *logrus.Entry
}

// NewHTTPExternalClient creates a client for the enrichment APIs.
func NewHTTPExternalClient(cfg config.ExternalConfig) *HTTPExternalClient {
	return &HTTPExternalClient{
		countriesURL:  strings.TrimRight(cfg.CountriesURL, "/"),
		weatherURL:    strings.TrimRight(cfg.WeatherURL, "/"),
		weatherAPIKey: cfg.WeatherAPIKey,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logging.New("external-client"),
	}
}

type countryResponse struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Region     string   `json:"region"`
	Population int64    `json:"population"`
	Currencies map[string]struct {
		Name string `json:"name"`
	} `json:"currencies"`
	Flags struct {
		SVG string `json:"svg"`
	} `json:"flags"`
	Languages map[string]string `json:"languages"`
}

type weatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (c *HTTPExternalClient) CountryInfo(ctx context.Context, countryCode string) *models.CountryInfo {
	if countryCode == "" {
		return nil
	}

	var countries []countryResponse
	endpoint := fmt.Sprintf("%s/alpha/%s", c.countriesURL, url.PathEscape(countryCode))
	if err := c.getJSON(ctx, endpoint, &countries); err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues("restcountries", "country").Inc()
		c.logger.WithFields(logging.Fields{
			"country_code": countryCode,
			"error":        err.Error(),
		}).Error("Error fetching country info")
		return nil
	}
	if len(countries) == 0 {
		return nil
	}

	country := countries[0]
	info := &models.CountryInfo{
		Name:       country.Name.Common,
		Region:     country.Region,
		Population: country.Population,
		Flag:       country.Flags.SVG,
		Languages:  make([]string, 0, len(country.Languages)),
	}
	if len(country.Capital) > 0 {
		info.Capital = country.Capital[0]
	}

	// Map order is random; pick the currency and list languages by code.
	codes := make([]string, 0, len(country.Currencies))
	for code := range country.Currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if len(codes) > 0 {
		info.Currency = country.Currencies[codes[0]].Name
	}

	langCodes := make([]string, 0, len(country.Languages))
	for code := range country.Languages {
		langCodes = append(langCodes, code)
	}
	sort.Strings(langCodes)
	for _, code := range langCodes {
		info.Languages = append(info.Languages, country.Languages[code])
	}

	return info
}

// WeatherInfo is skipped when no API key is configured.
func (c *HTTPExternalClient) WeatherInfo(ctx context.Context, city, countryCode string) *models.WeatherInfo {
	if city == "" || c.weatherAPIKey == "" {
		return nil
	}

	q := city
	if countryCode != "" {
		q += "," + countryCode
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("appid", c.weatherAPIKey)
	params.Set("units", "metric")
	params.Set("lang", "es")

	var resp weatherResponse
	if err := c.getJSON(ctx, c.weatherURL+"/weather?"+params.Encode(), &resp); err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues("openweather", "weather").Inc()
		c.logger.WithFields(logging.Fields{
			"city":  city,
			"error": err.Error(),
		}).Error("Error fetching weather")
		return nil
	}

	info := &models.WeatherInfo{
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
	}
	if len(resp.Weather) > 0 {
		info.Description = resp.Weather[0].Description
		info.Icon = resp.Weather[0].Icon
	}
	return info
}

func (c *HTTPExternalClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
