package idealista

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"idealista-go/pkg/logger"
	"idealista-go/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// SearchParams are the inputs of a property search. Country, Operation and
// PropertyType are required; the location is either Center with Distance or
// LocationID. Every other field is sent only when set.
type SearchParams struct {
	Country      string
	Operation    Operation
	PropertyType PropertyType

	Center     *Point
	Distance   *float64
	LocationID string

	Locale        string
	MaxItems      *int
	NumPage       *int
	MaxPrice      *float64
	MinPrice      *float64
	SinceDate     SinceDate
	Order         string
	Sort          Sort
	AdIDs         []int
	HasMultimedia *bool
}

// Payload builds the form payload for p without sending it.
func (p SearchParams) Payload() (SearchRequest, error) {
	var center string
	if p.Center != nil {
		center = p.Center.String()
	}

	return BuildSearchPayload(
		p.Country,
		p.Operation,
		p.PropertyType,
		LocationInput{
			Center:     center,
			Distance:   p.Distance,
			LocationID: p.LocationID,
		},
		OptionalFields{
			Locale:        p.Locale,
			MaxItems:      p.MaxItems,
			NumPage:       p.NumPage,
			MaxPrice:      p.MaxPrice,
			MinPrice:      p.MinPrice,
			SinceDate:     p.SinceDate,
			Order:         p.Order,
			Sort:          p.Sort,
			AdIDs:         p.AdIDs,
			HasMultimedia: p.HasMultimedia,
		},
	)
}

// authorize wraps base so every request carries the held token.
func authorize(base *http.Client, token Token) *http.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken(),
		TokenType:   token.TokenType(),
	})
	return &http.Client{
		Transport:     &oauth2.Transport{Source: source, Base: base.Transport},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}

// Search posts one search request and returns the decoded JSON object as is. Numbers
// are returned as json.Number so large identifiers keep every digit; a body that is not
// a JSON object is an error.
// Invalid parameters fail with *ValidationError before any request is made; a non-2xx
// response fails with *APIRequestError. Nothing is retried.
func (c *Client) Search(ctx context.Context, params SearchParams) (map[string]interface{}, error) {
	payload, err := params.Payload()
	if err != nil {
		return nil, err
	}

	searchURL := c.baseURL + "/" + url.PathEscape(params.Country) + "/search"
	log := c.log.WithFields(logger.Fields{
		"request_id": uuid.NewString(),
		"url":        searchURL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, strings.NewReader(payload.Form().Encode()))
	if err != nil {
		log.Errorf("Failed to create search request: error=%v", err)
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log.Debugf("Sending search request: operation=%s, propertyType=%s", payload["operation"], payload["propertyType"])

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		metrics.SearchRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Errorf("Failed to send search request: error=%v", err)
		return nil, fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	status := strconv.Itoa(resp.StatusCode)
	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
	metrics.SearchRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("Failed to read search response body: status=%s, error=%v", resp.Status, err)
		return nil, fmt.Errorf("failed to read search response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("Search request failed: status=%s, response=%s", resp.Status, string(body))
		return nil, &APIRequestError{
			URL:        searchURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}

	var result map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		log.Errorf("Failed to decode search response: error=%v", err)
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if result == nil {
		log.Errorf("Failed to decode search response: error=body is null")
		return nil, fmt.Errorf("failed to decode search response: body is null")
	}

	log.Debugf("Search request succeeded: status=%s, duration=%s", resp.Status, time.Since(start))
	return result, nil
}
