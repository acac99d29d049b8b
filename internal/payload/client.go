// Package payload is a client for the Payload CMS REST API. It builds the
// bracketed query syntax Payload expects for filters and field selection,
// and maps HTTP status codes onto a typed error taxonomy.
package payload

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
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/craftpad/payload-mcp/internal/config"
	"github.com/craftpad/payload-mcp/internal/logging"
	"github.com/craftpad/payload-mcp/internal/util"
)

// Client talks to a Payload CMS instance. The auth token may be replaced at
// any time by the auth manager's renewal callback; CRUD calls only read it.
type Client struct {
	mu         sync.Mutex
	baseURL    string
	authToken  string
	httpClient *http.Client
	reqLog     logging.RequestLogger
}

// NewClient creates a client from the configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		authToken:  cfg.AuthToken,
		httpClient: util.NewHTTPClient(cfg),
		reqLog:     logging.NewFileRequestLogger(cfg.RequestLog, "logs"),
	}
}

// SetAuthToken replaces the bearer token used for subsequent calls. This is
// wired as an auth renewal observer.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// UpdateConfig applies a reloaded configuration.
func (c *Client) UpdateConfig(cfg *config.Config) {
	client := util.NewHTTPClient(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	c.httpClient = client
	c.reqLog = logging.NewFileRequestLogger(cfg.RequestLog, "logs")
	if cfg.AuthToken != "" && c.authToken == "" {
		c.authToken = cfg.AuthToken
	}
}

// Create creates a new document in the given collection.
func (c *Client) Create(ctx context.Context, collection string, data map[string]any) ([]byte, error) {
	if collection == "" {
		return nil, NewValidationError("collection name is required")
	}
	if len(data) == 0 {
		return nil, NewValidationError("data is required for creating an object")
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("data is not serializable: %v", err))
	}

	result, errDo := c.do(ctx, http.MethodPost, collection, nil, body)
	if errDo != nil {
		return nil, errDo
	}
	log.Debugf("created object in collection %s", collection)
	return result, nil
}

// Update patches a document by ID.
func (c *Client) Update(ctx context.Context, collection, id string, data map[string]any) ([]byte, error) {
	if collection == "" {
		return nil, NewValidationError("collection name is required")
	}
	if id == "" {
		return nil, NewValidationError("object ID is required")
	}
	if len(data) == 0 {
		return nil, NewValidationError("data is required for updating an object")
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("data is not serializable: %v", err))
	}

	result, errDo := c.do(ctx, http.MethodPatch, collection+"/"+id, nil, body)
	if errDo != nil {
		return nil, errDo
	}
	log.Debugf("updated object %s in collection %s", id, collection)
	return result, nil
}

// SearchOptions carries the query parameters for a collection search.
// Nil pointer fields are omitted from the request.
type SearchOptions struct {
	Where          map[string]any
	Limit          *int
	Page           *int
	Sort           string
	Depth          *int
	Locale         string
	FallbackLocale string
	Select         map[string]any
	Populate       map[string]any
	Joins          map[string]any
	Trash          *bool
}

// Search queries documents in a collection.
func (c *Client) Search(ctx context.Context, collection string, opts SearchOptions) ([]byte, error) {
	if collection == "" {
		return nil, NewValidationError("collection name is required")
	}
	if opts.Limit != nil && *opts.Limit <= 0 {
		return nil, NewValidationError("limit must be a positive integer")
	}
	if opts.Page != nil && *opts.Page <= 0 {
		return nil, NewValidationError("page must be a positive integer")
	}
	if opts.Depth != nil && *opts.Depth < 0 {
		return nil, NewValidationError("depth must be a non-negative integer")
	}

	params := url.Values{}
	flattenWhere(opts.Where, "where", params)
	if opts.Limit != nil {
		params.Set("limit", strconv.Itoa(*opts.Limit))
	}
	if opts.Page != nil {
		params.Set("page", strconv.Itoa(*opts.Page))
	}
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}
	if opts.Depth != nil {
		params.Set("depth", strconv.Itoa(*opts.Depth))
	}
	if opts.Locale != "" {
		params.Set("locale", opts.Locale)
	}
	if opts.FallbackLocale != "" {
		params.Set("fallback-locale", opts.FallbackLocale)
	}
	if opts.Trash != nil {
		params.Set("trash", strconv.FormatBool(*opts.Trash))
	}
	flattenNested(opts.Select, "select", params)
	flattenNested(opts.Populate, "populate", params)
	flattenNested(opts.Joins, "joins", params)

	result, err := c.do(ctx, http.MethodGet, collection, params, nil)
	if err != nil {
		return nil, err
	}
	log.Debugf("searched objects in collection %s", collection)
	return result, nil
}

// do performs one API request and maps the response status onto the error
// taxonomy. Successful non-JSON bodies are wrapped as {"data": <text>}.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	c.mu.Lock()
	base := c.baseURL
	token := c.authToken
	client := c.httpClient
	reqLog := c.reqLog
	c.mu.Unlock()

	requestURL := base + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}

	resp, errDo := client.Do(req)
	if errDo != nil {
		return nil, NewConnectionError("failed to connect to Payload CMS", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, NewConnectionError("failed to read response", errRead)
	}

	if reqLog != nil && reqLog.IsEnabled() {
		reqLog.LogRequest(method, requestURL, body, resp.StatusCode, data)
	}

	if errStatus := mapStatus(resp.StatusCode, data); errStatus != nil {
		return nil, errStatus
	}

	if !gjson.ValidBytes(data) {
		wrapped, _ := sjson.Set("{}", "data", string(data))
		return []byte(wrapped), nil
	}
	return data, nil
}

// mapStatus converts a non-2xx response into a typed error carrying the
// server's message when one is present.
func mapStatus(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}

	message := gjson.GetBytes(body, "message").String()

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		if message == "" {
			message = "bad request"
		}
		return &ValidationError{Message: "validation error: " + message, Response: string(body)}
	case statusCode == http.StatusUnauthorized:
		return NewAuthenticationError("JWT authentication failed - please check your token")
	case statusCode == http.StatusNotFound:
		return &NotFoundError{APIError{Message: "resource not found", StatusCode: statusCode}}
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{APIError{Message: "rate limit exceeded", StatusCode: statusCode}}
	case statusCode >= 500:
		if message == "" {
			message = "server error"
		}
		return &APIError{Message: "server error: " + message, StatusCode: statusCode, Response: string(body)}
	default:
		if message == "" {
			message = "client error"
		}
		return &APIError{
			Message:    fmt.Sprintf("API request failed: %d - %s", statusCode, message),
			StatusCode: statusCode,
			Response:   string(body),
		}
	}
}

// flattenWhere renders a MongoDB-style filter object into Payload's bracketed
// query syntax: where[field][operator]=value. A bare value is treated as an
// equality check; list or object operator values are JSON-encoded.
func flattenWhere(where map[string]any, prefix string, params url.Values) {
	for field, value := range where {
		if operators, ok := value.(map[string]any); ok {
			for operator, operatorValue := range operators {
				key := fmt.Sprintf("%s[%s][%s]", prefix, field, operator)
				params.Set(key, paramValue(operatorValue, true))
			}
			continue
		}
		params.Set(fmt.Sprintf("%s[%s][equals]", prefix, field), paramValue(value, false))
	}
}

// flattenNested renders select/populate/joins maps:
// kind[field]=value and kind[field][nested]=value.
func flattenNested(nested map[string]any, kind string, params url.Values) {
	for key, value := range nested {
		if children, ok := value.(map[string]any); ok {
			for nestedKey, nestedValue := range children {
				params.Set(fmt.Sprintf("%s[%s][%s]", kind, key, nestedKey), paramValue(nestedValue, false))
			}
			continue
		}
		params.Set(fmt.Sprintf("%s[%s]", kind, key), paramValue(value, false))
	}
}

// paramValue renders a filter value as a query string value. Booleans render
// lowercase; when jsonComplex is set, slices and maps are JSON-encoded.
func paramValue(v any, jsonComplex bool) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return "null"
	default:
		if jsonComplex {
			if encoded, err := json.Marshal(t); err == nil {
				return string(encoded)
			}
		}
		return fmt.Sprintf("%v", t)
	}
}
