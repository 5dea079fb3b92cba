// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package backend is the typed JSON-over-HTTPS client for the broadcaster
// API. It covers the five operations the publishing engine needs: listing
// channels and content, submitting an upload tagged with the client's
// upload id, attaching metadata to one record, toggling visibility, and
// checking readiness by destination key.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrAddressEmpty        = errors.New("backend address is required")
	ErrChannelIDEmpty      = errors.New("channel ID is required")
	ErrRecordIDEmpty       = errors.New("record ID is required")
	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")

	ErrBadRequest           = errors.New("backend rejected the request as invalid")
	ErrFailedAuthentication = errors.New("failed to authenticate with the backend")
	ErrRecordNotFound       = errors.New("backend has no such record")
	ErrMetadataAlreadySet   = errors.New("record already carries metadata")
	ErrTooManyRequests      = errors.New("backend is rate limiting this client")
)

var (
	errNonSuccessResponse = errors.New("backend responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling JSON request payload")
)

const (
	apiPath          = "/api/v1"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
	errorHeaderKey   = "errorHeader"

	// OwnerHeaderKey carries the resolved owner identity on every request.
	OwnerHeaderKey = "X-Airlift-Owner"
)

// ClientConfig contains config data for the client that will be used to
// make requests to the broadcaster backend.
type ClientConfig struct {
	// Address is the backend URL (i.e. https://api.example-broadcaster.io).
	Address string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add auth headers to outgoing
	// requests. (Optional) If not provided, no auth headers are added.
	Auth Auth

	// Logger to be used by the client.
	// (Optional) By default a no op logger will be used.
	Logger *zap.Logger
}

// Auth contains authorization data for requests to the backend. The
// identity provider stays a black box behind the acquirer.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// Client is the client used to make requests to the backend.
type Client struct {
	client    *http.Client
	auth      acquire.Acquirer
	baseURL   string
	logger    *zap.Logger
	getLogger func(context.Context) *zap.Logger
}

// APIError is a decodable error payload returned by the backend. It
// carries both the provider error code and the HTTP status so the error
// classifier can apply its code and transport rules.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) StatusCode() int {
	return e.Status
}

func (e *APIError) ProviderCode() string {
	return e.Code
}

type response struct {
	Body        []byte
	ErrorHeader string
	Code        int
}

// NewClient creates a new Client that can be used to make requests to the
// backend.
func NewClient(config ClientConfig, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	err := validateClientConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}
	return &Client{
		client:    config.HTTPClient,
		auth:      tokenAcquirer,
		baseURL:   config.Address + apiPath,
		logger:    config.Logger,
		getLogger: getLogger,
	}, nil
}

// ListChannels fetches one page of channels matching the search query.
func (c *Client) ListChannels(ctx context.Context, input ListChannelsInput) (ListChannelsOutput, error) {
	query := url.Values{}
	if input.Query != "" {
		query.Set("query", input.Query)
	}
	if input.Page != "" {
		query.Set("page", input.Page)
	}
	target := c.baseURL + "/channels"
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	resp, err := c.sendRequest(ctx, input.Owner, http.MethodGet, target, nil, "")
	if err != nil {
		return ListChannelsOutput{}, err
	}
	if resp.Code != http.StatusOK {
		return ListChannelsOutput{}, c.failure(ctx, "ListChannels", resp)
	}

	var out ListChannelsOutput
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return ListChannelsOutput{}, fmt.Errorf("ListChannels: %w: %s", errJSONUnmarshal, err.Error())
	}
	return out, nil
}

// ListContent fetches one page of the owner's content records in a channel,
// most recent first.
func (c *Client) ListContent(ctx context.Context, input ListContentInput) (ListContentOutput, error) {
	if input.ChannelID == "" {
		return ListContentOutput{}, ErrChannelIDEmpty
	}
	target := fmt.Sprintf("%s/channels/%s/content", c.baseURL, url.PathEscape(input.ChannelID))
	if input.Page != "" {
		target += "?page=" + url.QueryEscape(input.Page)
	}

	resp, err := c.sendRequest(ctx, input.Owner, http.MethodGet, target, nil, "")
	if err != nil {
		return ListContentOutput{}, err
	}
	if resp.Code != http.StatusOK {
		return ListContentOutput{}, c.failure(ctx, "ListContent", resp)
	}

	var out ListContentOutput
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return ListContentOutput{}, fmt.Errorf("ListContent: %w: %s", errJSONUnmarshal, err.Error())
	}
	return out, nil
}

// AttachMetadata writes user metadata onto exactly one content record. A
// conflict response means the record is already annotated and is surfaced
// as ErrMetadataAlreadySet; callers treat that as success.
func (c *Client) AttachMetadata(ctx context.Context, input AttachMetadataInput) error {
	if input.RecordID == "" {
		return ErrRecordIDEmpty
	}
	data, err := json.Marshal(input.Metadata)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	target := fmt.Sprintf("%s/content/%s/metadata", c.baseURL, url.PathEscape(input.RecordID))
	resp, err := c.sendRequest(ctx, input.Owner, http.MethodPut, target, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	if resp.Code == http.StatusOK || resp.Code == http.StatusNoContent {
		return nil
	}
	return c.failure(ctx, "AttachMetadata", resp)
}

// SetVisibility flips the privacy flag on one content record.
func (c *Client) SetVisibility(ctx context.Context, input SetVisibilityInput) error {
	if input.RecordID == "" {
		return ErrRecordIDEmpty
	}
	data, err := json.Marshal(visibilityBody{Private: input.Private})
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	target := fmt.Sprintf("%s/content/%s/visibility", c.baseURL, url.PathEscape(input.RecordID))
	resp, err := c.sendRequest(ctx, input.Owner, http.MethodPut, target, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	if resp.Code == http.StatusOK || resp.Code == http.StatusNoContent {
		return nil
	}
	return c.failure(ctx, "SetVisibility", resp)
}

// ResolveDestinationKey returns the channel's ingestion key, creating one
// server-side if the channel does not have one yet.
func (c *Client) ResolveDestinationKey(ctx context.Context, input ResolveDestinationKeyInput) (string, error) {
	if input.ChannelID == "" {
		return "", ErrChannelIDEmpty
	}
	target := fmt.Sprintf("%s/channels/%s/destination-key", c.baseURL, url.PathEscape(input.ChannelID))
	resp, err := c.sendRequest(ctx, input.Owner, http.MethodPost, target, nil, "")
	if err != nil {
		return "", err
	}
	if resp.Code != http.StatusOK && resp.Code != http.StatusCreated {
		return "", c.failure(ctx, "ResolveDestinationKey", resp)
	}

	var out destinationKeyBody
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("ResolveDestinationKey: %w: %s", errJSONUnmarshal, err.Error())
	}
	return out.DestinationKey, nil
}

// CheckReadiness reports whether the record ingested under the given
// destination key has a playable rendition and a thumbnail.
func (c *Client) CheckReadiness(ctx context.Context, input CheckReadinessInput) (CheckReadinessOutput, error) {
	if input.DestinationKey == "" {
		return CheckReadinessOutput{}, errors.New("destination key is required")
	}
	target := c.baseURL + "/readiness?destinationKey=" + url.QueryEscape(input.DestinationKey)
	resp, err := c.sendRequest(ctx, input.Owner, http.MethodGet, target, nil, "")
	if err != nil {
		return CheckReadinessOutput{}, err
	}
	if resp.Code != http.StatusOK {
		return CheckReadinessOutput{}, c.failure(ctx, "CheckReadiness", resp)
	}

	var out CheckReadinessOutput
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return CheckReadinessOutput{}, fmt.Errorf("CheckReadiness: %w: %s", errJSONUnmarshal, err.Error())
	}
	return out, nil
}

func (c *Client) sendRequest(ctx context.Context, owner, method, target string, body io.Reader, contentType string) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	err = acquire.AddAuth(r, c.auth)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if len(owner) > 0 {
		r.Header.Set(OwnerHeaderKey, owner)
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	var out = response{
		Code:        resp.StatusCode,
		ErrorHeader: resp.Header.Get("X-Airlift-Error"),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	out.Body = bodyBytes
	return out, nil
}

// failure logs a non-success response and turns it into an error. A
// decodable error body is surfaced as *APIError so downstream
// classification can see the provider code; anything else becomes a
// translated sentinel.
func (c *Client) failure(ctx context.Context, operation string, resp response) error {
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	l.Error("backend responded with a non-success status code",
		zap.String("operation", operation),
		zap.Int("code", resp.Code),
		zap.String(errorHeaderKey, resp.ErrorHeader))

	var decoded APIError
	if err := json.Unmarshal(resp.Body, &decoded); err == nil && decoded.Code != "" {
		decoded.Status = resp.Code
		return &decoded
	}
	return fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
}

// translateNonSuccessStatusCode returns a specific error for known backend
// status codes.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrFailedAuthentication
	case http.StatusNotFound:
		return ErrRecordNotFound
	case http.StatusConflict:
		return ErrMetadataAlreadySet
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	default:
		return errNonSuccessResponse
	}
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func validateClientConfig(config *ClientConfig) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
