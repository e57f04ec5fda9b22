// Package dispatchapi is the HTTP client of the dispatch backend.
package dispatchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	getSystemsPath = "/api/get_systems"
	getAgencyPath  = "/api/get_agency"
	saveSystemPath = "/admin/save_system"
	saveAgencyPath = "/admin/save_agency"

	querySystemID     = "system_id"
	queryWithAgencies = "with_agencies"
	queryNewSystem    = "new_system"
	queryDeleteSystem = "delete_system"
	queryNewAgency    = "new_agency"
	queryDeleteAgency = "delete_agency"
	queryFlagTrue     = "true"

	defaultRetryWait    = 250 * time.Millisecond
	defaultRetryMaxWait = 2 * time.Second
)

var (
	// ErrNotFound reports that the backend has no record for the request.
	ErrNotFound = errors.New("dispatchapi: not found")
	// ErrMissingBaseURL is returned when the client is created without a backend address.
	ErrMissingBaseURL = errors.New("dispatchapi: base url is required")
)

// TransportError covers network failures, server errors and undecodable responses.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (transportError *TransportError) Error() string {
	if transportError.StatusCode > 0 {
		return fmt.Sprintf("dispatchapi: %s failed with status %d: %v", transportError.Operation, transportError.StatusCode, transportError.Err)
	}
	return fmt.Sprintf("dispatchapi: %s failed: %v", transportError.Operation, transportError.Err)
}

func (transportError *TransportError) Unwrap() error {
	return transportError.Err
}

// Action selects the mutation a save request performs.
type Action string

const (
	ActionUpdate Action = "update"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// Record is one decoded backend entity.
type Record map[string]any

// MutationResponse is the {success, message} envelope of the save endpoints.
// Result carries the created id when the backend reports one.
type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// CreatedID returns Result as an id string.
func (response MutationResponse) CreatedID() string {
	switch typed := response.Result.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return fmt.Sprintf("%.0f", typed)
	default:
		return ""
	}
}

type listResponse struct {
	Result []Record `json:"result"`
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	ReadRetries int
	HTTPClient  *http.Client
}

// Client calls the dispatch backend. Reads are retried; writes never are.
type Client struct {
	readClient  *resty.Client
	writeClient *resty.Client
	logger      *zap.Logger
}

// NewClient builds a backend client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	newRestyClient := func() *resty.Client {
		var client *resty.Client
		if cfg.HTTPClient != nil {
			client = resty.NewWithClient(cfg.HTTPClient)
		} else {
			client = resty.New()
		}
		client.SetBaseURL(baseURL).SetHeader("Accept", "application/json")
		if cfg.Timeout > 0 {
			client.SetTimeout(cfg.Timeout)
		}
		return client
	}

	readClient := newRestyClient()
	if cfg.ReadRetries > 0 {
		readClient.
			SetRetryCount(cfg.ReadRetries).
			SetRetryWaitTime(defaultRetryWait).
			SetRetryMaxWaitTime(defaultRetryMaxWait).
			AddRetryCondition(func(response *resty.Response, err error) bool {
				return err != nil || (response != nil && response.StatusCode() >= http.StatusInternalServerError)
			})
	}
	return &Client{readClient: readClient, writeClient: newRestyClient(), logger: logger}, nil
}

// GetSystems lists systems. A non-empty systemID narrows the result to that system.
func (client *Client) GetSystems(ctx context.Context, systemID string, withAgencies bool) ([]Record, error) {
	request := client.readClient.R().SetContext(ctx)
	if systemID != "" {
		request.SetQueryParam(querySystemID, systemID)
	}
	if withAgencies {
		request.SetQueryParam(queryWithAgencies, queryFlagTrue)
	}
	return client.list(request, getSystemsPath)
}

// GetAgencies lists the agencies of a system.
func (client *Client) GetAgencies(ctx context.Context, systemID string) ([]Record, error) {
	request := client.readClient.R().SetContext(ctx).SetQueryParam(querySystemID, systemID)
	return client.list(request, getAgencyPath)
}

// SaveSystem posts a system form.
func (client *Client) SaveSystem(ctx context.Context, action Action, fields map[string]string) (MutationResponse, error) {
	return client.save(ctx, saveSystemPath, action, queryNewSystem, queryDeleteSystem, fields)
}

// SaveAgency posts an agency form. fields must carry system_id.
func (client *Client) SaveAgency(ctx context.Context, action Action, fields map[string]string) (MutationResponse, error) {
	return client.save(ctx, saveAgencyPath, action, queryNewAgency, queryDeleteAgency, fields)
}

func (client *Client) list(request *resty.Request, path string) ([]Record, error) {
	var payload listResponse
	response, requestErr := request.SetResult(&payload).Get(path)
	if requestErr != nil {
		client.logger.Warn("backend_request_failed", zap.String("path", path), zap.Error(requestErr))
		return nil, &TransportError{Operation: path, Err: requestErr}
	}
	client.logger.Debug("backend_request", zap.String("path", path), zap.Int("status", response.StatusCode()))
	switch {
	case response.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case response.IsError():
		return nil, &TransportError{Operation: path, StatusCode: response.StatusCode(), Err: errors.New(strings.TrimSpace(response.String()))}
	}
	if payload.Result == nil {
		if decodeErr := json.Unmarshal(response.Body(), &payload); decodeErr != nil {
			return nil, &TransportError{Operation: path, StatusCode: response.StatusCode(), Err: decodeErr}
		}
	}
	return payload.Result, nil
}

func (client *Client) save(ctx context.Context, path string, action Action, createFlag string, deleteFlag string, fields map[string]string) (MutationResponse, error) {
	request := client.writeClient.R().SetContext(ctx).SetMultipartFormData(fields)
	switch action {
	case ActionCreate:
		request.SetQueryParam(createFlag, queryFlagTrue)
	case ActionDelete:
		request.SetQueryParam(deleteFlag, queryFlagTrue)
	}

	response, requestErr := request.Post(path)
	if requestErr != nil {
		client.logger.Warn("backend_request_failed", zap.String("path", path), zap.String("action", string(action)), zap.Error(requestErr))
		return MutationResponse{}, &TransportError{Operation: path, Err: requestErr}
	}
	client.logger.Debug("backend_request", zap.String("path", path), zap.String("action", string(action)), zap.Int("status", response.StatusCode()))
	if response.StatusCode() >= http.StatusInternalServerError {
		return MutationResponse{}, &TransportError{Operation: path, StatusCode: response.StatusCode(), Err: errors.New(strings.TrimSpace(response.String()))}
	}

	var outcome MutationResponse
	if decodeErr := json.Unmarshal(response.Body(), &outcome); decodeErr != nil {
		return MutationResponse{}, &TransportError{Operation: path, StatusCode: response.StatusCode(), Err: decodeErr}
	}
	return outcome, nil
}
