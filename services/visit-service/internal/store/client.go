package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrNotFound means the store has no appointment with that id.
	ErrNotFound = errors.New("appointment not found")
	// ErrTransitionRejected means the appointment was no longer
	// awaiting a response when the mutation arrived (concurrent
	// modification; the store's conflict check is the source of truth).
	ErrTransitionRejected = errors.New("appointment is no longer awaiting a response")
)

// Client talks to the external appointment store over its REST API.
// The society id selects the deployment context and is fixed at
// construction.
type Client struct {
	baseURL string
	society string
	hc      *http.Client
}

func NewClient(baseURL, societyID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		society: strings.TrimSpace(societyID),
		hc: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// CreateAppointment is the submission payload for a new visit request.
type CreateAppointment struct {
	PropertyID  string
	RequesterID string
	ScheduledAt *time.Time
	Location    string
}

func (c *Client) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	var payloads []appointmentPayload
	if err := c.getJSON(ctx, "/appointments", &payloads); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	appts := make([]model.Appointment, 0, len(payloads))
	for _, p := range payloads {
		appts = append(appts, p.toModel())
	}
	return appts, nil
}

func (c *Client) ListProperties(ctx context.Context) ([]model.Property, error) {
	var payloads []propertyPayload
	if err := c.getJSON(ctx, "/properties", &payloads); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	props := make([]model.Property, 0, len(payloads))
	for _, p := range payloads {
		props = append(props, p.toModel())
	}
	return props, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	var payloads []personPayload
	if err := c.getJSON(ctx, "/users", &payloads); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]model.UserProfile, 0, len(payloads))
	for _, p := range payloads {
		users = append(users, p.toProfile())
	}
	return users, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointment) (model.Appointment, error) {
	body := map[string]any{
		"propertyId": req.PropertyID,
		"userId":     req.RequesterID,
	}
	if req.ScheduledAt != nil {
		body["dateTime"] = req.ScheduledAt.UTC().Format(wireInstant)
	}
	if strings.TrimSpace(req.Location) != "" {
		body["location"] = req.Location
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/appointments", nil, raw)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	var payload appointmentPayload
	if err := c.do(httpReq, &payload); err != nil {
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	return payload.toModel(), nil
}

// Respond applies the responder's decision. The store expects the
// decision as query parameters on the respond endpoint; dateTime and
// location are omitted when they carry no value. The returned
// appointment is authoritative and fully replaces local state.
func (c *Client) Respond(ctx context.Context, id string, accepted bool, scheduledAt *time.Time, location string) (model.Appointment, error) {
	params := url.Values{}
	params.Set("accepted", fmt.Sprintf("%t", accepted))
	if scheduledAt != nil {
		params.Set("dateTime", scheduledAt.UTC().Format(wireInstant))
	}
	if strings.TrimSpace(location) != "" {
		params.Set("location", location)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id)+"/respond", params, nil)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("respond to appointment %s: %w", id, err)
	}
	var payload appointmentPayload
	if err := c.do(httpReq, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			// The record was removed (or re-responded) underneath us.
			return model.Appointment{}, ErrTransitionRejected
		}
		return model.Appointment{}, fmt.Errorf("respond to appointment %s: %w", id, err)
	}
	return payload.toModel(), nil
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	httpReq, err := c.newRequest(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	if err := c.do(httpReq, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return nil
}

// ScoreAppointment asks the store to run the external no-show model
// for one appointment and returns the rescored record.
func (c *Client) ScoreAppointment(ctx context.Context, id string) (model.Appointment, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id)+"/score", nil, nil)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("score appointment %s: %w", id, err)
	}
	var payload appointmentPayload
	if err := c.do(httpReq, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("score appointment %s: %w", id, err)
	}
	return payload.toModel(), nil
}

// ReadyCheck reports whether the store answers HTTP at all. Any status
// code counts as reachable; only transport failures are errors.
func (c *Client) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/appointments", nil)
		if err != nil {
			return err
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Request, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.society != "" {
		params.Set("society", c.society)
	}
	u := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrTransitionRejected
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body on a list endpoint means no data.
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
