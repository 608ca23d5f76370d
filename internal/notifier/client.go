// Package notifier delivers settlement decisions to the commerce service.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
)

// CommerceClient calls the commerce activation and compensation endpoints.
// Every route is idempotent on the commerce side, so retries are safe.
type CommerceClient struct {
	baseURL string
	http    *http.Client
	token   func() (string, error)
	log     *zap.Logger
}

func NewCommerceClient(baseURL string, timeout time.Duration, token func() (string, error), log *zap.Logger) *CommerceClient {
	return &CommerceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		token:   token,
		log:     log,
	}
}

type route struct {
	method string
	path   string
}

func routeFor(target models.Target, action models.Action, id string) (route, error) {
	switch {
	case target == models.TargetCourse && action == models.ActionActivate:
		return route{http.MethodPut, "/api/v1/courses/" + id + "/activate"}, nil
	case target == models.TargetCourse && action == models.ActionCompensate:
		return route{http.MethodDelete, "/api/v1/courses/" + id}, nil
	case target == models.TargetEnrollment && action == models.ActionActivate:
		return route{http.MethodPost, "/api/v1/enrollments/" + id + "/activate"}, nil
	case target == models.TargetEnrollment && action == models.ActionCompensate:
		return route{http.MethodDelete, "/api/v1/enrollments/" + id}, nil
	}
	return route{}, fmt.Errorf("no commerce route for %s/%s", target, action)
}

// Notify delivers one outbox message.
func (c *CommerceClient) Notify(ctx context.Context, msg *models.OutboxMessage) error {
	switch msg.Action {
	case models.ActionActivate:
		return c.Activate(ctx, msg.CorrelationID, msg.Kind)
	case models.ActionCompensate:
		return c.Compensate(ctx, msg.CorrelationID, msg.Kind)
	}
	return fmt.Errorf("%w: unknown action %q", models.ErrInvalidKind, msg.Action)
}

func (c *CommerceClient) Activate(ctx context.Context, correlationID string, kind models.Kind) error {
	return c.call(ctx, correlationID, kind, models.ActionActivate)
}

func (c *CommerceClient) Compensate(ctx context.Context, correlationID string, kind models.Kind) error {
	return c.call(ctx, correlationID, kind, models.ActionCompensate)
}

func (c *CommerceClient) call(ctx context.Context, correlationID string, kind models.Kind, action models.Action) error {
	target, err := kind.Target()
	if err != nil {
		return err
	}
	rt, err := routeFor(target, action, correlationID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, rt.method, c.baseURL+rt.path, nil)
	if err != nil {
		return err
	}
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrNotificationFailure, rt.method, rt.path, err)
	}
	defer resp.Body.Close()

	if acknowledged(action, resp.StatusCode) {
		if resp.StatusCode >= 300 {
			c.log.Info("Commerce acknowledged compensation as no-op",
				zap.String("target", string(target)),
				zap.String("correlation_id", correlationID),
				zap.Int("status", resp.StatusCode))
		}
		return nil
	}

	var body models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = string(raw)
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", models.ErrNotificationFailure, rt.method, rt.path, resp.StatusCode, body.Error)
}

// acknowledged reports whether status settles the notification. A
// compensation finding the record already gone, or already paid for by a
// later decision, has nothing left to do.
func acknowledged(action models.Action, status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	if action == models.ActionCompensate {
		return status == http.StatusNotFound || status == http.StatusConflict
	}
	return false
}
