package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type ServiceHealth struct {
	Service        Service `json:"service"`
	URL            string  `json:"url"`
	Status         string  `json:"status"`
	ResponseTimeMS int64   `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

type HealthReport struct {
	Overall    string          `json:"overall"`
	PerService []ServiceHealth `json:"per_service"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// HealthCheck pings every analyzer concurrently. Overall is healthy only when
// all three answer 2xx within the health deadline.
func (c *Client) HealthCheck(ctx context.Context) HealthReport {
	services := []Service{ServiceFacial, ServiceAudio, ServiceText}
	results := make([]ServiceHealth, len(services))

	var g errgroup.Group
	for i, svc := range services {
		g.Go(func() error {
			results[i] = c.checkService(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	overall := HealthHealthy
	for _, r := range results {
		if r.Status != HealthHealthy {
			overall = HealthDegraded
			break
		}
	}
	return HealthReport{Overall: overall, PerService: results, CheckedAt: time.Now().UTC()}
}

func (c *Client) checkService(ctx context.Context, svc Service) ServiceHealth {
	url := c.baseURL(svc) + "/health"
	out := ServiceHealth{Service: svc, URL: url, Status: HealthUnhealthy}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	resp, err := c.httpClient.Do(req)
	out.ResponseTimeMS = time.Since(start).Milliseconds()
	if err != nil {
		out.Error = transportFailure(svc, err).Message
		return out
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Error = fmt.Sprintf("health endpoint returned status %d", resp.StatusCode)
		return out
	}
	out.Status = HealthHealthy
	return out
}
