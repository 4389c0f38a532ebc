package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStaleFeed AlertType = "stale_feed"
	AlertEmptyFeed AlertType = "empty_feed"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates freshness snapshots against thresholds and sends
// alerts via webhook when breached. Without a webhook URL alerts only
// go to the log.
type Alerter struct {
	webhookURL   string
	maxStaleDays int
	client       *http.Client
}

// NewAlerter creates an Alerter. maxStaleDays is the trading-day
// staleness above which a country's feed is considered broken.
func NewAlerter(webhookURL string, maxStaleDays int) *Alerter {
	if maxStaleDays <= 0 {
		maxStaleDays = 3
	}
	return &Alerter{
		webhookURL:   webhookURL,
		maxStaleDays: maxStaleDays,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate derives alerts from a snapshot.
func (a *Alerter) Evaluate(snap *FreshnessSnapshot) []Alert {
	var alerts []Alert
	for _, c := range snap.Countries {
		switch {
		case c.LatestDate == nil:
			alerts = append(alerts, Alert{
				Type:      AlertEmptyFeed,
				Severity:  "warning",
				Message:   fmt.Sprintf("%s has no disclosures at all", c.CountryName),
				Details:   map[string]any{"country": c.CountryCode},
				Timestamp: snap.CollectedAt,
			})
		case c.StaleDays > a.maxStaleDays:
			alerts = append(alerts, Alert{
				Type:     AlertStaleFeed,
				Severity: "critical",
				Message: fmt.Sprintf("%s feed is %d trading days stale (last disclosure %s)",
					c.CountryName, c.StaleDays, c.LatestDate.Format("2006-01-02")),
				Details: map[string]any{
					"country":    c.CountryCode,
					"stale_days": c.StaleDays,
				},
				Timestamp: snap.CollectedAt,
			})
		}
	}
	return alerts
}

// Send delivers alerts. Each alert is logged; if a webhook is
// configured it is posted there as well.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) error {
	for _, alert := range alerts {
		zap.L().Warn("feed alert",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
	}
	if a.webhookURL == "" || len(alerts) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"alerts": alerts})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook returned %d", resp.StatusCode)
	}
	return nil
}
