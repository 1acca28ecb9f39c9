package server

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Registration is the heartbeat body sent to a registry.
type Registration struct {
	ID        string `json:"id"`
	Addr      string `json:"addr"`
	Plugin    string `json:"plugin"`
	MaxBatch  int    `json:"max_batch"`
	TimeStamp int64  `json:"timestamp"`
}

// RegistrationResponse is the registry's reply.
type RegistrationResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// Announcer periodically registers this server with a registry so load
// balancers can discover it.
type Announcer struct {
	client   *resty.Client
	url      string
	interval time.Duration
	reg      Registration
}

// NewAnnouncer creates an announcer. Each request times out after interval.
func NewAnnouncer(url string, interval time.Duration, reg Registration) *Announcer {
	return &Announcer{
		client:   resty.New().SetTimeout(interval),
		url:      url,
		interval: interval,
		reg:      reg,
	}
}

// Announce sends one registration.
//
// Returns:
//   - error: A transport error, a non-2xx status or a rejected registration.
func (a *Announcer) Announce(ctx context.Context) error {
	reg := a.reg
	reg.TimeStamp = time.Now().Unix()

	var out RegistrationResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(reg).
		SetResult(&out).
		Post(a.url)
	if err != nil {
		return errors.Wrap(err, "registration request failed")
	}
	if resp.IsError() {
		return errors.Errorf("registry returned %s: %s", resp.Status(), resp.String())
	}
	if !out.Success {
		return errors.Errorf("registry rejected %s", reg.ID)
	}
	return nil
}

// Run announces immediately and then every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := a.Announce(ctx); err != nil && ctx.Err() == nil {
			logger.Log().Warn("registration failed", zap.String("registry", a.url), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			logger.Log().Info("announcer stopped", zap.String("registry", a.url))
			return
		case <-ticker.C:
		}
	}
}
