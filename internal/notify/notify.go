// server/internal/notify/notify.go
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	CategoryBid        = "bid"
	CategoryAssignment = "assignment"
	CategoryPriceMatch = "price_match"
)

type Message struct {
	ReceiverIDs []string `json:"receiver_ids"`
	Text        string   `json:"text"`
	Category    string   `json:"category"`
	DeepLink    string   `json:"deep_link,omitempty"`
}

// Sink posts notifications to the external notification service.
type Sink struct {
	client *resty.Client
	log    *logrus.Logger
}

func NewSink(baseURL string, timeout time.Duration, log *logrus.Logger) *Sink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2)
	return &Sink{client: client, log: log}
}

func (s *Sink) Notify(ctx context.Context, msg Message) error {
	if len(msg.ReceiverIDs) == 0 {
		return nil
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post("/api/v1/notifications")
	if err != nil {
		return err
	}
	if resp.IsError() {
		s.log.WithFields(logrus.Fields{
			"status":   resp.StatusCode(),
			"category": msg.Category,
		}).Warn("notification service rejected message")
	}
	return nil
}

// Dispatch sends in the background. Auction flows never fail because the
// notification service is down.
func (s *Sink) Dispatch(msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Notify(ctx, msg); err != nil {
			s.log.WithError(err).WithField("category", msg.Category).Warn("notification dispatch failed")
		}
	}()
}
