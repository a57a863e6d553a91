package relay

import (
	"context"
	"time"

	apperrors "lendee-scoring/internal/common/errors"
	httpclient "lendee-scoring/internal/common/http"
	"lendee-scoring/internal/common/logger"
)

const DefaultTimeout = 15 * time.Second

// Delivery is the outcome of one publish attempt. A failed delivery never
// invalidates the scores that were sent.
type Delivery struct {
	Delivered bool
	// StatusCode is 0 when no response arrived.
	StatusCode int
	Err        error
}

type Publisher struct {
	client     *httpclient.Client
	secret     string
	credential string
	logger     logger.Logger
}

func NewPublisher(secret, credential string, timeout time.Duration, log logger.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{
		client:     httpclient.NewClient(timeout),
		secret:     secret,
		credential: credential,
		logger:     log.WithFields(map[string]interface{}{"component": "relay"}),
	}
}

// Publish serializes and signs scores once, then POSTs those bytes to url.
// Success is any 2xx status; everything else is reported in the Delivery.
func (p *Publisher) Publish(ctx context.Context, url string, scores map[string]float64) Delivery {
	payload, err := NewSignedPayload(scores, p.secret)
	if err != nil {
		serr := apperrors.NewRelaySigningFailedError(err)
		p.logger.Error("failed to sign payload", map[string]interface{}{"error": err})
		return Delivery{Err: serr}
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		HeaderSignature: payload.Signature,
	}
	if p.credential != "" {
		headers[HeaderCredential] = p.credential
	}

	start := time.Now()
	resp, err := p.client.Post(ctx, url, payload.Body, headers)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		p.logger.Warn("relay request failed", map[string]interface{}{
			"url":   url,
			"error": err,
		})
		return Delivery{StatusCode: status, Err: apperrors.NewRelayDeliveryFailedError(url, status, err)}
	}

	fields := map[string]interface{}{
		"url":        url,
		"statusCode": resp.StatusCode,
		"lendees":    len(scores),
		"durationMs": time.Since(start).Milliseconds(),
	}
	if !resp.Success() {
		fields["response"] = string(resp.Body)
		p.logger.Warn("relay rejected payload", fields)
		return Delivery{
			StatusCode: resp.StatusCode,
			Err:        apperrors.NewRelayDeliveryFailedError(url, resp.StatusCode, nil),
		}
	}

	p.logger.Info("scores relayed", fields)
	return Delivery{Delivered: true, StatusCode: resp.StatusCode}
}
