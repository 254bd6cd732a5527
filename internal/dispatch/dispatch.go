// Package dispatch runs the bulk opt-in send pipeline: for each subscriber,
// derive the confirmation token, render the template, send through the
// provider, and record the outcome. Sends are strictly sequential; the rate
// limit is a delay between sends, not a concurrent-request throttle, so log
// order always matches send order.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/optin-mailer/internal/pkg/logger"
	"github.com/ignite/optin-mailer/internal/provider"
	"github.com/ignite/optin-mailer/internal/resultlog"
	"github.com/ignite/optin-mailer/internal/subscriber"
	"github.com/ignite/optin-mailer/internal/template"
	"github.com/ignite/optin-mailer/internal/token"
)

// RunIDHeader carries the bulk-run identifier on every outgoing message.
const RunIDHeader = "X-Optin-Run-Id"

// SendResult is the outcome for one subscriber in one run.
type SendResult struct {
	Email     string
	Success   bool
	MessageID string
	Error     string
}

// Progress is passed to the OnProgress callback after every item, the last
// one included.
type Progress struct {
	Current    int
	Total      int
	Result     SendResult
	Percentage float64
}

// Options control one bulk run.
type Options struct {
	// RateLimit is the sustained throughput in sends per second. The
	// inter-send delay is 1000/RateLimit milliseconds; there is no delay
	// after the final item.
	RateLimit float64
	// OnProgress, when set, is invoked after each item so the caller can
	// render progress without the dispatcher owning any I/O.
	OnProgress func(Progress)
	// RunID identifies the run in headers and logs. Generated when empty.
	RunID string
}

// Dispatcher sends a rendered template to each subscriber in turn.
type Dispatcher struct {
	sender   provider.Sender
	tokens   *token.Generator
	log      *resultlog.Logger
	from     string
	fromName string
}

// New creates a Dispatcher. log may be nil for dry runs.
func New(sender provider.Sender, tokens *token.Generator, log *resultlog.Logger, from, fromName string) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		tokens:   tokens,
		log:      log,
		from:     from,
		fromName: fromName,
	}
}

// SendBulk processes subscribers strictly in input order, one at a time.
// A failed send is captured as a failed SendResult and never aborts the
// remaining items. Returns one result per processed subscriber; on context
// cancellation the results so far are returned with the context error.
func (d *Dispatcher) SendBulk(ctx context.Context, subs []subscriber.Subscriber, tpl *template.Template, opts Options) ([]SendResult, error) {
	if opts.RateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be > 0, got %v", opts.RateLimit)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	delay := time.Duration(float64(time.Second) / opts.RateLimit)
	total := len(subs)

	logger.Info("bulk send starting", "run_id", runID, "total", total, "rate_limit", opts.RateLimit)

	results := make([]SendResult, 0, total)
	for i, sub := range subs {
		res := d.sendOne(ctx, sub, tpl, runID)
		results = append(results, res)

		if d.log != nil {
			if err := d.log.Append(toRecord(res)); err != nil {
				logger.Warn("result log append failed", "run_id", runID, "error", err.Error())
			}
		}
		if !res.Success {
			logger.Warn("send failed", "run_id", runID, "email", res.Email, "error", res.Error)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Current:    i + 1,
				Total:      total,
				Result:     res,
				Percentage: float64(i+1) / float64(total) * 100,
			})
		}

		// Inter-send delay; the final item has no trailing delay.
		if i < total-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	logger.Info("bulk send finished", "run_id", runID, "total", total)
	return results, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, sub subscriber.Subscriber, tpl *template.Template, runID string) SendResult {
	email := sub.Email()

	tok, err := d.tokens.TokenFor(sub)
	if err != nil {
		return SendResult{Email: email, Error: err.Error()}
	}

	rendered := tpl.RenderForSubscriber(sub, tok)

	msg := &provider.Message{
		From:     d.from,
		FromName: d.fromName,
		To:       email,
		Subject:  rendered.Subject,
		Text:     rendered.Text,
		HTML:     rendered.HTML,
		Headers:  map[string]string{RunIDHeader: runID},
	}

	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		return SendResult{Email: email, Error: err.Error()}
	}
	return SendResult{Email: email, Success: true, MessageID: id}
}

func toRecord(res SendResult) resultlog.Record {
	status := resultlog.StatusFailed
	if res.Success {
		status = resultlog.StatusSent
	}
	return resultlog.Record{
		Email:     res.Email,
		Status:    status,
		MessageID: res.MessageID,
		Error:     res.Error,
	}
}
