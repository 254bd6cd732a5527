package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/optin-mailer/internal/provider"
	"github.com/ignite/optin-mailer/internal/resultlog"
	"github.com/ignite/optin-mailer/internal/subscriber"
	"github.com/ignite/optin-mailer/internal/template"
	"github.com/ignite/optin-mailer/internal/token"
)

type senderFunc func(ctx context.Context, msg *provider.Message) (string, error)

func (f senderFunc) Send(ctx context.Context, msg *provider.Message) (string, error) {
	return f(ctx, msg)
}

func testTemplate() *template.Template {
	return &template.Template{
		Subject:         "Confirm, {first_name}",
		Text:            "Visit {confirmation_url}",
		ConfirmationURL: "https://example.com/confirm?email={email}&token={confirmation_token}",
	}
}

func testSubscribers(n int) []subscriber.Subscriber {
	subs := make([]subscriber.Subscriber, n)
	for i := range subs {
		subs[i] = subscriber.Subscriber{
			"email":      fmt.Sprintf("user%d@example.com", i),
			"first_name": fmt.Sprintf("User%d", i),
		}
	}
	return subs
}

func newDispatcher(t *testing.T, send senderFunc, log *resultlog.Logger) *Dispatcher {
	t.Helper()
	gen, err := token.NewGenerator("dispatch-test-secret")
	require.NoError(t, err)
	return New(send, gen, log, "news@example.com", "Example News")
}

func TestSendBulkOrderAndResults(t *testing.T) {
	var sentTo []string
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		sentTo = append(sentTo, msg.To)
		return "msg-" + msg.To, nil
	}, nil)

	subs := testSubscribers(3)
	results, err := d.SendBulk(context.Background(), subs, testTemplate(), Options{RateLimit: 1000})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, subs[i].Email(), res.Email)
		assert.True(t, res.Success)
		assert.Equal(t, "msg-"+subs[i].Email(), res.MessageID)
		assert.Empty(t, res.Error)
	}
	assert.Equal(t, []string{"user0@example.com", "user1@example.com", "user2@example.com"}, sentTo)
}

func TestSendBulkRendersPerSubscriber(t *testing.T) {
	var messages []*provider.Message
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		messages = append(messages, msg)
		return "id", nil
	}, nil)

	_, err := d.SendBulk(context.Background(), testSubscribers(2), testTemplate(), Options{RateLimit: 1000, RunID: "run-42"})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "Confirm, User0", messages[0].Subject)
	assert.Equal(t, "Confirm, User1", messages[1].Subject)
	assert.Contains(t, messages[0].Text, "user0%40example.com")
	assert.Equal(t, "run-42", messages[0].Headers[RunIDHeader])
	assert.Empty(t, messages[0].HTML)
	assert.Equal(t, "news@example.com", messages[0].From)
}

func TestSendBulkFailureIsolation(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		if msg.To == "user1@example.com" {
			return "", errors.New("mailbox unavailable")
		}
		return "ok", nil
	}, nil)

	results, err := d.SendBulk(context.Background(), testSubscribers(3), testTemplate(), Options{RateLimit: 1000})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "mailbox unavailable", results[1].Error)
	assert.True(t, results[2].Success)
}

func TestSendBulkMissingEmailBecomesFailedResult(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		return "ok", nil
	}, nil)

	subs := []subscriber.Subscriber{
		{"email": "a@example.com"},
		{"first_name": "NoEmail"},
	}
	results, err := d.SendBulk(context.Background(), subs, testTemplate(), Options{RateLimit: 1000})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "email")
}

func TestSendBulkRateLimit(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		return "ok", nil
	}, nil)

	start := time.Now()
	results, err := d.SendBulk(context.Background(), testSubscribers(5), testTemplate(), Options{RateLimit: 10})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, results, 5)
	// Four inter-item delays of 100ms; the final item has no trailing delay.
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestSendBulkNoTrailingDelay(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		return "ok", nil
	}, nil)

	start := time.Now()
	_, err := d.SendBulk(context.Background(), testSubscribers(1), testTemplate(), Options{RateLimit: 0.5})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendBulkInvalidRateLimit(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		return "ok", nil
	}, nil)

	_, err := d.SendBulk(context.Background(), testSubscribers(1), testTemplate(), Options{RateLimit: 0})
	assert.Error(t, err)
}

func TestSendBulkProgressCallback(t *testing.T) {
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		return "ok", nil
	}, nil)

	var progress []Progress
	_, err := d.SendBulk(context.Background(), testSubscribers(4), testTemplate(), Options{
		RateLimit:  1000,
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.Len(t, progress, 4)

	for i, p := range progress {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 4, p.Total)
		assert.True(t, p.Result.Success)
	}
	assert.InDelta(t, 25.0, progress[0].Percentage, 0.001)
	assert.InDelta(t, 100.0, progress[3].Percentage, 0.001)
}

func TestSendBulkAppendsToResultLog(t *testing.T) {
	log, err := resultlog.NewLogger(filepath.Join(t.TempDir(), "results.csv"))
	require.NoError(t, err)

	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		if msg.To == "user1@example.com" {
			return "", errors.New("bounced")
		}
		return "msg-id", nil
	}, log)

	_, err = d.SendBulk(context.Background(), testSubscribers(2), testTemplate(), Options{RateLimit: 1000})
	require.NoError(t, err)

	records, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, resultlog.StatusSent, records[0].Status)
	assert.Equal(t, "msg-id", records[0].MessageID)
	assert.Equal(t, resultlog.StatusFailed, records[1].Status)
	assert.Equal(t, "bounced", records[1].Error)
}

func TestSendBulkContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sends := 0
	d := newDispatcher(t, func(ctx context.Context, msg *provider.Message) (string, error) {
		sends++
		if sends == 2 {
			cancel()
		}
		return "ok", nil
	}, nil)

	results, err := d.SendBulk(ctx, testSubscribers(5), testTemplate(), Options{RateLimit: 100})
	assert.ErrorIs(t, err, context.Canceled)
	// Everything sent before cancellation is still reported.
	assert.Len(t, results, 2)
}
