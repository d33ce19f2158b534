package auth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// webhookQueueSize is the bounded channel capacity for outbound events.
const webhookQueueSize = 1024

// WebhookSink forwards security events to an external HTTP endpoint.
// Events are enqueued non-blockingly into a bounded channel and sent by
// a background goroutine. If the channel is full, events are dropped.
type WebhookSink struct {
	url        string
	authHeader string // "Header: Value" format, e.g., "Authorization: Bearer xxx"
	client     *http.Client
	events     chan Event
	wg         sync.WaitGroup
}

// NewWebhookSink creates a webhook sink and starts its background loop.
func NewWebhookSink(url, authHeader string) *WebhookSink {
	w := &WebhookSink{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		events:     make(chan Event, webhookQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Emit adds an event to the dispatch queue. If the queue is full, the
// event is dropped and a warning is logged. This method never blocks.
func (w *WebhookSink) Emit(e Event) {
	select {
	case w.events <- e:
	default:
		slog.Warn("audit webhook: queue full, dropping event", "event_type", e.Type)
	}
}

// Close shuts down the sink, draining any remaining events.
func (w *WebhookSink) Close() {
	close(w.events)
	w.wg.Wait()
}

// loop reads from the event channel and sends each event.
func (w *WebhookSink) loop() {
	defer w.wg.Done()
	for e := range w.events {
		w.send(e)
	}
}

// send POSTs the event to the configured URL with one retry on 5xx.
func (w *WebhookSink) send(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		slog.Warn("audit webhook: marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(1 * time.Second)
		}

		req, err := http.NewRequest("POST", w.url, bytes.NewReader(body))
		if err != nil {
			slog.Warn("audit webhook: request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Gatehouse-Audit-Webhook/1.0")

		if w.authHeader != "" {
			parts := strings.SplitN(w.authHeader, ":", 2)
			if len(parts) == 2 {
				req.Header.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
			}
		}

		resp, err := w.client.Do(req)
		if err != nil {
			slog.Warn("audit webhook: request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		if resp.StatusCode >= 500 {
			slog.Warn("audit webhook: server error", "status", resp.StatusCode, "attempt", attempt+1)
			continue // retry on 5xx
		}
		// 4xx: log and do not retry (client error).
		slog.Warn("audit webhook: client error", "status", resp.StatusCode)
		return
	}
}
