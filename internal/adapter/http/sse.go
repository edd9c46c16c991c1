package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/service"
)

const keepAliveInterval = 15 * time.Second

type EventSource interface {
	Subscribe(requestID string) chan service.Event
	Unsubscribe(requestID string, ch chan service.Event)
	JobEvent(requestID string) (service.Event, bool)
}

type SSEHandler struct {
	events    EventSource
	svc       BatchService
	keepAlive time.Duration
}

func NewSSEHandler(events EventSource, svc BatchService) *SSEHandler {
	return &SSEHandler{
		events:    events,
		svc:       svc,
		keepAlive: keepAliveInterval,
	}
}

// sseWrite writes one event whose data is a single JSON line.
func sseWrite(w http.ResponseWriter, event service.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func entityEvent(rec *domain.EntityRecord) service.Event {
	return service.Event{
		Type:     service.EventTypeEntity,
		EntityID: rec.EntityID,
		Status:   string(rec.Status),
		Message:  rec.ErrorMessage,
	}
}

// finished returns the job event for a request whose run is over. Terminal
// entities alone are not enough: the report is written after them.
func (h *SSEHandler) finished(id string, records []*domain.EntityRecord) (service.Event, bool) {
	if event, ok := h.events.JobEvent(id); ok {
		return event, true
	}
	if !domain.AllTerminal(records) {
		return service.Event{}, false
	}
	if _, err := h.svc.ReportPath(id); err != nil {
		return service.Event{}, false
	}
	return service.Event{Type: service.EventTypeJob, Status: string(domain.JobStatusComplete)}, true
}

// Events streams the current status of every entity, then live changes until
// the job event. Finished requests get the snapshot and the job event at once.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		// Subscribe before the snapshot so no change falls between the two.
		ch := h.events.Subscribe(id)
		defer h.events.Unsubscribe(id, ch)

		records, err := h.svc.Status(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeMessage(w, http.StatusNotFound, "Request not found")
				return
			}
			logger.Error.Printf("events %s: %v", logger.SanitizeForLog(id), err)
			writeMessage(w, http.StatusInternalServerError, "Status lookup failed")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		for _, rec := range records {
			if err := sseWrite(w, entityEvent(rec)); err != nil {
				return
			}
		}
		if event, ok := h.finished(id, records); ok {
			_ = sseWrite(w, event)
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := sseWrite(w, event); err != nil {
					return
				}
				if event.Type == service.EventTypeJob {
					return
				}
			}
		}
	}
}
