package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/imgbatch/internal/adapter/manifest"
	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/infrastructure/logger"
	"github.com/bnema/imgbatch/internal/validation"
)

type BatchService interface {
	Submit(ctx context.Context, m *domain.Manifest, webhookURL string) (*domain.Job, error)
	Status(ctx context.Context, requestID string) ([]*domain.EntityRecord, error)
	ReportPath(requestID string) (string, error)
}

type SubmitLimiter interface {
	Check(clientID string) (bool, time.Duration)
}

type Handlers struct {
	svc         BatchService
	limiter     SubmitLimiter
	maxSizeMB   int
	behindProxy bool
}

func NewHandlers(svc BatchService, limiter SubmitLimiter, maxSizeMB int, behindProxy bool) *Handlers {
	return &Handlers{
		svc:         svc,
		limiter:     limiter,
		maxSizeMB:   maxSizeMB,
		behindProxy: behindProxy,
	}
}

type messageResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type statusEntry struct {
	EntityID        int64    `json:"entityId"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	InputImageURLs  []string `json:"inputImageUrls"`
	OutputImageURLs []string `json:"outputImageUrls"`
	Error           string   `json:"error,omitempty"`
}

type statusResponse struct {
	RequestID string        `json:"requestId"`
	Status    string        `json:"status"`
	Entries   []statusEntry `json:"entries"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}

func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil {
			if allowed, wait := h.limiter.Check(clientIP(r, h.behindProxy)); !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())))
				writeMessage(w, http.StatusTooManyRequests, "Too many submissions, try again later")
				return
			}
		}

		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", h.maxSizeMB))
				return
			}
			writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll() //nolint:errcheck

		file, header, err := r.FormFile("file")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close() //nolint:errcheck

		if mtype, err := validation.ValidateManifest(file); err != nil {
			logger.Warn.Printf("rejected upload %s (%s): %v", logger.SanitizeForLog(header.Filename), mtype, err)
			writeMessage(w, http.StatusBadRequest, "Invalid file type, expected a CSV manifest")
			return
		}

		m, err := manifest.Parse(file)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		webhookURL := strings.TrimSpace(r.FormValue("webhookUrl"))
		if webhookURL != "" {
			if err := validation.ValidateHTTPURL(webhookURL); err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid webhookUrl")
				return
			}
		}

		job, err := h.svc.Submit(r.Context(), m, webhookURL)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidManifest):
				writeMessage(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrQueueClosed):
				w.Header().Set("Retry-After", "30")
				writeMessage(w, http.StatusServiceUnavailable, "Server busy, try again later")
			default:
				logger.Error.Printf("submit %s: %v", logger.SanitizeForLog(header.Filename), err)
				writeMessage(w, http.StatusInternalServerError, "Submission failed")
			}
			return
		}

		writeJSON(w, http.StatusAccepted, messageResponse{
			Message:   "File validated and processing started",
			RequestID: job.RequestID,
		})
	}
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		records, err := h.svc.Status(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeMessage(w, http.StatusNotFound, "Request not found")
				return
			}
			logger.Error.Printf("status %s: %v", logger.SanitizeForLog(id), err)
			writeMessage(w, http.StatusInternalServerError, "Status lookup failed")
			return
		}

		resp := statusResponse{
			RequestID: id,
			Status:    "found",
			Entries:   make([]statusEntry, 0, len(records)),
		}
		for _, rec := range records {
			resp.Entries = append(resp.Entries, statusEntry{
				EntityID:        rec.EntityID,
				Title:           rec.Title,
				Status:          string(rec.Status),
				InputImageURLs:  nonNil(rec.InputImageURLs),
				OutputImageURLs: nonNil(rec.OutputImageURLs),
				Error:           rec.ErrorMessage,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handlers) Output() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		path, err := h.svc.ReportPath(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeMessage(w, http.StatusNotFound, "Report not available")
				return
			}
			logger.Error.Printf("report %s: %v", logger.SanitizeForLog(id), err)
			writeMessage(w, http.StatusInternalServerError, "Report lookup failed")
			return
		}

		w.Header().Set("Content-Type", reportMIMEType(path))
		w.Header().Set("Content-Disposition", validation.ContentDisposition(filepath.Base(path)))
		http.ServeFile(w, r, path)
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func reportMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// clientIP keys the submission limiter. Forwarded headers are only trusted
// behind a proxy.
func clientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
