package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/logger"
)

const (
	// DefaultPath is where deliveries are accepted.
	DefaultPath = "/webhook"

	// DefaultMaxBodyBytes bounds a delivery body.
	DefaultMaxBodyBytes = 1 << 20

	// HeaderTopic carries the event topic, e.g. ContentManagement.Entry.publish.
	HeaderTopic = "X-Contentful-Topic"

	// HeaderSecret carries the shared secret when one is configured.
	HeaderSecret = "X-Indexsync-Secret"

	// EventSource identifies events produced by the webhook.
	EventSource = "webhook"

	shutdownTimeout = 10 * time.Second
)

//go:embed schema.json
var payloadSchema string

// Config holds listener settings.
type Config struct {
	// Path is the delivery route. Defaults to DefaultPath.
	Path string

	// Secret, when set, must match the HeaderSecret of every delivery.
	Secret string

	// MaxBodyBytes limits the request body. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Server is an http.Handler for webhook deliveries and health checks.
type Server struct {
	trigger driving.Trigger
	cfg     Config
	schema  *jsonschema.Schema
	now     func() time.Time
}

// Response is the body returned for an accepted delivery.
type Response struct {
	Kind     string              `json:"kind"`
	Accepted bool                `json:"accepted"`
	Pending  bool                `json:"pending"`
	Stats    domain.TriggerStats `json:"stats"`
}

// NewServer creates a handler that forwards events to trigger.
func NewServer(trigger driving.Trigger, cfg Config) (*Server, error) {
	if trigger == nil {
		return nil, fmt.Errorf("%w: webhook requires a trigger", domain.ErrInvalidInput)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}

	return &Server{
		trigger: trigger,
		cfg:     cfg,
		schema:  schema,
		now:     time.Now,
	}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("webhook.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("webhook.json")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.URL.Path == s.cfg.Path && r.Method == http.MethodPost:
		s.handleDelivery(w, r)
	case r.URL.Path == s.cfg.Path:
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Secret != "" {
		got := r.Header.Get(HeaderSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
			return
		}
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var itemID, bodyKind string
	if len(bytes.TrimSpace(body)) > 0 {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "body is not valid JSON")
			return
		}
		if err := s.schema.Validate(inst); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_payload", err.Error())
			return
		}
		itemID, bodyKind = payloadFields(body)
	}

	kind := eventKind(r, bodyKind)
	if kind == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event kind")
		return
	}

	accepted := s.trigger.OnEvent(domain.Event{
		Kind:       kind,
		Source:     EventSource,
		ItemID:     itemID,
		ReceivedAt: s.now(),
	})
	logger.Debug("webhook: %s %s accepted=%t", kind, itemID, accepted)

	writeJSON(w, http.StatusAccepted, Response{
		Kind:     kind,
		Accepted: accepted,
		Pending:  s.trigger.Pending(),
		Stats:    s.trigger.Stats(),
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return nil, false
	}
	return body, true
}

// eventKind picks the kind from the topic header, then the kind query
// parameter, then the body.
func eventKind(r *http.Request, bodyKind string) string {
	if topic := r.Header.Get(HeaderTopic); topic != "" {
		parts := strings.Split(topic, ".")
		return strings.ToLower(parts[len(parts)-1])
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		return strings.ToLower(kind)
	}
	return strings.ToLower(bodyKind)
}

func payloadFields(body []byte) (itemID, kind string) {
	var p struct {
		Sys struct {
			ID string `json:"id"`
		} `json:"sys"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return "", ""
	}
	return p.Sys.ID, p.Kind
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook: listening on %s%s", ln.Addr(), s.cfg.Path)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown webhook server: %w", err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
