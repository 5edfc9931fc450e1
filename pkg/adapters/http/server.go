package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// Manager is the part of the skill manager exposed over HTTP.
type Manager interface {
	Agent() string
	Command(ctx context.Context, cmd manager.Command) manager.Response
	Skills() []ports.SkillTemplate
	ReloadSkills(ctx context.Context) error
	Tasks() []int
	Progress(id int) (domain.ProgressEvent, error)
	SetDebug(on bool)
	TickRate() float64
	Subscribe(buffer int) (<-chan domain.ProgressEvent, func())
}

var _ Manager = (*manager.Manager)(nil)

// Server serves the command channel and the progress streams of a manager.
type Server struct {
	manager  Manager
	streams  *StreamManager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	router   routers.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a server for m. Start must be called for the progress
// streams to receive events. It panics if the embedded API description is
// invalid.
func NewServer(m Manager, opts ...Option) *Server {
	router, err := newRouter()
	if err != nil {
		panic(err)
	}
	s := &Server{
		router:  router,
		manager: m,
		logger:  logging.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Monitors are tools, not browsers sharing cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// Streams returns the broadcaster fed by Start.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Start forwards the progress of the manager to the streams until ctx is
// done. It returns once the subscription is in place.
func (s *Server) Start(ctx context.Context) {
	events, cancel := s.manager.Subscribe(0)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					s.logger.Error("progress encode failed", "task_id", event.TaskID, "err", err)
					continue
				}
				s.streams.Broadcast(event.TaskID, data)
			}
		}
	}()
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.validate)
	r.Get("/openapi.yaml", s.apiSpec)
	r.Get("/health", s.health)
	r.Post("/command", s.command)
	r.Get("/skills", s.skills)
	r.Post("/skills/reload", s.reloadSkills)
	r.Get("/tasks", s.tasks)
	r.Get("/tasks/{id}", s.task)
	r.Post("/debug", s.debug)
	r.Get("/tick_rate", s.tickRate)
	r.Get("/events", s.events)
	r.Get("/ws", s.websocket)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SkillsResponse lists the skills of an agent.
type SkillsResponse struct {
	Agent  string           `json:"agent"`
	Skills []map[string]any `json:"skills"`
}

// TasksResponse lists the registered tasks of an agent.
type TasksResponse struct {
	Agent string `json:"agent"`
	Tasks []int  `json:"tasks"`
}

// DebugRequest toggles params in progress snapshots.
type DebugRequest struct {
	Enabled bool `json:"enabled"`
}

// TickRateResponse is the measured tick rate.
type TickRateResponse struct {
	Hz float64 `json:"hz"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.manager.Agent()})
}

// decodeCommand reads a command. A missing execution_id means a new task,
// or every task.
func decodeCommand(r *http.Request) (manager.Command, error) {
	cmd := manager.Command{ExecutionID: manager.AllTasks}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		return cmd, err
	}
	if cmd.Action == "" {
		return cmd, fmt.Errorf("%w: missing action", domain.ErrUnknownAction)
	}
	return cmd, nil
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	cmd, err := decodeCommand(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid command: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.Command(r.Context(), cmd))
}

func (s *Server) skills(w http.ResponseWriter, r *http.Request) {
	templates := s.manager.Skills()
	resp := SkillsResponse{Agent: s.manager.Agent(), Skills: make([]map[string]any, 0, len(templates))}
	for _, t := range templates {
		resp.Skills = append(resp.Skills, manager.Describe(t))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reloadSkills(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ReloadSkills(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.skills(w, r)
}

func (s *Server) tasks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, TasksResponse{Agent: s.manager.Agent(), Tasks: s.manager.Tasks()})
}

func (s *Server) task(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid task id: %w", err))
		return
	}
	event, err := s.manager.Progress(id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) debug(w http.ResponseWriter, r *http.Request) {
	var req DebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.manager.SetDebug(req.Enabled)
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) tickRate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, TickRateResponse{Hz: s.manager.TickRate()})
}

// events streams progress as server-sent events. The optional task_id
// query parameter restricts the stream to one task.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	taskID := AllTasks
	if q := r.URL.Query().Get("task_id"); q != "" {
		id, err := strconv.Atoi(q)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid task_id: %w", err))
			return
		}
		taskID = id
	}

	ch, cancel := s.streams.Subscribe(taskID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("progress stream opened", "task_id", taskID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("progress stream closed", "task_id", taskID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	} else {
		s.logger.Warn("bad request", "status", status, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
