//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package debug provides a read-only HTTP inspection server: registered
// agents, tool declarations, per-user memory, recent traces and scheduler
// tasks, all as JSON.
package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-botagent-go/agent"
	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
	"trpc.group/trpc-go/trpc-botagent-go/scheduler"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
	"trpc.group/trpc-go/trpc-botagent-go/tracing"
)

// defaultAddr is the listen address when WithAddr is not given.
const defaultAddr = "127.0.0.1:8090"

// traceLimit caps how many root spans /api/traces returns per request.
const traceLimit = 50

// Server exposes the inspection endpoints over the components it is given.
// Every component is optional; endpoints for absent components answer 404.
type Server struct {
	addr   string
	router *mux.Router
	http   *http.Server

	agents *agent.AgentRegistry
	tools  *tool.Registry
	store  store.Store
	sched  *scheduler.Scheduler
	traces *tracing.RingExporter
}

// Option configures the Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithAgents exposes the agent registry on /api/agents.
func WithAgents(reg *agent.AgentRegistry) Option {
	return func(s *Server) { s.agents = reg }
}

// WithToolRegistry exposes the tool registry on /api/tools.
func WithToolRegistry(reg *tool.Registry) Option {
	return func(s *Server) { s.tools = reg }
}

// WithMemoryStore exposes persisted memory on /api/memory/{agent}/{user}.
func WithMemoryStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithScheduler exposes the task list on /api/scheduler/tasks.
func WithScheduler(sc *scheduler.Scheduler) Option {
	return func(s *Server) { s.sched = sc }
}

// WithTraceRing exposes the exporter's recent root spans on /api/traces.
// The same ring must be installed as the tracer's exporter.
func WithTraceRing(ring *tracing.RingExporter) Option {
	return func(s *Server) { s.traces = ring }
}

// New creates the server. Call Start to begin serving.
func New(opts ...Option) *Server {
	s := &Server{
		addr:   defaultAddr,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves until Shutdown. It
// blocks like http.Server.ListenAndServe and returns its error.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("Debug server listening on %s", s.addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/agents", s.handleListAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/agents/{id}", s.handleGetAgent).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tools", s.handleListTools).Methods(http.MethodGet)
	s.router.HandleFunc("/api/memory/{agent}/{user}", s.handleGetMemory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/traces", s.handleListTraces).Methods(http.MethodGet)
	s.router.HandleFunc("/api/scheduler/tasks", s.handleListTasks).Methods(http.MethodGet)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		http.Error(w, "agent registry not configured", http.StatusNotFound)
		return
	}
	cards := s.agents.List()
	public := make([]*agent.AgentCard, 0, len(cards))
	for _, card := range cards {
		public = append(public, card.Public())
	}
	s.writeJSON(w, public)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		http.Error(w, "agent registry not configured", http.StatusNotFound)
		return
	}
	id := mux.Vars(r)["id"]
	rt, ok := s.agents.Get(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, &rt.Card)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		http.Error(w, "tool registry not configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.tools.Specs())
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "memory store not configured", http.StatusNotFound)
		return
	}
	vars := mux.Vars(r)
	session := memory.NewSession(vars["agent"], vars["user"], s.store)

	history, err := session.ShortTerm.History(r.Context(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	longTerm, err := session.LongTerm.Get(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	buffered, err := session.Buffer.Count(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Working memory is process-local to the owning session and is not
	// reachable from the store, so it is absent here.
	s.writeJSON(w, map[string]any{
		"namespace":  session.Namespace().String(),
		"short_term": history,
		"long_term":  longTerm,
		"buffered":   buffered,
	})
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		http.Error(w, "trace ring not configured", http.StatusNotFound)
		return
	}
	spans := s.traces.Recent(traceLimit)
	out := make([]map[string]any, 0, len(spans))
	for _, span := range spans {
		out = append(out, span.Map())
	}
	s.writeJSON(w, out)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		http.Error(w, "scheduler not configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]any{
		"running": s.sched.Running(),
		"tasks":   s.sched.Tasks(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
