package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/klarvik/schemascope/pkg/facade"
	"github.com/klarvik/schemascope/pkg/logging"
	"github.com/klarvik/schemascope/pkg/pubsub"
)

// Server exposes the schema graph facade over HTTP, plus SSE streams
// for cache lifecycle events. It holds no graph state of its own; every
// request goes through the facade.
type Server struct {
	router    *mux.Router
	facade    *facade.Facade
	publisher pubsub.Publisher
}

// NewServer creates a web server over the given facade.
func NewServer(f *facade.Facade) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// cache_status: new subscribers only need the current state.
	ssePublisher.ConfigureTopic(pubsub.TopicCacheStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// schema_graph: replay only the latest summary.
	ssePublisher.ConfigureTopic(pubsub.TopicSchemaGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		facade:    f,
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// PublishCacheStatus publishes a cache lifecycle event.
func (s *Server) PublishCacheStatus(state, message string) error {
	return s.publisher.Publish(pubsub.TopicCacheStatus, state, pubsub.CacheStatus{
		State:   state,
		Message: message,
	})
}

// PublishSchemaGraph publishes a schema graph summary event.
func (s *Server) PublishSchemaGraph(eventType string, nodeCount, edgeCount int, complete bool) error {
	return s.publisher.Publish(pubsub.TopicSchemaGraph, eventType, pubsub.SchemaGraphData{
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		Complete:  complete,
	})
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/cache_status", s.subscribeHandler(pubsub.TopicCacheStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/schema_graph", s.subscribeHandler(pubsub.TopicSchemaGraph)).Methods("GET")

	// Schema graph API
	s.router.HandleFunc("/api/schema/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/schema/rebuild", s.handleRebuild).Methods("POST")
	s.router.HandleFunc("/api/schema/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/schema/cache", s.handleClearCache).Methods("DELETE")
	s.router.HandleFunc("/api/schema/statistics", s.handleStatistics).Methods("GET")

	// Advanced analytics
	s.router.HandleFunc("/api/schema/pagerank", s.handlePageRank).Methods("GET")
	s.router.HandleFunc("/api/schema/centrality", s.handleCentrality).Methods("GET")
	s.router.HandleFunc("/api/schema/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/api/schema/components", s.handleComponents).Methods("GET")
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	useCache := r.URL.Query().Get("refresh") == ""
	result := s.facade.GetSchemaGraph(r.Context(), useCache)
	s.publishGraphEvents(result, "loaded")
	writeResult(w, result)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	_ = s.PublishCacheStatus("rebuilding", "Rebuilding schema graph")
	result := s.facade.RebuildSchemaGraph(r.Context())
	if success, _ := result["success"].(bool); success {
		_ = s.PublishCacheStatus("ready", "Schema graph rebuilt")
	} else {
		_ = s.PublishCacheStatus("failed", fmt.Sprintf("%v", result["error"]))
	}
	s.publishGraphEvents(result, "rebuilt")
	writeResult(w, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetSchemaStatus(r.Context()))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	result := s.facade.ClearSchemaCache(r.Context())
	if success, _ := result["success"].(bool); success {
		_ = s.PublishCacheStatus("cleared", "Schema cache cleared")
	}
	writeResult(w, result)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetGraphStatistics(r.Context()))
}

func (s *Server) handlePageRank(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetPageRank(r.Context()))
}

func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetCentrality(r.Context()))
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.FindCycles(r.Context()))
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.facade.GetConnectedComponents(r.Context()))
}

// publishGraphEvents pushes a graph summary to subscribers after a
// successful graph response.
func (s *Server) publishGraphEvents(result facade.Result, eventType string) {
	success, _ := result["success"].(bool)
	if !success {
		return
	}
	metadata, ok := result["metadata"].(facade.Result)
	if !ok {
		return
	}
	nodeCount, _ := metadata["node_count"].(int)
	edgeCount, _ := metadata["edge_count"].(int)
	_ = s.PublishSchemaGraph(eventType, nodeCount, edgeCount, true)
}

func (s *Server) subscribeHandler(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

		// Send initial comment to establish connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.Warn("error writing SSE event", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// writeResult writes a facade result as JSON. Failed operations map to
// HTTP 500; the body always carries the full result dictionary.
func writeResult(w http.ResponseWriter, result facade.Result) {
	w.Header().Set("Content-Type", "application/json")
	if success, _ := result["success"].(bool); !success {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(result)
}

// Start starts the web server on the configured port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, logging.RequestIDMiddleware(s.router))
}
