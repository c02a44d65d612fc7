package handler

import (
	"net/http"

	"boulder-catalog/internal/middleware"
	"boulder-catalog/pkg/response"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	FunctionsPrefix string
	AllowedOrigins  string
	AllowedMethods  string
	AllowedHeaders  string
}

// NewRouter mounts the problem API twice: the standalone server family
// under /api and the function-set family under cfg.FunctionsPrefix. Both
// share one handler, so they answer identically.
func NewRouter(cfg RouterConfig, problems *ProblemHandler, feed *WebSocketHandler) *mux.Router {
	cors := middleware.CORSMiddleware(cfg.AllowedOrigins, cfg.AllowedMethods, cfg.AllowedHeaders)

	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(cors)

	r.MethodNotAllowedHandler = cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w)
	}))
	r.NotFoundHandler = cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found")
	}))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/problems", problems.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/problems", problems.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/problems/{id}", problems.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/problems/{id}", problems.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/problems/{id}", problems.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/next-id", problems.NextID).Methods("GET", "OPTIONS")

	if cfg.FunctionsPrefix != "" {
		fn := r.PathPrefix(cfg.FunctionsPrefix).Subrouter()
		fn.HandleFunc("/getProblems", problems.List).Methods("GET", "OPTIONS")
		fn.HandleFunc("/getProblemById/{id}", problems.Get).Methods("GET", "OPTIONS")
		fn.HandleFunc("/createProblem", problems.Create).Methods("POST", "OPTIONS")
		fn.HandleFunc("/updateProblem/{id}", problems.Update).Methods("PUT", "OPTIONS")
		fn.HandleFunc("/deleteProblem/{id}", problems.Delete).Methods("DELETE", "OPTIONS")
		fn.HandleFunc("/getNextId", problems.NextID).Methods("GET", "OPTIONS")
	}

	if feed != nil {
		r.HandleFunc("/ws/problems", feed.HandleConnection).Methods("GET")
	}

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "healthy", "service": "boulder-catalog"})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"message": "Boulder Catalog API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/api/problems":      "GET, POST",
			"/api/problems/{id}": "GET, PUT, DELETE",
			"/api/next-id":       "GET",
			"/ws/problems":       "GET (websocket)",
		},
	})
}
