package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"fieldintake/internal/repository"
	"fieldintake/internal/service"
	"fieldintake/internal/transport/rest/handler"
	"fieldintake/internal/transport/rest/middleware"
	"fieldintake/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	TraversalService *service.TraversalService
	UploadService    *service.UploadService
	UploadRepo       repository.UploadUnitRepo
	WSHub            *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.TraversalService)
	uploadHandler := handler.NewUploadHandler(c.UploadService, c.UploadRepo)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/uploads", wsHandler.DashboardWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Interviewer routes (require auth)
	ivwRoutes := v1.NewRoute().Subrouter()
	ivwRoutes.Use(authMW.RequireInterviewer)

	ivwRoutes.HandleFunc("/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	ivwRoutes.HandleFunc("/sessions/{surveyId}/resume", sessionHandler.Resume).Methods("POST", "OPTIONS")
	ivwRoutes.HandleFunc("/sessions/{surveyId}/current", sessionHandler.Current).Methods("GET", "OPTIONS")
	ivwRoutes.HandleFunc("/sessions/{surveyId}/answer", sessionHandler.Record).Methods("POST", "OPTIONS")
	ivwRoutes.HandleFunc("/sessions/{surveyId}/advance", sessionHandler.Advance).Methods("POST", "OPTIONS")
	ivwRoutes.HandleFunc("/sessions/{surveyId}/retreat", sessionHandler.Retreat).Methods("POST", "OPTIONS")

	ivwRoutes.HandleFunc("/uploads", uploadHandler.List).Methods("GET", "OPTIONS")
	ivwRoutes.HandleFunc("/uploads/sync", uploadHandler.Sync).Methods("POST", "OPTIONS")
	ivwRoutes.HandleFunc("/uploads/{entityId}/retry", uploadHandler.Retry).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
