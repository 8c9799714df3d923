package middleware

import (
	"context"
	"net/http"
	"strings"

	"fieldintake/internal/service"
)

type contextKey string

const InterviewerIDKey contextKey = "interviewerId"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc *service.AuthService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequireInterviewer validates the interviewer JWT from the Authorization
// header, or from a query param for WebSocket upgrades.
func (m *AuthMiddleware) RequireInterviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), InterviewerIDKey, claims.InterviewerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetInterviewerID extracts the interviewer ID from context
func GetInterviewerID(ctx context.Context) string {
	if v := ctx.Value(InterviewerIDKey); v != nil {
		return v.(string)
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
