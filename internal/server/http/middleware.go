package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// requireAccessToken rejects requests without a valid bearer token and puts
// the token's user id into the request context.
func (s *HTTPServer) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			writeError(w, common.ReasonUnauthenticated, "missing token")
			return
		}

		accessToken := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
		if accessToken == "" {
			writeError(w, common.ReasonUnauthenticated, "missing token")
			return
		}

		userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
		if err != nil {
			writeError(w, common.ReasonUnauthenticated, messageFor(common.ReasonUnauthenticated))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the session owner set by requireAccessToken.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
