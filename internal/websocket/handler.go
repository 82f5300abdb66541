package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/middleware"
)

// HandleWebSocket upgrades authenticated requests and runs them as hub
// clients. It must sit behind the auth middleware. origins are the allowed
// browser origins, as configured for CORS.
func HandleWebSocket(hub *Hub, origins []string, logger *slog.Logger) http.HandlerFunc {
	patterns := originPatterns(origins)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.RequireAuthenticated(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: patterns})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}

		NewClient(hub, conn, id.UserID, middleware.TokenFromRequest(r)).Run(r.Context())
	}
}

// originPatterns turns origin URLs into the host patterns coder/websocket
// matches against.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
