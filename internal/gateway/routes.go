package gateway

import (
	"net/http"
)

// endpoints is advertised on GET /.
var endpoints = []string{
	"GET /health",
	"GET /ws/voice",
	"POST /webhook",
	"GET /sites",
	"POST /orders/plan",
	"POST /orders",
	"GET /orders",
	"GET /orders/{id}",
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/voice", s.handleVoice)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /sites", handleSites)

	mux.Handle("POST /orders/plan", s.requireToken(s.handlePlan))
	mux.Handle("POST /orders", s.requireToken(s.handleCreateOrder))
	mux.Handle("GET /orders", s.requireToken(s.handleListOrders))
	mux.Handle("GET /orders/{id}", s.requireToken(s.handleGetOrder))

	mux.HandleFunc("/", handleNotFound)
}

// requireToken guards order endpoints with the gateway token when one is set.
func (s *Server) requireToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if res := Authorize(s.auth, tokenFromRequest(r)); !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, res.Reason)
			return
		}
		next(w, r)
	})
}
