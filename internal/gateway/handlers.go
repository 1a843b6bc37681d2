package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/hooks"
	"github.com/soyeahso/foodvoice/internal/order"
	"github.com/soyeahso/foodvoice/internal/planner"
	"github.com/soyeahso/foodvoice/internal/store"
)

const (
	maxBodySize      = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 200
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Service:   "foodvoice",
		Version:   s.version,
		Status:    "running",
		Endpoints: endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		Sessions:      s.sessions.Count(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Path: r.URL.Path})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("webhook received")
	s.hooks.EmitAsync(r.Context(), hooks.EventWebhookReceived, map[string]any{
		"data":   body,
		"remote": r.RemoteAddr,
	})
	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:       "success",
		Message:      "Webhook received",
		ReceivedData: body,
	})
}

func handleSites(w http.ResponseWriter, r *http.Request) {
	sites := make([]order.Site, 0, len(order.Sites))
	for _, site := range order.Sites {
		sites = append(sites, site)
	}
	slices.SortFunc(sites, func(a, b order.Site) int { return strings.Compare(a.Key, b.Key) })
	writeJSON(w, http.StatusOK, SitesResponse{Sites: sites})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		writeError(w, http.StatusServiceUnavailable, "order planner not configured")
		return
	}
	var req PlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.planner.Run(r.Context(), req.Request)
	if err != nil {
		if errors.Is(err, planner.ErrEmptyRequest) {
			writeError(w, http.StatusBadRequest, "request is required")
			return
		}
		s.log.Error().Err(err).Msg("order planning failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{
		Draft:               res.Draft,
		PreferencesAnalysis: res.PreferencesAnalysis,
		PlatformSelection:   res.PlatformSelection,
	})
}

// handleCreateOrder runs a draft. With ?async=true the run is started in
// the background and 202 is returned with the order id.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		writeError(w, http.StatusServiceUnavailable, "order execution not configured")
		return
	}
	var d order.Draft
	if err := decodeBody(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := d.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id, err := s.orders.Start(r.Context(), "", &d, nil)
		if err != nil {
			s.log.Error().Err(err).Msg("starting order failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, OrderResponse{OrderID: id, Status: domain.OrderPending})
		return
	}

	id, sum, err := s.orders.Run(r.Context(), "", &d)
	if err != nil {
		s.log.Error().Err(err).Str("orderId", id).Msg("order run failed")
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), OrderID: id})
		return
	}
	status := domain.OrderSucceeded
	if !sum.Success {
		status = domain.OrderFailed
	}
	writeJSON(w, http.StatusOK, OrderResponse{OrderID: id, Status: status, Summary: sum})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "order store not configured")
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	recs, err := s.lookup.List(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("listing orders failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := OrderListResponse{Orders: make([]OrderDetail, 0, len(recs))}
	for _, rec := range recs {
		out.Orders = append(out.Orders, orderDetail(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if s.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "order store not configured")
		return
	}
	rec, err := s.lookup.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.log.Error().Err(err).Msg("loading order failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orderDetail(*rec))
}
