package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/config"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/middleware"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
	"gitlab.ozon.dev/qwestard/storefront/internal/realtime"
	"gitlab.ozon.dev/qwestard/storefront/internal/service"
)

type OrderAPI interface {
	Create(ctx context.Context, userID string, req service.CreateOrderRequest) (*models.Order, error)
	Cancel(ctx context.Context, orderID, userID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus) (*models.Order, error)
	GetForUser(ctx context.Context, orderID, userID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Order, error)
	ListAll(ctx context.Context) ([]*models.Order, error)
}

type NotificationAPI interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	RegisterDevice(ctx context.Context, userID, token string) error
}

type Server struct {
	orders        OrderAPI
	notifications NotificationAPI
	hub           *realtime.Hub
	resolver      middleware.TokenResolver
	addr          string
}

func NewServer(orders OrderAPI, notifications NotificationAPI, hub *realtime.Hub, resolver middleware.TokenResolver, cfg *config.Config) *Server {
	return &Server{
		orders:        orders,
		notifications: notifications,
		hub:           hub,
		resolver:      resolver,
		addr:          cfg.Addr(),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	auth := middleware.AuthMiddleware(s.resolver)

	s.handleWith(mux, "/order", s.handleOrders, auth,
		[]string{"POST"})
	s.handleWith(mux, "/order/", s.handleOrderOne, auth, nil)
	s.handleWith(mux, "/order/cancel/", s.handleCancelOrder, auth,
		[]string{"PUT"})
	mux.Handle("/order/admin/", auth(middleware.AdminOnly(http.HandlerFunc(s.handleAdmin))))

	s.handleWith(mux, "/notification/", s.handleNotifications, auth, nil)
	s.handleWith(mux, "/device", s.handleRegisterDevice, auth,
		[]string{"PUT"})
	mux.Handle("/ws", auth(http.HandlerFunc(s.handleWS)))

	mux.Handle("/metrics", metrics.Handler())
}

func (s *Server) Run() error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	log.Printf("Server listen on %s...", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleWith(mux *http.ServeMux, path string,
	handlerFunc http.HandlerFunc,
	auth func(http.Handler) http.Handler,
	logMethods []string,
) {
	finalHandler := middleware.LogMiddleware(logMethods...)(
		auth(handlerFunc),
	)
	mux.Handle(path, finalHandler)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateOrder(w, r)
	case http.MethodGet:
		s.handleListOwnOrders(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	order, err := s.orders.Create(r.Context(), user.ID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListOwnOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	orders, err := s.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrderOne(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/order/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing ID", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, _ := middleware.UserFrom(r.Context())
	order, err := s.orders.GetForUser(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/order/cancel/")
	if id == "" {
		http.Error(w, "missing ID", http.StatusBadRequest)
		return
	}
	user, _ := middleware.UserFrom(r.Context())
	order, err := s.orders.Cancel(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/order/admin/")
	switch {
	case rest == "all" && r.Method == http.MethodGet:
		orders, err := s.orders.ListAll(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	case strings.HasSuffix(rest, "/status") && r.Method == http.MethodPut:
		id := strings.TrimSuffix(rest, "/status")
		if id == "" {
			http.Error(w, "missing ID", http.StatusBadRequest)
			return
		}
		var body struct {
			Status models.OrderStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		order, err := s.orders.UpdateStatus(r.Context(), id, body.Status)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/notification/")
	switch {
	case r.Method == http.MethodGet:
		s.handleListNotifications(w, r, rest)
	case r.Method == http.MethodPatch && strings.HasSuffix(rest, "/read"):
		s.handleMarkRead(w, r, strings.TrimSuffix(rest, "/read"))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	user, _ := middleware.UserFrom(r.Context())
	if userID == "" {
		http.Error(w, "missing user ID", http.StatusBadRequest)
		return
	}
	// Listing someone else's notifications is indistinguishable from an
	// unknown user, unless the caller is an admin.
	if userID != user.ID && !user.IsAdmin {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	notifications, err := s.notifications.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		http.Error(w, "missing ID", http.StatusBadRequest)
		return
	}
	user, _ := middleware.UserFrom(r.Context())
	if err := s.notifications.MarkRead(r.Context(), id, user.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, _ := middleware.UserFrom(r.Context())
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.notifications.RegisterDevice(r.Context(), user.ID, body.Token); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	realtime.ServeWS(s.hub, w, r, user.ID)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		code = http.StatusConflict
	default:
		code = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
