// Package httpapi exposes the service over HTTP. Thin layer: decode,
// authenticate, call the usecase, map errors.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/example/order-service/internal/domain"
	"github.com/example/order-service/internal/usecase"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Deps carries the usecases the server routes to.
type Deps struct {
	Register usecase.RegisterUser
	Token    usecase.IssueToken
	Create   usecase.CreateOrder
	Get      usecase.GetOrder
	Update   usecase.UpdateStatus
	List     usecase.ListOrders
	Verifier TokenVerifier
}

type Server struct {
	Router *mux.Router
	deps   Deps
}

func NewServer(d Deps) *Server {
	s := &Server{Router: mux.NewRouter(), deps: d}
	s.Router.HandleFunc("/register/", s.handleRegister).Methods(http.MethodPost)
	s.Router.HandleFunc("/token/", s.handleToken).Methods(http.MethodPost)

	orders := s.Router.PathPrefix("/orders").Subrouter()
	orders.Use(s.requireAuth)
	orders.HandleFunc("/", s.handleCreateOrder).Methods(http.MethodPost)
	// registered before /{id} so "user" is not taken for an order id
	orders.HandleFunc("/user/", s.handleListOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.handleGetOrder).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.handleUpdateOrder).Methods(http.MethodPatch)
	return s
}

type ctxKey int

const userIDKey ctxKey = 0

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, domain.ErrForbidden)
			return
		}
		userID, err := s.deps.Verifier.Verify(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func authedUser(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	user, err := s.deps.Register.Execute(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, user)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	token, err := s.deps.Token.Execute(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items      map[string]any `json:"items"`
		TotalPrice float64        `json:"total_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	order, err := s.deps.Create.Execute(r.Context(), authedUser(r), body.Items, body.TotalPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	order, err := s.deps.Get.Execute(r.Context(), orderID, authedUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	status, err := domain.ParseOrderStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.deps.Update.Execute(r.Context(), orderID, authedUser(r), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.List.Execute(r.Context(), authedUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, orders)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Infrastructure failures
// become a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, "invalid data", http.StatusBadRequest)
	default:
		logrus.WithError(err).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
