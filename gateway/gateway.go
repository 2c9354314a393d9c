// Package gateway exposes GetUserInfo as a JSON endpoint over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alanwang67/userinfo/protocol"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type UserInfoGetter interface {
	GetUserInfo(ctx context.Context, name string) (*protocol.UserResponse, error)
}

type handler struct {
	users UserInfoGetter
}

type errorBody struct {
	Error string `json:"error"`
}

// New routes
//
//	GET /v1/users/{name}
//	GET /v1/users?name=...   (allows the empty name)
//
// to users.
func New(users UserInfoGetter) http.Handler {
	h := &handler{users: users}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Route("/v1/users", func(r chi.Router) {
		r.Get("/", h.byQuery)
		r.Get("/{name}", h.byPath)
	})
	return r
}

func (h *handler) byPath(w http.ResponseWriter, r *http.Request) {
	h.getUserInfo(w, r, chi.URLParam(r, "name"))
}

func (h *handler) byQuery(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("name") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing name parameter"})
		return
	}
	h.getUserInfo(w, r, r.URL.Query().Get("name"))
}

func (h *handler) getUserInfo(w http.ResponseWriter, r *http.Request, name string) {
	reply, err := h.users.GetUserInfo(r.Context(), name)
	if err != nil {
		log.Warnf("gateway: GetUserInfo(%q) failed: %v", name, err)
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func statusFor(err error) int {
	var (
		malformed *protocol.MalformedRequestError
		connErr   *protocol.ConnectionError
	)
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("gateway: writing response: %v", err)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug("gateway request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency", time.Since(start))
	})
}
