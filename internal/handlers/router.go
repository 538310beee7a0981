package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ivalora/gadget-rms/internal/buildinfo"
	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/middleware"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/services/notification"
	opnamesvc "github.com/ivalora/gadget-rms/internal/services/opname"
	"github.com/ivalora/gadget-rms/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	db       *gorm.DB
	cfg      *config.Config
	log      logrus.FieldLogger
	validate *validator.Validate

	opname        *opnamesvc.Service
	units         *inventory.Store
	notifications *notification.Service
	hub           *websocket.Hub
}

// NewRouter creates a new HTTP router with all routes. Services are attached
// with the Set* methods before the server starts.
func NewRouter(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		cfg:      cfg,
		log:      log.WithField("module", "http"),
		validate: validator.New(),
	}
	if db != nil {
		r.units = inventory.NewStore(db)
	}

	r.Use(middleware.RequestLogger(r.log))

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")

	hasDB := r.needs(func() bool { return r.db != nil })

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Use(hasDB)
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	authed := middleware.Auth(cfg.JWTSecret)
	managers := middleware.RequireRole(models.RoleOwner, models.RoleAdmin)

	r.Handle("/ws", authed(http.HandlerFunc(r.serveWs))).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authed)

	users := api.PathPrefix("/users").Subrouter()
	users.Use(managers, hasDB)
	users.HandleFunc("", r.listUsers).Methods("GET")
	users.HandleFunc("/{id}/role", r.setUserRole).Methods("PUT")

	inv := api.PathPrefix("/inventory").Subrouter()
	inv.Use(r.needs(func() bool { return r.units != nil }))
	inv.HandleFunc("/units", r.listUnits).Methods("GET")
	inv.HandleFunc("/units/{id}", r.getUnit).Methods("GET")
	inv.HandleFunc("/labels", r.printLabels).Methods("POST")

	op := api.PathPrefix("/opname/sessions").Subrouter()
	op.Use(r.needs(func() bool { return r.opname != nil }))
	op.HandleFunc("", r.openSession).Methods("POST")
	op.HandleFunc("", r.listSessions).Methods("GET")
	op.HandleFunc("/{id}", r.getSession).Methods("GET")
	op.HandleFunc("/{id}/scans", r.scan).Methods("POST")
	op.HandleFunc("/{id}/scans/batch", r.scanBatch).Methods("POST")
	op.HandleFunc("/{id}/snapshot-items/{itemId}/action", r.resolveSnapshotItem).Methods("PUT")
	op.HandleFunc("/{id}/scanned-items/{itemId}/action", r.resolveScannedItem).Methods("PUT")
	op.HandleFunc("/{id}/recompute", r.recompute).Methods("POST")
	op.HandleFunc("/{id}/complete", r.complete).Methods("POST")
	op.Handle("/{id}/approve", managers(http.HandlerFunc(r.approve))).Methods("POST")
	op.Handle("/{id}/lock", managers(http.HandlerFunc(r.lock))).Methods("POST")
	op.HandleFunc("/{id}/report.pdf", r.sessionReport).Methods("GET")
	op.HandleFunc("/{id}/export.xlsx", r.sessionExport).Methods("GET")

	notes := api.PathPrefix("/notifications").Subrouter()
	notes.Use(r.needs(func() bool { return r.notifications != nil && r.db != nil }))
	notes.HandleFunc("", r.listNotifications).Methods("GET")
	notes.HandleFunc("/{id}/read", r.markNotificationRead).Methods("POST")

	return r
}

// SetOpnameService attaches the stock count service.
func (r *Router) SetOpnameService(s *opnamesvc.Service) { r.opname = s }

// SetNotificationService attaches the notification service.
func (r *Router) SetNotificationService(s *notification.Service) { r.notifications = s }

// SetHub attaches the websocket hub and routes device scans into the opname
// service.
func (r *Router) SetHub(h *websocket.Hub) {
	r.hub = h
	h.SetScanHandler(r.deviceScan)
}

// SetUnitStore replaces the inventory unit store.
func (r *Router) SetUnitStore(s *inventory.Store) { r.units = s }

func (r *Router) needs(ready func() bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !ready() {
				r.respondError(w, req, newAppError(CodeServiceUnavailable, "service not configured", http.StatusServiceUnavailable))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err != nil || sqlDB.PingContext(req.Context()) != nil {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// getStatus returns build and runtime information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"build":       buildinfo.Current(),
		"server_time": time.Now().UTC().Format(time.RFC3339),
		"odoo":        r.cfg.Odoo.Enabled(),
		"redis_locks": r.cfg.Redis.Address != "",
	})
}

// decode reads a JSON body into dst and validates its struct tags.
func (r *Router) decode(req *http.Request, dst interface{}) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest("invalid request payload")
	}
	return r.validate.Struct(dst)
}

func pathUUID(req *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(req)[name])
	if err != nil {
		return uuid.Nil, errBadRequest("invalid " + name)
	}
	return id, nil
}

func queryInt(req *http.Request, name string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(name))
	return n
}

func actor(req *http.Request) middleware.Actor {
	a, _ := middleware.ActorFrom(req.Context())
	return a
}
