package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/middleware"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/ivalora/gadget-rms/internal/services/export"
	opnamesvc "github.com/ivalora/gadget-rms/internal/services/opname"
	"github.com/ivalora/gadget-rms/internal/services/printer"
	"github.com/ivalora/gadget-rms/internal/store"
	"github.com/ivalora/gadget-rms/internal/websocket"
)

type scanBatchRequest struct {
	Barcodes []string `json:"barcodes" validate:"required,min=1,max=1000,dive,required,max=128"`
}

type sessionPage struct {
	Items []opname.Session `json:"items"`
	Total int64            `json:"total"`
}

type resolveResponse struct {
	Mutation opname.Mutation `json:"mutation"`
	Session  *opname.Session `json:"session"`
}

func (r *Router) openSession(w http.ResponseWriter, req *http.Request) {
	var body opnamesvc.OpenRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	sess, err := r.opname.Open(req.Context(), body, actor(req).ID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (r *Router) listSessions(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	f := store.ListFilter{Limit: queryInt(req, "limit"), Offset: queryInt(req, "offset")}
	if raw := q.Get("status"); raw != "" {
		st, err := opname.ParseSessionStatus(raw)
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		f.Status = st
	}
	if raw := q.Get("type"); raw != "" {
		typ, err := opname.ParseSessionType(raw)
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		f.Type = typ
	}
	sessions, total, err := r.opname.List(req.Context(), f)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if sessions == nil {
		sessions = []opname.Session{}
	}
	respondJSON(w, http.StatusOK, sessionPage{Items: sessions, Total: total})
}

func (r *Router) getSession(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.loadSession(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (r *Router) scan(w http.ResponseWriter, req *http.Request) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var body opnamesvc.ScanRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.opname.Scan(req.Context(), id, body, actor(req).ID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) scanBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var body scanBatchRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	outs, err := r.opname.ScanBatch(req.Context(), id, body.Barcodes, actor(req).ID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outs})
}

func (r *Router) resolveSnapshotItem(w http.ResponseWriter, req *http.Request) {
	r.resolve(w, req, opname.SideSnapshot)
}

func (r *Router) resolveScannedItem(w http.ResponseWriter, req *http.Request) {
	r.resolve(w, req, opname.SideScanned)
}

func (r *Router) resolve(w http.ResponseWriter, req *http.Request, side opname.ItemSide) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	itemID, err := pathUUID(req, "itemId")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var body opnamesvc.ResolveRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	m, err := r.opname.ResolveItem(req.Context(), id, side, itemID, body, actor(req).ID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	sess, err := r.opname.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, resolveResponse{Mutation: m, Session: sess})
}

func (r *Router) recompute(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, func(id uuid.UUID, a middleware.Actor) (*opname.Session, error) {
		return r.opname.Recompute(req.Context(), id)
	})
}

func (r *Router) complete(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, func(id uuid.UUID, a middleware.Actor) (*opname.Session, error) {
		return r.opname.Complete(req.Context(), id, a.ID)
	})
}

func (r *Router) approve(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, func(id uuid.UUID, a middleware.Actor) (*opname.Session, error) {
		return r.opname.Approve(req.Context(), id, a.ID, func(createdBy string) bool {
			return middleware.IsAuthorizedApprover(a, createdBy)
		})
	})
}

func (r *Router) lock(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, func(id uuid.UUID, a middleware.Actor) (*opname.Session, error) {
		return r.opname.Lock(req.Context(), id, a.ID)
	})
}

func (r *Router) transition(w http.ResponseWriter, req *http.Request, fn func(uuid.UUID, middleware.Actor) (*opname.Session, error)) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	sess, err := fn(id, actor(req))
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (r *Router) sessionReport(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.loadSession(w, req)
	if !ok {
		return
	}
	pdf, err := printer.GenerateOpnameReport(sess)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=opname_%s.pdf", sess.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (r *Router) sessionExport(w http.ResponseWriter, req *http.Request) {
	sess, ok := r.loadSession(w, req)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteOpname(&buf, sess); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=opname_%s.xlsx", sess.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (r *Router) loadSession(w http.ResponseWriter, req *http.Request) (*opname.Session, bool) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return nil, false
	}
	sess, err := r.opname.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return nil, false
	}
	return sess, true
}

var errNoSession = errors.New("session_id required")

// deviceScan feeds SCAN messages from websocket scanners into the session.
func (r *Router) deviceScan(c *websocket.Client, msg websocket.ScanMessage) (interface{}, error) {
	if r.opname == nil {
		return nil, errors.New("scanning unavailable")
	}
	id, err := uuid.Parse(msg.SessionID)
	if err != nil {
		return nil, errNoSession
	}
	req := opnamesvc.ScanRequest{Barcode: msg.Barcode, MsgID: msg.MsgID}
	if err := r.validate.Struct(req); err != nil {
		return nil, errors.New(toAppError(err).Message)
	}
	out, err := r.opname.Scan(context.Background(), id, req, c.ActorID)
	if err != nil {
		return nil, errors.New(toAppError(err).Message)
	}
	return out, nil
}
