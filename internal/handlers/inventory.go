package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/services/printer"
)

type labelsRequest struct {
	UnitIDs []string             `json:"unit_ids" validate:"required,min=1,max=500,dive,uuid"`
	Layout  *printer.LabelConfig `json:"layout"`
}

type unitPage struct {
	Items []models.InventoryUnit `json:"items"`
	Total int64                  `json:"total"`
}

func (r *Router) listUnits(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	status := models.StockStatus(q.Get("status"))
	if status != "" && r.validate.Var(string(status), "oneof=available sold service lost return_pending") != nil {
		r.respondError(w, req, errBadRequest("unknown stock status"))
		return
	}
	units, total, err := r.units.List(req.Context(), inventory.ListFilter{
		Status: status,
		Query:  q.Get("q"),
		Limit:  queryInt(req, "limit"),
		Offset: queryInt(req, "offset"),
	})
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, unitPage{Items: units, Total: total})
}

func (r *Router) getUnit(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if r.validate.Var(id, "uuid") != nil {
		r.respondError(w, req, errBadRequest("invalid id"))
		return
	}
	u, err := r.units.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// printLabels renders a PDF sheet of QR labels for the requested units.
func (r *Router) printLabels(w http.ResponseWriter, req *http.Request) {
	var body labelsRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	units, err := r.units.GetMany(req.Context(), body.UnitIDs)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	layout := printer.DefaultLabelConfig
	if body.Layout != nil {
		layout = *body.Layout
	}
	pdf, err := printer.GenerateLabelsPDF(units, layout)
	if err != nil {
		r.respondError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=labels_%s.pdf", time.Now().Format("20060102_150405")))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
