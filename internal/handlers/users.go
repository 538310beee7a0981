package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ivalora/gadget-rms/internal/models"
)

type setRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=owner admin staff"`
}

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	var users []models.UserAuth
	if err := r.db.WithContext(req.Context()).Order("created_at").Find(&users).Error; err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// setUserRole changes a user's role. Only an owner may hand out or take
// away the owner role.
func (r *Router) setUserRole(w http.ResponseWriter, req *http.Request) {
	var body setRoleRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}

	var user models.UserAuth
	res := r.db.WithContext(req.Context()).Where("id = ?", mux.Vars(req)["id"]).Limit(1).Find(&user)
	if res.Error != nil {
		r.respondError(w, req, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		r.respondError(w, req, errNotFound("user"))
		return
	}

	a := actor(req)
	if (body.Role == models.RoleOwner || user.Role == models.RoleOwner) && a.Role != models.RoleOwner {
		r.respondError(w, req, newAppError(CodeForbidden, "only an owner may change owner roles", http.StatusForbidden))
		return
	}
	if user.ID == a.ID && body.Role != a.Role {
		r.respondError(w, req, newAppError(CodeForbidden, "cannot change your own role", http.StatusForbidden))
		return
	}

	if err := r.db.WithContext(req.Context()).Model(&user).Update("role", body.Role).Error; err != nil {
		r.respondError(w, req, err)
		return
	}
	user.Role = body.Role
	r.log.WithField("user", user.ID).WithField("role", body.Role).WithField("by", a.ID).Info("role changed")
	respondJSON(w, http.StatusOK, user)
}
