package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/utils"
	"gorm.io/gorm"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=128"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var errInvalidCredentials = newAppError(CodeUnauthorized, "invalid credentials", http.StatusUnauthorized)

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body LoginRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}

	var user models.UserAuth
	err := r.db.WithContext(req.Context()).Where("email = ?", strings.ToLower(body.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.respondError(w, req, errInvalidCredentials)
		return
	}
	if err != nil {
		r.respondError(w, req, err)
		return
	}

	if !user.IsActive || !utils.CheckPasswordHash(body.Password, user.Password) {
		r.db.WithContext(req.Context()).Model(&user).
			UpdateColumn("failed_login_attempts", gorm.Expr("failed_login_attempts + 1"))
		r.respondError(w, req, errInvalidCredentials)
		return
	}

	now := time.Now().UTC()
	r.db.WithContext(req.Context()).Model(&user).Updates(map[string]interface{}{
		"last_login":            now,
		"failed_login_attempts": 0,
	})
	user.LastLogin = &now

	r.respondTokens(w, req, http.StatusOK, &user)
}

// register creates a user. The first account becomes the owner, later ones
// start as staff until an owner or admin promotes them.
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body RegisterRequest
	if err := r.decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}

	hashed, err := utils.HashPassword(body.Password)
	if err != nil {
		r.respondError(w, req, err)
		return
	}

	user := models.UserAuth{
		Username: body.Username,
		Password: hashed,
		Email:    strings.ToLower(body.Email),
		Name:     body.Name,
		Role:     models.RoleStaff,
		IsActive: true,
	}

	err = r.db.WithContext(req.Context()).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.UserAuth{}).
			Where("email = ? OR username = ?", user.Email, user.Username).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return newAppError(CodeConflict, "username or email already registered", http.StatusConflict)
		}
		var total int64
		if err := tx.Model(&models.UserAuth{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			user.Role = models.RoleOwner
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		r.respondError(w, req, err)
		return
	}

	r.log.WithField("user", user.ID).WithField("role", user.Role).Info("user registered")
	r.respondTokens(w, req, http.StatusCreated, &user)
}

// logout is stateless; clients drop their tokens.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (r *Router) respondTokens(w http.ResponseWriter, req *http.Request, status int, user *models.UserAuth) {
	access, refresh, err := utils.GenerateTokens(user, r.cfg.JWTSecret)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, status, map[string]interface{}{
		"tokens": tokenPair{AccessToken: access, RefreshToken: refresh},
		"user":   user,
	})
}
