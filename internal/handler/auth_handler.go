package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/chanlink/internal/pkg/response"
	"github.com/xxxsen/chanlink/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type authRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *authRequest) bind(c *gin.Context) bool {
	if err := c.ShouldBindJSON(r); err != nil {
		return false
	}
	r.Email = strings.TrimSpace(r.Email)
	return r.Email != "" && r.Password != ""
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if !req.bind(c) {
		badRequest(c)
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if !req.bind(c) {
		badRequest(c)
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"user": user, "token": token})
}
