package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/chanlink/internal/pkg/response"
	"github.com/xxxsen/chanlink/internal/service"
)

type ChannelHandler struct {
	channels *service.ChannelService
}

func NewChannelHandler(channels *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

type emailRequest struct {
	Email string `json:"email"`
}

type linkConfirmRequest struct {
	Code           string `json:"code"`
	ChannelAddress string `json:"channel_address"`
}

type resetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type linkStatusResponse struct {
	Linked         bool   `json:"linked"`
	ChannelAddress string `json:"channel_address,omitempty"`
}

func bindEmail(c *gin.Context) (string, bool) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", false
	}
	email := strings.TrimSpace(req.Email)
	return email, email != ""
}

// RequestLink issues a link code for the authenticated caller. The body may
// repeat the caller's email; any other email is refused.
func (h *ChannelHandler) RequestLink(c *gin.Context) {
	var req emailRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	res, err := h.channels.RequestLinkForUser(c.Request.Context(), getUserID(c), req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"code":         res.Code,
		"instructions": res.Instructions,
		"expires_at":   res.ExpiresAt.Unix(),
	})
}

func (h *ChannelHandler) ConfirmLink(c *gin.Context) {
	var req linkConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.ChannelAddress) == "" {
		badRequest(c)
		return
	}
	user, err := h.channels.ConfirmLink(c.Request.Context(), req.Code, req.ChannelAddress)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"email": user.Email, "name": user.Name})
}

func (h *ChannelHandler) Status(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		badRequest(c)
		return
	}
	status, err := h.channels.LinkStatus(c.Request.Context(), email)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, linkStatusResponse{Linked: status.Linked, ChannelAddress: status.ChannelAddress})
}

// MyStatus is Status for the authenticated caller.
func (h *ChannelHandler) MyStatus(c *gin.Context) {
	status, err := h.channels.LinkStatusByID(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, linkStatusResponse{Linked: status.Linked, ChannelAddress: status.ChannelAddress})
}

func (h *ChannelHandler) RequestReset(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		badRequest(c)
		return
	}
	if err := h.channels.RequestReset(c.Request.Context(), email); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

func (h *ChannelHandler) ConfirmReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		badRequest(c)
		return
	}
	if err := h.channels.ConfirmReset(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}
