package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/pkg/db/pagination"
)

type createInvitationRequest struct {
	Email      string `json:"email"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	householdID, err := householdIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invite, err := s.invitationSvc.Create(c.Request.Context(), householdID, userID, invitationdomain.CreateInviteRequest{
		Email: req.Email,
		TTL:   time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

func (s *Server) ListInvitations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	householdID, err := householdIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page := pagination.Pagination{
		PageToken: c.Query("page_token"),
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			AbortWithError(c, invalidRequestError())
			return
		}
		page.PageSize = size
	}

	items, pageInfo, err := s.invitationSvc.ListByHousehold(c.Request.Context(), householdID, userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": items, "page_info": pageInfo})
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	householdID, err := householdIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw := strings.TrimSpace(c.Param("invitationId"))
	invitationID, parseErr := snowflake.ParseString(raw)
	if raw == "" || parseErr != nil {
		AbortWithError(c, invitationdomain.ErrInvalidInvitation)
		return
	}

	revoked, err := s.invitationSvc.Revoke(c.Request.Context(), householdID, userID, invitationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !revoked {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "invalid_token", "token is required"))
		return
	}

	resp, err := s.invitationSvc.Accept(c.Request.Context(), req.Token, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ExpireInvitations(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	expired, err := s.invitationSvc.ExpireStale(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
