package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
)

type createHouseholdRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) CreateHousehold(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createHouseholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.householdSvc.Create(c.Request.Context(), userID, householddomain.CreateHouseholdRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListHouseholds(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.householdSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"households": items})
}

func (s *Server) ListMembers(c *gin.Context) {
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

	members, err := s.householdSvc.ListMembers(c.Request.Context(), householdID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) AddMember(c *gin.Context) {
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

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := s.resolveUser(c, req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	member, err := s.householdSvc.AddMember(c.Request.Context(), householdID, userID, target, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (s *Server) RemoveMember(c *gin.Context) {
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

	target, err := s.resolveUser(c, c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	removed, err := s.householdSvc.RemoveMember(c.Request.Context(), householdID, userID, target)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !removed {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func householdIDParam(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("householdId"))
	if raw == "" {
		return 0, householddomain.ErrInvalidHousehold
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, householddomain.ErrInvalidHousehold
	}
	return id, nil
}

// resolveUser maps an external UUID from the request to the internal user id.
func (s *Server) resolveUser(c *gin.Context, externalID string) (snowflake.ID, error) {
	u, err := s.userSvc.GetByExternalID(c.Request.Context(), externalID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}
