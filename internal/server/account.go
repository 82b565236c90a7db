package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type membershipSummaryResponse struct {
	HouseholdID string `json:"household_id"`
	IsAdmin     bool   `json:"is_admin"`
	MemberCount int    `json:"member_count"`
	AdminCount  int    `json:"admin_count"`
}

func (s *Server) ListAccountMemberships(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summaries, err := s.accountSvc.LoadMemberships(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]membershipSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, membershipSummaryResponse{
			HouseholdID: summary.HouseholdID.String(),
			IsAdmin:     summary.IsAdmin,
			MemberCount: summary.MemberCount,
			AdminCount:  summary.AdminCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"memberships": items})
}

func (s *Server) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.accountSvc.DeleteAccount(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
