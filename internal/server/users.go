package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
)

type createUserRequest struct {
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	u, err := s.userSvc.Create(c.Request.Context(), userdomain.CreateUserRequest{
		ExternalID:  req.ExternalID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

func (s *Server) Me(c *gin.Context) {
	u, err := s.userSvc.GetByExternalID(c.Request.Context(), c.GetHeader("X-User-ID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
