package server

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/hearthhq/hearth/internal/observability/context"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
)

const ctxUserIDKey = "hearth.userID"

// AuthRequired resolves the calling user from the X-User-ID header. The
// header carries the external UUID minted at registration; upstream
// authentication is expected to have verified it.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		externalID := c.GetHeader("X-User-ID")
		if externalID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		u, err := s.userSvc.GetByExternalID(c.Request.Context(), externalID)
		if err != nil {
			if errors.Is(err, userdomain.ErrUserNotFound) || errors.Is(err, userdomain.ErrInvalidExternalID) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(ctxUserIDKey, u.ID)
		ctx := obscontext.WithActor(c.Request.Context(), "user", externalID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// currentUserID returns the resolved internal user id for the request.
func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(snowflake.ID)
	return id, ok
}
