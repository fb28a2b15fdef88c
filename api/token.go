package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/session"
)

type verifyAccessTokenRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

type verifyAccessTokenResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

//	@Summary		Verify an access token
//	@Description	Checks an access token and returns the session it opens.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyAccessTokenRequest	true	"Access token"
//	@Success		200		{object}	verifyAccessTokenResponse
//	@Failure		401		"Invalid or expired token"
//	@Router			/tokens/verify [post]
func (server *Server) verifyAccessToken(c *gin.Context) {
	req := new(verifyAccessTokenRequest)

	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	claims, err := server.tokenMaker.VerifyToken(req.AccessToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse(err))
		return
	}

	sess := session.FromToken(req.AccessToken, claims)
	c.JSON(http.StatusOK, verifyAccessTokenResponse{
		UserID:    sess.UserID,
		Role:      sess.Role,
		IsAdmin:   sess.IsAdmin(),
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
