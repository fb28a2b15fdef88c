package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotDisputeParticipant = errors.New("only the buyer, the seller or an admin can view this dispute")
)

type FailedValidationResponse struct {
	Message         string            `json:"message"`
	FieldViolations []*FieldViolation `json:"field_violations"`
}

type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func fieldViolation(field string, err error) *FieldViolation {
	return &FieldViolation{
		Field:       field,
		Description: err.Error(),
	}
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}

func failedValidationError(violations []*FieldViolation) *FailedValidationResponse {
	return &FailedValidationResponse{
		Message:         "Invalid request parameters",
		FieldViolations: violations,
	}
}

// handleError maps the error taxonomy onto HTTP statuses.
func handleError(c *gin.Context, err error) {
	var validationErr *apperror.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{
			{Field: validationErr.Field, Description: validationErr.Constraint},
		}))
		return
	}

	if rejection, ok := apperror.IsRejection(err); ok {
		status := rejection.StatusCode
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		default:
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, errorResponse(err))
		return
	}

	switch {
	case errors.Is(err, ErrNotDisputeParticipant):
		c.JSON(http.StatusForbidden, errorResponse(err))
	case errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusUnauthorized, errorResponse(err))
	case errors.Is(err, apperror.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, errorResponse(err))
	case errors.Is(err, apperror.ErrConnection):
		c.JSON(http.StatusBadGateway, errorResponse(err))
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse(err))
	}
}
