package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/katatrina/gundam-live/internal/apperror"
	"resty.dev/v3"
)

// errorBody is the error shape of the backend: {"error": "..."}.
type errorBody struct {
	Error string `json:"error"`
}

// checkResponse maps a resty outcome onto the error taxonomy.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s: %w", op, apperror.ErrTimeout)
		}
		if resp == nil || resp.StatusCode() == 0 {
			return fmt.Errorf("%s: %w: %w", op, apperror.ErrConnection, err)
		}
		if !resp.IsError() {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
		// an undecodable error body still carries its status code
	}

	if !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		return fmt.Errorf("%s: %w", op, apperror.ErrTimeout)
	}

	reason := ""
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		reason = body.Error
	}
	if status >= http.StatusInternalServerError {
		// retries are exhausted at this point
		return fmt.Errorf("%s: server error (status %d): %s", op, status, reason)
	}

	return fmt.Errorf("%s: %w", op, &apperror.RemoteRejection{
		StatusCode: status,
		Reason:     reason,
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
