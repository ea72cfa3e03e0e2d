package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
	"github.com/abhisek/mistakebook/internal/notebook"
	"github.com/abhisek/mistakebook/internal/ocr"
	"github.com/abhisek/mistakebook/internal/solving"
	"github.com/abhisek/mistakebook/internal/store"
)

// Response statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the body of every /api response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: statusSuccess, Data: data})
}

// statusCode maps a domain error to its HTTP status.
func statusCode(err error) int {
	var (
		he          *echo.HTTPError
		be          *echo.BindingError
		rateLimited *llm.ErrRateLimit
		unavailable *llm.ErrProviderUnavailable
		invalid     *llm.ErrInvalidResponse
		truncated   *llm.ErrMaxTokensExceeded
		rejected    *llm.ErrRequestRejected
	)
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &be):
		return be.Code
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, notebook.ErrInvalidInput),
		errors.Is(err, solving.ErrNoKnowledgePoints),
		errors.Is(err, solving.ErrEmptyQuestion),
		errors.Is(err, knowledge.ErrIncompleteIdentity):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ocr.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ocr.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, notebook.ErrOCRUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case solving.StageOf(err) != "",
		errors.Is(err, ocr.ErrServiceUnavailable),
		errors.As(err, &rateLimited),
		errors.As(err, &unavailable),
		errors.As(err, &invalid),
		errors.As(err, &truncated),
		errors.As(err, &rejected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as an envelope. Internal errors are
// logged and their text withheld from the client.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := statusCode(err)
		msg := err.Error()
		var he *echo.HTTPError
		var be *echo.BindingError
		if errors.As(err, &be) {
			he = be.HTTPError
		}
		if he != nil || errors.As(err, &he) {
			if m, isString := he.Message.(string); isString {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if code == http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.Error(err))
			msg = http.StatusText(code)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, envelope{Status: statusError, Message: msg})
		}
		if werr != nil {
			logger.Warn("failed to write error response", zap.Error(werr))
		}
	}
}
