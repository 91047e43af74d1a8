package api

import (
	"errors"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/internal/validate"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"go.uber.org/zap"
)

const (
	// InternalErrorMessage is the only thing a client learns about a 5xx
	InternalErrorMessage = "An unexpected server error occurred"
	TextCodeInternal     = "INTERNAL"
	TextCodeBadRequest   = "BAD_REQUEST"
)

// ErrorBody is the JSON envelope for every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message  string            `json:"message"`
	TextCode string            `json:"text_code,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ErrBadRequestBody the request body is not valid JSON for the endpoint
var ErrBadRequestBody = goerrors.New("request body is not valid JSON", goerrors.CategoryBadInput).
	WithTextCode(TextCodeBadRequest).
	WithCode(goerrors.CodeBadRequest)

// NewErrorHandler maps rich errors onto status codes and the JSON envelope.
// Internal errors are logged with full detail and answered generically.
func NewErrorHandler(logger *zap.Logger, debug bool) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			if fiberErr.Code >= fiber.StatusInternalServerError {
				logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
				return c.Status(fiberErr.Code).JSON(internalBody())
			}
			return c.Status(fiberErr.Code).JSON(ErrorBody{Error: ErrorDetail{Message: fiberErr.Message}})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
			return c.Status(fiber.StatusInternalServerError).JSON(internalBody())
		}

		status := StatusFor(richErr)
		if status >= fiber.StatusInternalServerError {
			fields := []zap.Field{
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			}
			if debug && len(richErr.Metadata) > 0 {
				fields = append(fields, zap.String("metadata", print.MaybePrettyJSON(richErr.Metadata)))
			}
			logger.Error("request failed", fields...)
			return c.Status(status).JSON(internalBody())
		}

		if debug {
			logger.Debug("request rejected",
				zap.Int("status", status),
				zap.String("text_code", richErr.TextCode),
				zap.String("path", c.Path()),
			)
		}

		if status == fiber.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		message := richErr.Message
		if auth.IsTokenError(richErr) {
			message = auth.InvalidTokenMessage
		}

		return c.Status(status).JSON(ErrorBody{Error: ErrorDetail{
			Message:  message,
			TextCode: richErr.TextCode,
			Fields:   validate.Fields(richErr),
		}})
	}
}

// StatusFor picks the HTTP status for a rich error, preferring its code
func StatusFor(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func internalBody() ErrorBody {
	return ErrorBody{Error: ErrorDetail{
		Message:  InternalErrorMessage,
		TextCode: TextCodeInternal,
	}}
}
