package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const internalErrorMessage = "internal server error"

// envelope: общий вид всех ответов API.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusFor переводит класс доменной ошибки в HTTP-статус.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindStateConflict, domain.KindSignatureInvalid:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// fail отдаёт ошибку клиенту. Сбои зависимостей логируются, а наружу уходит
// общее сообщение; детали видны только вне production.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	body := envelope{Message: err.Error()}
	if kind == domain.KindUpstream {
		body.Message = internalErrorMessage
		h.logger.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
	}
	if h.cfg.Environment != EnvProduction {
		body.Error = errorDetail(err, kind)
	}
	h.respond(c, status, body)
}

func (h *Handler) respond(c *gin.Context, status int, body envelope) {
	c.AbortWithStatusJSON(status, body)
}

func errorDetail(err error, kind domain.ErrorKind) string {
	var transition *domain.InvalidTransitionError
	if errors.As(err, &transition) {
		return string(kind) + ": current status " + string(transition.Current)
	}
	return string(kind) + ": " + err.Error()
}

// badRequest оборачивает ошибку разбора тела запроса.
func badRequest(err error) error {
	return domain.NewValidationError("body", err.Error())
}
