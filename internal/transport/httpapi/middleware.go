package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	userIDHeader      = "X-User-ID"
	roleHeader        = "X-User-Role"
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

var errRequestInFlight = fmt.Errorf("%w: request is still being processed", domain.ErrIdempotencyKeyAlreadyExists)

// authenticate переносит пользователя из заголовков, выставленных сервисом
// авторизации, в контекст запроса. Запрос без X-User-ID остаётся анонимным.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID != "" {
			p := domain.Principal{UserID: userID, Role: domain.ParseRole(c.GetHeader(roleHeader))}
			c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), p))
		}
		c.Next()
	}
}

func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := domain.PrincipalFrom(c.Request.Context()); !ok {
			h.fail(c, domain.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := domain.PrincipalFrom(c.Request.Context())
		switch {
		case !ok:
			h.fail(c, domain.ErrUnauthenticated)
		case !p.IsAdmin():
			h.fail(c, domain.ErrForbidden)
		default:
			c.Next()
		}
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if p, ok := domain.PrincipalFrom(c.Request.Context()); ok {
			fields["user_id"] = p.UserID
		}
		entry := h.logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		h.metrics.Started()
		c.Next()
		h.metrics.Observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// recordingWriter копирует тело ответа, чтобы сохранить его под ключом идемпотентности.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent сохраняет первый ответ на запрос с Idempotency-Key и отдаёт его
// при повторе. Ключ действует в пределах пользователя; тот же ключ с другим
// запросом получает 409.
func (h *Handler) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		if key == "" || h.idem == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			h.fail(c, badRequest(err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		p, _ := domain.PrincipalFrom(ctx)
		scoped := domain.ScopedIdempotencyKey(p.UserID, key)
		hash := domain.RequestFingerprint(c.Request.Method, c.Request.URL.Path, body)

		record, err := h.idem.CreateProcessing(ctx, scoped, hash, h.now().Add(h.cfg.IdempotencyTTL))
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			if !record.Replayable() {
				h.fail(c, errRequestInFlight)
				return
			}
			c.Header(replayedHeader, "true")
			c.Data(record.HTTPStatus, gin.MIMEJSON+"; charset=utf-8", record.ResponseBody)
			c.Abort()
			return
		default:
			h.fail(c, err)
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		store := h.idem.MarkDone
		if status >= 500 {
			store = h.idem.MarkFailed
		}
		if err := store(context.WithoutCancel(ctx), scoped, rec.body.Bytes(), status); err != nil {
			h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	}
}
