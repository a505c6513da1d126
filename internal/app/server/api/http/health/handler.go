package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Checker хранилище, доступность которого входит в проверку здоровья.
type Checker interface {
	Ping(ctx context.Context) error
	Kind() string
}

type Handler struct {
	checker    Checker
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(checker Checker, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		checker:    checker,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

// healthCheck отвечает 503, пока хранилище недоступно: клиент по этому
// ответу считает сервер офлайн и не отправляет очередь.
func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	if err := h.checker.Ping(ctx); err != nil {
		h.log.Warn("health check: storage unavailable", slog.String("storage", h.checker.Kind()), slog.Any("error", err))
		return nil, huma.Error503ServiceUnavailable("storage unavailable")
	}

	return &Output{
		Body: Response{
			Status:  "OK",
			Storage: h.checker.Kind(),
		},
	}, nil
}
