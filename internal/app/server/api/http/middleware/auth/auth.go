package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Auth проверяет статический bearer-токен. Пустой токен отключает проверку.
type Auth struct {
	token string
	log   *slog.Logger
}

func New(token string, log *slog.Logger) *Auth {
	return &Auth{
		token: token,
		log:   log.With(slog.String("component", "auth_middleware")),
	}
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if a.token == "" {
			next(ctx)
			return
		}

		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			a.log.Warn("запрос без действительного токена",
				slog.String("path", ctx.URL().Path),
				slog.String("remote_addr", ctx.RemoteAddr()),
			)
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")

			err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]any{
				"status": http.StatusUnauthorized,
				"title":  "Unauthorized",
				"detail": "missing or invalid bearer token",
			})
			if err != nil {
				a.log.Error("json encode", slog.Any("error", err))
			}
			return
		}

		next(ctx)
	}
}
