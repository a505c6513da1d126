// GET    /api/v1/health               # Проверка доступности (публичный)
// GET    /api/v1/{collection}         # Список записей коллекции
// POST   /api/v1/{collection}         # Создать запись
// GET    /api/v1/{collection}/{id}    # Получить запись
// PUT    /api/v1/{collection}/{id}    # Обновить запись
// DELETE /api/v1/{collection}/{id}    # Удалить запись

package api

import (
	healthAPI "assessync/internal/app/server/api/http/health"
	"assessync/internal/app/server/api/http/middleware"
	"assessync/internal/app/server/api/http/middleware/auth"
	"assessync/internal/app/server/api/http/middleware/logger"
	resourceAPI "assessync/internal/app/server/api/http/resource"
	"assessync/internal/domain/resource"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health   *healthAPI.Handler
	Resource *resourceAPI.Handler
}

// New создает *chi.Mux с операциями, зарегистрированными через huma.Register.
// Пустой token отключает проверку авторизации.
func New(service resource.Servicer, checker healthAPI.Checker, token string, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Assessync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(service, checker, token, log)
	h.Health.SetupRoutes(API)
	h.Resource.SetupRoutes(API)

	return mux
}

func handlers(service resource.Servicer, checker healthAPI.Checker, token string, log *slog.Logger) *Handlers {
	authMW := auth.New(token, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(checker, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	resourceHandler := resourceAPI.NewHandler(service, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Resource: resourceHandler,
	}
}
