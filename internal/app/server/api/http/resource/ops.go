package resource

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "resources-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/{collection}",
		Summary:     "Список записей коллекции",
		Tags:        []string{"resources"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "resources-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/{collection}",
		Summary:       "Создать запись",
		Description:   "Назначает постоянный идентификатор. Повторная отправка записи с тем же естественным ключом возвращает существующую запись со статусом 200.",
		Tags:          []string{"resources"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "resources-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/{collection}/{id}",
		Summary:     "Получить запись",
		Tags:        []string{"resources"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "resources-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/{collection}/{id}",
		Summary:     "Обновить запись",
		Tags:        []string{"resources"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "resources-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/{collection}/{id}",
		Summary:       "Удалить запись",
		Tags:          []string{"resources"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}
