package resource

import (
	"context"
	"errors"
	"net/http"

	"assessync/internal/domain/entity"
	"assessync/internal/domain/resource"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    resource.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service resource.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	items, err := h.service.List(ctx, entity.Type(input.Collection))
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	if items == nil {
		items = []entity.Payload{}
	}

	return &listOutput{
		Body: listResponse{Items: items, Total: len(items)},
	}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*output, error) {
	item, err := h.service.Get(ctx, entity.Type(input.Collection), input.ID)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	return &output{Status: http.StatusOK, Body: item}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*output, error) {
	item, created, err := h.service.Create(ctx, entity.Type(input.Collection), input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return &output{Status: status, Body: item}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*output, error) {
	item, err := h.service.Update(ctx, entity.Type(input.Collection), input.ID, input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	return &output{Status: http.StatusOK, Body: item}, nil
}

func (h *Handler) delete(ctx context.Context, input *findInput) (*struct{}, error) {
	if err := h.service.Delete(ctx, entity.Type(input.Collection), input.ID); err != nil {
		return nil, h.toHTTPError(err)
	}
	return &struct{}{}, nil
}

func (h *Handler) toHTTPError(err error) error {
	var validation *resource.ValidationError
	switch {
	case errors.Is(err, resource.ErrNotFound):
		return huma.Error404NotFound("record not found")
	case errors.Is(err, entity.ErrUnknownType):
		return huma.Error404NotFound("unknown collection", err)
	case errors.As(err, &validation):
		return huma.Error422UnprocessableEntity(validation.Error())
	default:
		if h.log != nil {
			h.log.Error("resource operation failed", slog.Any("error", err))
		}
		return huma.Error500InternalServerError("internal error")
	}
}
