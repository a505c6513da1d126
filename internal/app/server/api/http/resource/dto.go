package resource

import "assessync/internal/domain/entity"

type listInput struct {
	Collection string `path:"collection" example:"categories" doc:"Тип сущности"`
}

type listOutput struct {
	Body listResponse
}

type listResponse struct {
	Items []entity.Payload `json:"items"`
	Total int              `json:"total"`
}

type findInput struct {
	Collection string `path:"collection" example:"categories" doc:"Тип сущности"`
	ID         string `path:"id" example:"101" doc:"Постоянный идентификатор записи"`
}

type createInput struct {
	Collection string `path:"collection" example:"categories" doc:"Тип сущности"`
	Body       entity.Payload
}

type updateInput struct {
	Collection string `path:"collection" example:"categories" doc:"Тип сущности"`
	ID         string `path:"id" example:"101" doc:"Постоянный идентификатор записи"`
	Body       entity.Payload
}

type output struct {
	Status int
	Body   entity.Payload
}
