package gateway

import (
	"bytes"
	"encoding/json"

	"assessync/internal/domain/entity"
)

// Normalize приводит ответ сервера к списку записей. Сервер отвечает в
// разных формах: голый массив, обёртки {items}, {data}, {<коллекция>},
// одиночный объект или {data: {...}}. Объект с полем id всегда считается
// записью.
func Normalize(raw json.RawMessage, d *entity.Descriptor) ([]entity.Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		return decodeList(raw, d)
	case '{':
	default:
		return nil, shapeError(d)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &entity.TransformationError{Type: d.Type, Reason: "invalid json: " + err.Error()}
	}

	// объект с id сам является записью, даже если в нём есть поле data
	if _, ok := obj["id"]; ok {
		p, err := decodeObject(raw, d)
		if err != nil {
			return nil, err
		}
		return []entity.Payload{p}, nil
	}

	for _, key := range []string{"items", "data", d.Collection, d.Type.String(), "results"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case '[':
			return decodeList(v, d)
		case '{':
			p, err := decodeObject(v, d)
			if err != nil {
				return nil, err
			}
			return []entity.Payload{p}, nil
		case 'n':
			return nil, nil
		}
	}

	return nil, shapeError(d)
}

// NormalizeOne извлекает одиночную запись из ответа на мутацию.
func NormalizeOne(raw json.RawMessage, d *entity.Descriptor) (entity.Payload, error) {
	list, err := Normalize(raw, d)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &entity.TransformationError{Type: d.Type, Field: "id", Reason: "empty payload"}
	}
	return list[0], nil
}

func decodeList(raw []byte, d *entity.Descriptor) ([]entity.Payload, error) {
	var out []entity.Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &entity.TransformationError{Type: d.Type, Reason: "invalid list: " + err.Error()}
	}
	return out, nil
}

func decodeObject(raw []byte, d *entity.Descriptor) (entity.Payload, error) {
	var out entity.Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &entity.TransformationError{Type: d.Type, Reason: "invalid object: " + err.Error()}
	}
	return out, nil
}

func shapeError(d *entity.Descriptor) error {
	return &entity.TransformationError{Type: d.Type, Reason: "unrecognized response shape"}
}
