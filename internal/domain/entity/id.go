package entity

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix префикс временных идентификаторов, которые клиент выдаёт
// записям, созданным до подтверждения сервером.
const TempIDPrefix = "temp_"

// NewTempID генерирует новый временный идентификатор.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID проверяет, является ли идентификатор временным.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
