package entity

import "fmt"

// Type тег типа сущности. Совпадает с именем коллекции на сервере.
type Type string

const (
	TypeQuestion     Type = "questions"
	TypeCategory     Type = "categories"
	TypeAssessment   Type = "assessments"
	TypeResponse     Type = "responses"
	TypeSubmission   Type = "submissions"
	TypeReport       Type = "reports"
	TypeOrganization Type = "organizations"
	TypeUser         Type = "users"
	TypeInvitation   Type = "invitations"
)

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// Operation вид мутации
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Validate проверяет, что операция известна.
func (o Operation) Validate() error {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownOperation, string(o))
}

// Priority приоритет элемента очереди синхронизации
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank возвращает числовой вес приоритета: чем больше, тем раньше элемент
// уходит на сервер.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Validate реализует проверку значения из таблицы реестра.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return nil
	}
	return fmt.Errorf("неверный приоритет: %s", p)
}

// SyncStatus состояние локальной копии относительно сервера
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusPending SyncStatus = "pending"
	StatusFailed  SyncStatus = "failed"
)
