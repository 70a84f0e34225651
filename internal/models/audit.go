package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types
const (
	ActorUser   = "user"
	ActorSystem = "system"
	ActorWorker = "worker"
)

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"` // user/system/worker
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"` // ad/campaign/connection
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
