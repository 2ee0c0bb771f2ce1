package model

import (
	"time"

	"gorm.io/datatypes"
)

// DecisionLog records one companion decision from a director pass.
type DecisionLog struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   string         `gorm:"index:idx_decision_session;size:36;not null" json:"session_id"`
	CompanionID int64          `gorm:"index:idx_decision_ally" json:"companion_id"`
	Name        string         `gorm:"size:64" json:"name"`
	Tick        int64          `json:"tick"`
	SimTime     float64        `json:"sim_time"`
	Outcome     string         `gorm:"size:16;not null" json:"outcome"`
	Action      string         `gorm:"size:64" json:"action"`
	Role        string         `gorm:"size:16" json:"role"`
	Strategy    string         `gorm:"size:32" json:"strategy"`
	Command     string         `gorm:"size:16" json:"command"`
	Formation   string         `gorm:"size:16" json:"formation"`
	Health      float64        `json:"health"`
	Intent      datatypes.JSON `json:"intent"`
	CreatedAt   time.Time      `gorm:"index:idx_decision_created;autoCreateTime:milli" json:"created_at"`
}
