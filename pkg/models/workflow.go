// Package models defines the domain models for the workflow export/import service.
package models

import (
	"time"
)

// RetentionMode controls how long finished run data is kept for a workflow.
type RetentionMode string

const (
	RetentionForever RetentionMode = "forever"
	RetentionDays    RetentionMode = "days"
)

// RetentionPolicy describes run-data retention for a workflow definition.
// Days is only meaningful when Mode is RetentionDays.
type RetentionPolicy struct {
	Mode RetentionMode `json:"mode"`
	Days int           `json:"days,omitempty"`
}

// AutoPauseThresholds holds the failure thresholds at which the runtime
// automatically pauses a workflow.
type AutoPauseThresholds struct {
	ErrorRate           float64 `json:"errorRate,omitempty"`
	ConsecutiveFailures int     `json:"consecutiveFailures,omitempty"`
}

// OperationalSettings are the behaviorally significant runtime settings of a
// workflow definition. They travel with the definition on export.
type OperationalSettings struct {
	IsPaused            bool                 `json:"isPaused"`
	IsVisible           bool                 `json:"isVisible"`
	Concurrency         int                  `json:"concurrency"`
	Retention           RetentionPolicy      `json:"retention"`
	AutoPauseThresholds *AutoPauseThresholds `json:"autoPauseThresholds,omitempty"`
}

// WorkflowDefinition is the mutable draft record of a workflow.
//
// ID is an internal identifier local to one instance and never leaves it.
// Key is the stable portable identifier used to recognize the same logical
// workflow across instances; it is nullable in the store because records that
// predate export support never received one.
type WorkflowDefinition struct {
	ID          string                 `json:"id"`
	Key         string                 `json:"key,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Draft       map[string]interface{} `json:"draft"`
	Settings    OperationalSettings    `json:"settings"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WorkflowDefinitionVersion is an immutable published snapshot of a
// workflow's behavior. It is tied to its parent by the parent's internal id
// and is never mutated once written; whole-workflow replacement is the only
// way it goes away.
type WorkflowDefinitionVersion struct {
	ID           string                 `json:"id"`
	DefinitionID string                 `json:"definition_id"`
	Version      int                    `json:"version"`
	Name         string                 `json:"name"`
	Content      map[string]interface{} `json:"content"`
	CreatedAt    time.Time              `json:"created_at"`
}
