// Package domain contains persistence models for blueprint analysis jobs.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status represents lifecycle states for an analysis job. Transitions
// are strictly forward: uploaded -> processing -> completed|failed.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses along the lifecycle. Readers use it to drop
// stale out-of-order snapshots; an unknown status ranks lowest.
func (s Status) Rank() int {
	switch s {
	case StatusUploaded:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Symbol is one detected blueprint symbol.
type Symbol struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// AIAnalysis summarizes the worker's verdict on a job.
type AIAnalysis struct {
	IsAnalyzed bool    `gorm:"column:is_analyzed;not null;default:false" json:"is_analyzed"`
	Confidence float64 `gorm:"column:ai_confidence;not null;default:0" json:"confidence"`
}

// AnalysisJob is one blueprint-analysis unit. The AI worker is the
// single writer once the job reaches processing; trackers only read.
type AnalysisJob struct {
	ID              string         `gorm:"primaryKey;type:text" json:"id"`
	UserID          string         `gorm:"not null;index" json:"user_id"`
	ImageKey        string         `gorm:"type:text;not null" json:"image_key"`
	Status          Status         `gorm:"type:text;not null;index" json:"status"`
	Symbols         datatypes.JSON `gorm:"type:jsonb" json:"symbols"`
	TotalSymbols    int            `gorm:"not null;default:0" json:"total_symbols"`
	AverageAccuracy float64        `gorm:"not null;default:0" json:"average_accuracy"`
	AIAnalysis      AIAnalysis     `gorm:"embedded" json:"ai_analysis"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AnalysisJob) TableName() string { return "analysis_jobs" }
