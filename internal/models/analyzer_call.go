package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// AnalyzerCall is one ledger row per analyzer invocation made by the orchestrator.
type AnalyzerCall struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EvaluationID   string         `gorm:"column:evaluation_id;type:text;index" json:"evaluation_id"`
	Service        string         `gorm:"column:service;type:text" json:"service"` // facial|audio|text
	Phase          int            `gorm:"column:phase;type:integer" json:"phase"`
	OK             bool           `gorm:"column:ok" json:"ok"`
	ErrorKind      string         `gorm:"column:error_kind;type:text" json:"error_kind,omitempty"`
	ErrorMessage   string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Score          float64        `gorm:"column:score;type:double precision" json:"score"`
	KeywordMatches pq.StringArray `gorm:"column:keyword_matches;type:text[]" json:"keyword_matches,omitempty"`
	DurationMS     int64          `gorm:"column:duration_ms;type:bigint" json:"duration_ms"`
	Result         datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (AnalyzerCall) TableName() string { return "analyzer_calls" }
