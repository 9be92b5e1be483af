package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"privlens/internal/domain/privacy"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AnalysisAudit holds aggregate metadata for one analyze request. Image
// bytes, OCR text and geometry are never stored.
type AnalysisAudit struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	RequestID      string         `gorm:"not null;index" json:"request_id"`
	Provider       string         `gorm:"not null" json:"provider"`
	Filename       *string        `json:"filename,omitempty"`
	DetectionCount int            `gorm:"not null" json:"detection_count"`
	Counts         datatypes.JSON `gorm:"type:jsonb" json:"counts,omitempty"`
	Outcome        string         `gorm:"not null" json:"outcome"`
	ErrorKind      *string        `json:"error_kind,omitempty"`
	DurationMs     int64          `gorm:"not null" json:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (AnalysisAudit) TableName() string {
	return "analysis_audits"
}

// AuditEntry is what the service reports after each request.
type AuditEntry struct {
	RequestID string
	Provider  string
	Filename  string
	Counts    privacy.Counts
	Outcome   string
	ErrorKind string
	Duration  time.Duration
}

func (r *AuditRepository) Record(ctx context.Context, entry AuditEntry) error {
	counts, err := json.Marshal(entry.Counts)
	if err != nil {
		return err
	}

	row := AnalysisAudit{
		RequestID:      entry.RequestID,
		Provider:       entry.Provider,
		DetectionCount: entry.Counts.Total(),
		Counts:         datatypes.JSON(counts),
		Outcome:        entry.Outcome,
		DurationMs:     entry.Duration.Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if entry.Filename != "" {
		row.Filename = &entry.Filename
	}
	if entry.ErrorKind != "" {
		row.ErrorKind = &entry.ErrorKind
	}

	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit, offset int) ([]AnalysisAudit, error) {
	query := r.db.WithContext(ctx).
		Model(&AnalysisAudit{}).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []AnalysisAudit
	err := query.Find(&rows).Error
	return rows, err
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&AnalysisAudit{})
	return res.RowsAffected, res.Error
}
