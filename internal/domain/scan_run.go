package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ScanRunStatus is the outcome of an integrity scan.
type ScanRunStatus string

const (
	ScanRunStatusComplete ScanRunStatus = "complete"
	// ScanRunStatusPartial means at least one check could not be evaluated.
	ScanRunStatusPartial ScanRunStatus = "partial"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// CountMap stores per-issue-type counts as JSON.
type CountMap map[string]int

// Value implements the driver.Valuer interface for database serialization.
func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *CountMap) Scan(value interface{}) error {
	if value == nil {
		*m = CountMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan CountMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// ScanRun records one integrity scan and where its full report was archived.
type ScanRun struct {
	ID              string        `gorm:"type:text;primaryKey" json:"id"`
	Status          ScanRunStatus `gorm:"type:text;index:idx_scan_runs_status" json:"status"`
	StartedAt       time.Time     `gorm:"index:idx_scan_runs_started" json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	DurationMs      int64         `json:"duration_ms"`
	TotalIssues     int           `json:"total_issues"`
	ChecksPerformed int           `json:"checks_performed"`
	ChecksAttempted int           `json:"checks_attempted"`
	FailedChecks    StringArray   `gorm:"type:text" json:"failed_checks"`
	IssueCounts     CountMap      `gorm:"type:text" json:"issue_counts"`
	ReportKey       string        `gorm:"type:text" json:"report_key,omitempty"`
}

// TableName returns the database table name for ScanRun.
func (ScanRun) TableName() string {
	return "scan_runs"
}
