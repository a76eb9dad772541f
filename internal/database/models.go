package database

import (
	"time"
)

// ExposureRun is one archived batch run
type ExposureRun struct {
	RunID          string    `gorm:"primaryKey;column:run_id"`
	Study          string    `gorm:"column:study;not null"`
	ResultField    string    `gorm:"column:result_field;not null"`
	CriticalTemp   float64   `gorm:"column:critical_temperature;not null"`
	StartedAt      time.Time `gorm:"column:started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at"`
	Succeeded      int       `gorm:"column:succeeded"`
	Failed         int       `gorm:"column:failed"`
	MeanExposure   float64   `gorm:"column:mean_exposure"`
	StdDevExposure float64   `gorm:"column:stddev_exposure"`
	MeanTimeAbove  float64   `gorm:"column:mean_time_above"`
	CreatedAt      time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ExposureRun
func (ExposureRun) TableName() string {
	return "exposure_runs"
}

// ExposureResult is the archived result of one node
type ExposureResult struct {
	ID                 int64   `gorm:"primaryKey;autoIncrement;column:id"`
	RunID              string  `gorm:"column:run_id;index;not null"`
	Node               int64   `gorm:"column:node;not null"`
	TimeAboveCritical  float64 `gorm:"column:time_above_critical"`
	IntegratedExposure float64 `gorm:"column:integrated_exposure"`
	MeltContactTime    float64 `gorm:"column:melt_contact_time"`
	CrossingTime       float64 `gorm:"column:crossing_time"`
	CycleEndTime       float64 `gorm:"column:cycle_end_time"`
}

// TableName specifies the table name for ExposureResult
func (ExposureResult) TableName() string {
	return "exposure_results"
}

// ExposureFailure is an archived per-node failure
type ExposureFailure struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	RunID   string `gorm:"column:run_id;index;not null"`
	Node    int64  `gorm:"column:node;not null"`
	Kind    string `gorm:"column:kind;not null"`
	Message string `gorm:"column:message"`
}

// TableName specifies the table name for ExposureFailure
func (ExposureFailure) TableName() string {
	return "exposure_failures"
}
