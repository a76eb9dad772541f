// Package database archives batch reports in PostgreSQL through GORM.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/thermexposure/internal/batch"
	"github.com/chrissnell/thermexposure/internal/log"
	"go.uber.org/zap"
)

// Client holds the connection to the archive database
type Client struct {
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to archive database...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create an archive database connection:", err)
		return nil, err
	}

	return db, nil
}

// NewClient connects to the archive and creates the tables if needed
func NewClient(connectionString string, logger *zap.SugaredLogger) (*Client, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ExposureRun{}, &ExposureResult{}, &ExposureFailure{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	logger.Info("archive database connection successful")
	return &Client{DB: db, logger: logger}, nil
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StoreReport writes a run, its results and its failures in one transaction
func (c *Client) StoreReport(ctx context.Context, study, field string, report *batch.Report) error {
	run, results, failures := RecordsFromReport(study, field, report)

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("error inserting run: %w", err)
		}
		if len(results) > 0 {
			if err := tx.CreateInBatches(results, 500).Error; err != nil {
				return fmt.Errorf("error inserting results: %w", err)
			}
		}
		if len(failures) > 0 {
			if err := tx.CreateInBatches(failures, 500).Error; err != nil {
				return fmt.Errorf("error inserting failures: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Infof("archived run %s (%d results, %d failures)", run.RunID, len(results), len(failures))
	return nil
}

// RecordsFromReport converts a report into archive rows
func RecordsFromReport(study, field string, report *batch.Report) (ExposureRun, []ExposureResult, []ExposureFailure) {
	run := ExposureRun{
		RunID:          report.RunID,
		Study:          study,
		ResultField:    field,
		CriticalTemp:   report.CriticalTemp,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Succeeded:      len(report.Results),
		Failed:         len(report.Failures),
		MeanExposure:   report.Stats.MeanExposure,
		StdDevExposure: report.Stats.StdDevExposure,
		MeanTimeAbove:  report.Stats.MeanTimeAbove,
	}

	results := make([]ExposureResult, len(report.Results))
	for i, r := range report.Results {
		results[i] = ExposureResult{
			RunID:              report.RunID,
			Node:               int64(r.Node),
			TimeAboveCritical:  r.TimeAboveCritical,
			IntegratedExposure: r.IntegratedExposure,
			MeltContactTime:    r.MeltContactTime,
			CrossingTime:       r.CrossingTime,
			CycleEndTime:       r.CycleEndTime,
		}
	}

	failures := make([]ExposureFailure, len(report.Failures))
	for i, f := range report.Failures {
		failures[i] = ExposureFailure{
			RunID:   report.RunID,
			Node:    int64(f.Node),
			Kind:    string(f.Kind),
			Message: f.Message,
		}
	}

	return run, results, failures
}
