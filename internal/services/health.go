package services

import (
	"context"

	"gorm.io/gorm"

	"pixelforge/internal/database"
)

// HealthResult is the body of the health endpoint.
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// HealthService implements the health service
type HealthService struct {
	db      *gorm.DB
	service string
	version string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, service, version string) *HealthService {
	return &HealthService{db: db, service: service, version: version}
}

// Check reports service health. The error is non-nil when the database
// cannot be reached; the result is populated either way.
func (s *HealthService) Check(ctx context.Context) (*HealthResult, error) {
	res := &HealthResult{
		Status:   "healthy",
		Service:  s.service,
		Version:  s.version,
		Database: "up",
	}
	if err := database.HealthCheck(ctx, s.db); err != nil {
		res.Status = "unhealthy"
		res.Database = "down"
		return res, err
	}
	return res, nil
}
