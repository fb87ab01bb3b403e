package repositories

import (
	"context"

	"github.com/chrisdamba/availmap/internal/models"
)

type ObservationRepository interface {
	BulkCreate(ctx context.Context, observations []models.Observation) error
	GetAll(ctx context.Context) ([]models.Observation, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
