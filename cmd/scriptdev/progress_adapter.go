package main

import (
	"context"

	"github.com/udisondev/scriptdev/internal/db"
	"github.com/udisondev/scriptdev/internal/progress"
)

// progressStoreAdapter adapts db.EncounterRepository to progress.Store.
type progressStoreAdapter struct {
	repo *db.EncounterRepository
}

func (a *progressStoreAdapter) LoadProgress(ctx context.Context) ([]progress.Row, error) {
	rows, err := a.repo.LoadAllProgress(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]progress.Row, len(rows))
	for i, r := range rows {
		result[i] = progress.Row{
			InstanceID: uint32(r.InstanceID),
			Key:        r.Key,
			Value:      r.Value,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return result, nil
}

func (a *progressStoreAdapter) SaveProgress(ctx context.Context, row progress.Row) error {
	return a.repo.SaveProgress(ctx, db.ProgressRow{
		InstanceID: int64(row.InstanceID),
		Key:        row.Key,
		Value:      row.Value,
		UpdatedAt:  row.UpdatedAt,
	})
}
