package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-sequencer/internal/models"
)

const copyBatchSize = 200

// CopyResult is the number of rows read from one source table.
type CopyResult struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// CopyAll copies every table from src into dst, parents first. Rows whose
// primary key already exists in dst are left alone, so a copy can be rerun.
func CopyAll(ctx context.Context, src, dst *gorm.DB, log *logrus.Entry) ([]CopyResult, error) {
	steps := []func() (CopyResult, error){
		func() (CopyResult, error) { return copyTable[models.MetaAccount](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.Contact](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.Template](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.Sequence](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.SequenceStep](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.SequenceSubscription](ctx, src, dst, log) },
		func() (CopyResult, error) { return copyTable[models.SentMessage](ctx, src, dst, log) },
	}

	results := make([]CopyResult, 0, len(steps))
	for _, step := range steps {
		res, err := step()
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

type tabler interface {
	TableName() string
}

func copyTable[T tabler](ctx context.Context, src, dst *gorm.DB, log *logrus.Entry) (CopyResult, error) {
	var zero T
	res := CopyResult{Table: zero.TableName()}
	log = log.WithField("table", res.Table)
	log.Info("Migrating table")

	var rows []T
	if err := src.WithContext(ctx).Find(&rows).Error; err != nil {
		return res, fmt.Errorf("read %s: %w", res.Table, err)
	}
	res.Rows = len(rows)
	if len(rows) == 0 {
		return res, nil
	}

	err := dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&rows, copyBatchSize).Error
	})
	if err != nil {
		return res, fmt.Errorf("write %s: %w", res.Table, err)
	}

	log.WithField("rows", res.Rows).Info("Successfully migrated table")
	return res, nil
}
