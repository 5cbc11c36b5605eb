package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/mailmerge/internal/domain/entity"
)

// ErrUnreadableSource wraps every failure to load the recipient table.
var ErrUnreadableSource = errors.New("unreadable source")

// RecordRepository defines how the recipient table is loaded and persisted.
type RecordRepository interface {
	Load(ctx context.Context) (*entity.Table, error)
	Save(ctx context.Context, t *entity.Table) error
}
