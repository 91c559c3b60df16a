package repositories

import (
	"context"
	"errors"

	"github.com/blogem/reqtel/models"
)

type fanoutSink struct {
	primary AuditSink
	mirrors []AuditSink
}

// NewFanoutSink writes each record to primary and then to every mirror.
// Mirrors are attempted even when the primary fails; all failures are joined.
func NewFanoutSink(primary AuditSink, mirrors ...AuditSink) AuditSink {
	if len(mirrors) == 0 {
		return primary
	}
	return &fanoutSink{primary: primary, mirrors: mirrors}
}

func (f *fanoutSink) Create(ctx context.Context, record *models.AuditRecord) error {
	var errs []error
	if err := f.primary.Create(ctx, record); err != nil {
		errs = append(errs, err)
	}
	for _, mirror := range f.mirrors {
		if err := mirror.Create(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
