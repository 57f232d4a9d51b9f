package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/bookstacks/catalog/internal/catalog"
)

// NoticeEnqueuer enqueues follow-up tasks from inside a processor.
type NoticeEnqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// OverdueScanTask walks all active loans and fans out one notice task
// per loan that is past its due date.
type OverdueScanTask struct {
	AsOf time.Time `json:"as_of"`
}

// Config returns the queue configuration for overdue scans.
func (t OverdueScanTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_scan",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueScanProcessor creates a processor function for OverdueScanTask.
func OverdueScanProcessor(service *catalog.Service, enqueuer NoticeEnqueuer) backlite.QueueProcessor[OverdueScanTask] {
	return func(ctx context.Context, task OverdueScanTask) error {
		if service == nil {
			return fmt.Errorf("catalog service not configured")
		}

		asOf := task.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		loans, err := service.OverdueLoans(ctx, asOf)
		if err != nil {
			return fmt.Errorf("scan overdue loans: %w", err)
		}
		if len(loans) == 0 {
			log.Printf("[TASK] Overdue scan found no overdue loans")
			return nil
		}

		notices := make([]backlite.Task, 0, len(loans))
		for _, loan := range loans {
			notices = append(notices, OverdueNoticeTask{
				BookID:      loan.BookID,
				Title:       loan.Title,
				UserID:      loan.UserID,
				UserName:    loan.UserName,
				UserEmail:   loan.UserEmail,
				DueDate:     loan.DueDate,
				DaysLate:    loan.DaysLate,
				AccruedFine: loan.AccruedFine,
			})
		}

		if _, err := enqueuer.Add(notices...).Save(); err != nil {
			return fmt.Errorf("enqueue overdue notices: %w", err)
		}

		log.Printf("[TASK] Overdue scan enqueued %d notices", len(notices))
		return nil
	}
}

// NewOverdueScanQueue creates a backlite queue for overdue scans.
func NewOverdueScanQueue(service *catalog.Service, enqueuer NoticeEnqueuer) backlite.Queue {
	return backlite.NewQueue(OverdueScanProcessor(service, enqueuer))
}
