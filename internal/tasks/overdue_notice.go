package tasks

import (
	"context"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// OverdueNoticeTask records a single overdue loan notice. The notice is
// written to the log; a mail or SMS sender would hang off this task.
type OverdueNoticeTask struct {
	BookID      string    `json:"book_id"`
	Title       string    `json:"title"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	DueDate     time.Time `json:"due_date"`
	DaysLate    int       `json:"days_late"`
	AccruedFine float64   `json:"accrued_fine"`
}

// Config returns the queue configuration for overdue notices.
func (t OverdueNoticeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_notice",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueNoticeProcessor creates a processor function for OverdueNoticeTask.
func OverdueNoticeProcessor() backlite.QueueProcessor[OverdueNoticeTask] {
	return func(ctx context.Context, task OverdueNoticeTask) error {
		log.Printf("[TASK] Overdue notice: %q held by %s <%s> is %d day(s) late (due %s, fine %.2f)",
			task.Title, task.UserName, task.UserEmail, task.DaysLate,
			task.DueDate.Format("2006-01-02"), task.AccruedFine)
		return nil
	}
}

// NewOverdueNoticeQueue creates a backlite queue for overdue notices.
func NewOverdueNoticeQueue() backlite.Queue {
	return backlite.NewQueue(OverdueNoticeProcessor())
}
