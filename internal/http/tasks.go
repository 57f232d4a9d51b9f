package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/bookstacks/catalog/internal/tasks"
)

// TaskController exposes task queue introspection and manual triggers.
type TaskController struct {
	client  *tasks.Client
	workers int
}

func NewTaskController(client *tasks.Client, workers int) *TaskController {
	return &TaskController{client: client, workers: workers}
}

// Stats handles GET /api/tasks/stats.
func (tc *TaskController) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workers": tc.workers,
		"queues":  []string{"overdue_scan", "overdue_notice"},
	})
}

// GetTaskStatus handles GET /api/tasks/:id.
func (tc *TaskController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunOverdueScan handles POST /api/tasks/overdue_scan/run and enqueues
// an immediate scan instead of waiting for the next scheduled sweep.
func (tc *TaskController) RunOverdueScan(c *gin.Context) {
	ids, err := tc.client.Add(tasks.OverdueScanTask{AsOf: time.Now().UTC()}).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue overdue scan")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": ids[0],
		"message": "overdue scan enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
