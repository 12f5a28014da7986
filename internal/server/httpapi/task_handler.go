package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkurganov/taskflow/internal/server/models"
)

type taskHandler struct {
	tasks TaskManager
}

func newTaskHandler(tasks TaskManager) *taskHandler {
	return &taskHandler{tasks: tasks}
}

type taskRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  *string    `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ReminderTime *time.Time `json:"reminder_time"`
}

type taskListResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func (h *taskHandler) list(c *gin.Context) {
	filters := models.TaskFilters{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Page:     intQuery(c, "page", 1),
		Limit:    intQuery(c, "limit", 20),
	}

	tasks, total, err := h.tasks.List(c.Request.Context(), c.GetString(ctxUserID), filters)
	if err != nil {
		fail(c, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	c.JSON(http.StatusOK, taskListResponse{Tasks: tasks, Total: total, Page: filters.Page, Limit: filters.Limit})
}

func (h *taskHandler) get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *taskHandler) create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), c.GetString(ctxUserID), &models.Task{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		ReminderTime: req.ReminderTime,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *taskHandler) update(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), c.GetString(ctxUserID), &models.Task{
		ID:           c.Param("id"),
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		ReminderTime: req.ReminderTime,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *taskHandler) updateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.UpdateStatus(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *taskHandler) delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
