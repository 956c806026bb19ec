package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/dto"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/middleware"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/services"
	"github.com/yukikurage/busybee/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
	log         *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

// ListTasks returns the tasks the current user may view. page and limit
// optionally slice the result.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		apierrors.Unauthorized(c)
		return
	}

	tasks := h.taskService.List(account)
	if params, ok := utils.GetPaginationParams(c); ok {
		tasks = utils.Paginate(tasks, params)
	}
	c.JSON(http.StatusOK, dto.ToTaskOuts(tasks))
}

// CreateTask creates a new task owned by the current user
func (h *TaskHandler) CreateTask(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		apierrors.Unauthorized(c)
		return
	}

	var req dto.CreateRequest
	var in *services.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			apierrors.RespondBind(c, h.log, err)
			return
		}
	} else {
		in = req.Input()
	}

	task, err := h.taskService.Create(c.Request.Context(), account, in)
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.CreateResponse{TaskID: task.ID})
}

// MarkDone closes a task. success is false when it was already done.
func (h *TaskHandler) MarkDone(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		apierrors.Unauthorized(c)
		return
	}

	var req dto.MarkDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondBind(c, h.log, err)
		return
	}
	if req.TaskID == nil {
		apierrors.Respond(c, h.log, safety.Invalid("taskid", "required"))
		return
	}

	success, err := h.taskService.MarkDone(c.Request.Context(), account, *req.TaskID)
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkDoneResponse{Success: success})
}
