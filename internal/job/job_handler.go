package job

import (
	"net/http"
	"strconv"

	"github.com/davidrs-dev/jobtrack/common"
	"github.com/davidrs-dev/jobtrack/internal/dto"
	"github.com/davidrs-dev/jobtrack/middleware"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes wires the job endpoints onto the router.
func (h *JobHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Summary)
	r.GET("/jobs", h.List)
	r.POST("/job/new", h.Create)
	r.GET("/job/:id", h.Get)
	r.GET("/job/:id/history", h.History)
	r.POST("/job/cancel/:id", h.Cancel)
}

// Create handles HTTP requests for creating a new job. The body is
// optional; an empty body means "schedule now with no message".
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if c.Request.ContentLength > 0 {
		if !middleware.Bind(c, &req) {
			c.Abort()
			return
		}
	}

	resp, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History handles HTTP requests for a job's audit trail, paginated with
// skip/limit.
func (h *JobHandler) History(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var page dto.PageQuery
	if !middleware.BindQuery(c, &page) {
		return
	}

	entries, err := h.service.GetHistory(c.Request.Context(), id, page.Skip, page.Limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// Cancel handles HTTP requests to cancel a PENDING job. The body is
// optional, like Create.
func (h *JobHandler) Cancel(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.CancelJobDTO
	if c.Request.ContentLength > 0 {
		if !middleware.Bind(c, &req) {
			return
		}
	}

	resp, err := h.service.CancelJob(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to page through jobs, optionally filtered by
// status.
func (h *JobHandler) List(c *gin.Context) {
	var query dto.ListJobsQuery
	if !middleware.BindQuery(c, &query) {
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), query.Status, query.Skip, query.Limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Summary handles HTTP requests for the in-flight counters.
func (h *JobHandler) Summary(c *gin.Context) {
	resp, err := h.service.Summary(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) jobID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid job id"))
		return 0, false
	}
	return uint(id), true
}
