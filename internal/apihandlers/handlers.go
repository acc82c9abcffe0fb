package apihandlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"annotate/internal/app"
	"annotate/internal/review"
	"annotate/internal/services"
	"annotate/internal/web"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// NewRouter builds the UI server: HTML pages, their JSON endpoints, the
// export download and the health check.
func NewRouter(a *app.App) (*gin.Engine, error) {
	tmpl, err := web.Templates(template.FuncMap{
		"categoryColor": review.CategoryColor,
	})
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	router := gin.New()
	router.Use(RequestID(), RequestLogger(), gin.Recovery())
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", web.Static())

	h := NewAPIHandler(a)

	// Pages
	router.GET("/", h.IndexPage)
	router.POST("/datasets", h.UploadDataset)
	router.POST("/datasets/:id/delete", h.DeleteDataset)
	router.GET("/datasets/:id", h.ReviewPage)

	// JSON endpoints used by the review page
	ui := router.Group("/ui/datasets/:id")
	{
		ui.GET("/comments", h.ListComments)
		ui.GET("/stats", h.Stats)
		ui.GET("/categories", h.Categories)
		ui.GET("/suggest", h.Suggest)
		ui.PUT("/comments/:cid", h.EditComment)
		ui.POST("/comments/:cid/save", h.SaveComment)
		ui.GET("/comments/:cid/split-proposal", h.SplitProposal)
		ui.POST("/comments/:cid/split", h.SplitComment)
		ui.POST("/refresh", h.Refresh)
	}

	router.GET("/export", h.Export)
	router.GET("/health", h.Health)

	return router, nil
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// session resolves the :id parameter to a loaded review session. On
// failure it has already written the error response.
func (h *APIHandler) session(c *gin.Context) (*services.Session, bool) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		BadRequest(c, err.Error())
		return nil, false
	}
	s, err := h.App.ReviewService.Session(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return nil, false
	}
	return s, true
}

// Health reports whether the backend answers.
func (h *APIHandler) Health(c *gin.Context) {
	if err := h.App.Backend.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		JSONError(c, http.StatusServiceUnavailable, "backend_unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
