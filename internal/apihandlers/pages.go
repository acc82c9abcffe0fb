package apihandlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"annotate/internal/ingest"
	"annotate/internal/models"
	"annotate/internal/review"
	"annotate/internal/services"
)

// maxUploadSize caps dataset uploads.
const maxUploadSize = 32 << 20

type reviewPage struct {
	Title        string
	Dataset      models.Dataset
	Filter       review.Filter
	Sort         models.SortKey
	Stats        []models.CategoryStat
	Rows         []review.Row
	Total        int
	SuggestLimit int
}

// renderError shows the error page with the status err maps to.
func (h *APIHandler) renderError(c *gin.Context, err error) {
	status, _ := statusFor(err)
	_ = c.Error(err)
	c.HTML(status, "error.tmpl", gin.H{
		"Title":   http.StatusText(status),
		"Status":  http.StatusText(status),
		"Message": err.Error(),
	})
	c.Abort()
}

// IndexPage lists datasets with the upload form.
func (h *APIHandler) IndexPage(c *gin.Context) {
	datasets, err := h.App.DatasetService.ListDatasets(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Title":    "Datasets",
		"Datasets": datasets,
	})
}

// ReviewPage renders one dataset's comments with the filter from the query.
func (h *APIHandler) ReviewPage(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.renderError(c, fmt.Errorf("%w: %v", models.ErrValidation, err))
		return
	}
	ctx := c.Request.Context()

	datasets, err := h.App.DatasetService.ListDatasets(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	page := reviewPage{SuggestLimit: h.App.Config.Review.SuggestionLimit}
	found := false
	for _, d := range datasets {
		if d.ID == id {
			page.Dataset, found = d, true
			break
		}
	}
	if !found {
		h.renderError(c, fmt.Errorf("%w: dataset %d", models.ErrNotFound, id))
		return
	}
	page.Title = page.Dataset.Name

	if page.Filter, err = parseFilter(c); err != nil {
		h.renderError(c, fmt.Errorf("%w: %v", models.ErrValidation, err))
		return
	}
	if page.Sort, err = h.parseSort(c); err != nil {
		h.renderError(c, err)
		return
	}

	s, err := h.App.ReviewService.Session(ctx, id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	// Each page load shows the backend's current list; unsaved edits stay.
	if err := s.Refresh(ctx); err != nil {
		h.renderError(c, err)
		return
	}
	all, err := s.Rows(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	page.Total = len(all)
	if page.Rows, err = s.Visible(ctx, page.Filter); err != nil {
		h.renderError(c, err)
		return
	}
	if page.Stats, err = s.Stats(ctx, page.Sort); err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "review.tmpl", page)
}

// UploadDataset handles the upload form and redirects to the new dataset.
func (h *APIHandler) UploadDataset(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.renderError(c, fmt.Errorf("%w: file is required", models.ErrValidation))
		return
	}
	if !ingest.IsSupported(fh.Filename) {
		h.renderError(c, fmt.Errorf("%w: %s (expected .json or .csv)", models.ErrUnsupportedFormat, fh.Filename))
		return
	}
	if fh.Size > maxUploadSize {
		h.renderError(c, fmt.Errorf("%w: file larger than %d bytes", models.ErrValidation, maxUploadSize))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		h.renderError(c, err)
		return
	}

	created, err := h.App.DatasetService.CreateDataset(c.Request.Context(), services.CreateDatasetParams{
		Name:     c.PostForm("name"),
		Filename: fh.Filename,
		Raw:      raw,

		FoldPunctuation: c.PostForm("fold_punctuation") == "on",
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/datasets/%d", created.ID))
}

// DeleteDataset handles the delete form.
func (h *APIHandler) DeleteDataset(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.renderError(c, fmt.Errorf("%w: %v", models.ErrValidation, err))
		return
	}
	if err := h.App.DatasetService.DeleteDataset(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Export downloads every comment as CSV.
func (h *APIHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.App.DatasetService.Export(c.Request.Context(), &buf); err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment;filename=comments_export.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
