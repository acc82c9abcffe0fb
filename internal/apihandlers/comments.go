package apihandlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"annotate/internal/models"
	"annotate/internal/review"
	"annotate/internal/segment"
	"annotate/internal/services"
)

// commentRow is a row as the review script sees it.
type commentRow struct {
	review.Row
	Color     string `json:"color"`
	Pending   bool   `json:"pending"`
	SaveError string `json:"save_error,omitempty"`
}

type statRow struct {
	models.CategoryStat
	Color string `json:"color"`
}

type editCommentRequest struct {
	Comment  *string `json:"comment"`
	Category *string `json:"category"`
}

type splitCommentRequest struct {
	Comment string `json:"comment"`
}

func toCommentRow(s *services.Session, r review.Row) commentRow {
	row := commentRow{Row: r, Color: review.CategoryColor(r.Category), Pending: s.Pending(r.ID)}
	if err := s.SaveErr(r.ID); err != nil {
		row.SaveError = err.Error()
	}
	return row
}

// parseFilter reads text, category and focus query parameters.
func parseFilter(c *gin.Context) (review.Filter, error) {
	f := review.Filter{
		Text:     c.Query("text"),
		Category: c.Query("category"),
	}
	if raw := c.Query("focus"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, errors.New("invalid focus " + strconv.Quote(raw))
		}
		f.FocusedID = id
	}
	return f, nil
}

// parseSort reads the sort query parameter, falling back to the configured order.
func (h *APIHandler) parseSort(c *gin.Context) (models.SortKey, error) {
	raw := c.Query("sort")
	if raw == "" {
		return h.App.ReviewService.DefaultSort(), nil
	}
	return models.ParseSortKey(raw)
}

// ListComments handles GET /ui/datasets/:id/comments.
func (h *APIHandler) ListComments(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	f, err := parseFilter(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	all, err := s.Rows(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	visible, err := s.Visible(ctx, f)
	if err != nil {
		RespondError(c, err)
		return
	}

	out := make([]commentRow, len(visible))
	for i, r := range visible {
		out[i] = toCommentRow(s, r)
	}
	c.JSON(http.StatusOK, gin.H{
		"comments":   out,
		"total":      len(all),
		"focused_id": s.FocusedID(),
	})
}

// Stats handles GET /ui/datasets/:id/stats.
func (h *APIHandler) Stats(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	key, err := h.parseSort(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	stats, err := s.Stats(c.Request.Context(), key)
	if err != nil {
		RespondError(c, err)
		return
	}
	out := make([]statRow, len(stats))
	for i, st := range stats {
		out[i] = statRow{CategoryStat: st, Color: review.CategoryColor(st.Category)}
	}
	c.JSON(http.StatusOK, gin.H{"sort": key, "stats": out})
}

// Categories handles GET /ui/datasets/:id/categories.
func (h *APIHandler) Categories(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	categories, err := s.Categories(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Suggest handles GET /ui/datasets/:id/suggest?q=&limit=.
func (h *APIHandler) Suggest(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			BadRequest(c, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	suggestions, err := s.Suggest(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// EditComment handles PUT /ui/datasets/:id/comments/:cid. Omitted fields
// keep their current value; the write to the backend is debounced.
func (h *APIHandler) EditComment(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	cid, err := parseIDParam(c, "cid")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	var req editCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	current, err := s.Row(ctx, cid)
	if err != nil {
		RespondError(c, err)
		return
	}
	text, category := current.Comment.Comment, current.Category
	if req.Comment != nil {
		text = *req.Comment
	}
	if req.Category != nil {
		category = *req.Category
	}

	row, err := s.Edit(ctx, cid, text, category)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toCommentRow(s, row))
}

// SaveComment handles POST /ui/datasets/:id/comments/:cid/save.
func (h *APIHandler) SaveComment(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	cid, err := parseIDParam(c, "cid")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	row, err := s.Save(c.Request.Context(), cid)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCommentRow(s, row))
}

// SplitProposal handles GET /ui/datasets/:id/comments/:cid/split-proposal.
func (h *APIHandler) SplitProposal(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	cid, err := parseIDParam(c, "cid")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	proposal, err := s.ProposeSplit(c.Request.Context(), cid)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal, "lines": segment.Lines(proposal)})
}

// SplitComment handles POST /ui/datasets/:id/comments/:cid/split. The body
// is optional; without it the cached text is split.
func (h *APIHandler) SplitComment(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	cid, err := parseIDParam(c, "cid")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	var req splitCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := s.Split(ctx, cid, req.Comment); err != nil {
		RespondError(c, err)
		return
	}
	rows, err := s.Rows(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(rows)})
}

// Refresh handles POST /ui/datasets/:id/refresh.
func (h *APIHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.Refresh(ctx); err != nil {
		RespondError(c, err)
		return
	}
	rows, err := s.Rows(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(rows)})
}
