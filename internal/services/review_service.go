package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"annotate/internal/autosave"
	"annotate/internal/models"
	"annotate/internal/review"
	"annotate/internal/segment"
	"annotate/internal/store"
)

// ReviewOptions tunes every session created by a ReviewService.
type ReviewOptions struct {
	SaveDelay        time.Duration
	WriteTimeout     time.Duration
	SuggestionLimit  int
	GlobalCategories bool
	DefaultSort      models.SortKey
}

// ReviewService keeps one Session per dataset.
type ReviewService struct {
	store store.CommentStore
	opts  ReviewOptions

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewReviewService(cs store.CommentStore, opts ReviewOptions) *ReviewService {
	if opts.DefaultSort == "" {
		opts.DefaultSort = models.SortByCategory
	}
	return &ReviewService{
		store:    cs,
		opts:     opts,
		sessions: make(map[int64]*Session),
	}
}

// DefaultSort is the stats order used when a caller does not pick one.
func (rs *ReviewService) DefaultSort() models.SortKey {
	return rs.opts.DefaultSort
}

// Session returns the loaded session for a dataset, creating it on first use.
func (rs *ReviewService) Session(ctx context.Context, datasetID int64) (*Session, error) {
	rs.mu.Lock()
	s, ok := rs.sessions[datasetID]
	if !ok {
		s = newSession(datasetID, rs.store, rs.opts)
		rs.sessions[datasetID] = s
	}
	rs.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Drop flushes and forgets the session of a dataset, if any.
func (rs *ReviewService) Drop(ctx context.Context, datasetID int64) error {
	rs.mu.Lock()
	s, ok := rs.sessions[datasetID]
	delete(rs.sessions, datasetID)
	rs.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// FlushAll writes every pending edit of every open session.
func (rs *ReviewService) FlushAll(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range rs.open() {
		g.Go(func() error { return s.saver.FlushAll(ctx) })
	}
	return g.Wait()
}

func (rs *ReviewService) open() []*Session {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	sessions := make([]*Session, 0, len(rs.sessions))
	for _, s := range rs.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Close flushes every session's pending saves.
func (rs *ReviewService) Close(ctx context.Context) error {
	rs.mu.Lock()
	sessions := make([]*Session, 0, len(rs.sessions))
	for _, s := range rs.sessions {
		sessions = append(sessions, s)
	}
	rs.sessions = make(map[int64]*Session)
	rs.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error { return s.Close(ctx) })
	}
	return g.Wait()
}

// Session is the view-model of one dataset: the cached rows, the focused
// row and the debounced writer for edits.
type Session struct {
	datasetID int64
	store     store.CommentStore
	saver     *autosave.Saver
	opts      ReviewOptions

	mu        sync.RWMutex
	rows      []review.Row
	index     map[int64]int
	loaded    bool
	focusedID int64
	global    []string
}

func newSession(datasetID int64, cs store.CommentStore, opts ReviewOptions) *Session {
	s := &Session{
		datasetID: datasetID,
		store:     cs,
		opts:      opts,
	}
	s.saver = autosave.NewSaver(cs.UpdateComment,
		autosave.WithDelay(opts.SaveDelay),
		autosave.WithTimeout(opts.WriteTimeout),
		autosave.WithOnSaved(s.saved),
	)
	return s
}

func (s *Session) DatasetID() int64 { return s.datasetID }

// Load fetches the comment list unless it is already cached.
func (s *Session) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// Invalidate drops the cached list; the next read refetches it.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.rows = nil
	s.index = nil
	s.mu.Unlock()
}

// Refresh refetches the comment list. Rows with an unsaved local edit keep
// the local value, failed writes included.
func (s *Session) Refresh(ctx context.Context) error {
	comments, err := s.store.ListComments(ctx, s.datasetID)
	if err != nil {
		return fmt.Errorf("load dataset %d: %w", s.datasetID, err)
	}

	var global []string
	if s.opts.GlobalCategories {
		global, err = s.store.ListCategories(ctx)
		if err != nil {
			log.WithError(err).Debug("backend categories unavailable, suggesting dataset categories only")
			global = nil
		}
	}

	rows := review.RowsFromComments(comments)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range rows {
		if old, ok := s.lookup(r.ID); ok && old.Edited && s.saver.Pending(r.ID) {
			rows[i] = old
		}
	}
	s.rows = rows
	s.index = make(map[int64]int, len(rows))
	for i, r := range rows {
		s.index[r.ID] = i
	}
	s.global = global
	s.loaded = true
	log.WithFields(log.Fields{"dataset_id": s.datasetID, "comments": len(rows)}).Debug("dataset loaded")
	return nil
}

// lookup must be called with s.mu held.
func (s *Session) lookup(id int64) (review.Row, bool) {
	i, ok := s.index[id]
	if !ok {
		return review.Row{}, false
	}
	return s.rows[i], true
}

// Rows returns a copy of every cached row.
func (s *Session) Rows(ctx context.Context) ([]review.Row, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]review.Row, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// Row returns one cached row.
func (s *Session) Row(ctx context.Context, id int64) (review.Row, error) {
	if err := s.Load(ctx); err != nil {
		return review.Row{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.lookup(id)
	if !ok {
		return review.Row{}, fmt.Errorf("%w: comment %d in dataset %d", models.ErrNotFound, id, s.datasetID)
	}
	return r, nil
}

// FocusedID is the row last edited and not yet saved, or 0.
func (s *Session) FocusedID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focusedID
}

// Visible applies f to the cached rows. Without an explicit focus the
// session's focused row stays visible.
func (s *Session) Visible(ctx context.Context, f review.Filter) ([]review.Row, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if f.FocusedID == 0 {
		f.FocusedID = s.FocusedID()
	}
	return f.Apply(rows), nil
}

// Stats counts the cached rows per category.
func (s *Session) Stats(ctx context.Context, key models.SortKey) ([]models.CategoryStat, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = s.opts.DefaultSort
	}
	return review.CategoryStats(rows, key), nil
}

// Categories lists the categories present in the dataset.
func (s *Session) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return review.UniqueCategories(rows), nil
}

// Suggest matches input against the dataset's categories and, when enabled,
// the backend's global list. limit <= 0 uses the configured limit.
func (s *Session) Suggest(ctx context.Context, input string, limit int) ([]string, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	known := review.MergeCategories(review.UniqueCategories(rows), s.global)
	s.mu.RUnlock()
	if limit <= 0 {
		limit = s.opts.SuggestionLimit
	}
	return review.Suggest(known, input, limit), nil
}

// Edit changes a cached row, focuses it and schedules a debounced save.
func (s *Session) Edit(ctx context.Context, id int64, comment, category string) (review.Row, error) {
	if err := s.Load(ctx); err != nil {
		return review.Row{}, err
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return review.Row{}, fmt.Errorf("%w: comment %d in dataset %d", models.ErrNotFound, id, s.datasetID)
	}
	r := &s.rows[i]
	r.Comment.Comment = comment
	r.Category = category
	r.Edited = true
	s.focusedID = id
	row := *r
	s.mu.Unlock()

	if err := s.saver.Schedule(row.Comment); err != nil {
		return row, fmt.Errorf("schedule save of comment %d: %w", id, err)
	}
	return row, nil
}

// Save writes a pending edit now, retrying one whose autosave failed, and
// clears the focus. On error the row stays edited and focused.
func (s *Session) Save(ctx context.Context, id int64) (review.Row, error) {
	if _, err := s.Row(ctx, id); err != nil {
		return review.Row{}, err
	}
	if err := s.saver.Flush(ctx, id); err != nil {
		return review.Row{}, fmt.Errorf("save comment %d: %w", id, err)
	}
	s.mu.Lock()
	if s.focusedID == id {
		s.focusedID = 0
	}
	s.mu.Unlock()
	return s.Row(ctx, id)
}

// Pending reports whether an edit of id has not been written yet, including
// one whose last write failed.
func (s *Session) Pending(id int64) bool {
	return s.saver.Pending(id)
}

// SaveErr is the error of the last failed write of id, while the edit is
// still unsaved.
func (s *Session) SaveErr(id int64) error {
	return s.saver.Err(id)
}

// Split sends the row to the backend to be split on newlines and reloads
// the list. text replaces the row's text when non-empty.
func (s *Session) Split(ctx context.Context, id int64, text string) error {
	row, err := s.Row(ctx, id)
	if err != nil {
		return err
	}
	if err := s.saver.Flush(ctx, id); err != nil {
		return fmt.Errorf("save comment %d before split: %w", id, err)
	}

	c := row.Comment
	if text != "" {
		c.Comment = text
	}
	if len(segment.Lines(c.Comment)) == 0 {
		return fmt.Errorf("%w: split of comment %d would leave no rows", models.ErrValidation, id)
	}
	if err := s.store.SplitComment(ctx, c); err != nil {
		return err
	}

	s.mu.Lock()
	if s.focusedID == id {
		s.focusedID = 0
	}
	s.mu.Unlock()
	s.Invalidate()
	return s.Refresh(ctx)
}

// ProposeSplit suggests split text for a row, one sentence per line.
func (s *Session) ProposeSplit(ctx context.Context, id int64) (string, error) {
	row, err := s.Row(ctx, id)
	if err != nil {
		return "", err
	}
	return segment.ProposeSplit(row.Comment.Comment), nil
}

// Close flushes pending saves and stops accepting edits.
func (s *Session) Close(ctx context.Context) error {
	return s.saver.Close(ctx)
}

// saved runs after every autosave write.
func (s *Session) saved(c models.Comment, err error) {
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[c.ID]
	if !ok {
		return
	}
	r := &s.rows[i]
	// A newer edit may have been scheduled while this one was in flight.
	if r.Comment == c && !s.saver.Pending(c.ID) {
		r.Edited = false
		if s.focusedID == c.ID {
			s.focusedID = 0
		}
	}
}
