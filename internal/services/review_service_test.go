package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"annotate/internal/models"
	"annotate/internal/review"
	"annotate/internal/services"
	"annotate/internal/store/remote"
	"annotate/internal/store/storetest"
)

func newRemote(t *testing.T, b *storetest.Backend) *remote.StoreImpl {
	t.Helper()
	st, err := remote.NewStore(b.URL, 5*time.Second)
	require.NoError(t, err)
	return st
}

func texts(rows []review.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Comment.Comment
	}
	return out
}

func rowByText(t *testing.T, rows []review.Row, text string) review.Row {
	t.Helper()
	for _, r := range rows {
		if r.Comment.Comment == text {
			return r
		}
	}
	t.Fatalf("no row %q in %v", text, texts(rows))
	return review.Row{}
}

func TestSession_EditThenSave(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "slow delivery", "great price")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"great price", "slow delivery"}, texts(rows))
	slow := rowByText(t, rows, "slow delivery")

	row, err := s.Edit(ctx, slow.ID, "slow delivery", "Shipping")
	require.NoError(t, err)
	assert.True(t, row.Edited)
	assert.Equal(t, slow.ID, s.FocusedID())
	assert.True(t, s.Pending(slow.ID))
	assert.Empty(t, b.Updates())

	// The focused row stays visible although it no longer matches.
	visible, err := s.Visible(ctx, review.Filter{Category: "pric"})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow delivery"}, texts(visible))

	saved, err := s.Save(ctx, slow.ID)
	require.NoError(t, err)
	assert.False(t, saved.Edited)
	assert.Equal(t, "Shipping", saved.Category)
	assert.Zero(t, s.FocusedID())
	assert.False(t, s.Pending(slow.ID))
	assert.Equal(t, []models.Comment{{ID: slow.ID, Comment: "slow delivery", Category: "Shipping"}}, b.Updates())

	require.NoError(t, s.Refresh(ctx))
	stats, err := s.Stats(ctx, models.SortByCount)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryStat{{Category: "", Count: 1}, {Category: "Shipping", Count: 1}}, stats)
}

func TestSession_AutosaveCoalescesEdits(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: 30 * time.Millisecond})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	cid := rows[0].ID

	for _, category := range []string{"S", "Sh", "Ship"} {
		_, err := s.Edit(ctx, cid, "late", category)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		row, err := s.Row(ctx, cid)
		return err == nil && !row.Edited
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.Pending(cid))
	assert.Zero(t, s.FocusedID())
	require.Len(t, b.Updates(), 1)
	assert.Equal(t, "Ship", b.Updates()[0].Category)
}

func TestSession_FailedSaveKeepsEdit(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late")
	b.FailUpdates(1)
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	cid := rows[0].ID

	_, err = s.Edit(ctx, cid, "late", "Shipping")
	require.NoError(t, err)
	_, err = s.Save(ctx, cid)
	assert.ErrorIs(t, err, models.ErrBackend)

	row, err := s.Row(ctx, cid)
	require.NoError(t, err)
	assert.True(t, row.Edited)
	assert.Equal(t, "Shipping", row.Category)
}

func TestSession_FailedAutosaveIsRetriedOnSave(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late")
	b.FailUpdates(1)
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: 20 * time.Millisecond})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	cid := rows[0].ID

	_, err = s.Edit(ctx, cid, "late", "Shipping")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.SaveErr(cid) != nil }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.SaveErr(cid), models.ErrBackend)
	assert.True(t, s.Pending(cid))
	assert.Empty(t, b.Updates())

	// The failed value survives a reload from the backend.
	require.NoError(t, s.Refresh(ctx))
	row, err := s.Row(ctx, cid)
	require.NoError(t, err)
	assert.True(t, row.Edited)
	assert.Equal(t, "Shipping", row.Category)

	saved, err := s.Save(ctx, cid)
	require.NoError(t, err)
	assert.False(t, saved.Edited)
	assert.Equal(t, "Shipping", saved.Category)
	assert.False(t, s.Pending(cid))
	assert.NoError(t, s.SaveErr(cid))
	assert.Equal(t, []models.Comment{{ID: cid, Comment: "late", Category: "Shipping"}}, b.Updates())

	require.NoError(t, s.Refresh(ctx))
	row, err = s.Row(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "Shipping", row.Category)
}

func TestSession_EditUnknownComment(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	_, err = s.Edit(ctx, 999, "x", "y")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.Save(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSession_RefreshKeepsUnsavedEdit(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	cid := rows[0].ID

	_, err = s.Edit(ctx, cid, "very late", "Shipping")
	require.NoError(t, err)
	require.NoError(t, s.Refresh(ctx))

	row, err := s.Row(ctx, cid)
	require.NoError(t, err)
	assert.True(t, row.Edited)
	assert.Equal(t, "very late", row.Comment.Comment)
}

func TestSession_SplitReloads(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "Slow delivery. Great price.")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	cid := rows[0].ID

	proposal, err := s.ProposeSplit(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "Slow delivery.\nGreat price.", proposal)

	require.NoError(t, s.Split(ctx, cid, proposal))
	rows, err = s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Great price.", "Slow delivery."}, texts(rows))
}

func TestSession_SplitFlushesPendingEdit(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "one\ntwo")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	cid := rows[0].ID

	_, err = s.Edit(ctx, cid, "one\ntwo", "Numbers")
	require.NoError(t, err)
	require.NoError(t, s.Split(ctx, cid, ""))

	assert.Len(t, b.Updates(), 1)
	rows, err = s.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Numbers", r.Category)
	}
	assert.Zero(t, s.FocusedID())
}

func TestSession_SplitRejectsBlankText(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "keep me")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{})

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)

	err = s.Split(ctx, rows[0].ID, " \n  ")
	assert.ErrorIs(t, err, models.ErrValidation)

	rows, err = s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep me"}, texts(rows))
}

func TestSession_SuggestUsesGlobalCategories(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "survey", "late", "cheap")
	b.SetCategory(t, id, "late", "Shipping")
	other := b.SeedDataset(t, "other", "charged twice")
	b.SetCategory(t, other, "charged twice", "Billing")

	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{GlobalCategories: true})
	s, err := rs.Session(ctx, id)
	require.NoError(t, err)

	got, err := s.Suggest(ctx, "i", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Billing", "Shipping"}, got)

	categories, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Shipping"}, categories)
}

func TestSession_SuggestWithoutCategoriesEndpoint(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t, storetest.WithoutCategories())
	id := b.SeedDataset(t, "survey", "late")
	b.SetCategory(t, id, "late", "Shipping")

	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{GlobalCategories: true, SuggestionLimit: 5})
	s, err := rs.Session(ctx, id)
	require.NoError(t, err)

	got, err := s.Suggest(ctx, "ship", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shipping"}, got)
}

func TestReviewService_CloseFlushesSessions(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	a := b.SeedDataset(t, "a", "one")
	c := b.SeedDataset(t, "c", "two")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{SaveDelay: time.Hour})

	for _, id := range []int64{a, c} {
		s, err := rs.Session(ctx, id)
		require.NoError(t, err)
		rows, _ := s.Rows(ctx)
		_, err = s.Edit(ctx, rows[0].ID, rows[0].Comment.Comment, "Done")
		require.NoError(t, err)
	}

	require.NoError(t, rs.Close(ctx))
	assert.Len(t, b.Updates(), 2)
}

func TestReviewService_SessionIsShared(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	id := b.SeedDataset(t, "a", "one")
	rs := services.NewReviewService(newRemote(t, b), services.ReviewOptions{})

	s1, err := rs.Session(ctx, id)
	require.NoError(t, err)
	s2, err := rs.Session(ctx, id)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, models.SortByCategory, rs.DefaultSort())
}

// mockCommentStore is a testify mock of store.CommentStore.
type mockCommentStore struct {
	mock.Mock
}

func (m *mockCommentStore) ListComments(ctx context.Context, datasetID int64) ([]models.Comment, error) {
	args := m.Called(ctx, datasetID)
	comments, _ := args.Get(0).([]models.Comment)
	return comments, args.Error(1)
}

func (m *mockCommentStore) UpdateComment(ctx context.Context, c models.Comment) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCommentStore) SplitComment(ctx context.Context, c models.Comment) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCommentStore) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]string)
	return categories, args.Error(1)
}

func TestSession_LoadFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	cs := new(mockCommentStore)
	cs.On("ListComments", mock.Anything, int64(7)).Return(nil, models.ErrBackend).Once()
	cs.On("ListComments", mock.Anything, int64(7)).Return([]models.Comment{{ID: 1, Comment: "hi"}}, nil).Once()

	rs := services.NewReviewService(cs, services.ReviewOptions{})
	_, err := rs.Session(ctx, 7)
	assert.ErrorIs(t, err, models.ErrBackend)

	s, err := rs.Session(ctx, 7)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, texts(rows))
	cs.AssertExpectations(t)
	cs.AssertNotCalled(t, "ListCategories", mock.Anything)
}

func TestSession_SplitErrorKeepsCache(t *testing.T) {
	ctx := context.Background()
	cs := new(mockCommentStore)
	boom := errors.New("boom")
	comment := models.Comment{ID: 1, Comment: "a\nb", Category: "x"}
	cs.On("ListComments", mock.Anything, int64(1)).Return([]models.Comment{comment}, nil).Once()
	cs.On("SplitComment", mock.Anything, comment).Return(boom).Once()

	rs := services.NewReviewService(cs, services.ReviewOptions{})
	s, err := rs.Session(ctx, 1)
	require.NoError(t, err)

	err = s.Split(ctx, 1, "")
	assert.ErrorIs(t, err, boom)

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb"}, texts(rows))
	cs.AssertExpectations(t)
}
