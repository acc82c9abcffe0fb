package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"annotate/internal/models"
	"annotate/internal/store"
)

// maxErrorBody caps how much of a failed response is copied into errors.
const maxErrorBody = 512

var _ store.Backend = (*StoreImpl)(nil)

// StoreImpl implements store.Backend against the external /api/* server.
type StoreImpl struct {
	baseURL *url.URL
	client  *http.Client
}

// NewStore creates a client for the backend rooted at baseURL.
func NewStore(baseURL string, timeout time.Duration) (*StoreImpl, error) {
	if baseURL == "" {
		return nil, errors.New("backend URL cannot be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https, got %q", baseURL)
	}
	return &StoreImpl{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
			// The dataset upload answers with a redirect that points at the
			// UI, the Location header itself carries the new ID.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Ping checks the backend answers the datasets listing.
func (s *StoreImpl) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/api/datasets", nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// --- Comments ---

func (s *StoreImpl) ListComments(ctx context.Context, datasetID int64) ([]models.Comment, error) {
	p := "/api/comments"
	if datasetID != 0 {
		p += "/" + strconv.FormatInt(datasetID, 10)
	}
	var comments []models.Comment
	if err := s.getJSON(ctx, p, &comments); err != nil {
		return nil, fmt.Errorf("list comments for dataset %d: %w", datasetID, err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

func (s *StoreImpl) UpdateComment(ctx context.Context, comment models.Comment) error {
	p := "/api/comments/" + strconv.FormatInt(comment.ID, 10)
	if err := s.sendJSON(ctx, http.MethodPut, p, comment); err != nil {
		return fmt.Errorf("update comment %d: %w", comment.ID, err)
	}
	return nil
}

func (s *StoreImpl) SplitComment(ctx context.Context, comment models.Comment) error {
	p := "/api/split/" + strconv.FormatInt(comment.ID, 10)
	if err := s.sendJSON(ctx, http.MethodPost, p, comment); err != nil {
		return fmt.Errorf("split comment %d: %w", comment.ID, err)
	}
	return nil
}

func (s *StoreImpl) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := s.getJSON(ctx, "/api/categories", &categories); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// --- Datasets ---

func (s *StoreImpl) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	var datasets []models.Dataset
	if err := s.getJSON(ctx, "/api/datasets", &datasets); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	return datasets, nil
}

// CreateDataset uploads a dataset file and returns the ID the backend
// assigned to it.
func (s *StoreImpl) CreateDataset(ctx context.Context, name, filename string, body io.Reader) (int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return 0, fmt.Errorf("create dataset: write name field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("create dataset: create file part: %w", err)
	}
	if _, err := io.Copy(fw, body); err != nil {
		return 0, fmt.Errorf("create dataset: copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("create dataset: close multipart: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, "/api/dataset", &buf, mw.FormDataContentType())
	if err != nil {
		return 0, fmt.Errorf("create dataset %q: %w", name, err)
	}
	defer resp.Body.Close()

	id, err := datasetIDFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return 0, fmt.Errorf("create dataset %q: %w", name, err)
	}
	log.Debugf("backend created dataset %d (%s)", id, name)
	return id, nil
}

func (s *StoreImpl) DeleteDataset(ctx context.Context, id int64) error {
	resp, err := s.do(ctx, http.MethodDelete, "/api/datasets/"+strconv.FormatInt(id, 10), nil, "")
	if err != nil {
		return fmt.Errorf("delete dataset %d: %w", id, err)
	}
	resp.Body.Close()
	return nil
}

// --- Export ---

func (s *StoreImpl) ExportComments(ctx context.Context, w io.Writer) error {
	resp, err := s.do(ctx, http.MethodGet, "/api/export", nil, "")
	if err != nil {
		return fmt.Errorf("export comments: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("export comments: copy body: %w", err)
	}
	return nil
}

// --- Helper Functions ---

func (s *StoreImpl) getJSON(ctx context.Context, p string, dest any) error {
	resp, err := s.do(ctx, http.MethodGet, p, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", store.ErrBackend, p, err)
	}
	return nil
}

func (s *StoreImpl) sendJSON(ctx context.Context, method, p string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := s.do(ctx, method, p, bytes.NewReader(b), "application/json")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do issues the request and turns non-success statuses into errors. On
// success the caller owns resp.Body.
func (s *StoreImpl) do(ctx context.Context, method, p string, body io.Reader, contentType string) (*http.Response, error) {
	u := *s.baseURL
	u.Path = path.Join(u.Path, p)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debugf("backend %s %s", method, u.Path)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", store.ErrBackend, method, u.Path, err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, statusError(method, u.Path, resp)
}

func statusError(method, p string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = store.ErrNotFound
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		sentinel = store.ErrValidation
	default:
		sentinel = store.ErrBackend
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", sentinel, method, p, resp.StatusCode, detail)
}

// datasetIDFromLocation reads the id query parameter of the redirect sent
// after an upload, e.g. "/?id=12".
func datasetIDFromLocation(location string) (int64, error) {
	if location == "" {
		return 0, fmt.Errorf("%w: upload response has no Location header", store.ErrBackend)
	}
	u, err := url.Parse(location)
	if err != nil {
		return 0, fmt.Errorf("%w: bad Location %q: %v", store.ErrBackend, location, err)
	}
	q := u.Query()
	raw := q.Get("id")
	if raw == "" {
		raw = q.Get("datasetID")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: no dataset id in Location %q", store.ErrBackend, location)
	}
	return id, nil
}
