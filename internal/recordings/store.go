package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// Store resolves recording ids to metadata and byte streams. The upload
// collaborator owns the rows; the pipeline only reads them.
type Store struct {
	db         *gorm.DB
	httpClient *http.Client
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Resolve loads a recording's metadata.
func (s *Store) Resolve(ctx context.Context, recordingID string) (*models.Recording, error) {
	var rec models.Recording
	err := s.db.WithContext(ctx).First(&rec, "id = ?", recordingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to load recording: %w", err)
	}
	return &rec, nil
}

// Open returns the recording's byte stream. The file path may be a local
// path, a file:// URL, or a fetchable http(s) URL.
func (s *Store) Open(ctx context.Context, rec *models.Recording) (io.ReadCloser, error) {
	path := rec.FilePath
	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build download request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download recording: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("recording download returned HTTP %d", resp.StatusCode)
		}
		return resp.Body, nil

	case strings.HasPrefix(path, "file://"):
		return os.Open(strings.TrimPrefix(path, "file://"))

	default:
		return os.Open(path)
	}
}
