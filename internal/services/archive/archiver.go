// Package archive keeps a copy of every published report's media in S3, so
// evidence survives when the feed post or the Telegram file goes away.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
)

const archiveTimeout = 2 * time.Minute

var ErrValidation = errors.New("invalid archive payload")

type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, int64, string, string, error)
}

type Storage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, meta map[string]string) error
}

type Archiver struct {
	downloader Downloader
	storage    Storage
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string

	wg sync.WaitGroup
}

func New(downloader Downloader, storage Storage, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		downloader: downloader,
		storage:    storage,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Archive copies the report media in the background. Failures are logged.
func (a *Archiver) Archive(ctx context.Context, report model.Report) {
	if a == nil || a.downloader == nil || a.storage == nil {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()

		key, err := a.Store(archiveCtx, report)
		if err != nil {
			a.logger.Warn("archive report media", zap.Int64("report_id", report.ID), zap.Error(err))
			return
		}
		a.logger.Info("report media archived", zap.Int64("report_id", report.ID), zap.String("key", key))
	}()
}

// Wait blocks until background copies finish.
func (a *Archiver) Wait() {
	if a != nil {
		a.wg.Wait()
	}
}

// Store downloads the report media and uploads it, returning the object key.
func (a *Archiver) Store(ctx context.Context, report model.Report) (string, error) {
	if report.ID <= 0 || strings.TrimSpace(report.MediaRef) == "" {
		return "", ErrValidation
	}

	body, size, name, contentType, err := a.downloader.DownloadFile(ctx, report.MediaRef)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer body.Close()

	if size <= 0 {
		size = -1
	}

	if err := a.storage.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := a.objectKey(report, name)
	meta := map[string]string{
		"report-id": strconv.FormatInt(report.ID, 10),
		"owner-id":  strconv.FormatInt(report.OwnerID, 10),
		"category":  report.Category,
	}
	if err := a.storage.Put(ctx, key, body, size, contentType, meta); err != nil {
		return "", err
	}
	return key, nil
}

func (a *Archiver) objectKey(report model.Report, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		if report.MediaKind == enums.MediaKindVideo {
			ext = ".mp4"
		} else {
			ext = ".jpg"
		}
	}

	day := a.now().UTC().Format("2006/01/02")
	return fmt.Sprintf("reports/%s/%d_%s%s", day, report.ID, a.newID(), ext)
}
