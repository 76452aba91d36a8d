package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

// Fetcher downloads source archives from the preprint server.
type Fetcher struct {
	client      *resty.Client
	fs          afero.Fs
	baseURL     string
	downloadDir string
	reuse       bool
}

func NewFetcher(fs afero.Fs, cfg *config.SourceConfig) *Fetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/gzip, application/x-tar, */*").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(retryCondition)
	return &Fetcher{
		client:      client,
		fs:          fs,
		baseURL:     cfg.BaseURL,
		downloadDir: cfg.DownloadDir,
		reuse:       cfg.ReuseDownloads,
	}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	return r.StatusCode() >= 500 || r.StatusCode() == 429
}

// ArchivePath is where the archive of documentID is stored.
func (f *Fetcher) ArchivePath(documentID string) string {
	return filepath.Join(f.downloadDir, "arxiv-"+SafeID(documentID)+".tar.gz")
}

// Fetch downloads the source archive of documentID and returns its path.
// Any transport error or non-2xx status fails with FetchFailure. The archive
// is renamed into place, so a job extracting it never sees another job's
// download half written.
func (f *Fetcher) Fetch(ctx context.Context, documentID string) (string, error) {
	log := logger.FromContext(ctx).With("document_id", documentID)
	dest := f.ArchivePath(documentID)
	if f.reuse {
		if ok, _ := afero.Exists(f.fs, dest); ok {
			log.Info("reusing downloaded archive", "path", dest)
			return dest, nil
		}
	}
	endpoint, err := url.JoinPath(f.baseURL, documentID)
	if err != nil {
		return "", core.NewError(err, core.FetchFailure, map[string]any{"document_id": documentID})
	}
	log.Info("downloading source archive", "url", endpoint)
	resp, err := f.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return "", core.NewError(
			fmt.Errorf("downloading %s: %w", endpoint, err),
			core.FetchFailure,
			map[string]any{"document_id": documentID},
		)
	}
	if resp.IsError() {
		return "", core.NewError(
			fmt.Errorf("downloading %s: unexpected status %d", endpoint, resp.StatusCode()),
			core.FetchFailure,
			map[string]any{"document_id": documentID, "status": resp.StatusCode()},
		)
	}
	if err := replaceFile(f.fs, dest, bytes.NewReader(resp.Body())); err != nil {
		return "", fmt.Errorf("saving archive: %w", err)
	}
	log.Info("source archive saved", "path", dest, "bytes", len(resp.Body()))
	return dest, nil
}
