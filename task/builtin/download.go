package builtin

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/httpclient"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/task"
)

// Download sources.
const (
	SourceLocal = "Local File System"
	SourceHTTP  = "HTTP"
)

var downloadSchema = task.Schema{
	{ID: "source", Name: "Source", Type: task.FieldChoose, Variants: []string{SourceLocal, SourceHTTP}},
	{ID: "path", Name: "Path", Type: task.FieldInput},
}

// DownloadTask loads a file into the pipeline from the local file system
// or an HTTP URL.
type DownloadTask struct {
	mu     sync.RWMutex
	client *httpclient.Client
	log    *logger.Logger
}

var _ task.Source = (*DownloadTask)(nil)

func (d *DownloadTask) Tag() string         { return TagDownload }
func (d *DownloadTask) Kind() task.Kind     { return task.KindSource }
func (d *DownloadTask) Schema() task.Schema { return downloadSchema }

func (d *DownloadTask) configure(client *httpclient.Client, log *logger.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = client
	d.log = log.WithComponent("download")
}

// Extract reads the configured source. The dataset is named after the
// last path element.
func (d *DownloadTask) Extract(ctx context.Context, t *task.Task) (*task.Dataset, error) {
	source, _ := t.Value("source")
	p, _ := t.Value("path")

	switch source {
	case SourceLocal:
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NotFound("file", p).WithCause(err)
			}
			return nil, errors.Internal(err)
		}
		return &task.Dataset{FileName: filepath.Base(p), Data: data}, nil
	case SourceHTTP:
		return d.fetch(ctx, p)
	default:
		return nil, errors.InvalidInput("source", "unknown source "+source)
	}
}

func (d *DownloadTask) fetch(ctx context.Context, rawURL string) (*task.Dataset, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.InvalidInput("path", "not an http(s) URL: "+rawURL)
	}

	client, log := d.deps()
	log.Debug("fetching remote dataset", logger.Fields("url", rawURL))

	resp, err := client.Get(ctx, rawURL)
	if err != nil {
		return nil, httpclient.ToAppError(err, rawURL)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	return &task.Dataset{FileName: name, Data: resp.Body}, nil
}

func (d *DownloadTask) deps() (*httpclient.Client, *logger.Logger) {
	d.mu.RLock()
	client, log := d.client, d.log
	d.mu.RUnlock()

	if log == nil {
		log = logger.Nop()
	}
	if client == nil {
		// The zero config with a retry policy always validates.
		client, _ = httpclient.New(httpclient.Config{Retry: httpclient.DefaultRetryConfig()})
	}
	return client, log
}
