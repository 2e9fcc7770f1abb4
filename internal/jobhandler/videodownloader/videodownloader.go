// Package videodownloader is the reference job handler: it downloads a
// video by ID and uploads it to object storage. Registered under
// ParserModule so any Config whose job_parameters.parser_module names it
// gets dispatched here.
package videodownloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/jobhandler"
	"github.com/VeRJiL/crawlerd/internal/objectstore"
	"github.com/VeRJiL/crawlerd/internal/orderfeed"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// ParserModule is the job_parameters.parser_module value that selects this
// handler.
const ParserModule = "video_downloader"

const (
	targetObject  = "video"
	fileExtension = "mp4"
	baseURLFormat = "https://www.youtube.com/watch?v=%s"
)

// NewFactory builds the jobhandler.Factory for this handler, closing over
// the object store and HTTP client every instance shares. Callers register
// it explicitly at startup: jobhandler.Default.Register(ParserModule,
// videodownloader.NewFactory(store, httpClient)).
func NewFactory(store *objectstore.Store, httpClient *http.Client) jobhandler.Factory {
	return func(config vaultmodel.Config, metadata orderfeed.Metadata, dbg debugsink.Sink) jobhandler.Handler {
		return &Handler{
			config:     config,
			metadata:   metadata,
			dbg:        dbg,
			store:      store,
			httpClient: httpClient,
		}
	}
}

// Handler downloads a video and uploads it to this Config's bucket.
type Handler struct {
	config   vaultmodel.Config
	metadata orderfeed.Metadata
	dbg      debugsink.Sink

	store      *objectstore.Store
	httpClient *http.Client
}

// Output is the data payload a successful run publishes as feedback.
type Output struct {
	VideoURI  string `json:"videoUri"`
	Partition string `json:"partition"`
}

func (h *Handler) bucketName() string {
	return fmt.Sprintf("%s-%s", h.config.Provider, h.config.Source)
}

func (h *Handler) partition(videoID string) string {
	return fmt.Sprintf("%s/videos/%s", h.config.Service, videoID)
}

func (h *Handler) filePath(videoID string) string {
	return fmt.Sprintf("%s/%s.%s", h.partition(videoID), targetObject, fileExtension)
}

// Run downloads the video named by input's "videoId" field and uploads it
// to this Config's (provider, source) bucket.
func (h *Handler) Run(ctx context.Context, input map[string]interface{}) (map[string]interface{}, orderfeed.Status, error) {
	videoID, ok := input["videoId"].(string)
	if !ok || videoID == "" {
		return nil, orderfeed.Status{Code: orderfeed.StatusCodeValidationFailed, Detail: "missing videoId"},
			fmt.Errorf("videodownloader: input has no videoId")
	}

	video, err := h.downloadVideo(ctx, videoID)
	if err != nil {
		return nil, orderfeed.Status{Code: orderfeed.StatusCodeInternalError, Detail: "video download failed"},
			fmt.Errorf("videodownloader: downloading %s: %w", videoID, err)
	}

	if h.dbg != nil {
		if err := h.dbg.SaveResponse(fmt.Sprintf("%s.%s", targetObject, fileExtension), video); err != nil {
			return nil, orderfeed.Status{Code: orderfeed.StatusCodeInternalError, Detail: "debug capture failed"}, err
		}
	}

	uri, err := h.uploadVideo(ctx, videoID, video)
	if err != nil {
		return nil, orderfeed.Status{Code: orderfeed.StatusCodeInternalError, Detail: "video upload failed"},
			fmt.Errorf("videodownloader: uploading %s: %w", videoID, err)
	}

	out := Output{VideoURI: uri, Partition: h.partition(videoID)}
	data := map[string]interface{}{
		"videoUri":  out.VideoURI,
		"partition": out.Partition,
	}
	return data, orderfeed.Status{Code: orderfeed.StatusCodeOK, Detail: "Video uploaded successfully"}, nil
}

func (h *Handler) downloadVideo(ctx context.Context, videoID string) ([]byte, error) {
	client := h.httpClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(baseURLFormat, videoID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (h *Handler) uploadVideo(ctx context.Context, videoID string, video []byte) (string, error) {
	bucket := h.bucketName()
	key := h.filePath(videoID)

	if err := h.store.EnsureBucket(ctx, bucket); err != nil {
		return "", err
	}
	if err := h.store.Put(ctx, bucket, key, bytes.NewReader(video)); err != nil {
		return "", err
	}
	return h.store.URL(bucket, key), nil
}
