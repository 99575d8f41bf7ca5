package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
)

const userAgent = "EtherealStudio/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobType, jobID string) error
	NotifyJobFailed(ctx context.Context, jobType, jobID, message string) error
	NotifyIngestCompleted(ctx context.Context, assetID string, duration float64) error
	NotifyCleanup(ctx context.Context, removed int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		events:   cfg.Notifications,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	events   config.Notifications
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobType, jobID string) error {
	if !n.events.JobComplete {
		return nil
	}
	data := payload{
		title:   "Ethereal Studio - Job Complete",
		message: fmt.Sprintf("✅ %s job %s complete", jobType, shortID(jobID)),
		tags:    []string{"studio", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobType, jobID, message string) error {
	if !n.events.JobFailed {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "no error detail"
	}
	data := payload{
		title:    "Ethereal Studio - Job Failed",
		message:  fmt.Sprintf("❌ %s job %s failed: %s", jobType, shortID(jobID), message),
		tags:     []string{"studio", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIngestCompleted(ctx context.Context, assetID string, duration float64) error {
	if !n.events.IngestComplete {
		return nil
	}
	data := payload{
		title:   "Ethereal Studio - Asset Ready",
		message: fmt.Sprintf("🎧 Asset %s ready (%.1fs of audio)", shortID(assetID), duration),
		tags:    []string{"studio", "ingest", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCleanup(ctx context.Context, removed int) error {
	if !n.events.Cleanup || removed == 0 {
		return nil
	}
	data := payload{
		title:   "Ethereal Studio - Cleanup",
		message: fmt.Sprintf("🧹 Removed %d expired assets", removed),
		tags:    []string{"studio", "cleanup"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Ethereal Studio - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"studio", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// shortID returns the leading segment of a UUID, enough to find the job or
// asset in the CLI without filling the notification with hex.
func shortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, string) error      { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyIngestCompleted(context.Context, string, float64) error  { return nil }
func (noopService) NotifyCleanup(context.Context, int) error                      { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
