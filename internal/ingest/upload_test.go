package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/testsupport"
)

const videoProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2, "duration": "10.0"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "10.0", "size": "4096", "bit_rate": "256000"}
}`

const opusProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "vp9"},
    {"index": 1, "codec_type": "audio", "codec_name": "opus", "sample_rate": "48000", "channels": 2, "duration": "10.0"}
  ],
  "format": {"format_name": "matroska,webm", "duration": "10.0", "size": "4096", "bit_rate": "256000"}
}`

func TestSpoolUploadStreamsToStaging(t *testing.T) {
	svc, cfg := newTestService(t)

	body := bytes.Repeat([]byte("chunky"), 50_000)
	path, cleanup, err := svc.SpoolUpload(context.Background(), bytes.NewReader(body), "My Song.mp3")
	if err != nil {
		t.Fatalf("SpoolUpload returned error: %v", err)
	}
	defer cleanup()

	if !strings.HasPrefix(path, cfg.Paths.StagingDir) {
		t.Fatalf("expected spool under %s, got %s", cfg.Paths.StagingDir, path)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Fatalf("expected spool to keep the extension, got %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat spool: %v", err)
	}
	if info.Size() != int64(len(body)) {
		t.Fatalf("spooled %d bytes, want %d", info.Size(), len(body))
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected spool removed, stat err %v", err)
	}
}

func TestSpoolUploadEnforcesSizeCap(t *testing.T) {
	svc, cfg := newTestService(t, testsupport.WithMaxSourceMiB(1))

	body := bytes.NewReader(bytes.Repeat([]byte("y"), int(1.5*1024*1024)))
	_, _, err := svc.SpoolUpload(context.Background(), body, "big.wav")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds the 1 MiB cap") {
		t.Fatalf("expected cap rejection, got %v", err)
	}

	// No spool file survives a rejected upload.
	entries, readErr := os.ReadDir(cfg.Paths.StagingDir)
	if readErr != nil {
		t.Fatalf("read staging dir: %v", readErr)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "upload-") {
			t.Fatalf("expected rejected spool removed, found %s", entry.Name())
		}
	}
}

func TestSpoolUploadCancelledContextReportsAbort(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.SpoolUpload(ctx, strings.NewReader("audio"), "clip.mp3")
	if !services.IsAbort(err) {
		t.Fatalf("expected abort, got %v", err)
	}
}

func TestExtractAudioCopiesAACTrack(t *testing.T) {
	svc, cfg := newTestService(t)
	cfg.Render.FFprobe = writeToolStub(t, "ffprobe", "cat <<'EOF'\n"+videoProbeJSON+"\nEOF\n")
	argsFile := filepath.Join(t.TempDir(), "ffmpeg.args")
	cfg.Render.FFmpeg = writeToolStub(t, "ffmpeg", `
printf '%s\n' "$@" > "`+argsFile+`"
for last; do :; done
printf 'demuxed audio' > "$last"
`)

	video := filepath.Join(t.TempDir(), "upload.mp4")
	testsupport.WriteFile(t, video, 4096)

	path, err := svc.extractAudio(context.Background(), video, t.TempDir())
	if err != nil {
		t.Fatalf("extractAudio returned error: %v", err)
	}
	if filepath.Base(path) != "extracted.m4a" {
		t.Fatalf("unexpected output path %s", path)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args file: %v", err)
	}
	args := string(raw)
	if !strings.Contains(args, "-c:a\ncopy\n") {
		t.Fatalf("expected stream copy for aac audio, got args:\n%s", args)
	}
	if !strings.Contains(args, "-vn\n") {
		t.Fatalf("expected -vn, got args:\n%s", args)
	}
}

func TestExtractAudioTranscodesOtherCodecs(t *testing.T) {
	svc, cfg := newTestService(t)
	cfg.Render.FFprobe = writeToolStub(t, "ffprobe", "cat <<'EOF'\n"+opusProbeJSON+"\nEOF\n")
	argsFile := filepath.Join(t.TempDir(), "ffmpeg.args")
	cfg.Render.FFmpeg = writeToolStub(t, "ffmpeg", `
printf '%s\n' "$@" > "`+argsFile+`"
for last; do :; done
printf 'transcoded audio' > "$last"
`)

	video := filepath.Join(t.TempDir(), "upload.webm")
	testsupport.WriteFile(t, video, 4096)

	if _, err := svc.extractAudio(context.Background(), video, t.TempDir()); err != nil {
		t.Fatalf("extractAudio returned error: %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args file: %v", err)
	}
	args := string(raw)
	if !strings.Contains(args, "-c:a\naac\n-b:a\n"+cfg.Render.AACBitrate+"\n") {
		t.Fatalf("expected aac transcode args, got:\n%s", args)
	}
}

func TestExtractAudioRejectsSilentVideo(t *testing.T) {
	svc, cfg := newTestService(t)
	noAudio := `{"streams": [{"index": 0, "codec_type": "video", "codec_name": "h264"}], "format": {"format_name": "mov", "duration": "5.0"}}`
	cfg.Render.FFprobe = writeToolStub(t, "ffprobe", "cat <<'EOF'\n"+noAudio+"\nEOF\n")

	video := filepath.Join(t.TempDir(), "silent.mp4")
	testsupport.WriteFile(t, video, 1024)

	_, err := svc.extractAudio(context.Background(), video, t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected missing-audio detail, got %v", err)
	}
}

func TestExtractAudioFailureCarriesStderr(t *testing.T) {
	svc, cfg := newTestService(t)
	cfg.Render.FFprobe = writeToolStub(t, "ffprobe", "cat <<'EOF'\n"+videoProbeJSON+"\nEOF\n")
	cfg.Render.FFmpeg = writeToolStub(t, "ffmpeg", "echo 'Error while opening decoder' >&2\nexit 1\n")

	video := filepath.Join(t.TempDir(), "upload.mp4")
	testsupport.WriteFile(t, video, 1024)

	_, err := svc.extractAudio(context.Background(), video, t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Error while opening decoder") {
		t.Fatalf("expected stderr detail, got %v", err)
	}
}
