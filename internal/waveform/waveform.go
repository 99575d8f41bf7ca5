package waveform

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

var commandContext = exec.CommandContext

const (
	peaksVersion = 1
	// sampleRate is the decode rate. 8 kHz mono is plenty for drawing peaks
	// and keeps the decoded stream small.
	sampleRate = 8000
)

// DefaultResolutions are the bucket counts stored in peaks.json.
var DefaultResolutions = []int{256, 1024, 4096}

// Peaks holds per-resolution absolute amplitude peaks for one audio file.
type Peaks struct {
	Version         int          `json:"version"`
	DurationSeconds float64      `json:"durationSeconds"`
	SampleRate      int          `json:"sampleRate"`
	Resolutions     []Resolution `json:"resolutions"`
}

// Resolution is one fold of the sample stream into a fixed bucket count.
// Peak values are normalized to 0..1.
type Resolution struct {
	Buckets int       `json:"buckets"`
	Peaks   []float64 `json:"peaks"`
}

// Extract decodes inputPath with ffmpeg and folds the samples into peaks at
// each requested resolution. A nil or empty resolutions slice selects
// DefaultResolutions. Cancelling the context kills the decoder.
func Extract(ctx context.Context, ffmpegPath, inputPath string, resolutions []int) (*Peaks, error) {
	if len(resolutions) == 0 {
		resolutions = DefaultResolutions
	}

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", inputPath,
		"-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-",
	}
	cmd := commandContext(ctx, ffmpegPath, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "waveform", "extract", "open ffmpeg pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, classify(ctx, &stderr, err)
	}

	pcm, readErr := io.ReadAll(stdout)
	if err := cmd.Wait(); err != nil {
		return nil, classify(ctx, &stderr, err)
	}
	if readErr != nil {
		return nil, classify(ctx, &stderr, readErr)
	}

	total := len(pcm) / 2
	if total == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "waveform", "extract", "ffmpeg decoded no audio samples", nil)
	}

	peaks := &Peaks{
		Version:         peaksVersion,
		DurationSeconds: float64(total) / sampleRate,
		SampleRate:      sampleRate,
		Resolutions:     make([]Resolution, 0, len(resolutions)),
	}
	for _, buckets := range resolutions {
		peaks.Resolutions = append(peaks.Resolutions, Resolution{
			Buckets: buckets,
			Peaks:   foldPeaks(pcm, buckets),
		})
	}
	return peaks, nil
}

// foldPeaks folds little-endian s16 samples into absolute peaks across the
// requested bucket count. Buckets no sample maps into stay at zero.
func foldPeaks(pcm []byte, buckets int) []float64 {
	if buckets <= 0 {
		return nil
	}
	peaks := make([]float64, buckets)
	total := len(pcm) / 2
	if total == 0 {
		return peaks
	}
	for i := 0; i < total; i++ {
		a := int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		if a < 0 {
			a = -a
		}
		b := i * buckets / total
		if v := float64(a) / 32768; v > peaks[b] {
			peaks[b] = v
		}
	}
	for i := range peaks {
		peaks[i] = math.Round(peaks[i]*10000) / 10000
	}
	return peaks
}

func classify(ctx context.Context, stderr *bytes.Buffer, err error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrAborted, "waveform", "extract", "extraction aborted", ctx.Err())
	}
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	return services.Wrap(services.ErrExternalTool, "waveform", "extract", fmt.Sprintf("ffmpeg failed: %s", detail), err)
}
