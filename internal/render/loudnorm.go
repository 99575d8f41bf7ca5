package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// measurement holds the loudness stats ffmpeg prints after a measurement
// pass. The values stay strings because they are fed straight back into the
// second-pass filter.
type measurement struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

// measureFilter returns the loudnorm filter for the measurement pass. The
// stats print at ffmpeg's info log level, so the pass must not lower the log
// level below that.
func (r *Renderer) measureFilter() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:print_format=json",
		formatSeconds(r.loudnessTarget), formatSeconds(r.loudnessPeak), formatSeconds(r.loudnessRange))
}

// correctionFilter returns the second-pass loudnorm filter carrying the
// measured values. linear=true keeps the correction a plain gain change
// whenever the target is reachable without limiting.
func (r *Renderer) correctionFilter(m *measurement) string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
		formatSeconds(r.loudnessTarget), formatSeconds(r.loudnessPeak), formatSeconds(r.loudnessRange),
		m.InputI, m.InputTP, m.InputLRA, m.InputThresh, m.TargetOffset)
}

// parseMeasurement extracts the loudness JSON block from the tail of ffmpeg's
// stderr. The block is the last thing loudnorm prints, so the last opening
// brace in the tail starts it.
func parseMeasurement(stderr string) (*measurement, error) {
	start := strings.LastIndex(stderr, "{")
	if start < 0 {
		return nil, services.Wrap(services.ErrRender, "render", "measure", "loudness stats not found in ffmpeg output", nil)
	}
	end := strings.Index(stderr[start:], "}")
	if end < 0 {
		return nil, services.Wrap(services.ErrRender, "render", "measure", "loudness stats truncated in ffmpeg output", nil)
	}

	var m measurement
	if err := json.Unmarshal([]byte(stderr[start:start+end+1]), &m); err != nil {
		return nil, services.Wrap(services.ErrRender, "render", "measure", "parse loudness stats", err)
	}
	if m.InputI == "" || m.InputTP == "" || m.InputLRA == "" || m.InputThresh == "" {
		return nil, services.Wrap(services.ErrRender, "render", "measure", "loudness stats incomplete", nil)
	}
	if m.TargetOffset == "" {
		m.TargetOffset = "0"
	}
	return &m, nil
}
