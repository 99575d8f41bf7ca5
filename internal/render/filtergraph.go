package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// plan holds the ffmpeg inputs and the filtergraph for one render.
type plan struct {
	// inputs lists the source file paths in -i order, one per distinct asset.
	inputs []string
	// graph is the filtergraph up to and including the concat stage, without
	// an output label so further filters can be appended.
	graph string
}

// buildPlan maps every clip onto its input index and emits the trim/concat
// filtergraph. The clip order of the recipe is preserved.
func buildPlan(rec recipe.Recipe, assetPaths map[string]string) (*plan, error) {
	if len(rec.Clips) == 0 {
		return nil, services.Wrap(services.ErrRender, "render", "plan", "recipe has no clips", nil)
	}

	ids := rec.SourceAssetIDs()
	index := make(map[string]int, len(ids))
	inputs := make([]string, 0, len(ids))
	for i, id := range ids {
		path := strings.TrimSpace(assetPaths[id])
		if path == "" {
			return nil, services.Wrap(services.ErrRender, "render", "plan", fmt.Sprintf("no source path for asset %s", id), nil)
		}
		index[id] = i
		inputs = append(inputs, path)
	}

	var graph strings.Builder
	for j, clip := range rec.Clips {
		in := index[strings.TrimSpace(clip.SourceAssetID)]
		// The concat filter requires every leg to share a sample rate and
		// channel layout, so each clip is coerced to stereo 44.1 kHz.
		fmt.Fprintf(&graph, "[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,aformat=sample_rates=44100:channel_layouts=stereo[c%d];",
			in, formatSeconds(clip.StartTime), formatSeconds(clip.EndTime), j)
	}
	for j := range rec.Clips {
		fmt.Fprintf(&graph, "[c%d]", j)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1", len(rec.Clips))

	return &plan{inputs: inputs, graph: graph.String()}, nil
}

// filter returns the complete filtergraph labelled [out], with extra appended
// after the concat stage when non-empty.
func (p *plan) filter(extra string) string {
	if extra == "" {
		return p.graph + "[out]"
	}
	return p.graph + "," + extra + "[out]"
}

// inputArgs expands the planned inputs into ffmpeg -i arguments.
func (p *plan) inputArgs() []string {
	args := make([]string, 0, len(p.inputs)*2)
	for _, path := range p.inputs {
		args = append(args, "-i", path)
	}
	return args
}

// formatSeconds renders a clip boundary without trailing zeros or exponent
// notation.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
