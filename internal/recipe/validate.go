package recipe

import (
	"fmt"
	"math"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// Validate checks a recipe against known source durations without performing
// any I/O. durations maps source asset ids to their prepared audio length in
// seconds; the caller populates it only for assets it has confirmed exist, so
// an id missing from the map is a validation failure.
func Validate(r Recipe, durations map[string]float64) error {
	if len(r.Clips) == 0 {
		return validationError("recipe has no clips")
	}
	if !ValidFormat(r.Format) {
		return validationError(fmt.Sprintf("unsupported output format %q", r.Format))
	}

	for i, clip := range r.Clips {
		if clip.SourceAssetID == "" {
			return validationError(fmt.Sprintf("clip %d: missing sourceAssetId", i))
		}
		duration, known := durations[clip.SourceAssetID]
		if !known {
			return validationError(fmt.Sprintf("clip %d: unknown source asset %s", i, clip.SourceAssetID))
		}
		if math.IsNaN(clip.StartTime) || math.IsInf(clip.StartTime, 0) ||
			math.IsNaN(clip.EndTime) || math.IsInf(clip.EndTime, 0) {
			return validationError(fmt.Sprintf("clip %d: times must be finite", i))
		}
		if clip.StartTime < 0 {
			return validationError(fmt.Sprintf("clip %d: startTime %.3f is negative", i, clip.StartTime))
		}
		if clip.StartTime >= clip.EndTime {
			return validationError(fmt.Sprintf("clip %d: startTime %.3f is not before endTime %.3f", i, clip.StartTime, clip.EndTime))
		}
		if clip.EndTime > duration {
			return validationError(fmt.Sprintf("clip %d: endTime %.3f exceeds source duration %.3f", i, clip.EndTime, duration))
		}
	}
	return nil
}

func validationError(message string) error {
	return services.Wrap(services.ErrValidation, "recipe", "validate", message, nil)
}
