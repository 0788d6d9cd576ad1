package estimator

import (
	"scrapweigh/internal/fallback"
	"scrapweigh/internal/preprocess"
)

// suggestions derives photo-improvement advice from what the pipeline
// actually saw. Ordered roughly by expected impact on the next attempt.
func suggestions(ch preprocess.Characteristics, pred *fallback.Prediction) []string {
	var out []string

	if pred.IsFallback {
		out = append(out, "Estimate used a degraded method; retake the photo or enter the weight manually.")
	}
	if !ch.HasClearObject {
		out = append(out, "Place the item on a plain, contrasting background so it stands out.")
	}
	if ch.EstimatedLuminance < 0.25 {
		out = append(out, "Photo is dark; add lighting or move near a window.")
	} else if ch.EstimatedLuminance > 0.9 {
		out = append(out, "Photo is overexposed; reduce direct light or glare.")
	}
	if ch.EdgeDensity < 0.01 {
		out = append(out, "Move closer so the item fills more of the frame.")
	}
	if !ch.HasDepthCues {
		out = append(out, "Angle the shot slightly so the item's thickness is visible.")
	}
	if pred.Confidence < 0.4 {
		out = append(out, "Low confidence result; consider weighing manually to confirm.")
	}

	return out
}
