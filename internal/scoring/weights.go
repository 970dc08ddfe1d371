// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package scoring computes per-track relevance scores against learned
// patterns or a neutral baseline, and owns the context-dependent feature
// weighting the scores are built on.
package scoring

import (
	"github.com/harmonia-labs/harmonia/internal/models"
)

// FeatureWeights weights the six audio-feature dimensions during context
// matching. Values are relative, not required to sum to one.
type FeatureWeights struct {
	Energy           float64
	Valence          float64
	Tempo            float64
	Danceability     float64
	Acousticness     float64
	Instrumentalness float64
}

// DefaultWeights is the uniform starting point before context overrides.
func DefaultWeights() FeatureWeights {
	return FeatureWeights{
		Energy:           0.20,
		Valence:          0.20,
		Tempo:            0.15,
		Danceability:     0.15,
		Acousticness:     0.15,
		Instrumentalness: 0.15,
	}
}

// Override rewrites a weight set for one active context dimension.
// Overrides replace fields rather than adding to them; applying them in a
// fixed order keeps ties deterministic.
type Override func(FeatureWeights) FeatureWeights

// WeightsFor computes the effective weights for a generation request by
// applying the active overrides to the default set in the fixed order
// time -> activity -> weather -> template. Later overrides win on shared
// fields.
func WeightsFor(sig models.ContextSignature, template models.Template) FeatureWeights {
	w := DefaultWeights()
	for _, override := range activeOverrides(sig, template) {
		w = override(w)
	}
	return w
}

// activeOverrides collects the override chain for the request.
func activeOverrides(sig models.ContextSignature, template models.Template) []Override {
	var chain []Override

	if v, ok := sig.TimeOfDay.Value(); ok {
		if o := timeOverride(v); o != nil {
			chain = append(chain, o)
		}
	}
	if v, ok := sig.Activity.Value(); ok {
		if o := activityOverride(v); o != nil {
			chain = append(chain, o)
		}
	}
	if v, ok := sig.Weather.Value(); ok {
		if o := weatherOverride(v); o != nil {
			chain = append(chain, o)
		}
	}
	if o := templateOverride(template); o != nil {
		chain = append(chain, o)
	}

	return chain
}

func timeOverride(timeOfDay string) Override {
	switch timeOfDay {
	case "morning":
		return func(w FeatureWeights) FeatureWeights {
			w.Energy = 0.30
			w.Valence = 0.25
			w.Tempo = 0.15
			w.Danceability = 0.15
			w.Acousticness = 0.10
			w.Instrumentalness = 0.05
			return w
		}
	case "evening", "night":
		return func(w FeatureWeights) FeatureWeights {
			w.Energy = 0.10
			w.Valence = 0.15
			w.Tempo = 0.10
			w.Danceability = 0.10
			w.Acousticness = 0.35
			w.Instrumentalness = 0.20
			return w
		}
	default:
		return nil
	}
}

func activityOverride(activity string) Override {
	switch activity {
	case "running", "cycling":
		return func(w FeatureWeights) FeatureWeights {
			w.Energy = 0.30
			w.Tempo = 0.30
			w.Valence = 0.15
			w.Danceability = 0.15
			w.Acousticness = 0.05
			w.Instrumentalness = 0.05
			return w
		}
	case "stationary":
		return func(w FeatureWeights) FeatureWeights {
			w.Acousticness = 0.30
			w.Instrumentalness = 0.30
			w.Energy = 0.10
			w.Valence = 0.10
			w.Tempo = 0.10
			w.Danceability = 0.10
			return w
		}
	default:
		return nil
	}
}

func weatherOverride(weather string) Override {
	switch weather {
	case "rainy", "cloudy":
		return func(w FeatureWeights) FeatureWeights {
			w.Acousticness = 0.30
			w.Instrumentalness = 0.20
			w.Energy = 0.10
			w.Valence = 0.15
			w.Tempo = 0.10
			w.Danceability = 0.15
			return w
		}
	case "sunny":
		return func(w FeatureWeights) FeatureWeights {
			w.Energy = 0.28
			w.Valence = 0.28
			w.Tempo = 0.14
			w.Danceability = 0.15
			w.Acousticness = 0.10
			w.Instrumentalness = 0.05
			return w
		}
	default:
		return nil
	}
}

func templateOverride(template models.Template) Override {
	switch template {
	case models.TemplateFocus:
		return func(w FeatureWeights) FeatureWeights {
			w.Instrumentalness = 0.35
			w.Acousticness = 0.20
			w.Energy = 0.10
			w.Valence = 0.10
			w.Tempo = 0.10
			w.Danceability = 0.15
			return w
		}
	case models.TemplateWorkout:
		return func(w FeatureWeights) FeatureWeights {
			w.Energy = 0.35
			w.Tempo = 0.35
			w.Valence = 0.10
			w.Danceability = 0.10
			w.Acousticness = 0.05
			w.Instrumentalness = 0.05
			return w
		}
	case models.TemplateWindDown:
		return func(w FeatureWeights) FeatureWeights {
			w.Acousticness = 0.35
			w.Instrumentalness = 0.25
			w.Energy = 0.05
			w.Valence = 0.15
			w.Tempo = 0.10
			w.Danceability = 0.10
			return w
		}
	default:
		return nil
	}
}
