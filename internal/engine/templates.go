// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package engine

import (
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia/internal/contextdetect"
	"github.com/harmonia-labs/harmonia/internal/models"
	"github.com/harmonia-labs/harmonia/internal/selection"
)

// templateSpec describes how one template shapes generation.
type templateSpec struct {
	displayName string
	diversity   selection.DiversityLevel

	// signature builds the context signature the template targets.
	signature func(now time.Time) models.ContextSignature
}

var templateSpecs = map[models.Template]templateSpec{
	models.TemplateMorningEnergy: {
		displayName: "Morning Energy",
		diversity:   selection.DiversityMedium,
		signature: func(now time.Time) models.ContextSignature {
			return models.ContextSignature{TimeOfDay: models.DimOf("morning")}
		},
	},
	models.TemplateFocus: {
		displayName: "Focus Flow",
		diversity:   selection.DiversityLow,
		signature: func(now time.Time) models.ContextSignature {
			return models.ContextSignature{
				TimeOfDay: models.DimOf(string(contextdetect.BucketForHour(now.Hour()))),
			}
		},
	},
	models.TemplateRightNow: {
		displayName: "Right Now",
		diversity:   selection.DiversityMedium,
		signature: func(now time.Time) models.ContextSignature {
			return models.ContextSignature{
				TimeOfDay: models.DimOf(string(contextdetect.BucketForHour(now.Hour()))),
				DayOfWeek: models.DimOf(strings.ToLower(now.Weekday().String())),
			}
		},
	},
	models.TemplateWindDown: {
		displayName: "Wind Down",
		diversity:   selection.DiversityLow,
		signature: func(now time.Time) models.ContextSignature {
			return models.ContextSignature{TimeOfDay: models.DimOf("evening")}
		},
	},
	models.TemplateWorkout: {
		displayName: "Workout Boost",
		diversity:   selection.DiversityHigh,
		signature: func(now time.Time) models.ContextSignature {
			return models.ContextSignature{Activity: models.DimOf("running")}
		},
	},
}

// specFor returns the template spec, defaulting unknown templates to a
// right-now style current-context template.
func specFor(template models.Template) templateSpec {
	if spec, ok := templateSpecs[template]; ok {
		return spec
	}
	return templateSpecs[models.TemplateRightNow]
}
