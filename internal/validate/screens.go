package validate

import (
	"context"
	"strings"

	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/model"
)

// ActivityTypes reports every screen whose activity type is outside allowed.
func ActivityTypes(ctx context.Context, screens []model.Screen, allowed []model.ActivityType) []string {
	names := make([]string, len(allowed))
	set := make(map[model.ActivityType]struct{}, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
		set[a] = struct{}{}
	}
	joined := strings.Join(names, ", ")

	var warnings []string
	for i, s := range screens {
		if _, ok := set[s.Activity]; ok {
			continue
		}
		warnings = append(warnings, appI18n.Td(ctx, "ActivityTypeNotAuthorized", map[string]any{
			"Index":   i + 1,
			"Type":    string(s.Activity),
			"Allowed": joined,
		}))
	}
	return warnings
}

// Screens reports screens missing a required field, screens whose Bloom level
// is not a canonical token and screen numbers used more than once.
func Screens(ctx context.Context, screens []model.Screen) []string {
	var warnings []string
	seen := make(map[string]bool, len(screens))
	for i, s := range screens {
		required := []struct {
			name  string
			value string
		}{
			{"sequence", s.Sequence},
			{"num_ecran", s.Number},
			{"titre_ecran", s.Title},
			{"resume_contenu", s.Summary},
			{"type_activite", string(s.Activity)},
		}
		for _, f := range required {
			if strings.TrimSpace(f.value) == "" {
				warnings = append(warnings, appI18n.Td(ctx, "ScreenFieldMissing", map[string]any{
					"Index": i + 1,
					"Field": f.name,
				}))
			}
		}
		if s.Bloom != nil && !s.Bloom.IsCanonical() {
			warnings = append(warnings, appI18n.Td(ctx, "UnknownBloomLevel", map[string]any{
				"Index": i + 1,
				"Level": string(*s.Bloom),
			}))
		}
		if s.Number == "" {
			continue
		}
		if seen[s.Number] {
			warnings = append(warnings, appI18n.Td(ctx, "DuplicateScreenNumber", map[string]any{"Number": s.Number}))
		}
		seen[s.Number] = true
	}
	return warnings
}
