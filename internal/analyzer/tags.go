package analyzer

import "media-catalog/internal/database"

// Brightness class thresholds.
const (
	DarkThreshold   = 0.3
	BrightThreshold = 0.7
)

// colorIntensity is the channel value a dominant channel must exceed to
// earn a colour tag.
const colorIntensity = 150

// DeriveTags computes the descriptive tags for an analysis result. The same
// inputs always yield the same tags in the same order.
func DeriveTags(faceCount int, hasPeople bool, brightness float64, colors []database.RGB) []string {
	tags := []string{}

	if faceCount > 0 {
		switch faceCount {
		case 1:
			tags = append(tags, "portrait")
		case 2:
			tags = append(tags, "duo")
		default:
			tags = append(tags, "group")
		}
		tags = append(tags, "faces")
	}

	if hasPeople {
		tags = append(tags, "people")
	}

	switch {
	case brightness < DarkThreshold:
		tags = append(tags, "dark", "night")
	case brightness > BrightThreshold:
		tags = append(tags, "bright", "daylight")
	}

	if len(colors) > 0 {
		var r, g, b float64
		for _, c := range colors {
			r += float64(c[0])
			g += float64(c[1])
			b += float64(c[2])
		}
		n := float64(len(colors))
		r, g, b = r/n, g/n, b/n

		switch {
		case r > g && r > b && r > colorIntensity:
			tags = append(tags, "red-tones")
		case g > r && g > b && g > colorIntensity:
			tags = append(tags, "green-tones")
		case b > r && b > g && b > colorIntensity:
			tags = append(tags, "blue-tones")
		}

		switch {
		case r+g > b*1.5:
			tags = append(tags, "warm")
		case b > (r+g)*0.7:
			tags = append(tags, "cool")
		}
	}

	return tags
}
