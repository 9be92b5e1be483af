package normalize

import "privlens/internal/domain/privacy"

// MockDetections is the fixed result used when no vision provider is wired.
func MockDetections() []privacy.Detection {
	return []privacy.Detection{
		{
			ID:    "d1",
			Label: privacy.LabelFace,
			Score: 0.98,
			BBox:  privacy.BBox{X: 0.18, Y: 0.15, W: 0.2, H: 0.25},
		},
		{
			ID:    "d2",
			Label: privacy.LabelText,
			Score: 0.93,
			BBox:  privacy.BBox{X: 0.55, Y: 0.6, W: 0.35, H: 0.18},
			Text:  "123 Main St",
		},
	}
}
