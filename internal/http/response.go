package http

import (
	"fmt"

	"privlens/internal/domain/privacy"
)

const (
	typeLicensePlate = "license_plate"

	locationAdvisory = "Street signs, storefront text and license plates can reveal where a photo was taken. Check the background before sharing."
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type DetectionDTO struct {
	Type        string      `json:"type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Text        string      `json:"text,omitempty"`
}

type RiskAnalysis struct {
	PersonalData string `json:"personalData"`
	IdentityRisk string `json:"identityRisk"`
	LocationRisk string `json:"locationRisk"`
}

// AnalyzeResponse is the body the web UI renders.
type AnalyzeResponse struct {
	Success      bool           `json:"success"`
	Detections   []DetectionDTO `json:"detections"`
	RiskAnalysis RiskAnalysis   `json:"riskAnalysis"`
	Explanation  string         `json:"explanation"`
}

// ToResponse maps a result onto the UI contract, one DTO per detection in
// the same order.
func ToResponse(result privacy.AnalysisResult) AnalyzeResponse {
	detections := make([]DetectionDTO, 0, len(result.Detections))
	for _, d := range result.Detections {
		detections = append(detections, DetectionDTO{
			Type:       responseType(d.Label),
			Confidence: d.Score,
			BoundingBox: BoundingBox{
				X:      d.BBox.X,
				Y:      d.BBox.Y,
				Width:  d.BBox.W,
				Height: d.BBox.H,
			},
			Text: d.Text,
		})
	}

	return AnalyzeResponse{
		Success:    true,
		Detections: detections,
		RiskAnalysis: RiskAnalysis{
			PersonalData: personalDataSummary(len(detections)),
			IdentityRisk: result.Explanation,
			LocationRisk: locationAdvisory,
		},
		Explanation: result.Explanation,
	}
}

func responseType(label privacy.Label) string {
	if label == privacy.LabelPlate {
		return typeLicensePlate
	}
	return string(label)
}

func personalDataSummary(n int) string {
	if n == 1 {
		return "Found 1 potentially sensitive region in this image."
	}
	return fmt.Sprintf("Found %d potentially sensitive regions in this image.", n)
}
