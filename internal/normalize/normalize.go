package normalize

import (
	"errors"
	"fmt"

	"privlens/internal/domain/privacy"
)

const (
	DefaultFaceScore = 0.9
	TextScore        = 0.8
)

var ErrMissingDimensions = errors.New("image dimensions are required to normalize bounding boxes")

// Normalize converts provider annotations into detections. Faces come first,
// then text regions. The first text annotation is the full-image OCR blob
// and is skipped.
func Normalize(raw privacy.RawAnnotations) ([]privacy.Detection, error) {
	regions := len(raw.Faces)
	if len(raw.Texts) > 1 {
		regions += len(raw.Texts) - 1
	}
	detections := make([]privacy.Detection, 0, regions)
	if regions == 0 {
		return detections, nil
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrMissingDimensions, raw.Width, raw.Height)
	}

	for _, face := range raw.Faces {
		score := DefaultFaceScore
		if face.Confidence != nil {
			score = *face.Confidence
		}
		detections = append(detections, privacy.Detection{
			ID:    detectionID(len(detections)),
			Label: privacy.LabelFace,
			Score: clamp(score),
			BBox:  boundingBox(face.Vertices, raw.Width, raw.Height),
		})
	}

	for i, text := range raw.Texts {
		if i == 0 {
			continue
		}
		detections = append(detections, privacy.Detection{
			ID:    detectionID(len(detections)),
			Label: ClassifyText(text.Description),
			Score: TextScore,
			BBox:  boundingBox(text.Vertices, raw.Width, raw.Height),
			Text:  text.Description,
		})
	}

	return detections, nil
}

// boundingBox takes vertex 0 as top-left and vertex 2 as bottom-right.
// Missing vertices count as the origin. Edges are clamped to the image, so
// X+W and Y+H never exceed 1.
func boundingBox(vertices []privacy.Vertex, width, height int) privacy.BBox {
	topLeft := vertexAt(vertices, 0)
	bottomRight := vertexAt(vertices, 2)

	w, h := float64(width), float64(height)
	left, right := clamp(topLeft.X/w), clamp(bottomRight.X/w)
	top, bottom := clamp(topLeft.Y/h), clamp(bottomRight.Y/h)
	return privacy.BBox{
		X: left,
		Y: top,
		W: max(right-left, 0),
		H: max(bottom-top, 0),
	}
}

func vertexAt(vertices []privacy.Vertex, i int) privacy.Vertex {
	if i < len(vertices) {
		return vertices[i]
	}
	return privacy.Vertex{}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func detectionID(index int) string {
	return fmt.Sprintf("d%d", index+1)
}
