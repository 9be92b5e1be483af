package vision

import (
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"privlens/internal/domain/privacy"
)

func fromResponse(r *visionpb.AnnotateImageResponse) privacy.RawAnnotations {
	raw := privacy.RawAnnotations{
		Faces:   make([]privacy.FaceAnnotation, 0, len(r.GetFaceAnnotations())),
		Texts:   make([]privacy.TextAnnotation, 0, len(r.GetTextAnnotations())),
		Objects: make([]privacy.ObjectAnnotation, 0, len(r.GetLocalizedObjectAnnotations())),
		Labels:  make([]privacy.LabelAnnotation, 0, len(r.GetLabelAnnotations())),
	}

	for _, f := range r.GetFaceAnnotations() {
		face := privacy.FaceAnnotation{Vertices: vertices(f.GetBoundingPoly())}
		// proto3 has no presence for floats; zero means not reported.
		if conf := f.GetDetectionConfidence(); conf > 0 {
			v := float64(conf)
			face.Confidence = &v
		}
		raw.Faces = append(raw.Faces, face)
	}

	for _, t := range r.GetTextAnnotations() {
		raw.Texts = append(raw.Texts, privacy.TextAnnotation{
			Description: t.GetDescription(),
			Vertices:    vertices(t.GetBoundingPoly()),
		})
	}

	for _, o := range r.GetLocalizedObjectAnnotations() {
		raw.Objects = append(raw.Objects, privacy.ObjectAnnotation{
			Name:  o.GetName(),
			Score: float64(o.GetScore()),
		})
	}

	for _, l := range r.GetLabelAnnotations() {
		raw.Labels = append(raw.Labels, privacy.LabelAnnotation{
			Description: l.GetDescription(),
			Score:       float64(l.GetScore()),
		})
	}

	return raw
}

func vertices(poly *visionpb.BoundingPoly) []privacy.Vertex {
	vs := poly.GetVertices()
	out := make([]privacy.Vertex, 0, len(vs))
	for _, v := range vs {
		out = append(out, privacy.Vertex{X: float64(v.GetX()), Y: float64(v.GetY())})
	}
	return out
}
