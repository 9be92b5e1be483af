package normalize

import (
	"fmt"

	"privlens/internal/domain/privacy"
)

const privacyAdvisory = "These may reveal personal information. Consider blurring or masking them before sharing."

func Count(detections []privacy.Detection) privacy.Counts {
	var c privacy.Counts
	for _, d := range detections {
		switch d.Label {
		case privacy.LabelFace:
			c.Faces++
		case privacy.LabelText:
			c.Texts++
		case privacy.LabelPlate:
			c.Plates++
		case privacy.LabelDocument:
			c.Documents++
		}
	}
	return c
}

// Explain summarizes a detection list in one sentence followed by the
// advisory. The output depends only on the input.
func Explain(detections []privacy.Detection) string {
	c := Count(detections)
	noun := "items"
	if len(detections) == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Detected %d %s: %d faces, %d text regions, %d plates, %d documents. %s",
		len(detections), noun, c.Faces, c.Texts, c.Plates, c.Documents, privacyAdvisory)
}
