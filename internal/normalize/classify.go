package normalize

import (
	"regexp"
	"strings"

	"privlens/internal/domain/privacy"
)

var (
	documentVocabulary = regexp.MustCompile(`(?i)\b(ID|Passport|License|Card|Driving|Vehicle|Registration|SSN|Social|Security)\b`)

	// Plates are matched against the whole upper-cased token, so ordinary
	// words in running text stay plain text.
	plateGroups = regexp.MustCompile(`^[A-Z0-9]{2,}-?[A-Z0-9]{2,}$`)
	plateLDL    = regexp.MustCompile(`^[A-Z]{1,3}[0-9]{1,4}[A-Z]{1,3}$`)
	hasDigit    = regexp.MustCompile(`[0-9]`)
)

// ClassifyText picks the label for one OCR region. Document vocabulary wins
// over the plate pattern because plate-like numbers show up on ID cards.
func ClassifyText(text string) privacy.Label {
	if documentVocabulary.MatchString(text) {
		return privacy.LabelDocument
	}
	if IsPlate(text) {
		return privacy.LabelPlate
	}
	return privacy.LabelText
}

func IsPlate(text string) bool {
	t := strings.ToUpper(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if plateLDL.MatchString(t) {
		return true
	}
	return plateGroups.MatchString(t) && hasDigit.MatchString(t)
}
