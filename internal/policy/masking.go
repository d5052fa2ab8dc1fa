package policy

import "regexp"

var (
	insuranceIDPattern = regexp.MustCompile(`(?i)insurance id: \w+`)
	diagnosisPattern   = regexp.MustCompile(`(?i)diagnosed with ([^.]+)`)
)

// MaskContent redacts fields the holder of permissions may not see.
func MaskContent(content string, permissions []string) string {
	if content == "" {
		return content
	}

	if !HasPermission(permissions, ResourceInsurance, ActionView) {
		content = insuranceIDPattern.ReplaceAllString(content, "insurance id: [REDACTED]")
	}

	if !HasPermission(permissions, ResourceDiagnosis, ActionView) {
		content = diagnosisPattern.ReplaceAllString(content, "diagnosed with [SENSITIVE MEDICAL INFORMATION]")
	}

	return content
}
