package prompt

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/medichat/internal/policy"
)

const baselineInstruction = "You are a medical assistant following strict privacy and security guidelines. " +
	"You can only discuss medical information that the user has access to based on their role. " +
	"Always respect confidentiality and privacy of medical data."

var modeClauses = map[Classification]string{
	ClassificationView:   "You are in VIEW mode - only provide information, do not suggest or allow changes to records.",
	ClassificationUpdate: "You are in UPDATE mode - you can suggest updates to records the user has access to.",
	ClassificationCreate: "You are in CREATE mode - you can help create new records within the user's permission scope.",
	ClassificationDelete: "You are in DELETE mode - you can discuss deletion of records within the user's permission scope.",
}

// BuildSystemPrompt composes the system prompt. Clauses always appear in the
// order baseline, mode, department, sensitivity, specialization.
func BuildSystemPrompt(classification Classification, filters policy.Filters) string {
	clauses := []string{baselineInstruction}

	if mode, ok := modeClauses[classification]; ok {
		clauses = append(clauses, mode)
	}

	if filters.Department != "" {
		clauses = append(clauses, fmt.Sprintf(
			"The user belongs to the %s department - only discuss information related to this department.",
			filters.Department))
	}

	switch len(filters.Sensitivity) {
	case 0:
	case 1:
		clauses = append(clauses, fmt.Sprintf(
			"The user has access to %s sensitivity level only.", filters.Sensitivity[0]))
	default:
		clauses = append(clauses, fmt.Sprintf(
			"The user has access to %s sensitivity levels.", strings.Join(filters.Sensitivity, ", ")))
	}

	if filters.Specialization != "" {
		clauses = append(clauses, fmt.Sprintf(
			"The user's specialization is %s - focus responses on this area.", filters.Specialization))
	}

	return strings.Join(clauses, "\n")
}
