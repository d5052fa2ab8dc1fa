package prompt_test

import (
	"strings"

	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/prompt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BuildSystemPrompt", func() {
	It("emits only the baseline and mode for empty filters", func() {
		out := prompt.BuildSystemPrompt(prompt.ClassificationView, policy.Filters{})
		lines := strings.Split(out, "\n")

		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(HavePrefix("You are a medical assistant"))
		Expect(lines[1]).To(ContainSubstring("VIEW mode"))
	})

	It("omits the mode clause for non-intent classifications", func() {
		out := prompt.BuildSystemPrompt(prompt.ClassificationUnknown, policy.Filters{})
		Expect(strings.Split(out, "\n")).To(HaveLen(1))
	})

	It("orders clauses baseline, mode, department, sensitivity, specialization", func() {
		out := prompt.BuildSystemPrompt(prompt.ClassificationCreate, policy.Filters{
			Department:     "Oncology",
			Sensitivity:    []string{policy.SensitivityNormal, policy.SensitivitySensitive},
			Specialization: "Radiology",
		})
		lines := strings.Split(out, "\n")

		Expect(lines).To(HaveLen(5))
		Expect(lines[1]).To(ContainSubstring("CREATE mode"))
		Expect(lines[2]).To(Equal("The user belongs to the Oncology department - only discuss information related to this department."))
		Expect(lines[3]).To(Equal("The user has access to Normal, Sensitive sensitivity levels."))
		Expect(lines[4]).To(Equal("The user's specialization is Radiology - focus responses on this area."))
	})

	It("words a single sensitivity level differently", func() {
		out := prompt.BuildSystemPrompt(prompt.ClassificationDelete, policy.Filters{
			Sensitivity: []string{policy.SensitivityNormal},
		})
		Expect(out).To(ContainSubstring("The user has access to Normal sensitivity level only."))
		Expect(out).To(ContainSubstring("DELETE mode"))
	})
})
