package policy_test

import (
	"github.com/frahmantamala/medichat/internal/policy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MaskContent", func() {
	const text = "Patient was diagnosed with type 2 diabetes. Insurance ID: ABC123 on file."

	It("leaves content untouched when the user may see both fields", func() {
		perms := []string{"insurance:view", "diagnosis:view"}
		Expect(policy.MaskContent(text, perms)).To(Equal(text))
	})

	It("redacts insurance ids without insurance:view", func() {
		masked := policy.MaskContent(text, []string{"diagnosis:view"})
		Expect(masked).To(ContainSubstring("insurance id: [REDACTED]"))
		Expect(masked).NotTo(ContainSubstring("ABC123"))
		Expect(masked).To(ContainSubstring("type 2 diabetes"))
	})

	It("redacts diagnoses without diagnosis:view", func() {
		masked := policy.MaskContent(text, []string{"insurance:view"})
		Expect(masked).To(ContainSubstring("diagnosed with [SENSITIVE MEDICAL INFORMATION]. "))
		Expect(masked).NotTo(ContainSubstring("diabetes"))
		Expect(masked).To(ContainSubstring("ABC123"))
	})

	It("handles empty content", func() {
		Expect(policy.MaskContent("", nil)).To(BeEmpty())
	})
})
