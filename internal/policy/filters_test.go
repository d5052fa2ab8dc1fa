package policy_test

import (
	"encoding/json"

	"github.com/frahmantamala/medichat/internal/policy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DeriveFilters", func() {
	DescribeTable("sensitivity ladder",
		func(clearance int, expected []string) {
			filters := policy.DeriveFilters(policy.Attributes{Clearance: policy.Clearance(clearance)})
			if expected == nil {
				Expect(filters.Sensitivity).To(BeEmpty())
				Expect(filters.Map()).NotTo(HaveKey("sensitivity"))
				return
			}
			Expect(filters.Sensitivity).To(Equal(expected))
		},
		Entry("negative clearance", -1, []string{"Normal"}),
		Entry("clearance 0", 0, []string{"Normal"}),
		Entry("clearance 2", 2, []string{"Normal"}),
		Entry("clearance 3", 3, []string{"Normal", "Sensitive"}),
		Entry("clearance 4", 4, []string{"Normal", "Sensitive"}),
		Entry("clearance 5", 5, nil),
		Entry("clearance 9", 9, nil),
	)

	It("renders a single sensitivity level as a string", func() {
		filters := policy.DeriveFilters(policy.Attributes{Clearance: policy.Clearance(1)})
		Expect(filters.Map()["sensitivity"]).To(Equal("Normal"))
	})

	It("renders two sensitivity levels as an ordered list", func() {
		filters := policy.DeriveFilters(policy.Attributes{Clearance: policy.Clearance(3)})
		Expect(filters.Map()["sensitivity"]).To(Equal([]string{"Normal", "Sensitive"}))
	})

	It("copies department and specialization when present", func() {
		filters := policy.DeriveFilters(policy.Attributes{
			Department:     "Cardiology",
			Specialization: "Electrophysiology",
			Clearance:      policy.Clearance(2),
		})
		Expect(filters.Department).To(Equal("Cardiology"))
		Expect(filters.Specialization).To(Equal("Electrophysiology"))
		Expect(filters.Map()).To(Equal(map[string]any{
			"department":     "Cardiology",
			"sensitivity":    "Normal",
			"specialization": "Electrophysiology",
		}))
	})

	It("omits every key when no attribute is present", func() {
		filters := policy.DeriveFilters(policy.Attributes{})
		Expect(filters.IsEmpty()).To(BeTrue())
		Expect(filters.Map()).To(BeEmpty())
	})

	It("ignores role and extension attributes", func() {
		filters := policy.DeriveFilters(policy.Attributes{
			Role:  policy.RoleDoctor,
			Extra: map[string]string{"ward": "B"},
		})
		Expect(filters.IsEmpty()).To(BeTrue())
	})

	It("decodes both wire forms of sensitivity", func() {
		var single, list policy.Filters
		Expect(json.Unmarshal([]byte(`{"department":"ER","sensitivity":"Normal"}`), &single)).To(Succeed())
		Expect(single.Sensitivity).To(Equal([]string{"Normal"}))
		Expect(single.Department).To(Equal("ER"))

		Expect(json.Unmarshal([]byte(`{"sensitivity":["Normal","Sensitive"]}`), &list)).To(Succeed())
		Expect(list.Sensitivity).To(Equal([]string{"Normal", "Sensitive"}))
	})
})
