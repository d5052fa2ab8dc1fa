package validation_test

import (
	"strings"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type item struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

type payload struct {
	Items []item `json:"items" validate:"required,min=1,max=2,dive"`
	Email string `json:"email" validate:"omitempty,email"`
}

var _ = Describe("Struct", func() {
	It("accepts a valid value", func() {
		Expect(validation.Struct(payload{Items: []item{{Role: "user", Content: "hi"}}})).To(BeNil())
	})

	It("reports nested fields by their JSON path", func() {
		err := validation.Struct(payload{Items: []item{{Role: "robot"}}})
		Expect(err).NotTo(BeNil())
		Expect(err.Type).To(Equal(internal.ErrorTypeValidation))

		details := err.Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(1))
		Expect(details.Errors[0].Field).To(Equal("items[0].role"))
		Expect(details.Errors[0].Message).To(ContainSubstring("one of"))
	})

	It("enforces the byte limit on content", func() {
		big := strings.Repeat("x", validation.MaxContentBytes+1)
		err := validation.Struct(payload{Items: []item{{Role: "user", Content: big}}})
		Expect(err).NotTo(BeNil())
		Expect(err.GetDetailedMessage()).To(ContainSubstring("bytes"))
	})

	It("enforces slice bounds", func() {
		err := validation.Struct(payload{Items: []item{}})
		Expect(err).NotTo(BeNil())

		err = validation.Struct(payload{Items: []item{{Role: "user"}, {Role: "user"}, {Role: "user"}}})
		Expect(err).NotTo(BeNil())
		Expect(err.GetDetailedMessage()).To(ContainSubstring("more than 2"))
	})
})
