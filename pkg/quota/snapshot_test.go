package quota_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/formu/pkg/quota"
)

var _ = Describe("Remaining", func() {
	It("maps a nil backend value to unlimited", func() {
		Expect(quota.FromNullable(nil).IsUnlimited()).To(BeTrue())

		n := 0
		r := quota.FromNullable(&n)
		Expect(r.IsUnlimited()).To(BeFalse())
		count, ok := r.Count()
		Expect(ok).To(BeTrue())
		Expect(count).To(BeZero())
	})

	It("renders for humans", func() {
		Expect(quota.Unlimited().String()).To(Equal("unlimited"))
		Expect(quota.Limited(4).String()).To(Equal("4"))
	})

	DescribeTable("decoding",
		func(input string, want quota.Remaining) {
			var r quota.Remaining
			Expect(json.Unmarshal([]byte(input), &r)).To(Succeed())
			Expect(r).To(Equal(want))
		},
		Entry("a count", `12`, quota.Limited(12)),
		Entry("zero", `0`, quota.Limited(0)),
		Entry("null", `null`, quota.Unlimited()),
		Entry("the unlimited literal", `"unlimited"`, quota.Unlimited()),
	)

	It("rejects other strings", func() {
		var r quota.Remaining
		Expect(json.Unmarshal([]byte(`"lots"`), &r)).NotTo(Succeed())
	})

	It("encodes unlimited as a string inside a snapshot", func() {
		out, err := json.Marshal(quota.Snapshot{Remaining: quota.Unlimited(), MaxUsage: quota.Limited(5)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring(`"remaining":"unlimited"`))
		Expect(string(out)).To(ContainSubstring(`"max_usage":5`))
	})
})
