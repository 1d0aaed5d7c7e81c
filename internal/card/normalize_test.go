package card

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeName", func() {
	DescribeTable("accepted names",
		func(in, want string) {
			got, ok := NormalizeName(in)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(want))
		},
		Entry("title-cases uppercase", "JOHN SMITH", "John Smith"),
		Entry("collapses commas", "SMITH, JOHN", "Smith John"),
		Entry("drops card vocabulary", "John Smith Card", "John Smith"),
		Entry("keeps apostrophes", "o'brien", "O'brien"),
		Entry("skips words with digits", "John3 Smith", "Smith"),
	)

	DescribeTable("rejected names",
		func(in string) {
			_, ok := NormalizeName(in)
			Expect(ok).To(BeFalse())
		},
		Entry("single character", "J"),
		Entry("only card vocabulary", "Insurance Card"),
		Entry("too many words", "Anna Beth Cara Dawn Erin"),
		Entry("no valid words", "12 34"),
	)
})

var _ = Describe("NormalizeMemberID", func() {
	It("uppercases and collapses runs of spaces", func() {
		Expect(NormalizeMemberID("ab  12 34 56")).To(Equal("AB 12 34 56"))
	})

	It("strips spaces when the spaced form is too long", func() {
		Expect(NormalizeMemberID("AB 12 34 56 78 90 12 34 56 78")).To(Equal("AB123456789012345678"))
	})

	It("returns unexpected shapes unchanged", func() {
		Expect(NormalizeMemberID("ab_1234")).To(Equal("ab_1234"))
	})
})

var _ = Describe("NormalizeExpiryDate", func() {
	DescribeTable("formats",
		func(in, want string) {
			Expect(NormalizeExpiryDate(in)).To(Equal(want))
		},
		Entry("month/day/short year", "3/5/24", "03/05/2024"),
		Entry("month/day/year with dashes", "12-31-2027", "12/31/2027"),
		Entry("month/year", "12/2027", "12/01/2027"),
		Entry("short month/short year", "7-28", "07/01/2028"),
		Entry("year/month/day", "2027-12-31", "12/31/2027"),
		Entry("surrounding noise", " 03/05/2024.", "03/05/2024"),
		Entry("unrecognised", "soon", "soon"),
		Entry("unrecognised input keeps its noise", "Exp. 2025", "Exp. 2025"),
	)
})

var _ = Describe("IsExpired", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	})

	It("is true for past dates", func() {
		Expect(IsExpired("12/31/2025", now)).To(BeTrue())
	})

	It("is false for future dates", func() {
		Expect(IsExpired("01/31/2030", now)).To(BeFalse())
	})

	It("is false for dates that do not parse", func() {
		Expect(IsExpired("garbage", now)).To(BeFalse())
		Expect(IsExpired("aa/bb/cccc", now)).To(BeFalse())
	})
})

var _ = Describe("CanonicalProvider", func() {
	DescribeTable("known insurers",
		func(in, want string) {
			Expect(CanonicalProvider(in)).To(Equal(want))
		},
		Entry("sun life", "SUN LIFE", "Sun Life Financial"),
		Entry("great-west", "Great-West Life", "Great-West Life"),
		Entry("gsc", "gsc", "Green Shield Canada"),
		Entry("table order wins over position", "medavie blue cross", "Blue Cross"),
	)

	It("returns unknown names unchanged", func() {
		Expect(CanonicalProvider("Acme Health")).To(Equal("Acme Health"))
	})

	It("lists each display name once", func() {
		names := Providers()
		Expect(names).To(ContainElement("Green Shield Canada"))
		Expect(names).To(HaveLen(9))
	})
})
