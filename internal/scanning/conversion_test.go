package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("conversion", func() {
	Describe("normalizeMimeType", func() {
		It("lowercases and drops parameters", func() {
			Expect(normalizeMimeType(" Image/PNG; charset=binary ")).To(Equal("image/png"))
		})

		It("defaults to JPEG", func() {
			Expect(normalizeMimeType("")).To(Equal("image/jpeg"))
		})
	})

	Describe("checkContentType", func() {
		It("accepts images and PDFs", func() {
			Expect(checkContentType("image/webp")).To(Succeed())
			Expect(checkContentType("application/pdf")).To(Succeed())
		})

		It("rejects everything else", func() {
			Expect(checkContentType("text/html")).To(MatchError(ErrUnsupportedType))
		})
	})

	Describe("isHEICFormat", func() {
		It("detects the ftyp brand", func() {
			data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
			Expect(isHEICFormat(data)).To(BeTrue())
		})

		It("ignores other data", func() {
			Expect(isHEICFormat([]byte("short"))).To(BeFalse())
			Expect(isHEICFormat(bytes.Repeat([]byte{1}, 32))).To(BeFalse())
		})
	})

	Describe("imageToPNG", func() {
		It("converts a GIF", func() {
			img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.White, color.Black})
			var buf bytes.Buffer
			Expect(gif.Encode(&buf, img, nil)).To(Succeed())

			out, err := imageToPNG(buf.Bytes(), "image/gif")
			Expect(err).NotTo(HaveOccurred())

			decoded, err := png.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.Bounds().Dx()).To(Equal(4))
		})

		It("rejects unknown formats", func() {
			_, err := imageToPNG([]byte("definitely not an image"), "image/jpeg")
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})

	Describe("prepareUpload", func() {
		It("passes JPEGs through untouched", func() {
			data := bytes.Repeat([]byte{0xAB}, 12*1024)
			out, fileType, err := prepareUpload(data, "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
			Expect(fileType).To(Equal("JPG"))
		})
	})
})
