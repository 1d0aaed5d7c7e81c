package intake

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "cards"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create a private directory", func() {
		info, err := os.Stat(filepath.Join(tmpDir, "cards"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0700)))
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "card.jpg"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, []byte("card"))
		})

		When("saving succeeds", func() {
			It("should return the file name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal("card.jpg"))
			})

			It("should write a private file", func() {
				info, err := os.Stat(filepath.Join(tmpDir, "cards", "card.jpg"))
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))
			})

			It("should be readable back", func() {
				data, err := storage.Get(savedPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("card")))
			})
		})

		When("the name tries to escape the directory", func() {
			BeforeEach(func() {
				filename = "../../escape.jpg"
			})

			It("should keep the file inside the directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal("escape.jpg"))
				Expect(filepath.Join(tmpDir, "escape.jpg")).NotTo(BeAnExistingFile())
				Expect(filepath.Join(tmpDir, "cards", "escape.jpg")).To(BeAnExistingFile())
			})
		})

		When("the name is empty", func() {
			BeforeEach(func() {
				filename = ""
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid file name")))
			})
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("card.jpg", []byte("card"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("card.jpg")).To(Succeed())
			_, err = storage.Get("card.jpg")
			Expect(err).To(HaveOccurred())
		})

		It("should return an error for missing files", func() {
			Expect(storage.Delete("missing.jpg")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
