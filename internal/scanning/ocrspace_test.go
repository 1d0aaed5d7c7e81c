package scanning

import (
	"bytes"
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"golang.org/x/time/rate"
)

var _ = Describe("OCRSpace", func() {
	var (
		server      *ghttp.Server
		scanner     *OCRSpace
		imageData   []byte
		contentType string
		forms       []map[string]string
		text        string
		err         error
	)

	recordForm := func(w http.ResponseWriter, r *http.Request) {
		Expect(r.ParseMultipartForm(2 << 20)).To(Succeed())
		form := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		_, header, ferr := r.FormFile("file")
		Expect(ferr).NotTo(HaveOccurred())
		form["filename"] = header.Filename
		forms = append(forms, form)
	}

	respond := func(body map[string]any) http.HandlerFunc {
		return ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/parse/image"),
			recordForm,
			ghttp.RespondWithJSONEncoded(http.StatusOK, body),
		)
	}

	parsed := func(text string) map[string]any {
		return map[string]any{
			"ParsedResults":         []map[string]any{{"ParsedText": text, "FileParseExitCode": 1}},
			"OCRExitCode":           1,
			"IsErroredOnProcessing": false,
		}
	}

	failed := func(msg any) map[string]any {
		return map[string]any{
			"OCRExitCode":           3,
			"IsErroredOnProcessing": true,
			"ErrorMessage":          msg,
		}
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		forms = nil
		imageData = bytes.Repeat([]byte{0xFF}, 20*1024)
		contentType = "image/jpeg"

		var nerr error
		scanner, nerr = NewOCRSpace("test-key", server.URL()+"/parse/image")
		Expect(nerr).NotTo(HaveOccurred())
		scanner.BaseDelay = time.Millisecond
		scanner.Limiter = rate.NewLimiter(rate.Inf, 1)
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ScanText(context.Background(), imageData, contentType)
	})

	When("the first attempt succeeds", func() {
		BeforeEach(func() {
			server.AppendHandlers(respond(parsed("Sun Life\r\nMember ID: 123456")))
		})

		It("returns the text with unix line endings", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Sun Life\nMember ID: 123456"))
		})

		It("sends the OCR options", func() {
			Expect(forms).To(HaveLen(1))
			Expect(forms[0]).To(HaveKeyWithValue("apikey", "test-key"))
			Expect(forms[0]).To(HaveKeyWithValue("language", "eng"))
			Expect(forms[0]).To(HaveKeyWithValue("isOverlayRequired", "false"))
			Expect(forms[0]).To(HaveKeyWithValue("detectOrientation", "true"))
			Expect(forms[0]).To(HaveKeyWithValue("OCREngine", "1"))
			Expect(forms[0]).To(HaveKeyWithValue("filetype", "JPG"))
			Expect(forms[0]).To(HaveKeyWithValue("filename", "insurance-card.jpg"))
		})
	})

	When("the service times out twice", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				respond(failed([]string{"E101: Timed out waiting for results"})),
				respond(failed([]string{"E101: Timed out waiting for results"})),
				respond(parsed("Group: 445566")),
			)
		})

		It("retries and succeeds", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Group: 445566"))
		})

		It("switches to engine 2 on the last attempt", func() {
			Expect(forms).To(HaveLen(3))
			Expect(forms[0]["OCREngine"]).To(Equal("1"))
			Expect(forms[1]["OCREngine"]).To(Equal("1"))
			Expect(forms[2]["OCREngine"]).To(Equal("2"))
		})
	})

	When("the service keeps timing out", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				server.AppendHandlers(respond(failed("E101: Timed out waiting for results")))
			}
		})

		It("returns ErrTimedOut", func() {
			Expect(err).To(MatchError(ErrTimedOut))
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})
	})

	When("the service fails to process the image", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				respond(failed([]string{"E102: Unable to recognize the file type"})),
				respond(parsed("Plan: PX-200")),
			)
		})

		It("retries", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Plan: PX-200"))
		})
	})

	When("the service returns an unknown error", func() {
		BeforeEach(func() {
			server.AppendHandlers(respond(failed([]string{"E500: Something broke"})))
		})

		It("does not retry", func() {
			Expect(err).To(MatchError(ContainSubstring("E500")))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("no results are ever parsed", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				server.AppendHandlers(respond(map[string]any{"IsErroredOnProcessing": false}))
			}
		})

		It("returns ErrNoText after every attempt", func() {
			Expect(err).To(MatchError(ErrNoText))
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})
	})

	When("the parsed text is blank", func() {
		BeforeEach(func() {
			server.AppendHandlers(respond(parsed("  \r\n ")))
		})

		It("returns ErrNoText without retrying", func() {
			Expect(err).To(MatchError(ErrNoText))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the service is rate limiting", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, "slow down"))
		})

		It("returns ErrRateLimited", func() {
			Expect(err).To(MatchError(ErrRateLimited))
		})
	})

	When("the api key is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, ""))
		})

		It("returns ErrUnauthorized", func() {
			Expect(err).To(MatchError(ErrUnauthorized))
		})
	})

	When("the service cannot be reached", func() {
		BeforeEach(func() {
			server.Close()
		})

		It("retries and returns the transport error", func() {
			Expect(err).To(MatchError(ContainSubstring("after 3 attempts")))
		})
	})

	When("the image is too small", func() {
		BeforeEach(func() {
			imageData = bytes.Repeat([]byte{0xFF}, 1024)
		})

		It("returns ErrImageTooSmall without calling the service", func() {
			Expect(err).To(MatchError(ErrImageTooSmall))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("the image is too large", func() {
		BeforeEach(func() {
			imageData = bytes.Repeat([]byte{0xFF}, 2*1024*1024)
		})

		It("returns ErrImageTooLarge without calling the service", func() {
			Expect(err).To(MatchError(ErrImageTooLarge))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			contentType = "text/plain"
		})

		It("returns ErrUnsupportedType", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})

	When("the upload is a PNG", func() {
		BeforeEach(func() {
			contentType = "image/png"
			server.AppendHandlers(respond(parsed("Manulife")))
		})

		It("sends the PNG filetype", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(forms[0]).To(HaveKeyWithValue("filetype", "PNG"))
			Expect(forms[0]).To(HaveKeyWithValue("filename", "insurance-card.png"))
		})
	})
})

var _ = Describe("NewOCRSpace", func() {
	It("requires an api key", func() {
		_, err := NewOCRSpace("", "")
		Expect(err).To(HaveOccurred())
	})

	It("defaults the url", func() {
		s, err := NewOCRSpace("key", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.url).To(Equal(defaultOCRSpaceURL))
		Expect(s.MaxAttempts).To(Equal(3))
	})
})
