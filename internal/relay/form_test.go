package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/resend/resend-go/v2"
)

var submission = Submission{
	Subject:      "New My-Dietitian Assessment Submission",
	AutoResponse: "Thanks! We received your assessment.",
	FirstName:    "Jane",
	Email:        "jane@example.com",
	Fields: map[string]string{
		"first_name":   "Jane",
		"email":        "jane@example.com",
		"phone":        "(555) 123-4567",
		"province":     "ON",
		"benefits":     "Yes",
		"member-id":    "AB-1234-5678",
		"health_goals": "Weight management, Diabetes",
	},
	SubmittedAt: time.Date(2026, 10, 14, 15, 4, 5, 0, time.UTC),
}

var _ = Describe("FormRelay", func() {
	var (
		server *ghttp.Server
		relay  *FormRelay
		form   url.Values
		err    error
	)

	captureForm := func(w http.ResponseWriter, r *http.Request) {
		Expect(r.ParseForm()).To(Succeed())
		form = r.PostForm
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		form = nil
		relay = NewFormRelay("sheet", server.URL()+"/form/abc", true)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Deliver", func() {
		JustBeforeEach(func() {
			err = relay.Deliver(context.Background(), submission)
		})

		When("the collector accepts the form", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/form/abc"),
					ghttp.VerifyContentType("application/x-www-form-urlencoded"),
					captureForm,
					ghttp.RespondWith(http.StatusOK, `{"ok":true}`),
				))
			})

			It("posts the fields", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(form.Get("member-id")).To(Equal("AB-1234-5678"))
				Expect(form.Get("phone")).To(Equal("(555) 123-4567"))
			})

			It("leaves out mailer controls", func() {
				Expect(form).NotTo(HaveKey("_subject"))
				Expect(form).NotTo(HaveKey("_captcha"))
			})
		})

		When("the relay mails", func() {
			BeforeEach(func() {
				relay = NewFormRelay("formspree", server.URL()+"/f/xyz", true).WithMailerFields()
				server.AppendHandlers(ghttp.CombineHandlers(captureForm, ghttp.RespondWith(http.StatusOK, "")))
			})

			It("adds the mailer controls", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(form.Get("_subject")).To(Equal(submission.Subject))
				Expect(form.Get("_autoresponse")).To(Equal(submission.AutoResponse))
				Expect(form.Get("_captcha")).To(Equal("false"))
			})
		})

		When("the collector rejects the form", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusUnprocessableEntity, "missing email"))
			})

			It("returns the status", func() {
				Expect(err).To(MatchError(ContainSubstring("status 422")))
				Expect(err).To(MatchError(ContainSubstring("missing email")))
			})
		})
	})

	It("reports its name and criticality", func() {
		Expect(relay.Name()).To(Equal("sheet"))
		Expect(relay.Critical()).To(BeTrue())
	})
})

var _ = Describe("EmailJSRelay", func() {
	var (
		server  *ghttp.Server
		relay   *EmailJSRelay
		request emailJSRequest
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		relay = NewEmailJSRelay(EmailJSConfig{
			ServiceID:  "service_1",
			TemplateID: "template_1",
			PublicKey:  "public",
			PrivateKey: "private",
			URL:        server.URL() + "/api/v1.0/email/send",
		})
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		err = relay.Deliver(context.Background(), submission)
	})

	When("EmailJS accepts the message", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/v1.0/email/send"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, rerr := io.ReadAll(r.Body)
					Expect(rerr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &request)).To(Succeed())
				},
				ghttp.RespondWith(http.StatusOK, "OK"),
			))
		})

		It("sends the account identifiers", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(request.ServiceID).To(Equal("service_1"))
			Expect(request.TemplateID).To(Equal("template_1"))
			Expect(request.UserID).To(Equal("public"))
			Expect(request.AccessToken).To(Equal("private"))
		})

		It("fills the template parameters", func() {
			Expect(request.TemplateParams).To(HaveKeyWithValue("name", "Jane"))
			Expect(request.TemplateParams).To(HaveKeyWithValue("to_email", "jane@example.com"))
			Expect(request.TemplateParams).To(HaveKeyWithValue("member_id", "AB-1234-5678"))
			Expect(request.TemplateParams).To(HaveKeyWithValue("health_goals", "Weight management, Diabetes"))
			Expect(request.TemplateParams["html_body"]).To(ContainSubstring("Thanks, Jane!"))
		})
	})

	When("EmailJS rejects the message", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadRequest, "The template ID is invalid"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("template ID is invalid")))
		})
	})
})

var _ = Describe("ResendRelay", func() {
	var (
		server *ghttp.Server
		relay  *ResendRelay
		sent   resend.SendEmailRequest
		sub    Submission
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client := resend.NewClient("re_test")
		base, perr := url.Parse(server.URL() + "/")
		Expect(perr).NotTo(HaveOccurred())
		client.BaseURL = base
		relay = NewResendRelayWithClient(client, "")
		sub = submission
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Deliver", func() {
		JustBeforeEach(func() {
			err = relay.Deliver(context.Background(), sub)
		})

		When("Resend accepts the email", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/emails"),
					ghttp.VerifyHeaderKV("Authorization", "Bearer re_test"),
					func(w http.ResponseWriter, r *http.Request) {
						body, rerr := io.ReadAll(r.Body)
						Expect(rerr).NotTo(HaveOccurred())
						Expect(json.Unmarshal(body, &sent)).To(Succeed())
					},
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"id": "email_1"}),
				))
			})

			It("emails the patient", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(sent.To).To(ConsistOf("jane@example.com"))
				Expect(sent.From).To(ContainSubstring("My-Dietitian"))
				Expect(sent.Html).To(ContainSubstring("Thanks, Jane!"))
			})
		})

		When("the submission has no email", func() {
			BeforeEach(func() {
				sub.Email = ""
			})

			It("fails without calling Resend", func() {
				Expect(err).To(HaveOccurred())
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})

	It("is not critical", func() {
		Expect(relay.Critical()).To(BeFalse())
	})
})
