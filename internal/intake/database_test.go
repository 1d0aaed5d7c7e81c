package intake

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/card-intake/internal/card"
	"github.com/zombor/card-intake/internal/relay"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
		now    time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		now = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("scans", func() {
		var scan *CardScan

		BeforeEach(func() {
			scan = &CardScan{
				ID:          "scan-1",
				Filename:    "scan-1_card.jpg",
				ContentType: "image/jpeg",
				Text:        "Member ID: SL-7788-1234",
				Record:      card.Record{MemberID: "SL-7788-1234"},
				CreatedAt:   now,
			}
		})

		When("a scan is saved", func() {
			BeforeEach(func() {
				Expect(db.SaveScan(scan)).To(Succeed())
			})

			It("should be retrievable by ID", func() {
				got, err := db.GetScan("scan-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Record.MemberID).To(Equal("SL-7788-1234"))
				Expect(got.CreatedAt.Equal(now)).To(BeTrue())
			})

			It("should be listed", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).To(HaveLen(1))
			})

			It("should be deletable", func() {
				Expect(db.DeleteScan("scan-1")).To(Succeed())
				_, err := db.GetScan("scan-1")
				Expect(err).To(MatchError(ErrNotFound))
			})

			It("should survive reopening the database", func() {
				Expect(db.Close()).To(Succeed())
				var err error
				db, err = NewBoltDB(dbPath)
				Expect(err).NotTo(HaveOccurred())
				got, err := db.GetScan("scan-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Text).To(Equal("Member ID: SL-7788-1234"))
			})
		})

		When("the scan does not exist", func() {
			It("should return ErrNotFound on get", func() {
				_, err := db.GetScan("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})

			It("should return ErrNotFound on delete", func() {
				Expect(db.DeleteScan("missing")).To(MatchError(ErrNotFound))
			})
		})

		When("several scans exist", func() {
			BeforeEach(func() {
				for i, id := range []string{"a", "b", "c"} {
					Expect(db.SaveScan(&CardScan{ID: id, CreatedAt: now.Add(time.Duration(i) * time.Hour)})).To(Succeed())
				}
			})

			It("should list them newest first", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).To(HaveLen(3))
				Expect(scans[0].ID).To(Equal("c"))
				Expect(scans[2].ID).To(Equal("a"))
			})
		})
	})

	Describe("leads", func() {
		When("a lead is saved twice", func() {
			BeforeEach(func() {
				lead := &Lead{ID: "lead-1", Form: LeadForm{FirstName: "Jane"}, CreatedAt: now, UpdatedAt: now}
				Expect(db.SaveLead(lead)).To(Succeed())
				lead.Submission = &relay.Result{Success: true, Delivered: map[string]bool{"sheet": true}}
				Expect(db.SaveLead(lead)).To(Succeed())
			})

			It("should keep the latest version", func() {
				got, err := db.GetLead("lead-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Form.FirstName).To(Equal("Jane"))
				Expect(got.Submission.Delivered).To(HaveKeyWithValue("sheet", true))
			})

			It("should list a single lead", func() {
				leads, err := db.ListLeads()
				Expect(err).NotTo(HaveOccurred())
				Expect(leads).To(HaveLen(1))
			})
		})

		When("the lead does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetLead("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("no leads exist", func() {
			It("should return an empty list", func() {
				leads, err := db.ListLeads()
				Expect(err).NotTo(HaveOccurred())
				Expect(leads).To(BeEmpty())
			})
		})
	})
})
