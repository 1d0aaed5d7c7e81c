package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/card-intake/internal/card"
	"github.com/zombor/card-intake/internal/directory"
	"github.com/zombor/card-intake/internal/handoff"
	"github.com/zombor/card-intake/internal/relay"
	"github.com/zombor/card-intake/internal/scanning"
)

// maxUploadSize bounds the multipart form, the scanner applies its own image limits
const maxUploadSize = int64(10 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// scanStatus maps scanner failures to HTTP status codes and visitor-facing messages
func scanStatus(err error) (int, string) {
	switch {
	case errors.Is(err, scanning.ErrImageTooLarge):
		return http.StatusBadRequest, "Image is too large. Please upload an image under 1MB."
	case errors.Is(err, scanning.ErrImageTooSmall):
		return http.StatusBadRequest, "Image is too small. Please upload a clearer photo of your card."
	case errors.Is(err, scanning.ErrUnsupportedType):
		return http.StatusBadRequest, "Please upload an image or PDF of your insurance card."
	case errors.Is(err, scanning.ErrNoText):
		return http.StatusUnprocessableEntity, "No text could be read from the card. Please try a clearer photo."
	case errors.Is(err, scanning.ErrRateLimited):
		return http.StatusTooManyRequests, "Card scanning is busy. Please try again in a moment."
	case errors.Is(err, ErrScannerUnavailable):
		return http.StatusServiceUnavailable, "Card scanning is not available. Please enter your details manually."
	}
	return http.StatusBadGateway, "Card scanning failed. Please try again or enter your details manually."
}

// contentTypeFor determines the upload content type from the part header or the extension
func contentTypeFor(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleStatic serves an embedded asset
func (s *Server) handleStatic(body []byte, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}
}

// handleIndex serves the assessment page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleScanCard handles card image upload
func (s *Server) handleScanCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 10MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	scan, err := s.service.ScanCard(r.Context(), header.Filename, data, contentType)
	if err != nil {
		code, message := scanStatus(err)
		writeError(w, code, message)
		return
	}

	writeJSON(w, http.StatusCreated, scan)
}

// handleExtractText runs the extractor over text the browser already recognised
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, s.service.ExtractText(req.Text))
}

// handleListScans returns all card scans
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single card scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Scan not found")
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanImage returns the image for a card scan
func (s *Server) handleGetScanImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetScanImage(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a card scan
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteScan(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		slog.Error("Error deleting scan", "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting scan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeLeadForm reads the assessment from JSON or a regular form post
func decodeLeadForm(w http.ResponseWriter, r *http.Request) (LeadForm, bool, error) {
	var form LeadForm
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&form)
		return form, true, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseForm(); err != nil {
		return form, false, err
	}
	form = LeadForm{
		FirstName:   r.PostForm.Get("first_name"),
		LastName:    r.PostForm.Get("last_name"),
		DateOfBirth: r.PostForm.Get("date_of_birth"),
		Email:       r.PostForm.Get("email"),
		Phone:       r.PostForm.Get("phone"),
		Province:    r.PostForm.Get("province"),
		Benefits:    r.PostForm.Get("benefits"),
		Insurance:   r.PostForm.Get("insurance"),
		MemberID:    r.PostForm.Get("member-id"),
		GroupNumber: r.PostForm.Get("group-number"),
		HealthGoals: r.PostForm["health_goals"],
		Location:    r.PostForm.Get("location"),
		Specialty:   r.PostForm.Get("specialty"),
		ScanID:      r.PostForm.Get("scan_id"),
	}
	return form, false, nil
}

// handleSubmitLead handles the assessment form.
// JSON callers get the outcome as JSON, plain form posts are redirected.
func (s *Server) handleSubmitLead(w http.ResponseWriter, r *http.Request) {
	form, isJSON, err := decodeLeadForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lead, outcome, err := s.service.SubmitLead(r.Context(), form)
	if err != nil {
		var invalid *ValidationError
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "Please correct the highlighted fields",
				"fields": invalid.Fields,
			})
		case errors.Is(err, relay.ErrAllFailed):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   "There was an error submitting your assessment. Please try again.",
				"lead_id": lead.ID,
			})
		default:
			slog.Error("Error submitting lead", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if !isJSON {
		http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
		return
	}

	code := http.StatusCreated
	if lead == nil {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"lead":     lead,
		"redirect": outcome.Redirect,
	})
}

// handleListLeads returns all leads
func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.service.ListLeads()
	if err != nil {
		slog.Error("Error listing leads", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

// handleGetLead returns a single lead
func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.service.GetLead(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// handleExportCSV downloads every lead as CSV
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportLeadsCSV(&buf); err != nil {
		slog.Error("Error exporting leads", "format", "csv", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	w.Write(buf.Bytes())
}

// handleExportXLSX downloads every lead as a workbook
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportLeadsXLSX(&buf); err != nil {
		slog.Error("Error exporting leads", "format", "xlsx", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	w.Write(buf.Bytes())
}

// handleProviders returns the filtered provider directory
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	filter := directory.ParseFilter(r.URL.Query())
	writeJSON(w, http.StatusOK, s.directory.Search(filter))
}

// handoffStatus maps handoff errors to HTTP status codes
func handoffStatus(err error) int {
	switch {
	case errors.Is(err, handoff.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, handoff.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, handoff.ErrAlreadyDelivered):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleHandoffOpen opens a mailbox for the desktop browser
func (s *Server) handleHandoffOpen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.hub.Open())
}

// handleHandoffDeliver accepts the card the phone scanned
func (s *Server) handleHandoffDeliver(w http.ResponseWriter, r *http.Request) {
	var record card.Record
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	envelope, err := s.hub.Deliver(r.PathValue("id"), record)
	if err != nil {
		writeError(w, handoffStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, envelope)
}

// handleHandoffWait long-polls until the phone delivers a card
func (s *Server) handleHandoffWait(w http.ResponseWriter, r *http.Request) {
	envelope, err := s.hub.Wait(r.Context(), r.PathValue("id"))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, handoffStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}
