package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/storage"
)

var submissionTypes = map[string]bool{
	"abstract": true,
	"article":  true,
	"poster":   true,
}

// ParticipantOverview handles GET /participant/overview: the caller's
// registration, payment and submissions in one shot. A participant
// without a registration still gets a 200 with null fields.
func (a *API) ParticipantOverview(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())

	resp := OverviewResponse{Success: true, User: id, Submissions: []storage.Submission{}}

	reg, err := a.repo.Registrations().GetByUserID(r.Context(), id.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.writeStoreError(w, r, err)
		return
	}
	if reg != nil {
		resp.Registration = reg

		payment, err := a.repo.Payments().GetByRegistrationID(r.Context(), reg.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.writeStoreError(w, r, err)
			return
		}
		resp.Payment = payment

		subs, err := a.repo.Submissions().ListByRegistrationID(r.Context(), reg.ID)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		resp.Submissions = subs
	}

	writeJSON(w, http.StatusOK, resp)
}

// UploadReceipt handles POST /participant/receipt. The receipt lands in
// the object store under the caller's payments prefix and the payment
// moves to under_review.
func (a *API) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())

	file, header, ok := a.openUpload(w, r, "receipt")
	if !ok {
		return
	}
	defer file.Close()

	reg, err := a.repo.Registrations().GetByUserID(r.Context(), id.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	payment, err := a.lookupPayment(r, reg.ID, strings.TrimSpace(r.FormValue("paymentId")))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	key := auth.FileKey(auth.PurposePayments, id.Email, header.Filename)
	if err := a.objects.Put(r.Context(), key, formContentType(header), file); err != nil {
		a.audit.logger.ErrorContext(r.Context(), "receipt upload", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	if err := a.repo.Payments().SetReceipt(r.Context(), payment.ID, key, header.Filename); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditReceiptUploaded, r, id.ID, slog.String("payment_id", payment.ID))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// lookupPayment resolves the payment being paid: an explicit ID must
// belong to the caller's registration; otherwise the registration's
// payment is used.
func (a *API) lookupPayment(r *http.Request, registrationID, paymentID string) (*storage.Payment, error) {
	if paymentID == "" {
		return a.repo.Payments().GetByRegistrationID(r.Context(), registrationID)
	}
	payment, err := a.repo.Payments().GetByID(r.Context(), paymentID)
	if err != nil {
		return nil, err
	}
	if payment.RegistrationID != registrationID {
		return nil, storage.ErrNotFound
	}
	return payment, nil
}

// UploadSubmission handles POST /participant/submissions: stores the
// file under the caller's submissions prefix and records the row.
func (a *API) UploadSubmission(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())

	file, header, ok := a.openUpload(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	subType := strings.TrimSpace(r.FormValue("type"))
	if !submissionTypes[subType] {
		writeError(w, http.StatusBadRequest, "type required")
		return
	}

	reg, err := a.repo.Registrations().GetByUserID(r.Context(), id.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	key := auth.FileKey(auth.PurposeSubmissions, id.Email, header.Filename)
	if err := a.objects.Put(r.Context(), key, formContentType(header), file); err != nil {
		a.audit.logger.ErrorContext(r.Context(), "submission upload", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	sub := &storage.Submission{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		UserID:         id.ID,
		Type:           subType,
		Title:          strings.TrimSpace(r.FormValue("title")),
		FilePath:       key,
		FileName:       header.Filename,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.repo.Submissions().Create(r.Context(), sub); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditSubmissionUploaded, r, id.ID,
		slog.String("submission_id", sub.ID), slog.String("type", subType))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
