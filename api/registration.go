package api

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/mail"
	"github.com/openconf/regdesk/storage"
)

const minPasswordLen = 8

type pricing struct {
	Amount   int64
	Currency string
}

// priceTable maps participation type → package → local (UZS) and
// international (USD) fees.
var priceTable = map[string]map[string]struct{ UZ, Intl int64 }{
	"in-person": {
		"basic":   {UZ: 1_500_000, Intl: 250},
		"premium": {UZ: 2_500_000, Intl: 350},
	},
	"online": {
		"starter": {UZ: 2_000_000, Intl: 300},
	},
}

// memberDiscountRate is the association-member discount on local fees.
const memberDiscountRate = 0.1

func calculatePricing(participationType, participationPackage, participantCategory string) *pricing {
	if participationType == "" || participationPackage == "" || participantCategory == "" {
		return nil
	}
	byPackage, ok := priceTable[participationType]
	if !ok {
		return nil
	}
	fee, ok := byPackage[participationPackage]
	if !ok {
		return nil
	}
	if participantCategory == "international" {
		return &pricing{Amount: fee.Intl, Currency: "USD"}
	}
	amount := fee.UZ
	if participantCategory == "apu-member" {
		amount -= int64(float64(amount)*memberDiscountRate + 0.5)
	}
	return &pricing{Amount: amount, Currency: "UZS"}
}

// Register handles POST /registration: creates the account, the
// registration row and a pending payment with a generated invoice
// number, storing the optional membership proof first.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported content type")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
	if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	form := func(name string) string { return strings.TrimSpace(r.FormValue(name)) }

	name := form("name")
	email := strings.ToLower(form("email"))
	password := r.FormValue("password")
	participationType := form("participationType")
	participationPackage := form("participationPackage")
	participantCategory := form("participantCategory")

	consentData := form("consentData") == "true"
	consentRules := form("consentRules") == "true"
	consentMedia := form("consentMedia") == "true"

	if name == "" || email == "" || password == "" || participationType == "" || participantCategory == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if len(password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}
	if !consentData || !consentRules {
		writeError(w, http.StatusBadRequest, "consent required")
		return
	}

	price := calculatePricing(participationType, participationPackage, participantCategory)
	if price == nil {
		writeError(w, http.StatusBadRequest, "invalid pricing selection")
		return
	}

	proof, proofHeader, err := r.FormFile("membershipProof")
	if err != nil && participantCategory == "apu-member" {
		writeError(w, http.StatusBadRequest, "membership proof required")
		return
	}

	var proofPath, proofName string
	if err == nil {
		defer proof.Close()
		proofName = proofHeader.Filename
		proofPath = auth.FileKey(auth.PurposeMembership, email, proofName)
		if err := a.objects.Put(r.Context(), proofPath, formContentType(proofHeader), proof); err != nil {
			a.audit.logger.ErrorContext(r.Context(), "membership proof upload", "error", err)
			writeError(w, http.StatusInternalServerError, "file upload failed")
			return
		}
	}

	var experience *int
	if raw := form("experience"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			experience = &n
		}
	}

	cred, err := auth.HashPassword(password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now().UTC()
	userID := uuid.NewString()
	registrationID := uuid.NewString()
	paymentID := uuid.NewString()

	// Invoice sequence failures only cost the number, never the
	// registration itself.
	var invoiceNumber string
	if count, err := a.repo.Payments().Count(r.Context()); err == nil {
		invoiceNumber = fmt.Sprintf("INV-%d-%04d", now.Year(), count+1)
	} else {
		a.audit.logger.ErrorContext(r.Context(), "invoice sequence", "error", err)
	}

	user := &storage.User{
		ID:             userID,
		Email:          email,
		PasswordHash:   cred.Hash,
		PasswordSalt:   cred.Salt,
		Role:           auth.RoleParticipant,
		Name:           name,
		RegistrationID: registrationID,
		CreatedAt:      now,
	}
	reg := &storage.Registration{
		ID:                   registrationID,
		UserID:               userID,
		Name:                 name,
		Email:                email,
		ParticipationType:    participationType,
		ParticipationPackage: participationPackage,
		ParticipantCategory:  participantCategory,
		Birthdate:            form("birthdate"),
		Phone:                form("phone"),
		Telegram:             form("telegram"),
		City:                 form("city"),
		Country:              form("country"),
		Organization:         form("organization"),
		Position:             form("position"),
		Specialty:            form("specialty"),
		SpecialtyOther:       form("specialtyOther"),
		Experience:           experience,
		ConsentData:          consentData,
		ConsentRules:         consentRules,
		ConsentMedia:         consentMedia,
		MembershipProofPath:  proofPath,
		MembershipProofName:  proofName,
		CreatedAt:            now,
	}
	payment := &storage.Payment{
		ID:             paymentID,
		RegistrationID: registrationID,
		Status:         storage.StatusPending,
		Amount:         price.Amount,
		Currency:       price.Currency,
		InvoiceNumber:  invoiceNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.createRegistration(r.Context(), user, reg, payment, proofPath); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditRegistrationCreated, r, userID,
		slog.String("registration_id", registrationID),
		slog.String("invoice", invoiceNumber))

	a.sendMail(r, mail.Message{
		To:      email,
		ToName:  name,
		Cc:      a.cfg.SchoolEmail,
		Subject: "Регистрация получена",
		Text:    registrationMailText(name, price, invoiceNumber),
		HTML:    registrationMailHTML(name, price, invoiceNumber),
	})

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// createRegistration performs the three inserts with best-effort
// compensation: on failure the uploaded proof and any rows already
// written are removed. There is no cross-entity transaction.
func (a *API) createRegistration(ctx context.Context, user *storage.User, reg *storage.Registration, payment *storage.Payment, proofPath string) error {
	logCleanup := func(what string, err error) {
		if err != nil {
			a.audit.logger.ErrorContext(ctx, what+" cleanup", "error", err)
		}
	}
	cleanupProof := func() {
		if proofPath != "" {
			logCleanup("proof", a.objects.Delete(ctx, proofPath))
		}
	}

	if err := a.repo.Users().Create(ctx, user); err != nil {
		cleanupProof()
		return err
	}
	if err := a.repo.Registrations().Create(ctx, reg); err != nil {
		logCleanup("user", a.repo.Users().Delete(ctx, user.ID))
		cleanupProof()
		return err
	}
	if err := a.repo.Payments().Create(ctx, payment); err != nil {
		logCleanup("registration", a.repo.Registrations().Delete(ctx, reg.ID))
		logCleanup("user", a.repo.Users().Delete(ctx, user.ID))
		cleanupProof()
		return err
	}
	return nil
}

// RegistrationCount handles GET /registration-count. Store failures
// degrade to a zero count rather than an error shape the public site
// would have to special-case.
func (a *API) RegistrationCount(w http.ResponseWriter, r *http.Request) {
	count, err := a.repo.Registrations().CountConfirmed(r.Context())
	if err != nil {
		a.audit.logger.ErrorContext(r.Context(), "registration count", "error", err)
		writeJSON(w, http.StatusInternalServerError, CountResponse{Count: 0})
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// sendMail delivers a notification without letting failures affect the
// request outcome.
func (a *API) sendMail(r *http.Request, msg mail.Message) {
	if err := a.mailer.Send(r.Context(), msg); err != nil {
		a.audit.logFailure(AuditMailFailed, r, err.Error(), slog.String("to", msg.To))
	}
}

func formContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func registrationMailText(name string, price *pricing, invoice string) string {
	lines := []string{
		fmt.Sprintf("Здравствуйте, %s!", name),
		"",
		"Ваша регистрация получена. Для подтверждения участия необходимо оплатить взнос.",
		fmt.Sprintf("Сумма: %d %s", price.Amount, price.Currency),
	}
	if invoice != "" {
		lines = append(lines, fmt.Sprintf("Счет: %s", invoice))
	}
	lines = append(lines, "", "Реквизиты для оплаты указаны в личном кабинете.")
	return strings.Join(lines, "\n")
}

func registrationMailHTML(name string, price *pricing, invoice string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Здравствуйте, %s!</p>", name)
	b.WriteString("<p>Ваша регистрация получена. Для подтверждения участия необходимо оплатить взнос.</p>")
	fmt.Fprintf(&b, "<p><strong>Сумма:</strong> %d %s</p>", price.Amount, price.Currency)
	if invoice != "" {
		fmt.Fprintf(&b, "<p><strong>Счет:</strong> %s</p>", invoice)
	}
	b.WriteString("<p>Реквизиты для оплаты указаны в личном кабинете.</p>")
	return b.String()
}
