package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openconf/regdesk/mail"
	"github.com/openconf/regdesk/storage"
)

// ListRegistrations handles GET /admin/registrations.
func (a *API) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := a.repo.Registrations().List(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if regs == nil {
		regs = []storage.RegistrationWithPayment{}
	}
	writeJSON(w, http.StatusOK, RegistrationsResponse{Success: true, Registrations: regs})
}

// ConfirmPayment handles POST /admin/payments/confirm.
func (a *API) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	a.reviewPayment(w, r, storage.StatusConfirmed)
}

// RejectPayment handles POST /admin/payments/reject.
func (a *API) RejectPayment(w http.ResponseWriter, r *http.Request) {
	a.reviewPayment(w, r, storage.StatusRejected)
}

// reviewPayment applies an admin's verdict and notifies the
// participant. The mail is best-effort; the status change is not.
func (a *API) reviewPayment(w http.ResponseWriter, r *http.Request, status string) {
	admin := identityFromContext(r.Context())

	req, ok := decodeJSON[PaymentActionRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, "payment ID required")
		return
	}

	reason := ""
	if status == storage.StatusRejected {
		reason = strings.TrimSpace(req.Reason)
	}

	if err := a.repo.Payments().SetStatus(r.Context(), paymentID, status, reason, admin.ID); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	event := AuditPaymentConfirmed
	if status == storage.StatusRejected {
		event = AuditPaymentRejected
	}
	a.audit.logEvent(event, r, admin.ID, slog.String("payment_id", paymentID))

	a.notifyPaymentOutcome(r, paymentID, status, reason)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (a *API) notifyPaymentOutcome(r *http.Request, paymentID, status, reason string) {
	payment, err := a.repo.Payments().GetByID(r.Context(), paymentID)
	if err != nil {
		a.audit.logger.ErrorContext(r.Context(), "payment lookup for mail", "error", err)
		return
	}
	reg, err := a.repo.Registrations().GetByID(r.Context(), payment.RegistrationID)
	if err != nil {
		a.audit.logger.ErrorContext(r.Context(), "registration lookup for mail", "error", err)
		return
	}

	msg := mail.Message{
		To:     reg.Email,
		ToName: reg.Name,
		Cc:     a.cfg.SchoolEmail,
	}
	if status == storage.StatusConfirmed {
		msg.Subject = "Оплата подтверждена"
		msg.Text = fmt.Sprintf("Здравствуйте, %s!\n\nОплата подтверждена. Сумма: %d %s.\nЖдем вас на мероприятии!",
			reg.Name, payment.Amount, payment.Currency)
		msg.HTML = fmt.Sprintf("<p>Здравствуйте, %s!</p><p>Оплата подтверждена.</p><p><strong>Сумма:</strong> %d %s</p><p>Ждем вас на мероприятии!</p>",
			reg.Name, payment.Amount, payment.Currency)
	} else {
		reasonLine := ""
		reasonHTML := ""
		if reason != "" {
			reasonLine = fmt.Sprintf("\nПричина: %s", reason)
			reasonHTML = fmt.Sprintf("<p><strong>Причина:</strong> %s</p>", reason)
		}
		msg.Subject = "Оплата отклонена"
		msg.Text = fmt.Sprintf("Здравствуйте, %s!\n\nК сожалению, оплата отклонена.%s\nВы можете загрузить корректный платежный документ в личном кабинете.",
			reg.Name, reasonLine)
		msg.HTML = fmt.Sprintf("<p>Здравствуйте, %s!</p><p>К сожалению, оплата отклонена.</p>%s<p>Вы можете загрузить корректный платежный документ в личном кабинете.</p>",
			reg.Name, reasonHTML)
	}
	a.sendMail(r, msg)
}

// ListSubmissions handles GET /admin/submissions.
func (a *API) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.repo.Submissions().ListAll(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if subs == nil {
		subs = []storage.SubmissionWithParticipant{}
	}
	writeJSON(w, http.StatusOK, SubmissionsResponse{Success: true, Submissions: subs})
}

// ListNewsAdmin handles GET /admin/news, including unpublished items.
func (a *API) ListNewsAdmin(w http.ResponseWriter, r *http.Request) {
	items, err := a.repo.News().ListAll(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []storage.NewsItem{}
	}
	writeJSON(w, http.StatusOK, NewsListResponse{Success: true, News: items})
}

// CreateNews handles POST /admin/news.
func (a *API) CreateNews(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateNewsRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}

	item := &storage.NewsItem{
		ID:          uuid.NewString(),
		TitleEN:     req.TitleEN,
		TitleRU:     req.TitleRU,
		TitleUZ:     req.TitleUZ,
		ContentEN:   req.ContentEN,
		ContentRU:   req.ContentRU,
		ContentUZ:   req.ContentUZ,
		Published:   req.Published,
		PublishedAt: time.Now().UTC(),
	}
	if err := a.repo.News().Create(r.Context(), item); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditNewsCreated, r, identityFromContext(r.Context()).ID, slog.String("news_id", item.ID))
	writeJSON(w, http.StatusOK, CreateNewsResponse{Success: true, ID: item.ID})
}

// UpdateNews handles PUT /admin/news. Only the fields present in the
// body change.
func (a *API) UpdateNews(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[UpdateNewsRequest](w, r, maxJSONBodySize)
	if !ok {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing news ID")
		return
	}

	item, err := a.repo.News().GetByID(r.Context(), req.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "news item not found")
		return
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&item.TitleEN, req.TitleEN)
	apply(&item.TitleRU, req.TitleRU)
	apply(&item.TitleUZ, req.TitleUZ)
	apply(&item.ContentEN, req.ContentEN)
	apply(&item.ContentRU, req.ContentRU)
	apply(&item.ContentUZ, req.ContentUZ)
	if req.Published != nil {
		item.Published = *req.Published
	}

	if err := a.repo.News().Update(r.Context(), item); err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	a.audit.logEvent(AuditNewsUpdated, r, identityFromContext(r.Context()).ID, slog.String("news_id", item.ID))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteNews handles DELETE /admin/news?id=...
func (a *API) DeleteNews(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing news ID")
		return
	}
	if err := a.repo.News().Delete(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.writeStoreError(w, r, err)
		return
	}
	a.audit.logEvent(AuditNewsDeleted, r, identityFromContext(r.Context()).ID, slog.String("news_id", id))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
