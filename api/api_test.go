package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconf/regdesk/api"
	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/config"
	"github.com/openconf/regdesk/objstore"
	"github.com/openconf/regdesk/session"
	"github.com/openconf/regdesk/storage"
	"github.com/openconf/regdesk/storage/memory"
)

type testEnv struct {
	srv     *httptest.Server
	repo    storage.Repository
	objects *objstore.Memory
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.NewRepository()
	objects := objstore.NewMemory()
	cfg := &config.Config{
		DeveloperEmails: []string{"dev@conf.example.org"},
		AccessHeader:    "Cf-Access-Authenticated-User-Email",
	}
	a := api.New(repo, objects, cfg,
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r := chi.NewRouter()
	r.Mount("/api", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, repo: repo, objects: objects}
}

func seedUser(t *testing.T, repo storage.Repository, email, password string, role auth.Role) *storage.User {
	t.Helper()
	cred, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &storage.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: cred.Hash,
		PasswordSalt: cred.Salt,
		Role:         role,
		Name:         "Seed User",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Users().Create(context.Background(), u))
	return u
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Cookie", config.SessionCookieName+"="+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// The session cookie is marked Secure, so a cookiejar talking to the
// plain-HTTP test server would silently drop it; tokens travel by hand.
func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	setCookie := resp.Header.Get("Set-Cookie")
	token := session.ParseCookies(setCookie)[config.SessionCookieName]
	require.NotEmpty(t, token)
	return token
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginSetsCookieAndResolvesIdentity(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "ana@example.org", "correct-horse-9", auth.RoleParticipant)

	resp := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/login", "", map[string]string{
		"email": "Ana@Example.org", "password": "correct-horse-9",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	setCookie := resp.Header.Get("Set-Cookie")
	assert.Contains(t, setCookie, config.SessionCookieName+"=")
	assert.Contains(t, setCookie, "Path=/")
	assert.Contains(t, setCookie, "Max-Age=604800")
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "SameSite=Lax")
	assert.Contains(t, setCookie, "Secure")

	body := decodeBody[api.LoginResponse](t, resp)
	require.True(t, body.Success)
	assert.Equal(t, "ana@example.org", body.User.Email)
	assert.Equal(t, auth.RoleParticipant, body.User.Role)

	token := session.ParseCookies(setCookie)[config.SessionCookieName]
	me := doJSON(t, http.MethodGet, env.srv.URL+"/api/auth/me", token, nil)
	meBody := decodeBody[api.LoginResponse](t, me)
	assert.Equal(t, http.StatusOK, me.StatusCode)
	assert.Equal(t, "ana@example.org", meBody.User.Email)
}

func TestLoginRejections(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "ana@example.org", "correct-horse-9", auth.RoleParticipant)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown email", map[string]string{"email": "ghost@example.org", "password": "whatever-123"}, http.StatusUnauthorized},
		{"wrong password", map[string]string{"email": "ana@example.org", "password": "wrong"}, http.StatusUnauthorized},
		{"role mismatch", map[string]string{"email": "ana@example.org", "password": "correct-horse-9", "role": "admin"}, http.StatusForbidden},
		{"missing fields", map[string]string{"email": "ana@example.org"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/login", "", tc.body)
			resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	// Unknown email and wrong password must be indistinguishable.
	r1 := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/login", "", map[string]string{"email": "ghost@example.org", "password": "x-long-enough"})
	r2 := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/login", "", map[string]string{"email": "ana@example.org", "password": "x-long-enough"})
	b1 := decodeBody[api.ErrorResponse](t, r1)
	b2 := decodeBody[api.ErrorResponse](t, r2)
	assert.Equal(t, b1.Error, b2.Error)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "ana@example.org", "correct-horse-9", auth.RoleParticipant)
	token := login(t, env.srv.URL, "ana@example.org", "correct-horse-9")

	resp := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/logout", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "Max-Age=0")

	me := doJSON(t, http.MethodGet, env.srv.URL+"/api/auth/me", token, nil)
	me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)

	// Second logout with the dead token still succeeds.
	again := doJSON(t, http.MethodPost, env.srv.URL+"/api/auth/logout", token, nil)
	again.Body.Close()
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

func TestRoleGuards(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "ana@example.org", "correct-horse-9", auth.RoleParticipant)
	seedUser(t, env.repo, "boss@example.org", "admin-pass-123", auth.RoleAdmin)

	// No session at all.
	resp := doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/registrations", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Authenticated but wrong role: forbidden, not unauthorized.
	participant := login(t, env.srv.URL, "ana@example.org", "correct-horse-9")
	resp = doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/registrations", participant, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := login(t, env.srv.URL, "boss@example.org", "admin-pass-123")
	resp = doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/registrations", admin, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Admin does not get the participant cabinet either.
	resp = doJSON(t, http.MethodGet, env.srv.URL+"/api/participant/overview", admin, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, env.srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func registrationForm(t *testing.T, email string, fields map[string]string, withProof bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	base := map[string]string{
		"name":              "Test Person",
		"email":             email,
		"password":          "long-password-1",
		"participationType": "in-person",
		"participationPackage": "basic",
		"participantCategory":  "local",
		"consentData":          "true",
		"consentRules":         "true",
	}
	for k, v := range fields {
		base[k] = v
	}
	for k, v := range base {
		require.NoError(t, w.WriteField(k, v))
	}
	if withProof {
		fw, err := w.CreateFormFile("membershipProof", "card.pdf")
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 proof"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postForm(t *testing.T, url, token string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Cookie", config.SessionCookieName+"="+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestRegistrationFlow(t *testing.T) {
	env := setupServer(t)

	body, ct := registrationForm(t, "new@example.org", nil, false)
	resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The new account can log in straight away.
	token := login(t, env.srv.URL, "new@example.org", "long-password-1")

	overview := doJSON(t, http.MethodGet, env.srv.URL+"/api/participant/overview", token, nil)
	ob := decodeBody[api.OverviewResponse](t, overview)
	require.NotNil(t, ob.Registration)
	require.NotNil(t, ob.Payment)
	assert.Equal(t, storage.StatusPending, ob.Payment.Status)
	assert.Equal(t, int64(1_500_000), ob.Payment.Amount)
	assert.Equal(t, "UZS", ob.Payment.Currency)
	assert.Regexp(t, `^INV-\d{4}-\d{4}$`, ob.Payment.InvoiceNumber)

	// Same email again: conflict.
	body, ct = registrationForm(t, "new@example.org", nil, false)
	dup := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
}

func TestRegistrationValidation(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name      string
		fields    map[string]string
		withProof bool
		status    int
	}{
		{"short password", map[string]string{"password": "short"}, false, http.StatusBadRequest},
		{"missing consent", map[string]string{"consentRules": "false"}, false, http.StatusBadRequest},
		{"bad pricing", map[string]string{"participationPackage": "luxury"}, false, http.StatusBadRequest},
		{"member without proof", map[string]string{"participantCategory": "apu-member"}, false, http.StatusBadRequest},
		{"member with proof", map[string]string{"participantCategory": "apu-member"}, true, http.StatusOK},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			email := fmt.Sprintf("case%d@example.org", i)
			body, ct := registrationForm(t, email, tc.fields, tc.withProof)
			resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
			resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	// Non-multipart body is refused outright.
	resp := doJSON(t, http.MethodPost, env.srv.URL+"/api/registration", "", map[string]string{"email": "x@example.org"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

// paymentInsertFailRepo delegates to a real repository but refuses
// payment inserts, forcing the registration write path to compensate.
type paymentInsertFailRepo struct{ storage.Repository }

func (f paymentInsertFailRepo) Payments() storage.PaymentStore {
	return paymentInsertFailStore{f.Repository.Payments()}
}

type paymentInsertFailStore struct{ storage.PaymentStore }

func (paymentInsertFailStore) Create(context.Context, *storage.Payment) error {
	return errors.New("payment insert refused")
}

func TestRegistrationCompensatesPartialWrites(t *testing.T) {
	repo := memory.NewRepository()
	cfg := &config.Config{AccessHeader: "Cf-Access-Authenticated-User-Email"}
	a := api.New(paymentInsertFailRepo{repo}, objstore.NewMemory(), cfg,
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r := chi.NewRouter()
	r.Mount("/api", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	body, ct := registrationForm(t, "retry@example.org", nil, false)
	resp := postForm(t, srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The half-written account and registration rows were rolled back,
	// so the email is not stuck behind a 409 forever.
	_, err := repo.Users().GetByEmail(context.Background(), "retry@example.org")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	regs, err := repo.Registrations().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestMemberDiscountPricing(t *testing.T) {
	env := setupServer(t)

	body, ct := registrationForm(t, "member@example.org", map[string]string{
		"participantCategory": "apu-member",
	}, true)
	resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := login(t, env.srv.URL, "member@example.org", "long-password-1")
	overview := doJSON(t, http.MethodGet, env.srv.URL+"/api/participant/overview", token, nil)
	ob := decodeBody[api.OverviewResponse](t, overview)
	require.NotNil(t, ob.Payment)
	assert.Equal(t, int64(1_350_000), ob.Payment.Amount)

	// International category prices in USD, no discount.
	body, ct = registrationForm(t, "intl@example.org", map[string]string{
		"participantCategory": "international",
		"participationType":   "online",
		"participationPackage": "starter",
	}, false)
	resp = postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token = login(t, env.srv.URL, "intl@example.org", "long-password-1")
	overview = doJSON(t, http.MethodGet, env.srv.URL+"/api/participant/overview", token, nil)
	ob = decodeBody[api.OverviewResponse](t, overview)
	require.NotNil(t, ob.Payment)
	assert.Equal(t, int64(300), ob.Payment.Amount)
	assert.Equal(t, "USD", ob.Payment.Currency)
}

func TestReceiptUploadAndPaymentReview(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "boss@example.org", "admin-pass-123", auth.RoleAdmin)

	body, ct := registrationForm(t, "payer@example.org", nil, false)
	resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := login(t, env.srv.URL, "payer@example.org", "long-password-1")

	// Upload a receipt.
	var upload bytes.Buffer
	w := multipart.NewWriter(&upload)
	fw, err := w.CreateFormFile("receipt", "receipt.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp = postForm(t, env.srv.URL+"/api/participant/receipt", token, &upload, w.FormDataContentType())
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	overview := doJSON(t, http.MethodGet, env.srv.URL+"/api/participant/overview", token, nil)
	ob := decodeBody[api.OverviewResponse](t, overview)
	require.NotNil(t, ob.Payment)
	assert.Equal(t, storage.StatusUnderReview, ob.Payment.Status)
	assert.True(t, strings.HasPrefix(ob.Payment.ReceiptPath, "payments/payer_example_org/"), ob.Payment.ReceiptPath)

	// Count stays at zero until confirmation.
	count := doJSON(t, http.MethodGet, env.srv.URL+"/api/registration-count", "", nil)
	assert.Equal(t, 0, decodeBody[api.CountResponse](t, count).Count)

	admin := login(t, env.srv.URL, "boss@example.org", "admin-pass-123")
	confirm := doJSON(t, http.MethodPost, env.srv.URL+"/api/admin/payments/confirm", admin, map[string]string{
		"paymentId": ob.Payment.ID,
	})
	confirm.Body.Close()
	require.Equal(t, http.StatusOK, confirm.StatusCode)

	count = doJSON(t, http.MethodGet, env.srv.URL+"/api/registration-count", "", nil)
	assert.Equal(t, 1, decodeBody[api.CountResponse](t, count).Count)

	// Rejection with a reason lands on the payment row.
	reject := doJSON(t, http.MethodPost, env.srv.URL+"/api/admin/payments/reject", admin, map[string]string{
		"paymentId": ob.Payment.ID, "reason": "illegible scan",
	})
	reject.Body.Close()
	require.Equal(t, http.StatusOK, reject.StatusCode)

	payment, err := env.repo.Payments().GetByID(context.Background(), ob.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusRejected, payment.Status)
	assert.Equal(t, "illegible scan", payment.RejectionReason)
}

func TestFileOwnershipGate(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "boss@example.org", "admin-pass-123", auth.RoleAdmin)
	seedUser(t, env.repo, "other@example.org", "other-pass-123", auth.RoleParticipant)

	ownKey := "payments/owner_example_org/receipt.pdf"
	require.NoError(t, env.objects.Put(context.Background(), ownKey, "application/pdf", strings.NewReader("receipt")))

	body, ct := registrationForm(t, "owner@example.org", nil, false)
	resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	owner := login(t, env.srv.URL, "owner@example.org", "long-password-1")
	other := login(t, env.srv.URL, "other@example.org", "other-pass-123")
	admin := login(t, env.srv.URL, "boss@example.org", "admin-pass-123")

	// Unauthenticated: 401 before any gate logic.
	r := doJSON(t, http.MethodGet, env.srv.URL+"/api/files?path="+ownKey, "", nil)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	// Owner reads their own file.
	r = doJSON(t, http.MethodGet, env.srv.URL+"/api/files?path="+ownKey, owner, nil)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
	assert.Contains(t, r.Header.Get("Content-Disposition"), `attachment; filename="receipt.pdf"`)
	assert.Equal(t, "private, max-age=3600", r.Header.Get("Cache-Control"))
	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "receipt", string(data))

	// Another participant is forbidden, even though the object exists.
	r = doJSON(t, http.MethodGet, env.srv.URL+"/api/files?path="+ownKey, other, nil)
	r.Body.Close()
	assert.Equal(t, http.StatusForbidden, r.StatusCode)

	// Admin bypasses the gate.
	r = doJSON(t, http.MethodGet, env.srv.URL+"/api/files?path="+ownKey, admin, nil)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)

	// Gate passes but no object: 404 only then.
	r = doJSON(t, http.MethodGet, env.srv.URL+"/api/files?path=payments/owner_example_org/gone.pdf", owner, nil)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	// Missing path parameter.
	r = doJSON(t, http.MethodGet, env.srv.URL+"/api/files", owner, nil)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestSubmissionUploadAndAdminListing(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "boss@example.org", "admin-pass-123", auth.RoleAdmin)

	body, ct := registrationForm(t, "author@example.org", nil, false)
	resp := postForm(t, env.srv.URL+"/api/registration", "", body, ct)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := login(t, env.srv.URL, "author@example.org", "long-password-1")

	var upload bytes.Buffer
	w := multipart.NewWriter(&upload)
	require.NoError(t, w.WriteField("type", "abstract"))
	require.NoError(t, w.WriteField("title", "On Registration Systems"))
	fw, err := w.CreateFormFile("file", "abstract.docx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("docx-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp = postForm(t, env.srv.URL+"/api/participant/submissions", token, &upload, w.FormDataContentType())
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Bad type is rejected before any storage work.
	var bad bytes.Buffer
	w = multipart.NewWriter(&bad)
	require.NoError(t, w.WriteField("type", "novel"))
	fw, err = w.CreateFormFile("file", "novel.txt")
	require.NoError(t, err)
	fw.Write([]byte("x"))
	require.NoError(t, w.Close())
	resp = postForm(t, env.srv.URL+"/api/participant/submissions", token, &bad, w.FormDataContentType())
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	admin := login(t, env.srv.URL, "boss@example.org", "admin-pass-123")
	list := doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/submissions", admin, nil)
	lb := decodeBody[api.SubmissionsResponse](t, list)
	require.Len(t, lb.Submissions, 1)
	assert.Equal(t, "abstract", lb.Submissions[0].Type)
	assert.Equal(t, "On Registration Systems", lb.Submissions[0].Title)
	assert.Equal(t, "author@example.org", lb.Submissions[0].ParticipantEmail)
}

func TestDevEndpoints(t *testing.T) {
	env := setupServer(t)

	// Without the access header or a developer session: unauthorized.
	resp := doJSON(t, http.MethodGet, env.srv.URL+"/api/dev/summary", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	withHeader := func(method, url string, body any) *http.Response {
		var reqBody bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
		}
		req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cf-Access-Authenticated-User-Email", "dev@conf.example.org")
		r, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return r
	}

	// Create an admin account through the access-proxy path.
	resp = withHeader(http.MethodPost, env.srv.URL+"/api/dev/create-user", map[string]string{
		"email": "boss@example.org", "password": "admin-pass-123", "role": "admin", "name": "Boss",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Duplicate is a conflict.
	resp = withHeader(http.MethodPost, env.srv.URL+"/api/dev/create-user", map[string]string{
		"email": "boss@example.org", "password": "admin-pass-123",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Invalid role is rejected.
	resp = withHeader(http.MethodPost, env.srv.URL+"/api/dev/create-user", map[string]string{
		"email": "x@example.org", "password": "p-long-enough", "role": "superuser",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Impersonate the new admin and use the cookie against an admin route.
	user, err := env.repo.Users().GetByEmail(context.Background(), "boss@example.org")
	require.NoError(t, err)
	resp = withHeader(http.MethodPost, env.srv.URL+"/api/dev/impersonate", map[string]string{"userId": user.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := session.ParseCookies(resp.Header.Get("Set-Cookie"))[config.SessionCookieName]
	resp.Body.Close()
	require.NotEmpty(t, token)

	adminList := doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/registrations", token, nil)
	adminList.Body.Close()
	assert.Equal(t, http.StatusOK, adminList.StatusCode)

	// Unknown user: 404.
	resp = withHeader(http.MethodPost, env.srv.URL+"/api/dev/impersonate", map[string]string{"userId": "nope"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Summary shows the user and counters.
	resp = withHeader(http.MethodGet, env.srv.URL+"/api/dev/summary", nil)
	sum := decodeBody[api.SummaryResponse](t, resp)
	assert.True(t, sum.Success)
	require.Len(t, sum.Users, 1)
	assert.Equal(t, "boss@example.org", sum.Users[0].Email)
}

func TestNewsLifecycleAndLocalization(t *testing.T) {
	env := setupServer(t)
	seedUser(t, env.repo, "boss@example.org", "admin-pass-123", auth.RoleAdmin)
	admin := login(t, env.srv.URL, "boss@example.org", "admin-pass-123")

	created := doJSON(t, http.MethodPost, env.srv.URL+"/api/admin/news", admin, map[string]any{
		"title_en": "Venue announced", "title_ru": "Объявлено место проведения", "title_uz": "Joy e'lon qilindi",
		"content_en": "See the site.", "content_ru": "Смотрите сайт.", "content_uz": "Saytga qarang.",
		"is_published": true,
	})
	cb := decodeBody[api.CreateNewsResponse](t, created)
	require.True(t, cb.Success)
	require.NotEmpty(t, cb.ID)

	// Unpublished drafts stay off the public feed.
	draft := doJSON(t, http.MethodPost, env.srv.URL+"/api/admin/news", admin, map[string]any{
		"title_en": "Draft", "is_published": false,
	})
	decodeBody[api.CreateNewsResponse](t, draft)

	fetchNews := func(acceptLanguage string) []api.LocalizedNewsItem {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, env.srv.URL+"/api/news", nil)
		require.NoError(t, err)
		if acceptLanguage != "" {
			req.Header.Set("Accept-Language", acceptLanguage)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return decodeBody[[]api.LocalizedNewsItem](t, resp)
	}

	en := fetchNews("")
	require.Len(t, en, 1)
	assert.Equal(t, "Venue announced", en[0].Title)

	ru := fetchNews("ru-RU,ru;q=0.9")
	require.Len(t, ru, 1)
	assert.Equal(t, "Объявлено место проведения", ru[0].Title)

	uz := fetchNews("uz")
	require.Len(t, uz, 1)
	assert.Equal(t, "Joy e'lon qilindi", uz[0].Title)

	// Partial update touches only the named fields.
	upd := doJSON(t, http.MethodPut, env.srv.URL+"/api/admin/news", admin, map[string]any{
		"id": cb.ID, "title_en": "Venue changed",
	})
	upd.Body.Close()
	require.Equal(t, http.StatusOK, upd.StatusCode)

	en = fetchNews("en")
	require.Len(t, en, 1)
	assert.Equal(t, "Venue changed", en[0].Title)
	assert.Equal(t, "See the site.", en[0].Content)

	// Admin listing includes the draft; public feed does not.
	adminNews := doJSON(t, http.MethodGet, env.srv.URL+"/api/admin/news", admin, nil)
	an := decodeBody[api.NewsListResponse](t, adminNews)
	assert.Len(t, an.News, 2)

	del := doJSON(t, http.MethodDelete, env.srv.URL+"/api/admin/news?id="+cb.ID, admin, nil)
	del.Body.Close()
	require.Equal(t, http.StatusOK, del.StatusCode)
	assert.Empty(t, fetchNews(""))
}
