package api

import (
	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/storage"
)

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// LoginRequest is the JSON body for POST /auth/login. Role is optional;
// when set, the login is rejected unless the account holds that role.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginResponse is returned from POST /auth/login and GET /auth/me.
type LoginResponse struct {
	Success bool           `json:"success"`
	User    *auth.Identity `json:"user"`
}

// SuccessResponse is the bare acknowledgement body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// CountResponse is returned from GET /registration-count.
type CountResponse struct {
	Count int `json:"count"`
}

// OverviewResponse is returned from GET /participant/overview.
type OverviewResponse struct {
	Success      bool                  `json:"success"`
	User         *auth.Identity        `json:"user"`
	Registration *storage.Registration `json:"registration"`
	Payment      *storage.Payment      `json:"payment"`
	Submissions  []storage.Submission  `json:"submissions"`
}

// RegistrationsResponse is returned from GET /admin/registrations.
type RegistrationsResponse struct {
	Success       bool                              `json:"success"`
	Registrations []storage.RegistrationWithPayment `json:"registrations"`
}

// SubmissionsResponse is returned from GET /admin/submissions.
type SubmissionsResponse struct {
	Success     bool                                `json:"success"`
	Submissions []storage.SubmissionWithParticipant `json:"submissions"`
}

// PaymentActionRequest is the JSON body for the payment review
// endpoints. Reason applies to rejections only.
type PaymentActionRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason,omitempty"`
}

// NewsListResponse is returned from GET /admin/news.
type NewsListResponse struct {
	Success bool               `json:"success"`
	News    []storage.NewsItem `json:"news"`
}

// CreateNewsRequest is the JSON body for POST /admin/news.
type CreateNewsRequest struct {
	TitleEN   string `json:"title_en"`
	TitleRU   string `json:"title_ru"`
	TitleUZ   string `json:"title_uz"`
	ContentEN string `json:"content_en"`
	ContentRU string `json:"content_ru"`
	ContentUZ string `json:"content_uz"`
	Published bool   `json:"is_published"`
}

// CreateNewsResponse is returned from POST /admin/news.
type CreateNewsResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// UpdateNewsRequest is the JSON body for PUT /admin/news. Nil fields
// are left unchanged.
type UpdateNewsRequest struct {
	ID        string  `json:"id"`
	TitleEN   *string `json:"title_en"`
	TitleRU   *string `json:"title_ru"`
	TitleUZ   *string `json:"title_uz"`
	ContentEN *string `json:"content_en"`
	ContentRU *string `json:"content_ru"`
	ContentUZ *string `json:"content_uz"`
	Published *bool   `json:"is_published"`
}

// LocalizedNewsItem is the public news shape after language
// negotiation.
type LocalizedNewsItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"`
}

// CreateUserRequest is the JSON body for POST /dev/create-user.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ImpersonateRequest is the JSON body for POST /dev/impersonate.
type ImpersonateRequest struct {
	UserID string `json:"userId"`
}

// SummaryStats is the counters block of GET /dev/summary.
type SummaryStats struct {
	Registrations int `json:"registrations"`
	Payments      int `json:"payments"`
}

// SummaryResponse is returned from GET /dev/summary.
type SummaryResponse struct {
	Success bool           `json:"success"`
	Stats   SummaryStats   `json:"stats"`
	Users   []storage.User `json:"users"`
}
