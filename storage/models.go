package storage

import (
	"time"

	"github.com/openconf/regdesk/auth"
)

// Payment review states.
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusConfirmed   = "confirmed"
	StatusRejected    = "rejected"
)

// User is an account row. PasswordHash and PasswordSalt are opaque
// encodings owned by the auth package.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	PasswordSalt   string    `json:"-"`
	Role           auth.Role `json:"role"`
	Name           string    `json:"name,omitempty"`
	RegistrationID string    `json:"registrationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Identity derives the request principal from the account row.
func (u *User) Identity() *auth.Identity {
	return &auth.Identity{
		ID:             u.ID,
		Email:          u.Email,
		Role:           u.Role,
		Name:           u.Name,
		RegistrationID: u.RegistrationID,
	}
}

// Session is one login instance. IP and UserAgent are audit metadata
// captured at creation and never used for authorization.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registration is a conference registration row.
type Registration struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	ParticipationType    string    `json:"participationType"`
	ParticipationPackage string    `json:"participationPackage,omitempty"`
	ParticipantCategory  string    `json:"participantCategory"`
	Birthdate            string    `json:"birthdate,omitempty"`
	Phone                string    `json:"phone,omitempty"`
	Telegram             string    `json:"telegram,omitempty"`
	City                 string    `json:"city,omitempty"`
	Country              string    `json:"country,omitempty"`
	Organization         string    `json:"organization,omitempty"`
	Position             string    `json:"position,omitempty"`
	Specialty            string    `json:"specialty,omitempty"`
	SpecialtyOther       string    `json:"specialtyOther,omitempty"`
	Experience           *int      `json:"experience,omitempty"`
	ConsentData          bool      `json:"consentData"`
	ConsentRules         bool      `json:"consentRules"`
	ConsentMedia         bool      `json:"consentMedia"`
	MembershipProofPath  string    `json:"membershipProofPath,omitempty"`
	MembershipProofName  string    `json:"membershipProofName,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Payment tracks the fee for one registration.
type Payment struct {
	ID              string    `json:"id"`
	RegistrationID  string    `json:"registrationId"`
	Status          string    `json:"status"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	InvoiceNumber   string    `json:"invoiceNumber,omitempty"`
	ReceiptPath     string    `json:"receiptPath,omitempty"`
	ReceiptName     string    `json:"receiptName,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	ConfirmedBy     string    `json:"confirmedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RegistrationWithPayment is the admin listing row.
type RegistrationWithPayment struct {
	Registration
	Payment *Payment `json:"payment,omitempty"`
}

// Submission is an uploaded abstract, article or poster.
type Submission struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registrationId"`
	UserID         string    `json:"userId"`
	Type           string    `json:"type"`
	Title          string    `json:"title,omitempty"`
	FilePath       string    `json:"filePath"`
	FileName       string    `json:"fileName"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SubmissionWithParticipant is the admin listing row.
type SubmissionWithParticipant struct {
	Submission
	ParticipantName  string `json:"participantName,omitempty"`
	ParticipantEmail string `json:"participantEmail,omitempty"`
}

// NewsItem carries the tri-lingual news content.
type NewsItem struct {
	ID          string    `json:"id"`
	TitleEN     string    `json:"title_en"`
	TitleRU     string    `json:"title_ru"`
	TitleUZ     string    `json:"title_uz"`
	ContentEN   string    `json:"content_en"`
	ContentRU   string    `json:"content_ru"`
	ContentUZ   string    `json:"content_uz"`
	Published   bool      `json:"is_published"`
	PublishedAt time.Time `json:"published_at"`
}
