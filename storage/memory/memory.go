// Package memory provides a thread-safe in-memory implementation of
// storage.Repository. Suitable for tests, demos and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openconf/regdesk/storage"
)

// Repository is a thread-safe in-memory implementation of
// storage.Repository.
type Repository struct {
	mu sync.RWMutex

	users     map[string]*storage.User
	userOrder []string

	sessions map[string]*storage.Session

	registrations map[string]*storage.Registration
	regOrder      []string

	payments map[string]*storage.Payment

	submissions map[string]*storage.Submission
	subOrder    []string

	news      map[string]*storage.NewsItem
	newsOrder []string
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		users:         make(map[string]*storage.User),
		sessions:      make(map[string]*storage.Session),
		registrations: make(map[string]*storage.Registration),
		payments:      make(map[string]*storage.Payment),
		submissions:   make(map[string]*storage.Submission),
		news:          make(map[string]*storage.NewsItem),
	}
}

func (r *Repository) Users() storage.UserStore                 { return userStore{r} }
func (r *Repository) Sessions() storage.SessionStore           { return sessionStore{r} }
func (r *Repository) Registrations() storage.RegistrationStore { return registrationStore{r} }
func (r *Repository) Payments() storage.PaymentStore           { return paymentStore{r} }
func (r *Repository) Submissions() storage.SubmissionStore     { return submissionStore{r} }
func (r *Repository) News() storage.NewsStore                  { return newsStore{r} }

func (r *Repository) Close() error { return nil }

func nowUTC() time.Time { return time.Now().UTC() }

func cloneUser(u *storage.User) *storage.User {
	c := *u
	return &c
}

func cloneSession(s *storage.Session) *storage.Session {
	c := *s
	return &c
}

func cloneRegistration(reg *storage.Registration) *storage.Registration {
	c := *reg
	if reg.Experience != nil {
		exp := *reg.Experience
		c.Experience = &exp
	}
	return &c
}

func clonePayment(p *storage.Payment) *storage.Payment {
	c := *p
	return &c
}

func cloneSubmission(s *storage.Submission) *storage.Submission {
	c := *s
	return &c
}

func cloneNews(n *storage.NewsItem) *storage.NewsItem {
	c := *n
	return &c
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

type userStore struct{ r *Repository }

func (s userStore) Create(ctx context.Context, u *storage.User) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.users {
		if existing.Email == u.Email {
			return storage.ErrDuplicate
		}
	}
	if _, ok := s.r.users[u.ID]; ok {
		return storage.ErrDuplicate
	}
	s.r.users[u.ID] = cloneUser(u)
	s.r.userOrder = append(s.r.userOrder, u.ID)
	return nil
}

func (s userStore) GetByID(ctx context.Context, id string) (*storage.User, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	u, ok := s.r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s userStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	for _, u := range s.r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s userStore) Delete(ctx context.Context, id string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.users[id]; !ok {
		return nil
	}
	delete(s.r.users, id)
	for i, existing := range s.r.userOrder {
		if existing == id {
			s.r.userOrder = append(s.r.userOrder[:i], s.r.userOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s userStore) List(ctx context.Context) ([]storage.User, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	out := make([]storage.User, 0, len(s.r.userOrder))
	for i := len(s.r.userOrder) - 1; i >= 0; i-- {
		out = append(out, *cloneUser(s.r.users[s.r.userOrder[i]]))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// sessions
// ---------------------------------------------------------------------------

type sessionStore struct{ r *Repository }

func (s sessionStore) Create(ctx context.Context, sess *storage.Session) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.sessions[sess.Token]; ok {
		return storage.ErrDuplicate
	}
	s.r.sessions[sess.Token] = cloneSession(sess)
	return nil
}

func (s sessionStore) GetByToken(ctx context.Context, token string) (*storage.Session, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	sess, ok := s.r.sessions[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s sessionStore) Delete(ctx context.Context, token string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	delete(s.r.sessions, token)
	return nil
}

// ---------------------------------------------------------------------------
// registrations
// ---------------------------------------------------------------------------

type registrationStore struct{ r *Repository }

func (s registrationStore) Create(ctx context.Context, reg *storage.Registration) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.registrations[reg.ID]; ok {
		return storage.ErrDuplicate
	}
	s.r.registrations[reg.ID] = cloneRegistration(reg)
	s.r.regOrder = append(s.r.regOrder, reg.ID)
	return nil
}

func (s registrationStore) GetByID(ctx context.Context, id string) (*storage.Registration, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	reg, ok := s.r.registrations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (s registrationStore) GetByUserID(ctx context.Context, userID string) (*storage.Registration, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	for _, reg := range s.r.registrations {
		if reg.UserID == userID {
			return cloneRegistration(reg), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s registrationStore) Delete(ctx context.Context, id string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.registrations[id]; !ok {
		return nil
	}
	delete(s.r.registrations, id)
	for i, existing := range s.r.regOrder {
		if existing == id {
			s.r.regOrder = append(s.r.regOrder[:i], s.r.regOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s registrationStore) List(ctx context.Context) ([]storage.RegistrationWithPayment, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	out := make([]storage.RegistrationWithPayment, 0, len(s.r.regOrder))
	for i := len(s.r.regOrder) - 1; i >= 0; i-- {
		reg := s.r.registrations[s.r.regOrder[i]]
		row := storage.RegistrationWithPayment{Registration: *cloneRegistration(reg)}
		for _, p := range s.r.payments {
			if p.RegistrationID == reg.ID {
				row.Payment = clonePayment(p)
				break
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s registrationStore) Count(ctx context.Context) (int, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	return len(s.r.registrations), nil
}

func (s registrationStore) CountConfirmed(ctx context.Context) (int, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	confirmed := make(map[string]struct{})
	for _, p := range s.r.payments {
		if p.Status == storage.StatusConfirmed {
			confirmed[p.RegistrationID] = struct{}{}
		}
	}
	n := 0
	for id := range s.r.registrations {
		if _, ok := confirmed[id]; ok {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// payments
// ---------------------------------------------------------------------------

type paymentStore struct{ r *Repository }

func (s paymentStore) Create(ctx context.Context, p *storage.Payment) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.payments[p.ID]; ok {
		return storage.ErrDuplicate
	}
	s.r.payments[p.ID] = clonePayment(p)
	return nil
}

func (s paymentStore) GetByID(ctx context.Context, id string) (*storage.Payment, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	p, ok := s.r.payments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clonePayment(p), nil
}

func (s paymentStore) GetByRegistrationID(ctx context.Context, registrationID string) (*storage.Payment, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	for _, p := range s.r.payments {
		if p.RegistrationID == registrationID {
			return clonePayment(p), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s paymentStore) Count(ctx context.Context) (int, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	return len(s.r.payments), nil
}

func (s paymentStore) SetReceipt(ctx context.Context, id, receiptPath, receiptName string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	p, ok := s.r.payments[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.ReceiptPath = receiptPath
	p.ReceiptName = receiptName
	p.Status = storage.StatusUnderReview
	p.UpdatedAt = nowUTC()
	return nil
}

func (s paymentStore) SetStatus(ctx context.Context, id, status, reason, confirmedBy string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	p, ok := s.r.payments[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = status
	p.RejectionReason = reason
	p.ConfirmedBy = confirmedBy
	p.UpdatedAt = nowUTC()
	return nil
}

// ---------------------------------------------------------------------------
// submissions
// ---------------------------------------------------------------------------

type submissionStore struct{ r *Repository }

func (s submissionStore) Create(ctx context.Context, sub *storage.Submission) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.submissions[sub.ID]; ok {
		return storage.ErrDuplicate
	}
	s.r.submissions[sub.ID] = cloneSubmission(sub)
	s.r.subOrder = append(s.r.subOrder, sub.ID)
	return nil
}

func (s submissionStore) ListByRegistrationID(ctx context.Context, registrationID string) ([]storage.Submission, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	var out []storage.Submission
	for i := len(s.r.subOrder) - 1; i >= 0; i-- {
		sub := s.r.submissions[s.r.subOrder[i]]
		if sub.RegistrationID == registrationID {
			out = append(out, *cloneSubmission(sub))
		}
	}
	return out, nil
}

func (s submissionStore) ListAll(ctx context.Context) ([]storage.SubmissionWithParticipant, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	out := make([]storage.SubmissionWithParticipant, 0, len(s.r.subOrder))
	for i := len(s.r.subOrder) - 1; i >= 0; i-- {
		sub := s.r.submissions[s.r.subOrder[i]]
		row := storage.SubmissionWithParticipant{Submission: *cloneSubmission(sub)}
		if reg, ok := s.r.registrations[sub.RegistrationID]; ok {
			row.ParticipantName = reg.Name
			row.ParticipantEmail = reg.Email
		}
		out = append(out, row)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// news
// ---------------------------------------------------------------------------

type newsStore struct{ r *Repository }

func (s newsStore) Create(ctx context.Context, n *storage.NewsItem) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.news[n.ID]; ok {
		return storage.ErrDuplicate
	}
	s.r.news[n.ID] = cloneNews(n)
	s.r.newsOrder = append(s.r.newsOrder, n.ID)
	return nil
}

func (s newsStore) Update(ctx context.Context, n *storage.NewsItem) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.news[n.ID]; !ok {
		return storage.ErrNotFound
	}
	s.r.news[n.ID] = cloneNews(n)
	return nil
}

func (s newsStore) Delete(ctx context.Context, id string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if _, ok := s.r.news[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.r.news, id)
	for i, existing := range s.r.newsOrder {
		if existing == id {
			s.r.newsOrder = append(s.r.newsOrder[:i], s.r.newsOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s newsStore) GetByID(ctx context.Context, id string) (*storage.NewsItem, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	n, ok := s.r.news[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneNews(n), nil
}

func (s newsStore) ListAll(ctx context.Context) ([]storage.NewsItem, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	out := make([]storage.NewsItem, 0, len(s.r.newsOrder))
	for i := len(s.r.newsOrder) - 1; i >= 0; i-- {
		out = append(out, *cloneNews(s.r.news[s.r.newsOrder[i]]))
	}
	return out, nil
}

func (s newsStore) ListPublished(ctx context.Context) ([]storage.NewsItem, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	var out []storage.NewsItem
	for i := len(s.r.newsOrder) - 1; i >= 0; i-- {
		n := s.r.news[s.r.newsOrder[i]]
		if n.Published {
			out = append(out, *cloneNews(n))
		}
	}
	return out, nil
}
