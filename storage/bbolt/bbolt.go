// Package bbolt provides a BBolt-backed storage.Repository for
// embedded single-node deployments. Records are stored as JSON in one
// bucket per entity, with a secondary email index for user lookups.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/storage"
)

var (
	bucketUsers       = []byte("users")
	bucketUsersEmail  = []byte("users_by_email")
	bucketSessions    = []byte("sessions")
	bucketRegs        = []byte("registrations")
	bucketPayments    = []byte("payments")
	bucketSubmissions = []byte("submissions")
	bucketNews        = []byte("news")
)

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database,
// creating the entity buckets if needed.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers, bucketUsersEmail, bucketSessions,
			bucketRegs, bucketPayments, bucketSubmissions, bucketNews,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewRepositoryFromFile opens a BBolt database at the given path and
// returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error { return s.db.Close() }

func nowUTC() time.Time { return time.Now().UTC() }

func (s *Store) Users() storage.UserStore                 { return userStore{s} }
func (s *Store) Sessions() storage.SessionStore           { return sessionStore{s} }
func (s *Store) Registrations() storage.RegistrationStore { return registrationStore{s} }
func (s *Store) Payments() storage.PaymentStore           { return paymentStore{s} }
func (s *Store) Submissions() storage.SubmissionStore     { return submissionStore{s} }
func (s *Store) News() storage.NewsStore                  { return newsStore{s} }

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON(b *bbolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return storage.ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

type userStore struct{ s *Store }

// userRecord is the on-disk shape of a user row. storage.User redacts
// the credential fields from JSON for API responses, so persisting it
// directly would drop them; this record carries its own tags.
type userRecord struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"password_hash"`
	PasswordSalt   string    `json:"password_salt"`
	Role           string    `json:"role"`
	Name           string    `json:"name,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUserRecord(u *storage.User) *userRecord {
	return &userRecord{
		ID:             u.ID,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		PasswordSalt:   u.PasswordSalt,
		Role:           string(u.Role),
		Name:           u.Name,
		RegistrationID: u.RegistrationID,
		CreatedAt:      u.CreatedAt,
	}
}

func (rec *userRecord) toUser() storage.User {
	return storage.User{
		ID:             rec.ID,
		Email:          rec.Email,
		PasswordHash:   rec.PasswordHash,
		PasswordSalt:   rec.PasswordSalt,
		Role:           auth.Role(rec.Role),
		Name:           rec.Name,
		RegistrationID: rec.RegistrationID,
		CreatedAt:      rec.CreatedAt,
	}
}

func (u userStore) Create(ctx context.Context, user *storage.User) error {
	return u.s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		byEmail := tx.Bucket(bucketUsersEmail)
		if byEmail.Get([]byte(user.Email)) != nil || users.Get([]byte(user.ID)) != nil {
			return storage.ErrDuplicate
		}
		if err := putJSON(users, user.ID, toUserRecord(user)); err != nil {
			return err
		}
		return byEmail.Put([]byte(user.Email), []byte(user.ID))
	})
}

func (u userStore) GetByID(ctx context.Context, id string) (*storage.User, error) {
	var rec userRecord
	err := u.s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketUsers), id, &rec)
	})
	if err != nil {
		return nil, err
	}
	user := rec.toUser()
	return &user, nil
}

func (u userStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	var rec userRecord
	err := u.s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUsersEmail).Get([]byte(email))
		if id == nil {
			return storage.ErrNotFound
		}
		return getJSON(tx.Bucket(bucketUsers), string(id), &rec)
	})
	if err != nil {
		return nil, err
	}
	user := rec.toUser()
	return &user, nil
}

func (u userStore) Delete(ctx context.Context, id string) error {
	return u.s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		data := users.Get([]byte(id))
		if data == nil {
			return nil
		}
		var rec userRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsersEmail).Delete([]byte(rec.Email)); err != nil {
			return err
		}
		return users.Delete([]byte(id))
	})
}

func (u userStore) List(ctx context.Context) ([]storage.User, error) {
	var out []storage.User
	err := u.s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var rec userRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec.toUser())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// sessions
// ---------------------------------------------------------------------------

type sessionStore struct{ s *Store }

func (st sessionStore) Create(ctx context.Context, sess *storage.Session) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(sess.Token)) != nil {
			return storage.ErrDuplicate
		}
		return putJSON(b, sess.Token, sess)
	})
}

func (st sessionStore) GetByToken(ctx context.Context, token string) (*storage.Session, error) {
	var sess storage.Session
	err := st.s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketSessions), token, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (st sessionStore) Delete(ctx context.Context, token string) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(token))
	})
}

// ---------------------------------------------------------------------------
// registrations
// ---------------------------------------------------------------------------

type registrationStore struct{ s *Store }

func (r registrationStore) Create(ctx context.Context, reg *storage.Registration) error {
	return r.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRegs)
		if b.Get([]byte(reg.ID)) != nil {
			return storage.ErrDuplicate
		}
		return putJSON(b, reg.ID, reg)
	})
}

func (r registrationStore) GetByID(ctx context.Context, id string) (*storage.Registration, error) {
	var reg storage.Registration
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketRegs), id, &reg)
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r registrationStore) GetByUserID(ctx context.Context, userID string) (*storage.Registration, error) {
	var found *storage.Registration
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegs).ForEach(func(_, v []byte) error {
			if found != nil {
				return nil
			}
			var reg storage.Registration
			if err := json.Unmarshal(v, &reg); err != nil {
				return err
			}
			if reg.UserID == userID {
				found = &reg
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (r registrationStore) Delete(ctx context.Context, id string) error {
	return r.s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegs).Delete([]byte(id))
	})
}

func (r registrationStore) list(tx *bbolt.Tx) ([]storage.Registration, error) {
	var regs []storage.Registration
	err := tx.Bucket(bucketRegs).ForEach(func(_, v []byte) error {
		var reg storage.Registration
		if err := json.Unmarshal(v, &reg); err != nil {
			return err
		}
		regs = append(regs, reg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].CreatedAt.After(regs[j].CreatedAt)
		}
		return regs[i].ID < regs[j].ID
	})
	return regs, nil
}

func (r registrationStore) List(ctx context.Context) ([]storage.RegistrationWithPayment, error) {
	var out []storage.RegistrationWithPayment
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		regs, err := r.list(tx)
		if err != nil {
			return err
		}
		payments, err := paymentsByRegistration(tx)
		if err != nil {
			return err
		}
		for _, reg := range regs {
			row := storage.RegistrationWithPayment{Registration: reg}
			if p, ok := payments[reg.ID]; ok {
				payment := p
				row.Payment = &payment
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r registrationStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRegs).Stats().KeyN
		return nil
	})
	return n, err
}

func (r registrationStore) CountConfirmed(ctx context.Context) (int, error) {
	n := 0
	err := r.s.db.View(func(tx *bbolt.Tx) error {
		payments, err := paymentsByRegistration(tx)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRegs).ForEach(func(k, _ []byte) error {
			if p, ok := payments[string(k)]; ok && p.Status == storage.StatusConfirmed {
				n++
			}
			return nil
		})
	})
	return n, err
}

func paymentsByRegistration(tx *bbolt.Tx) (map[string]storage.Payment, error) {
	out := make(map[string]storage.Payment)
	err := tx.Bucket(bucketPayments).ForEach(func(_, v []byte) error {
		var p storage.Payment
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if _, ok := out[p.RegistrationID]; !ok {
			out[p.RegistrationID] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// payments
// ---------------------------------------------------------------------------

type paymentStore struct{ s *Store }

func (p paymentStore) Create(ctx context.Context, payment *storage.Payment) error {
	return p.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPayments)
		if b.Get([]byte(payment.ID)) != nil {
			return storage.ErrDuplicate
		}
		return putJSON(b, payment.ID, payment)
	})
}

func (p paymentStore) GetByID(ctx context.Context, id string) (*storage.Payment, error) {
	var payment storage.Payment
	err := p.s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketPayments), id, &payment)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (p paymentStore) GetByRegistrationID(ctx context.Context, registrationID string) (*storage.Payment, error) {
	var found *storage.Payment
	err := p.s.db.View(func(tx *bbolt.Tx) error {
		payments, err := paymentsByRegistration(tx)
		if err != nil {
			return err
		}
		if payment, ok := payments[registrationID]; ok {
			found = &payment
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (p paymentStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := p.s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPayments).Stats().KeyN
		return nil
	})
	return n, err
}

func (p paymentStore) update(id string, fn func(*storage.Payment)) error {
	return p.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPayments)
		var payment storage.Payment
		if err := getJSON(b, id, &payment); err != nil {
			return err
		}
		fn(&payment)
		return putJSON(b, id, &payment)
	})
}

func (p paymentStore) SetReceipt(ctx context.Context, id, receiptPath, receiptName string) error {
	return p.update(id, func(payment *storage.Payment) {
		payment.ReceiptPath = receiptPath
		payment.ReceiptName = receiptName
		payment.Status = storage.StatusUnderReview
		payment.UpdatedAt = nowUTC()
	})
}

func (p paymentStore) SetStatus(ctx context.Context, id, status, reason, confirmedBy string) error {
	return p.update(id, func(payment *storage.Payment) {
		payment.Status = status
		payment.RejectionReason = reason
		payment.ConfirmedBy = confirmedBy
		payment.UpdatedAt = nowUTC()
	})
}

// ---------------------------------------------------------------------------
// submissions
// ---------------------------------------------------------------------------

type submissionStore struct{ s *Store }

func (st submissionStore) Create(ctx context.Context, sub *storage.Submission) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubmissions)
		if b.Get([]byte(sub.ID)) != nil {
			return storage.ErrDuplicate
		}
		return putJSON(b, sub.ID, sub)
	})
}

func (st submissionStore) all(tx *bbolt.Tx) ([]storage.Submission, error) {
	var subs []storage.Submission
	err := tx.Bucket(bucketSubmissions).ForEach(func(_, v []byte) error {
		var sub storage.Submission
		if err := json.Unmarshal(v, &sub); err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (st submissionStore) ListByRegistrationID(ctx context.Context, registrationID string) ([]storage.Submission, error) {
	var out []storage.Submission
	err := st.s.db.View(func(tx *bbolt.Tx) error {
		subs, err := st.all(tx)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.RegistrationID == registrationID {
				out = append(out, sub)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (st submissionStore) ListAll(ctx context.Context) ([]storage.SubmissionWithParticipant, error) {
	var out []storage.SubmissionWithParticipant
	err := st.s.db.View(func(tx *bbolt.Tx) error {
		subs, err := st.all(tx)
		if err != nil {
			return err
		}
		regs := tx.Bucket(bucketRegs)
		for _, sub := range subs {
			row := storage.SubmissionWithParticipant{Submission: sub}
			var reg storage.Registration
			if err := getJSON(regs, sub.RegistrationID, &reg); err == nil {
				row.ParticipantName = reg.Name
				row.ParticipantEmail = reg.Email
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// news
// ---------------------------------------------------------------------------

type newsStore struct{ s *Store }

func (st newsStore) Create(ctx context.Context, n *storage.NewsItem) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNews)
		if b.Get([]byte(n.ID)) != nil {
			return storage.ErrDuplicate
		}
		return putJSON(b, n.ID, n)
	})
}

func (st newsStore) Update(ctx context.Context, n *storage.NewsItem) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNews)
		if b.Get([]byte(n.ID)) == nil {
			return storage.ErrNotFound
		}
		return putJSON(b, n.ID, n)
	})
}

func (st newsStore) Delete(ctx context.Context, id string) error {
	return st.s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNews)
		if b.Get([]byte(id)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (st newsStore) GetByID(ctx context.Context, id string) (*storage.NewsItem, error) {
	var n storage.NewsItem
	err := st.s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketNews), id, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (st newsStore) list(publishedOnly bool) ([]storage.NewsItem, error) {
	var out []storage.NewsItem
	err := st.s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNews).ForEach(func(_, v []byte) error {
			var n storage.NewsItem
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if publishedOnly && !n.Published {
				return nil
			}
			out = append(out, n)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (st newsStore) ListAll(ctx context.Context) ([]storage.NewsItem, error) {
	return st.list(false)
}

func (st newsStore) ListPublished(ctx context.Context) ([]storage.NewsItem, error) {
	return st.list(true)
}
