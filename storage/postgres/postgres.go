// Package postgres implements storage.Repository backed by PostgreSQL
// through a pgx connection pool. Nullable text columns are scanned into
// empty strings at this boundary so that handlers never see row-shaped
// nulls. Schema migrations live in the migrations package and are run
// by the server command before the pool is handed here.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openconf/regdesk/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string and
// returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Users() storage.UserStore                 { return userStore{s.pool} }
func (s *Store) Sessions() storage.SessionStore           { return sessionStore{s.pool} }
func (s *Store) Registrations() storage.RegistrationStore { return registrationStore{s.pool} }
func (s *Store) Payments() storage.PaymentStore           { return paymentStore{s.pool} }
func (s *Store) Submissions() storage.SubmissionStore     { return submissionStore{s.pool} }
func (s *Store) News() storage.NewsStore                  { return newsStore{s.pool} }

// uniqueViolation is the PostgreSQL error code for unique-constraint
// violations.
const uniqueViolation = "23505"

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromNullable(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

type userStore struct{ pool *pgxpool.Pool }

const userColumns = `id, email, password_hash, password_salt, role, name, registration_id, created_at`

func scanUser(row pgx.Row) (*storage.User, error) {
	var u storage.User
	var name, regID *string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &u.Role, &name, &regID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Name = fromNullable(name)
	u.RegistrationID = fromNullable(regID)
	return &u, nil
}

func (st userStore) Create(ctx context.Context, u *storage.User) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, password_salt, role, name, registration_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.PasswordHash, u.PasswordSalt, string(u.Role),
		nullable(u.Name), nullable(u.RegistrationID), u.CreatedAt)
	return mapInsertErr(err)
}

func (st userStore) GetByID(ctx context.Context, id string) (*storage.User, error) {
	return scanUser(st.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (st userStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	return scanUser(st.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (st userStore) Delete(ctx context.Context, id string) error {
	_, err := st.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (st userStore) List(ctx context.Context) ([]storage.User, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// sessions
// ---------------------------------------------------------------------------

type sessionStore struct{ pool *pgxpool.Pool }

func (st sessionStore) Create(ctx context.Context, sess *storage.Session) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, sess.Token, sess.ExpiresAt,
		nullable(sess.IP), nullable(sess.UserAgent), sess.CreatedAt)
	return mapInsertErr(err)
}

func (st sessionStore) GetByToken(ctx context.Context, token string) (*storage.Session, error) {
	var sess storage.Session
	var ip, ua *string
	err := st.pool.QueryRow(ctx,
		`SELECT id, user_id, token, expires_at, ip, user_agent, created_at
		 FROM sessions WHERE token = $1`, token).
		Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &ip, &ua, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.IP = fromNullable(ip)
	sess.UserAgent = fromNullable(ua)
	return &sess, nil
}

func (st sessionStore) Delete(ctx context.Context, token string) error {
	_, err := st.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// ---------------------------------------------------------------------------
// registrations
// ---------------------------------------------------------------------------

type registrationStore struct{ pool *pgxpool.Pool }

const regColumns = `id, user_id, name, email, participation_type, participation_package,
	participant_category, birthdate, phone, telegram, city, country, organization,
	position, specialty, specialty_other, experience, consent_data, consent_rules,
	consent_media, membership_proof_path, membership_proof_name, created_at`

func scanRegistrationFields(reg *storage.Registration, row pgx.Row, extra ...any) error {
	var birthdate, phone, telegram, city, country, organization *string
	var position, specialty, specialtyOther, proofPath, proofName, pkg *string
	dest := []any{
		&reg.ID, &reg.UserID, &reg.Name, &reg.Email, &reg.ParticipationType, &pkg,
		&reg.ParticipantCategory, &birthdate, &phone, &telegram, &city, &country,
		&organization, &position, &specialty, &specialtyOther, &reg.Experience,
		&reg.ConsentData, &reg.ConsentRules, &reg.ConsentMedia, &proofPath, &proofName,
		&reg.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	reg.ParticipationPackage = fromNullable(pkg)
	reg.Birthdate = fromNullable(birthdate)
	reg.Phone = fromNullable(phone)
	reg.Telegram = fromNullable(telegram)
	reg.City = fromNullable(city)
	reg.Country = fromNullable(country)
	reg.Organization = fromNullable(organization)
	reg.Position = fromNullable(position)
	reg.Specialty = fromNullable(specialty)
	reg.SpecialtyOther = fromNullable(specialtyOther)
	reg.MembershipProofPath = fromNullable(proofPath)
	reg.MembershipProofName = fromNullable(proofName)
	return nil
}

func (st registrationStore) Create(ctx context.Context, reg *storage.Registration) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO registrations (`+regColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		         $17, $18, $19, $20, $21, $22, $23)`,
		reg.ID, reg.UserID, reg.Name, reg.Email, reg.ParticipationType,
		nullable(reg.ParticipationPackage), reg.ParticipantCategory,
		nullable(reg.Birthdate), nullable(reg.Phone), nullable(reg.Telegram),
		nullable(reg.City), nullable(reg.Country), nullable(reg.Organization),
		nullable(reg.Position), nullable(reg.Specialty), nullable(reg.SpecialtyOther),
		reg.Experience, reg.ConsentData, reg.ConsentRules, reg.ConsentMedia,
		nullable(reg.MembershipProofPath), nullable(reg.MembershipProofName), reg.CreatedAt)
	return mapInsertErr(err)
}

func (st registrationStore) GetByID(ctx context.Context, id string) (*storage.Registration, error) {
	var reg storage.Registration
	err := scanRegistrationFields(&reg, st.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (st registrationStore) Delete(ctx context.Context, id string) error {
	_, err := st.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	return err
}

func (st registrationStore) GetByUserID(ctx context.Context, userID string) (*storage.Registration, error) {
	var reg storage.Registration
	err := scanRegistrationFields(&reg, st.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (st registrationStore) List(ctx context.Context) ([]storage.RegistrationWithPayment, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT r.id, r.user_id, r.name, r.email, r.participation_type, r.participation_package,
		        r.participant_category, r.birthdate, r.phone, r.telegram, r.city, r.country,
		        r.organization, r.position, r.specialty, r.specialty_other, r.experience,
		        r.consent_data, r.consent_rules, r.consent_media,
		        r.membership_proof_path, r.membership_proof_name, r.created_at,
		        p.id, p.status, p.amount, p.currency, p.invoice_number,
		        p.receipt_path, p.receipt_name, p.rejection_reason, p.confirmed_by,
		        p.created_at, p.updated_at
		 FROM registrations r
		 LEFT JOIN payments p ON p.registration_id = r.id
		 ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.RegistrationWithPayment
	for rows.Next() {
		var row storage.RegistrationWithPayment
		var pID, pStatus, pCurrency, pInvoice, pReceiptPath, pReceiptName, pReason, pConfirmedBy *string
		var pAmount *int64
		var pCreated, pUpdated *time.Time
		err := scanRegistrationFields(&row.Registration, rows,
			&pID, &pStatus, &pAmount, &pCurrency, &pInvoice,
			&pReceiptPath, &pReceiptName, &pReason, &pConfirmedBy,
			&pCreated, &pUpdated)
		if err != nil {
			return nil, err
		}
		if pID != nil {
			p := storage.Payment{
				ID:              *pID,
				RegistrationID:  row.ID,
				Status:          fromNullable(pStatus),
				Currency:        fromNullable(pCurrency),
				InvoiceNumber:   fromNullable(pInvoice),
				ReceiptPath:     fromNullable(pReceiptPath),
				ReceiptName:     fromNullable(pReceiptName),
				RejectionReason: fromNullable(pReason),
				ConfirmedBy:     fromNullable(pConfirmedBy),
			}
			if pAmount != nil {
				p.Amount = *pAmount
			}
			if pCreated != nil {
				p.CreatedAt = *pCreated
			}
			if pUpdated != nil {
				p.UpdatedAt = *pUpdated
			}
			row.Payment = &p
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (st registrationStore) Count(ctx context.Context) (int, error) {
	var n int
	err := st.pool.QueryRow(ctx, `SELECT count(*) FROM registrations`).Scan(&n)
	return n, err
}

func (st registrationStore) CountConfirmed(ctx context.Context) (int, error) {
	var n int
	err := st.pool.QueryRow(ctx,
		`SELECT count(DISTINCT r.id)
		 FROM registrations r
		 JOIN payments p ON p.registration_id = r.id
		 WHERE p.status = $1`, storage.StatusConfirmed).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// payments
// ---------------------------------------------------------------------------

type paymentStore struct{ pool *pgxpool.Pool }

const paymentColumns = `id, registration_id, status, amount, currency, invoice_number,
	receipt_path, receipt_name, rejection_reason, confirmed_by, created_at, updated_at`

func scanPayment(row pgx.Row) (*storage.Payment, error) {
	var p storage.Payment
	var invoice, receiptPath, receiptName, reason, confirmedBy *string
	err := row.Scan(&p.ID, &p.RegistrationID, &p.Status, &p.Amount, &p.Currency,
		&invoice, &receiptPath, &receiptName, &reason, &confirmedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.InvoiceNumber = fromNullable(invoice)
	p.ReceiptPath = fromNullable(receiptPath)
	p.ReceiptName = fromNullable(receiptName)
	p.RejectionReason = fromNullable(reason)
	p.ConfirmedBy = fromNullable(confirmedBy)
	return &p, nil
}

func (st paymentStore) Create(ctx context.Context, p *storage.Payment) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.RegistrationID, p.Status, p.Amount, p.Currency,
		nullable(p.InvoiceNumber), nullable(p.ReceiptPath), nullable(p.ReceiptName),
		nullable(p.RejectionReason), nullable(p.ConfirmedBy), p.CreatedAt, p.UpdatedAt)
	return mapInsertErr(err)
}

func (st paymentStore) GetByID(ctx context.Context, id string) (*storage.Payment, error) {
	return scanPayment(st.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (st paymentStore) GetByRegistrationID(ctx context.Context, registrationID string) (*storage.Payment, error) {
	return scanPayment(st.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE registration_id = $1 ORDER BY created_at LIMIT 1`, registrationID))
}

func (st paymentStore) Count(ctx context.Context) (int, error) {
	var n int
	err := st.pool.QueryRow(ctx, `SELECT count(*) FROM payments`).Scan(&n)
	return n, err
}

func (st paymentStore) SetReceipt(ctx context.Context, id, receiptPath, receiptName string) error {
	tag, err := st.pool.Exec(ctx,
		`UPDATE payments SET receipt_path = $1, receipt_name = $2, status = $3, updated_at = $4
		 WHERE id = $5`,
		receiptPath, receiptName, storage.StatusUnderReview, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (st paymentStore) SetStatus(ctx context.Context, id, status, reason, confirmedBy string) error {
	tag, err := st.pool.Exec(ctx,
		`UPDATE payments SET status = $1, rejection_reason = $2, confirmed_by = $3, updated_at = $4
		 WHERE id = $5`,
		status, nullable(reason), nullable(confirmedBy), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// submissions
// ---------------------------------------------------------------------------

type submissionStore struct{ pool *pgxpool.Pool }

func (st submissionStore) Create(ctx context.Context, sub *storage.Submission) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO submissions (id, registration_id, user_id, type, title, file_path, file_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.RegistrationID, sub.UserID, sub.Type, nullable(sub.Title),
		sub.FilePath, sub.FileName, sub.CreatedAt)
	return mapInsertErr(err)
}

func (st submissionStore) ListByRegistrationID(ctx context.Context, registrationID string) ([]storage.Submission, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT id, registration_id, user_id, type, title, file_path, file_name, created_at
		 FROM submissions WHERE registration_id = $1
		 ORDER BY created_at DESC, id`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Submission
	for rows.Next() {
		var sub storage.Submission
		var title *string
		if err := rows.Scan(&sub.ID, &sub.RegistrationID, &sub.UserID, &sub.Type,
			&title, &sub.FilePath, &sub.FileName, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.Title = fromNullable(title)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (st submissionStore) ListAll(ctx context.Context) ([]storage.SubmissionWithParticipant, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT s.id, s.registration_id, s.user_id, s.type, s.title, s.file_path, s.file_name,
		        s.created_at, r.name, r.email
		 FROM submissions s
		 LEFT JOIN registrations r ON r.id = s.registration_id
		 ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SubmissionWithParticipant
	for rows.Next() {
		var row storage.SubmissionWithParticipant
		var title, name, email *string
		if err := rows.Scan(&row.ID, &row.RegistrationID, &row.UserID, &row.Type,
			&title, &row.FilePath, &row.FileName, &row.CreatedAt, &name, &email); err != nil {
			return nil, err
		}
		row.Title = fromNullable(title)
		row.ParticipantName = fromNullable(name)
		row.ParticipantEmail = fromNullable(email)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// news
// ---------------------------------------------------------------------------

type newsStore struct{ pool *pgxpool.Pool }

const newsColumns = `id, title_en, title_ru, title_uz, content_en, content_ru, content_uz,
	is_published, published_at`

func (st newsStore) Create(ctx context.Context, n *storage.NewsItem) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO news (`+newsColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.TitleEN, n.TitleRU, n.TitleUZ, n.ContentEN, n.ContentRU, n.ContentUZ,
		n.Published, n.PublishedAt)
	return mapInsertErr(err)
}

func (st newsStore) Update(ctx context.Context, n *storage.NewsItem) error {
	tag, err := st.pool.Exec(ctx,
		`UPDATE news SET title_en = $1, title_ru = $2, title_uz = $3,
		        content_en = $4, content_ru = $5, content_uz = $6, is_published = $7
		 WHERE id = $8`,
		n.TitleEN, n.TitleRU, n.TitleUZ, n.ContentEN, n.ContentRU, n.ContentUZ,
		n.Published, n.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (st newsStore) Delete(ctx context.Context, id string) error {
	tag, err := st.pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanNews(row pgx.Row) (*storage.NewsItem, error) {
	var n storage.NewsItem
	err := row.Scan(&n.ID, &n.TitleEN, &n.TitleRU, &n.TitleUZ,
		&n.ContentEN, &n.ContentRU, &n.ContentUZ, &n.Published, &n.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (st newsStore) GetByID(ctx context.Context, id string) (*storage.NewsItem, error) {
	return scanNews(st.pool.QueryRow(ctx,
		`SELECT `+newsColumns+` FROM news WHERE id = $1`, id))
}

func (st newsStore) list(ctx context.Context, publishedOnly bool) ([]storage.NewsItem, error) {
	q := `SELECT ` + newsColumns + ` FROM news`
	if publishedOnly {
		q += ` WHERE is_published`
	}
	q += ` ORDER BY published_at DESC, id`
	rows, err := st.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.NewsItem
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (st newsStore) ListAll(ctx context.Context) ([]storage.NewsItem, error) {
	return st.list(ctx, false)
}

func (st newsStore) ListPublished(ctx context.Context) ([]storage.NewsItem, error) {
	return st.list(ctx, true)
}
