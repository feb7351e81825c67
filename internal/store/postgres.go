package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// viewTables maps counter kinds to their backing tables. Only listed kinds
// may ever reach the UPDATE below; the kind is never interpolated from user
// input directly.
var viewTables = map[string]string{
	"posts":    "posts",
	"projects": "projects",
}

// IncrementViews applies a single atomic +1 to the views column. The
// increment happens inside one UPDATE statement so concurrent callers can
// never lose updates; the application never reads the current value first.
// Returns false when no row matched.
func (s *PostgresStore) IncrementViews(ctx context.Context, kind, id string) (bool, error) {
	table, ok := viewTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown counter kind %q", kind)
	}
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET views = views + 1 WHERE id = $1`, table), id)
	if err != nil {
		return false, fmt.Errorf("increment views: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment views affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) InsertContactMessage(ctx context.Context, m ContactMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, message, status, ip_address, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, m.ID, m.Name, m.Email, m.Message, StatusNew, m.IPAddress, m.UserAgent)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContactMessage(ctx context.Context, id string) (ContactMessage, error) {
	const query = `
		SELECT id, name, email, message, status,
			reply_message, reply_sent_at, reply_admin,
			ip_address, user_agent, created_at, updated_at
		FROM contact_messages WHERE id = $1
	`
	var (
		m         ContactMessage
		replyMsg  sql.NullString
		replyAt   sql.NullTime
		replyFrom sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Email, &m.Message, &m.Status,
		&replyMsg, &replyAt, &replyFrom,
		&m.IPAddress, &m.UserAgent, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return ContactMessage{}, err
	}
	if replyMsg.Valid {
		reply := Reply{Message: replyMsg.String, Admin: replyFrom.String}
		if replyAt.Valid {
			at := replyAt.Time
			reply.SentAt = &at
		}
		m.Reply = &reply
	}
	return m, nil
}

// UpdateContactStatus moves a message to a non-replied status. The reply
// block is left untouched so an archived reply survives intact.
func (s *PostgresStore) UpdateContactStatus(ctx context.Context, id, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contact_messages SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("update contact status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update contact status affected: %w", err)
	}
	return affected == 1, nil
}

// SetContactReply records the replied transition: status and reply fields
// change together in exactly one write.
func (s *PostgresStore) SetContactReply(ctx context.Context, id, message, admin string, sentAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contact_messages
		SET status = $2, reply_message = $3, reply_admin = $4, reply_sent_at = $5, updated_at = NOW()
		WHERE id = $1
	`, id, StatusReplied, message, admin, sentAt)
	if err != nil {
		return false, fmt.Errorf("set contact reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set contact reply affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListContactMessages(ctx context.Context, filter ContactFilter) ([]ContactMessage, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, name, email, message, status,
			reply_message, reply_sent_at, reply_admin,
			ip_address, user_agent, created_at, updated_at
		FROM contact_messages
	`
	args := []any{}
	if filter.Status != "" && filter.Status != "all" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	messages := []ContactMessage{}
	for rows.Next() {
		var (
			m         ContactMessage
			replyMsg  sql.NullString
			replyAt   sql.NullTime
			replyFrom sql.NullString
		)
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Email, &m.Message, &m.Status,
			&replyMsg, &replyAt, &replyFrom,
			&m.IPAddress, &m.UserAgent, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		if replyMsg.Valid {
			reply := Reply{Message: replyMsg.String, Admin: replyFrom.String}
			if replyAt.Valid {
				at := replyAt.Time
				reply.SentAt = &at
			}
			m.Reply = &reply
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) ListPosts(ctx context.Context, publishedOnly bool) ([]Post, error) {
	query := `
		SELECT id, title, slug, excerpt, content, tags, published, views, created_at, updated_at
		FROM posts
	`
	if publishedOnly {
		query += ` WHERE published`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Content, &p.Tags, &p.Published, &p.Views, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (Post, error) {
	var p Post
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, excerpt, content, tags, published, views, created_at, updated_at
		FROM posts WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Content, &p.Tags, &p.Published, &p.Views, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, slug, description, tech, repo_url, live_url, featured, views, created_at, updated_at
		FROM projects ORDER BY featured DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Tech, &p.RepoURL, &p.LiveURL, &p.Featured, &p.Views, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, slug, description, tech, repo_url, live_url, featured, views, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Tech, &p.RepoURL, &p.LiveURL, &p.Featured, &p.Views, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListCertifications(ctx context.Context) ([]Certification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, issuer, credential_url, issued_at, views
		FROM certifications ORDER BY issued_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	certs := []Certification{}
	for rows.Next() {
		var c Certification
		if err := rows.Scan(&c.ID, &c.Title, &c.Issuer, &c.CredentialURL, &c.IssuedAt, &c.Views); err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

func (s *PostgresStore) ListTestimonials(ctx context.Context, approvedOnly bool) ([]Testimonial, error) {
	query := `SELECT id, author, role, quote, approved, created_at FROM testimonials`
	if approvedOnly {
		query += ` WHERE approved`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list testimonials: %w", err)
	}
	defer rows.Close()

	items := []Testimonial{}
	for rows.Next() {
		var t Testimonial
		if err := rows.Scan(&t.ID, &t.Author, &t.Role, &t.Quote, &t.Approved, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan testimonial: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ListExperience(ctx context.Context) ([]Experience, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, role, summary, start_date, end_date
		FROM experience ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list experience: %w", err)
	}
	defer rows.Close()

	items := []Experience{}
	for rows.Next() {
		var e Experience
		if err := rows.Scan(&e.ID, &e.Company, &e.Role, &e.Summary, &e.StartDate, &e.EndDate); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
