package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/config"
	"folio/api/internal/draft"
	"folio/api/internal/notify"
	"folio/api/internal/ratelimit"
	"folio/api/internal/search"
	"folio/api/internal/store"
	"folio/api/internal/util"
)

// Session is the authenticated admin identity extracted from the cookie.
type Session struct {
	Subject string
}

// ContactInput is a public contact-form submission.
type ContactInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Counter kinds accepted by the view-increment operation.
var counterKinds = map[string]struct{}{
	"posts":    {},
	"projects": {},
}

type dataStore interface {
	Ping(ctx context.Context) error
	IncrementViews(ctx context.Context, kind, id string) (bool, error)
	InsertContactMessage(ctx context.Context, m store.ContactMessage) error
	GetContactMessage(ctx context.Context, id string) (store.ContactMessage, error)
	UpdateContactStatus(ctx context.Context, id, status string) (bool, error)
	SetContactReply(ctx context.Context, id, message, admin string, sentAt time.Time) (bool, error)
	ListContactMessages(ctx context.Context, filter store.ContactFilter) ([]store.ContactMessage, error)
	ListPosts(ctx context.Context, publishedOnly bool) ([]store.Post, error)
	GetPost(ctx context.Context, id string) (store.Post, error)
	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProject(ctx context.Context, id string) (store.Project, error)
	ListCertifications(ctx context.Context) ([]store.Certification, error)
	ListTestimonials(ctx context.Context, approvedOnly bool) ([]store.Testimonial, error)
	ListExperience(ctx context.Context) ([]store.Experience, error)
}

type drafter interface {
	DraftReply(ctx context.Context, messageContent string) (string, error)
}

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexPost(record search.PostRecord)
	IndexProject(record search.ProjectRecord)
}

type notifier interface {
	NotifyNewMessage(name, email, message string) error
	SendReply(toEmail, toName, originalMessage, reply string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	drafter  drafter     // nil when no reply-generation credential is configured
	limiter  rateLimiter // nil disables contact rate limiting
	search   searcher    // nil disables the search endpoint
	notifier notifier    // nil disables email notifications
}

func New(cfg config.Config, dataStore *store.PostgresStore) *Service {
	return &Service{cfg: cfg, store: dataStore}
}

func (s *Service) WithDrafter(d *draft.Client) *Service {
	if d != nil {
		s.drafter = d
	}
	return s
}

func (s *Service) WithLimiter(l *ratelimit.Limiter) *Service {
	if l != nil {
		s.limiter = l
	}
	return s
}

func (s *Service) WithSearch(sr *search.Service) *Service {
	if sr != nil {
		s.search = sr
	}
	return s
}

func (s *Service) WithNotifier(n *notify.Service) *Service {
	if n != nil && n.IsConfigured() {
		s.notifier = n
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap warms the search index from the database. Failures are not
// fatal; search falls back to Postgres until the next restart.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	posts, err := s.store.ListPosts(ctx, true)
	if err != nil {
		return err
	}
	for _, p := range posts {
		s.search.IndexPost(search.PostRecord{ID: p.ID, Title: p.Title, Excerpt: p.Excerpt, Slug: p.Slug})
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		s.search.IndexProject(search.ProjectRecord{ID: p.ID, Title: p.Title, Description: p.Description, Slug: p.Slug})
	}
	return nil
}

// Sessions

// Login verifies the configured admin credential and issues a signed
// session token. The failure response is uniform: callers learn only that
// the credentials were rejected.
func (s *Service) Login(email, password string) (string, error) {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPasswordHash == "" {
		return "", domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Admin login is not configured", nil)
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.cfg.AdminEmail) || !auth.CheckPassword(s.cfg.AdminPasswordHash, password) {
		return "", domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	token, err := auth.IssueToken([]byte(s.cfg.AuthSecret), s.cfg.AdminEmail, s.cfg.SessionTTL)
	if err != nil {
		return "", domainError(http.StatusInternalServerError, "SERVER_ERROR", "Could not issue session", nil)
	}
	return token, nil
}

// SessionFromCookie validates the cookie value. Every failure collapses to
// the same error so the HTTP layer cannot leak why a token was rejected.
func (s *Service) SessionFromCookie(value string) (Session, error) {
	subject, err := auth.ParseToken([]byte(s.cfg.AuthSecret), value)
	if err != nil {
		return Session{}, err
	}
	return Session{Subject: subject}, nil
}

// Counter service

// IncrementViews applies exactly one atomic +1 to the named document.
// The id is validated before any storage call; the store never sees a
// malformed identifier.
func (s *Service) IncrementViews(ctx context.Context, kind, id string) error {
	if _, ok := counterKinds[kind]; !ok {
		return errNotFound()
	}
	if !util.IsValidID(id) {
		return errInvalidIdentifier(id)
	}
	matched, err := s.store.IncrementViews(ctx, kind, id)
	if err != nil {
		return errStorageUnavailable(err)
	}
	if !matched {
		return errNotFound()
	}
	return nil
}

// Contact workflow

// SubmitContact creates a new message in the initial state. Rate limiting
// applies per client IP when a limiter is configured.
func (s *Service) SubmitContact(ctx context.Context, input ContactInput) (store.ContactMessage, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	message := strings.TrimSpace(input.Message)
	if name == "" || email == "" || message == "" {
		return store.ContactMessage{}, errValidation("name, email, and message are required")
	}
	if !strings.Contains(email, "@") {
		return store.ContactMessage{}, errValidation("email is not valid")
	}

	if s.limiter != nil && input.IPAddress != "" {
		ok, err := s.limiter.Allow(ctx, input.IPAddress)
		if err != nil {
			return store.ContactMessage{}, errStorageUnavailable(err)
		}
		if !ok {
			return store.ContactMessage{}, domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many messages, try again later", nil)
		}
	}

	m := store.ContactMessage{
		ID:        util.NewID(),
		Name:      name,
		Email:     email,
		Message:   message,
		Status:    store.StatusNew,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	if err := s.store.InsertContactMessage(ctx, m); err != nil {
		return store.ContactMessage{}, errStorageUnavailable(err)
	}

	// Notification failures never surface to the visitor.
	if s.notifier != nil {
		go func() {
			if err := s.notifier.NotifyNewMessage(m.Name, m.Email, m.Message); err != nil {
				log.Printf("contact notification failed: %v", err)
			}
		}()
	}
	return m, nil
}

func (s *Service) ListContact(ctx context.Context, filter store.ContactFilter) ([]store.ContactMessage, error) {
	if filter.Status != "" && filter.Status != "all" && !knownStatus(filter.Status) {
		return nil, errValidation("unknown status filter")
	}
	messages, err := s.store.ListContactMessages(ctx, filter)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return messages, nil
}

func (s *Service) GetContact(ctx context.Context, id string) (store.ContactMessage, error) {
	if !util.IsValidID(id) {
		return store.ContactMessage{}, errInvalidIdentifier(id)
	}
	m, err := s.store.GetContactMessage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ContactMessage{}, errNotFound()
	}
	if err != nil {
		return store.ContactMessage{}, errStorageUnavailable(err)
	}
	return m, nil
}

// canTransition encodes the message state machine. Archived is absorbing,
// nothing moves backward, and the replied transition is handled separately
// because it carries the reply payload.
func canTransition(from, to string) bool {
	switch to {
	case store.StatusRead:
		return from == store.StatusNew
	case store.StatusReplied:
		return from == store.StatusNew || from == store.StatusRead
	case store.StatusArchived:
		return from != store.StatusArchived
	default:
		return false
	}
}

func knownStatus(status string) bool {
	switch status {
	case store.StatusNew, store.StatusRead, store.StatusReplied, store.StatusArchived:
		return true
	}
	return false
}

// TransitionContact moves a message to read or archived. The precondition
// is checked against a fresh read; a concurrent admin may still win the
// subsequent write (last-write-wins, by policy).
func (s *Service) TransitionContact(ctx context.Context, id, target string) (store.ContactMessage, error) {
	if !knownStatus(target) {
		return store.ContactMessage{}, errValidation("unknown status")
	}
	if target == store.StatusReplied {
		return store.ContactMessage{}, errValidation("use the reply operation to transition to replied")
	}

	m, err := s.GetContact(ctx, id)
	if err != nil {
		return store.ContactMessage{}, err
	}
	if !canTransition(m.Status, target) {
		return store.ContactMessage{}, errInvalidTransition(m.Status, target)
	}

	matched, err := s.store.UpdateContactStatus(ctx, id, target)
	if err != nil {
		return store.ContactMessage{}, errStorageUnavailable(err)
	}
	if !matched {
		return store.ContactMessage{}, errNotFound()
	}
	m.Status = target
	return m, nil
}

// ReplyContact performs the replied transition: one write sets the status
// and the reply block together.
func (s *Service) ReplyContact(ctx context.Context, id, message string, session Session) (store.ContactMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return store.ContactMessage{}, errValidation("reply message must not be empty")
	}

	m, err := s.GetContact(ctx, id)
	if err != nil {
		return store.ContactMessage{}, err
	}
	if !canTransition(m.Status, store.StatusReplied) {
		return store.ContactMessage{}, errInvalidTransition(m.Status, store.StatusReplied)
	}

	sentAt := time.Now().UTC()
	matched, err := s.store.SetContactReply(ctx, id, message, session.Subject, sentAt)
	if err != nil {
		return store.ContactMessage{}, errStorageUnavailable(err)
	}
	if !matched {
		return store.ContactMessage{}, errNotFound()
	}

	m.Status = store.StatusReplied
	m.Reply = &store.Reply{Message: message, SentAt: &sentAt, Admin: session.Subject}

	if s.notifier != nil {
		go func() {
			if err := s.notifier.SendReply(m.Email, m.Name, m.Message, message); err != nil {
				log.Printf("reply delivery failed: %v", err)
			}
		}()
	}
	return m, nil
}

// DraftContactReply asks the external service for a suggested reply. It
// never touches the message's status; a failure here leaves the manual
// reply path fully usable.
func (s *Service) DraftContactReply(ctx context.Context, id string) (string, error) {
	if s.drafter == nil {
		return "", errDraftUnavailable(draft.ErrUnavailable)
	}
	m, err := s.GetContact(ctx, id)
	if err != nil {
		return "", err
	}
	text, err := s.drafter.DraftReply(ctx, m.Message)
	if err != nil {
		return "", errDraftUnavailable(err)
	}
	return text, nil
}

// Public content reads

func (s *Service) ListPosts(ctx context.Context) ([]store.Post, error) {
	posts, err := s.store.ListPosts(ctx, true)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return posts, nil
}

func (s *Service) GetPost(ctx context.Context, id string) (store.Post, error) {
	if !util.IsValidID(id) {
		return store.Post{}, errInvalidIdentifier(id)
	}
	post, err := s.store.GetPost(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Post{}, errNotFound()
	}
	if err != nil {
		return store.Post{}, errStorageUnavailable(err)
	}
	return post, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (store.Project, error) {
	if !util.IsValidID(id) {
		return store.Project{}, errInvalidIdentifier(id)
	}
	project, err := s.store.GetProject(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, errNotFound()
	}
	if err != nil {
		return store.Project{}, errStorageUnavailable(err)
	}
	return project, nil
}

func (s *Service) ListCertifications(ctx context.Context) ([]store.Certification, error) {
	certs, err := s.store.ListCertifications(ctx)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return certs, nil
}

func (s *Service) ListTestimonials(ctx context.Context) ([]store.Testimonial, error) {
	items, err := s.store.ListTestimonials(ctx, true)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return items, nil
}

func (s *Service) ListExperience(ctx context.Context) ([]store.Experience, error) {
	items, err := s.store.ListExperience(ctx)
	if err != nil {
		return nil, errStorageUnavailable(err)
	}
	return items, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}
