package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/config"
	"folio/api/internal/search"
	"folio/api/internal/store"
)

type fakeStore struct {
	pingFn            func(ctx context.Context) error
	incrementViewsFn  func(ctx context.Context, kind, id string) (bool, error)
	insertContactFn   func(ctx context.Context, m store.ContactMessage) error
	getContactFn      func(ctx context.Context, id string) (store.ContactMessage, error)
	updateStatusFn    func(ctx context.Context, id, status string) (bool, error)
	setReplyFn        func(ctx context.Context, id, message, admin string, sentAt time.Time) (bool, error)
	listContactFn     func(ctx context.Context, filter store.ContactFilter) ([]store.ContactMessage, error)
	listPostsFn       func(ctx context.Context, publishedOnly bool) ([]store.Post, error)
	getPostFn         func(ctx context.Context, id string) (store.Post, error)
	listProjectsFn    func(ctx context.Context) ([]store.Project, error)
	getProjectFn      func(ctx context.Context, id string) (store.Project, error)
	listCertsFn       func(ctx context.Context) ([]store.Certification, error)
	listTestimonialFn func(ctx context.Context, approvedOnly bool) ([]store.Testimonial, error)
	listExperienceFn  func(ctx context.Context) ([]store.Experience, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) IncrementViews(ctx context.Context, kind, id string) (bool, error) {
	if f.incrementViewsFn != nil {
		return f.incrementViewsFn(ctx, kind, id)
	}
	return true, nil
}

func (f *fakeStore) InsertContactMessage(ctx context.Context, m store.ContactMessage) error {
	if f.insertContactFn != nil {
		return f.insertContactFn(ctx, m)
	}
	return nil
}

func (f *fakeStore) GetContactMessage(ctx context.Context, id string) (store.ContactMessage, error) {
	if f.getContactFn != nil {
		return f.getContactFn(ctx, id)
	}
	return store.ContactMessage{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateContactStatus(ctx context.Context, id, status string) (bool, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return true, nil
}

func (f *fakeStore) SetContactReply(ctx context.Context, id, message, admin string, sentAt time.Time) (bool, error) {
	if f.setReplyFn != nil {
		return f.setReplyFn(ctx, id, message, admin, sentAt)
	}
	return true, nil
}

func (f *fakeStore) ListContactMessages(ctx context.Context, filter store.ContactFilter) ([]store.ContactMessage, error) {
	if f.listContactFn != nil {
		return f.listContactFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeStore) ListPosts(ctx context.Context, publishedOnly bool) ([]store.Post, error) {
	if f.listPostsFn != nil {
		return f.listPostsFn(ctx, publishedOnly)
	}
	return nil, nil
}

func (f *fakeStore) GetPost(ctx context.Context, id string) (store.Post, error) {
	if f.getPostFn != nil {
		return f.getPostFn(ctx, id)
	}
	return store.Post{}, sql.ErrNoRows
}

func (f *fakeStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, id)
	}
	return store.Project{}, sql.ErrNoRows
}

func (f *fakeStore) ListCertifications(ctx context.Context) ([]store.Certification, error) {
	if f.listCertsFn != nil {
		return f.listCertsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) ListTestimonials(ctx context.Context, approvedOnly bool) ([]store.Testimonial, error) {
	if f.listTestimonialFn != nil {
		return f.listTestimonialFn(ctx, approvedOnly)
	}
	return nil, nil
}

func (f *fakeStore) ListExperience(ctx context.Context) ([]store.Experience, error) {
	if f.listExperienceFn != nil {
		return f.listExperienceFn(ctx)
	}
	return nil, nil
}

type fakeDrafter struct {
	draftFn func(ctx context.Context, content string) (string, error)
}

func (f *fakeDrafter) DraftReply(ctx context.Context, content string) (string, error) {
	return f.draftFn(ctx, content)
}

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return f.allowFn(ctx, key)
}

const testMessageID = "507f1f77bcf86cd799439011"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return config.Config{
		Env:               "test",
		AuthSecret:        "test-secret",
		SessionTTL:        time.Hour,
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: hash,
	}
}

func newTestService(t *testing.T, fs *fakeStore) *Service {
	t.Helper()
	return &Service{cfg: testConfig(t), store: fs}
}

func wantDomainError(t *testing.T, err error, status int, code string) *DomainError {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != status || domainErr.Code != code {
		t.Fatalf("expected %d %s, got %d %s", status, code, domainErr.Status, domainErr.Code)
	}
	return domainErr
}

func TestLoginIssuesValidToken(t *testing.T) {
	s := newTestService(t, &fakeStore{})

	token, err := s.Login("Admin@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	session, err := s.SessionFromCookie(token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if session.Subject != "admin@example.com" {
		t.Fatalf("expected admin subject, got %q", session.Subject)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t, &fakeStore{})

	_, err := s.Login("admin@example.com", "wrong")
	wantDomainError(t, err, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	_, err = s.Login("intruder@example.com", "correct horse")
	wantDomainError(t, err, http.StatusUnauthorized, "INVALID_CREDENTIALS")
}

func TestLoginUnconfigured(t *testing.T) {
	s := &Service{cfg: config.Config{AuthSecret: "x"}, store: &fakeStore{}}

	_, err := s.Login("admin@example.com", "anything")
	wantDomainError(t, err, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE")
}

func TestIncrementViewsValidation(t *testing.T) {
	called := false
	s := newTestService(t, &fakeStore{
		incrementViewsFn: func(ctx context.Context, kind, id string) (bool, error) {
			called = true
			return true, nil
		},
	})

	err := s.IncrementViews(context.Background(), "posts", "POSTS-123")
	wantDomainError(t, err, http.StatusBadRequest, "INVALID_IDENTIFIER")

	err = s.IncrementViews(context.Background(), "posts", "../escape")
	wantDomainError(t, err, http.StatusBadRequest, "INVALID_IDENTIFIER")

	err = s.IncrementViews(context.Background(), "widgets", testMessageID)
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")

	if called {
		t.Fatal("store must not be reached for rejected input")
	}
}

func TestIncrementViewsMissingDocument(t *testing.T) {
	s := newTestService(t, &fakeStore{
		incrementViewsFn: func(ctx context.Context, kind, id string) (bool, error) {
			return false, nil
		},
	})

	err := s.IncrementViews(context.Background(), "projects", testMessageID)
	wantDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestIncrementViewsConcurrent(t *testing.T) {
	var views int64
	s := newTestService(t, &fakeStore{
		incrementViewsFn: func(ctx context.Context, kind, id string) (bool, error) {
			atomic.AddInt64(&views, 1)
			return true, nil
		},
	})

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := s.IncrementViews(context.Background(), "posts", testMessageID); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&views); got != workers {
		t.Fatalf("expected %d increments, got %d", workers, got)
	}
}

func TestSubmitContactValidation(t *testing.T) {
	s := newTestService(t, &fakeStore{})

	_, err := s.SubmitContact(context.Background(), ContactInput{Name: " ", Email: "a@b.c", Message: "hi"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	_, err = s.SubmitContact(context.Background(), ContactInput{Name: "Ada", Email: "not-an-email", Message: "hi"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestSubmitContactStartsNew(t *testing.T) {
	var inserted store.ContactMessage
	s := newTestService(t, &fakeStore{
		insertContactFn: func(ctx context.Context, m store.ContactMessage) error {
			inserted = m
			return nil
		},
	})

	m, err := s.SubmitContact(context.Background(), ContactInput{
		Name:      "Ada",
		Email:     "ada@example.com",
		Message:   "  hello there  ",
		IPAddress: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Status != store.StatusNew {
		t.Fatalf("expected new status, got %q", m.Status)
	}
	if inserted.Message != "hello there" {
		t.Fatalf("expected trimmed message, got %q", inserted.Message)
	}
	if inserted.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestSubmitContactRateLimited(t *testing.T) {
	s := newTestService(t, &fakeStore{})
	s.limiter = &fakeLimiter{allowFn: func(ctx context.Context, key string) (bool, error) {
		return false, nil
	}}

	_, err := s.SubmitContact(context.Background(), ContactInput{
		Name: "Ada", Email: "ada@example.com", Message: "hi", IPAddress: "203.0.113.9",
	})
	wantDomainError(t, err, http.StatusTooManyRequests, "RATE_LIMITED")
}

func messageInState(status string) func(ctx context.Context, id string) (store.ContactMessage, error) {
	return func(ctx context.Context, id string) (store.ContactMessage, error) {
		return store.ContactMessage{ID: id, Name: "Ada", Email: "ada@example.com", Message: "hi", Status: status}, nil
	}
}

func TestTransitionContactForward(t *testing.T) {
	var wroteStatus string
	s := newTestService(t, &fakeStore{
		getContactFn: messageInState(store.StatusNew),
		updateStatusFn: func(ctx context.Context, id, status string) (bool, error) {
			wroteStatus = status
			return true, nil
		},
	})

	m, err := s.TransitionContact(context.Background(), testMessageID, store.StatusRead)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if m.Status != store.StatusRead || wroteStatus != store.StatusRead {
		t.Fatalf("expected read, got %q (wrote %q)", m.Status, wroteStatus)
	}
}

func TestTransitionContactRejectsBackward(t *testing.T) {
	cases := []struct {
		from, to string
	}{
		{store.StatusRead, store.StatusNew},
		{store.StatusReplied, store.StatusRead},
		{store.StatusArchived, store.StatusRead},
		{store.StatusArchived, store.StatusArchived},
	}
	for _, tc := range cases {
		s := newTestService(t, &fakeStore{getContactFn: messageInState(tc.from)})
		_, err := s.TransitionContact(context.Background(), testMessageID, tc.to)
		domainErr := wantDomainError(t, err, http.StatusConflict, "INVALID_TRANSITION")
		details, ok := domainErr.Details.(map[string]any)
		if !ok || details["from"] != tc.from {
			t.Fatalf("%s->%s: expected transition details, got %v", tc.from, tc.to, domainErr.Details)
		}
	}
}

func TestTransitionContactRepliedNeedsReplyOperation(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusNew)})

	_, err := s.TransitionContact(context.Background(), testMessageID, store.StatusReplied)
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestArchiveFromAnyActiveState(t *testing.T) {
	for _, from := range []string{store.StatusNew, store.StatusRead, store.StatusReplied} {
		s := newTestService(t, &fakeStore{getContactFn: messageInState(from)})
		m, err := s.TransitionContact(context.Background(), testMessageID, store.StatusArchived)
		if err != nil {
			t.Fatalf("archive from %s: %v", from, err)
		}
		if m.Status != store.StatusArchived {
			t.Fatalf("archive from %s: got %q", from, m.Status)
		}
	}
}

func TestReplyContactSetsReplyAndStatus(t *testing.T) {
	var wroteMessage, wroteAdmin string
	s := newTestService(t, &fakeStore{
		getContactFn: messageInState(store.StatusRead),
		setReplyFn: func(ctx context.Context, id, message, admin string, sentAt time.Time) (bool, error) {
			wroteMessage, wroteAdmin = message, admin
			return true, nil
		},
	})

	m, err := s.ReplyContact(context.Background(), testMessageID, "Thanks for reaching out.", Session{Subject: "admin@example.com"})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if m.Status != store.StatusReplied {
		t.Fatalf("expected replied, got %q", m.Status)
	}
	if m.Reply == nil || m.Reply.Message != "Thanks for reaching out." || m.Reply.SentAt == nil {
		t.Fatalf("expected populated reply, got %+v", m.Reply)
	}
	if wroteMessage != "Thanks for reaching out." || wroteAdmin != "admin@example.com" {
		t.Fatalf("unexpected write: %q by %q", wroteMessage, wroteAdmin)
	}
}

func TestReplyContactRejectsEmptyMessage(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusNew)})

	_, err := s.ReplyContact(context.Background(), testMessageID, "   ", Session{Subject: "admin@example.com"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestReplyContactRejectsArchived(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusArchived)})

	_, err := s.ReplyContact(context.Background(), testMessageID, "hello", Session{Subject: "admin@example.com"})
	wantDomainError(t, err, http.StatusConflict, "INVALID_TRANSITION")
}

func TestDraftFailureDoesNotBlockReply(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusRead)})
	s.drafter = &fakeDrafter{draftFn: func(ctx context.Context, content string) (string, error) {
		return "", errors.New("upstream timeout")
	}}

	_, err := s.DraftContactReply(context.Background(), testMessageID)
	wantDomainError(t, err, http.StatusBadGateway, "DRAFT_UNAVAILABLE")

	m, err := s.ReplyContact(context.Background(), testMessageID, "Manual reply.", Session{Subject: "admin@example.com"})
	if err != nil {
		t.Fatalf("manual reply after draft failure: %v", err)
	}
	if m.Status != store.StatusReplied {
		t.Fatalf("expected replied, got %q", m.Status)
	}
}

func TestDraftWithoutDrafterConfigured(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusNew)})

	_, err := s.DraftContactReply(context.Background(), testMessageID)
	wantDomainError(t, err, http.StatusBadGateway, "DRAFT_UNAVAILABLE")
}

func TestDraftReturnsSuggestion(t *testing.T) {
	s := newTestService(t, &fakeStore{getContactFn: messageInState(store.StatusNew)})
	s.drafter = &fakeDrafter{draftFn: func(ctx context.Context, content string) (string, error) {
		if content != "hi" {
			t.Errorf("expected original message content, got %q", content)
		}
		return "Thanks for your note.", nil
	}}

	text, err := s.DraftContactReply(context.Background(), testMessageID)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if text != "Thanks for your note." {
		t.Fatalf("unexpected draft %q", text)
	}
}

func TestListContactRejectsUnknownStatus(t *testing.T) {
	s := newTestService(t, &fakeStore{})

	_, err := s.ListContact(context.Background(), store.ContactFilter{Status: "pending"})
	wantDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestSearchWithoutBackend(t *testing.T) {
	s := newTestService(t, &fakeStore{})

	resp := s.Search(context.Background(), search.Query{Text: "go"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty result set, got %+v", resp.Results)
	}
}
