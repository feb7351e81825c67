package search

import (
	"context"
	"log"
)

type indexBackend interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexPost(record PostRecord) error
	IndexProject(record ProjectRecord) error
}

type fallbackBackend interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// Service is the facade that tries Meilisearch first and falls back to a
// Postgres scan.
type Service struct {
	meili indexBackend // nil when Meilisearch is not configured
	pg    fallbackBackend
}

func NewService(meili *Meili, pg *PgSearch) *Service {
	s := &Service{pg: pg}
	if meili != nil {
		s.meili = meili
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPost indexes a published post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(record PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(record); err != nil {
			log.Printf("search: index post %s: %v", record.ID, err)
		}
	}()
}

// IndexProject indexes a project (fire-and-forget to Meilisearch).
func (s *Service) IndexProject(record ProjectRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProject(record); err != nil {
			log.Printf("search: index project %s: %v", record.ID, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
