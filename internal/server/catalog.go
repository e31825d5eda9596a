package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"support-chat-backend/internal/catalog"
)

// GET /api/products?q=&category=&room=
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products := s.catalog.Products(catalog.Filter{
		Category: q.Get("category"),
		Room:     q.Get("room"),
		Query:    q.Get("q"),
	})
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// GET /api/products/{id}
func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/categories
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.catalog.Categories()})
}

// GET /api/categories/{id}/questions
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.catalog.Questions(chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// GET /api/categories/{id}/troubleshooting
func (s *Server) handleTroubleshooting(w http.ResponseWriter, r *http.Request) {
	issues, err := s.catalog.Troubleshooting(chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

// GET /api/answers
func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": s.catalog.Topics()})
}

// GET /api/answers/{topic}
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	answer, err := s.catalog.Answer(topic)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"topic": topic, "answer": answer})
}

// GET /api/starters
func (s *Server) handleStarters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"starters": s.catalog.Starters()})
}

// GET /api/scenarios
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": s.catalog.Scenarios()})
}

// GET /api/scenarios/{id}
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.catalog.Scenario(chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("catalog lookup failed")
	s.writeError(w, http.StatusInternalServerError, "catalog lookup failed")
}
