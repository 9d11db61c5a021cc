package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/blackmichael/novelle/internal/domain"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "page must be an integer")
		return
	}
	size := q.Get("limit")
	if size == "" {
		size = q.Get("pageSize")
	}
	pageSize, err := queryInt(size, domain.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
		return
	}

	feed, err := s.deps.Feed.GetPage(r.Context(), domain.PageRequest{
		Page:     page,
		PageSize: pageSize,
		Viewer:   viewerFrom(r.Context()),
	})
	if s.deps.Observer != nil {
		s.deps.Observer.FeedPage(err)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Data:       toFeedItems(feed.Items),
		Pagination: toPagination(feed.Pagination),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Interactions.Stats(r.Context(), r.PathValue("quoteId"), viewerFrom(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toInteractionStats(*stats)})
}

func (s *Server) handleToggle(action domain.InteractionAction, kind domain.InteractionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.PathValue("quoteId")
		viewer := viewerFrom(r.Context())

		var (
			stats *domain.InteractionStats
			err   error
		)
		if action == domain.ActionAdd {
			stats, err = s.deps.Interactions.Add(r.Context(), kind, target, viewer)
		} else {
			stats, err = s.deps.Interactions.Remove(r.Context(), kind, target, viewer)
		}
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: toInteractionStats(*stats)})
	}
}

type createQuoteRequest struct {
	Book struct {
		Title       string    `json:"title"`
		Author      string    `json:"author"`
		CoverImage  string    `json:"coverImage"`
		Description string    `json:"description"`
		Genre       genreList `json:"genre"`
		PageCount   int       `json:"pageCount"`
	} `json:"book"`
	Quote struct {
		Text       string `json:"text"`
		Author     string `json:"author"`
		PageNumber int    `json:"pageNumber"`
		Notes      string `json:"notes"`
		IsPublic   *bool  `json:"isPublic"`
	} `json:"quote"`
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
		return
	}

	created, err := s.deps.Content.CreateQuote(r.Context(), viewerFrom(r.Context()),
		domain.NewBook{
			Title:       req.Book.Title,
			Author:      req.Book.Author,
			CoverImage:  req.Book.CoverImage,
			Description: req.Book.Description,
			Genre:       req.Book.Genre,
			PageCount:   req.Book.PageCount,
		},
		domain.NewQuote{
			Text:       req.Quote.Text,
			Author:     req.Quote.Author,
			PageNumber: req.Quote.PageNumber,
			Notes:      req.Quote.Notes,
			IsPublic:   req.Quote.IsPublic == nil || *req.Quote.IsPublic,
		},
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: toCreatedQuote(created)})
}

// genreList accepts either a JSON array of genres or a comma-separated string.
type genreList []string

func (g *genreList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*g = list
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("genre must be a string or an array of strings")
	}
	*g = nil
	if s == nil {
		return nil
	}
	for _, part := range strings.Split(*s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*g = append(*g, part)
		}
	}
	return nil
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
