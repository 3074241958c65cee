package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kingdombarber/insight/internal/app"
	"github.com/kingdombarber/insight/internal/insights"
	"github.com/kingdombarber/insight/internal/llm"
	"github.com/kingdombarber/insight/internal/query"
	"github.com/kingdombarber/insight/internal/report"
	"github.com/kingdombarber/insight/pkg/dataset"
)

const maxBodyBytes = 1 << 20

// filterRequest is the JSON form of dataset.Filter. Dates are YYYY-MM-DD.
type filterRequest struct {
	Site    string `json:"site"`
	Barber  string `json:"barber"`
	Service string `json:"service"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func (f filterRequest) filter() (dataset.Filter, error) {
	out := dataset.Filter{Site: f.Site, Barber: f.Barber, Service: f.Service}
	var err error
	if out.From, err = parseDay(f.From); err != nil {
		return dataset.Filter{}, fmt.Errorf("from: %w", err)
	}
	if out.To, err = parseDay(f.To); err != nil {
		return dataset.Filter{}, fmt.Errorf("to: %w", err)
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From) {
		return dataset.Filter{}, errors.New("to is before from")
	}
	return out, nil
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dataset.DateLayout, s)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.Overview(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

type askRequest struct {
	Question string        `json:"question"`
	Filter   filterRequest `json:"filter"`
}

type askResponse struct {
	ID         string           `json:"id"`
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Script     string           `json:"script"`
	Output     string           `json:"output"`
	Trace      []query.State    `json:"trace"`
	Steps      uint64           `json:"steps"`
	StagesMS   map[string]int64 `json:"stages_ms"`
	DurationMS int64            `json:"duration_ms"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	f, ok := s.decode(w, r, &req, func() (dataset.Filter, error) { return req.Filter.filter() })
	if !ok {
		return
	}
	answer, err := s.svc.Ask(r.Context(), req.Question, f)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	stages := make(map[string]int64, len(answer.Stages))
	for k, d := range answer.Stages {
		stages[k] = d.Milliseconds()
	}
	writeJSON(w, http.StatusOK, askResponse{
		ID:         answer.ID,
		Question:   answer.Question,
		Answer:     answer.Text,
		Script:     answer.Script,
		Output:     answer.Output,
		Trace:      answer.Trace,
		Steps:      answer.Steps,
		StagesMS:   stages,
		DurationMS: answer.Duration.Milliseconds(),
	})
}

// reportRequest selects rows either by filter or by the keyed report
// context; a non-empty context wins.
type reportRequest struct {
	Filter  filterRequest     `json:"filter"`
	Context map[string]string `json:"context"`
	Publish bool              `json:"publish"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	f, ok := s.decode(w, r, &req, func() (dataset.Filter, error) {
		if len(req.Context) == 0 {
			return req.Filter.filter()
		}
		c, err := report.ContextFromMap(req.Context)
		if err != nil {
			return dataset.Filter{}, err
		}
		return c.Filter(), nil
	})
	if !ok {
		return
	}
	rep, err := s.svc.Report(r.Context(), f, req.Publish)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("X-Report-ID", rep.ID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rep.Document)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*app.Report
		Document string `json:"document"`
	}{Report: rep, Document: string(rep.Document)})
}

type campaignRequest struct {
	Filter  filterRequest `json:"filter"`
	Goal    string        `json:"goal"`
	Channel string        `json:"channel"`
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	f, ok := s.decode(w, r, &req, func() (dataset.Filter, error) { return req.Filter.filter() })
	if !ok {
		return
	}
	c, err := s.svc.Campaign(r.Context(), f, insights.CampaignRequest{Goal: req.Goal, Channel: req.Channel})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type opportunitiesRequest struct {
	Filter filterRequest `json:"filter"`
	Areas  []string      `json:"areas"`
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	var req opportunitiesRequest
	f, ok := s.decode(w, r, &req, func() (dataset.Filter, error) { return req.Filter.filter() })
	if !ok {
		return
	}
	o, err := s.svc.Opportunities(r.Context(), f, req.Areas)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, insights.MaxImageBytes+maxBodyBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "a multipart field named image is required", false)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read the image", false)
		return
	}
	text, err := s.svc.StyleAdvice(r.Context(), llm.Media{MIMEType: header.Header.Get("Content-Type"), Data: data})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"advice": text})
}

// decode reads a JSON body into dst and derives the filter. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, filter func() (dataset.Filter, error)) (dataset.Filter, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", fmt.Sprintf("invalid request body: %v", err), false)
		return dataset.Filter{}, false
	}
	f, err := filter()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_filter", err.Error(), false)
		return dataset.Filter{}, false
	}
	return f, true
}
