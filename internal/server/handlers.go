package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/diagnosis"
	"github.com/p-n-ai/pai-mastery/internal/difficulty"
	"github.com/p-n-ai/pai-mastery/internal/mastery"
	"github.com/p-n-ai/pai-mastery/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// evidenceRequest is the body of POST /v1/learners/{learner}/evidence.
type evidenceRequest struct {
	TopicID       string   `json:"topic_id"`
	TouchedSkills []string `json:"touched_skills"`
	IsCorrect     bool     `json:"is_correct"`
}

// evidenceResponse is returned after evidence is applied.
type evidenceResponse struct {
	TopicID  string           `json:"topic_id"`
	Snapshot mastery.Snapshot `json:"snapshot"`
	Band     difficulty.Band  `json:"band"`
}

type topicRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	grade := r.URL.Query().Get("grade")

	if stage == "" {
		writeJSON(w, http.StatusOK, map[string]any{"topics": s.graph.AllTopics()})
		return
	}
	topics, ok := s.graph.ListTopics(stage, grade)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s/%s", curriculum.ErrGradeNotFound, stage, grade))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.graph.Topic(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (s *Server) handlePrerequisites(w http.ResponseWriter, r *http.Request) {
	topic, err := s.graph.Topic(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	refs := []topicRef{}
	for _, id := range s.graph.Resolve(topic.ID) {
		t, _ := s.graph.FindTopic(id)
		refs = append(refs, topicRef{ID: t.ID, Name: t.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic_id":      topic.ID,
		"prerequisites": refs,
	})
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.Diagnose(r.Context(), r.PathValue("learner"), r.PathValue("topic"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag, err := diagnosis.ETag(rep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handlePractice builds a generation request. An optional ?band= overrides
// the calibrated band, for example when a tutor pins the difficulty.
func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	var band difficulty.Band
	if raw := r.URL.Query().Get("band"); raw != "" {
		var err error
		if band, err = difficulty.ParseBand(raw); err != nil {
			writeError(w, r, err)
			return
		}
	}

	req, err := s.engine.PracticeRequest(r.Context(), r.PathValue("learner"), r.PathValue("topic"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if band != "" {
		req.Band = band
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) {
	body, err := decodeEvidence(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.record(r, r.PathValue("learner"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeEvidence reads one evidence object, rejecting unknown fields. Both the
// HTTP and the stream endpoint go through it.
func decodeEvidence(r io.Reader) (evidenceRequest, error) {
	var body evidenceRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return evidenceRequest{}, fmt.Errorf("%w: %w", mastery.ErrInvalidEvidence, err)
	}
	return body, nil
}

func (s *Server) record(r *http.Request, learnerID string, body evidenceRequest) (evidenceResponse, error) {
	snap, err := s.recorder.Record(r.Context(), mastery.Evidence{
		LearnerID:     learnerID,
		TopicID:       body.TopicID,
		TouchedSkills: body.TouchedSkills,
		IsCorrect:     body.IsCorrect,
	})
	if err != nil {
		return evidenceResponse{}, err
	}
	return evidenceResponse{
		TopicID:  curriculum.Normalize(body.TopicID),
		Snapshot: snap,
		Band:     difficulty.Calibrate(snap.MasteryScore),
	}, nil
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics, err := s.engine.NextTopics(r.Context(), r.PathValue("learner"), q.Get("stage"), q.Get("grade"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	due, err := s.engine.DueReviews(r.Context(), r.PathValue("learner"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": due})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	snaps, err := s.store.ListByLearner(r.Context(), learnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, s.graph, snaps); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-progress.xlsx"`, learnerID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
