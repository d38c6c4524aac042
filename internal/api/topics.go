package api

import (
	"encoding/json"
	"net/http"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/gorilla/mux"

	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/serverutil"
)

type TopicsResp struct {
	Message string   `json:"message,omitempty"`
	Topics  []string `json:"topics"`
}

func (s *Server) getTopics(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, TopicsResp{Topics: usr.SavedTopics})
}

type TopicSaveReq struct {
	Topic string `json:"topic"`
}

func (req TopicSaveReq) Validate() error {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return brferrs.E("topic is required", http.StatusBadRequest)
	}

	// Topics are fed straight into upstream searches, so keep them clean.
	if goaway.IsProfane(topic) {
		return brferrs.E("topic contains inappropriate language", http.StatusUnprocessableEntity)
	}

	return nil
}

func (s *Server) postTopic(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[TopicSaveReq](r.Body)
	if err != nil {
		return err
	}

	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	topic := strings.TrimSpace(body.Topic)
	if containsFold(usr.SavedTopics, topic) {
		// Saving a topic twice is a no-op, not an error.
		return serverutil.WriteJSON(w, http.StatusOK, TopicsResp{
			Message: "Topic already saved",
			Topics:  usr.SavedTopics,
		})
	}

	updated, err := s.repo.UpdateTopics(r.Context(), usr.ID, append(usr.SavedTopics, topic))
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, TopicsResp{
		Message: "Topic saved",
		Topics:  updated.SavedTopics,
	})
}

func (s *Server) deleteTopic(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	topic := mux.Vars(r)["topic"]
	kept := make([]string, 0, len(usr.SavedTopics))
	for _, t := range usr.SavedTopics {
		if !strings.EqualFold(t, topic) {
			kept = append(kept, t)
		}
	}

	updated, err := s.repo.UpdateTopics(r.Context(), usr.ID, kept)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, TopicsResp{
		Message: "Topic removed",
		Topics:  updated.SavedTopics,
	})
}

// PUT takes the full list and replaces whatever was saved before.
func (s *Server) putTopics(w http.ResponseWriter, r *http.Request) error {
	var topics []string
	if err := json.NewDecoder(r.Body).Decode(&topics); err != nil {
		return brferrs.E(err, http.StatusBadRequest)
	}

	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	updated, err := s.repo.UpdateTopics(r.Context(), usr.ID, topics)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, TopicsResp{
		Message: "Topics updated",
		Topics:  updated.SavedTopics,
	})
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
