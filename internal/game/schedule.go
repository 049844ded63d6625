package game

import (
	"log"
	"time"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

// Deferred start/end triggers. Each is a cancelable timer handle owned
// by the lifecycle state machine; cancellation is idempotent, and a
// trigger firing after its manual counterpart already ran observes a
// terminal or advanced state and no-ops.

func (s *Service) scheduleTriggers(startTime, endTime time.Time) {
	now := s.now()
	if startTime.After(now) {
		s.startTrigger = time.AfterFunc(startTime.Sub(now), s.onStartTrigger)
	}
	if endTime.After(now) {
		s.endTrigger = time.AfterFunc(endTime.Sub(now), s.onEndTrigger)
	}
}

func (s *Service) onStartTrigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTrigger = nil
	if err := s.startGame(true); err != nil {
		if apperr.Is(err, apperr.IllegalState) {
			log.Printf("Scheduled start skipped: %v", err)
			return
		}
		log.Printf("Scheduled start failed: %v", err)
	}
}

func (s *Service) onEndTrigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endTrigger = nil
	if err := s.endGame(true); err != nil {
		if apperr.Is(err, apperr.IllegalState) {
			log.Printf("Scheduled end skipped: %v", err)
			return
		}
		log.Printf("Scheduled end failed: %v", err)
	}
}

func (s *Service) cancelStartTrigger() {
	if s.startTrigger != nil {
		s.startTrigger.Stop()
		s.startTrigger = nil
	}
}

func (s *Service) cancelEndTrigger() {
	if s.endTrigger != nil {
		s.endTrigger.Stop()
		s.endTrigger = nil
	}
}
