package game

import (
	"log"
	"math"
	"time"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

// SubmitTask validates a submission against the active task
// configuration, computes the point delta, and atomically updates the
// player, the leaderboard, and the session completion counters.
func (s *Service) SubmitTask(username, taskID string, responseIDs []string) (TaskSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return TaskSubmission{}, err
	}
	if stats.State != StateRunning {
		return TaskSubmission{}, apperr.New(apperr.IllegalState, "tasks can only be submitted while the game is running")
	}

	task, ok := findTask(stats.Configuration.Tasks, taskID)
	if !ok {
		return TaskSubmission{}, apperr.New(apperr.InvalidInput, "invalid task ID")
	}
	responses, ok := resolveResponses(task, responseIDs)
	if !ok {
		return TaskSubmission{}, apperr.New(apperr.InvalidInput, "one or more response IDs do not belong to this task")
	}

	player, err := s.stores.Players.ReadPlayer(username)
	if err != nil {
		return TaskSubmission{}, err
	}

	// A submission is correct iff every selected response is individually
	// marked correct.
	correct := true
	for _, r := range responses {
		if !r.Correct {
			correct = false
			break
		}
	}

	submitTime := s.now()
	config := stats.Configuration
	var pointsDelta int
	var message string
	if correct {
		pointsDelta = task.SuccessValue
		if task.ScaleSuccessValueOverTime {
			// Rewards decay across the window; an early correct answer
			// earns the full value.
			pointsDelta = timeScaledValue(submitTime, task.SuccessValue, config.StartTime, config.EndTime, false)
		}
		message = task.SuccessMessage
	} else {
		pointsDelta = -task.FailValue
		if task.ScaleFailValueOverTime {
			// Penalties grow across the window; an early wrong answer
			// costs nothing.
			pointsDelta = -timeScaledValue(submitTime, task.FailValue, config.StartTime, config.EndTime, true)
		}
		message = task.FailMessage
	}

	submission := TaskSubmission{
		TaskID:      task.ID,
		Correct:     correct,
		Title:       task.Title,
		Required:    task.Required,
		SubmitTime:  submitTime,
		Responses:   responses,
		PointsDelta: pointsDelta,
		Message:     message,
	}

	statsChanged := false
	if correct && task.Required && !player.Completed {
		if requiredTasksSatisfied(player, task.ID) == stats.NumRequiredTasks {
			player.Completed = true
			stats.PlayersCompleted++
			if !stats.Completed && stats.PlayersCompleted >= stats.Configuration.MinPlayersToComplete {
				stats.Completed = true
			}
			statsChanged = true
		}
	}

	ranking, err := s.lb.UpdatePlayerScore(username, pointsDelta)
	if err != nil {
		return TaskSubmission{}, err
	}
	player.Points += pointsDelta
	player.Ranking = ranking

	if err := s.stores.Players.PushTaskSubmission(username, submission); err != nil {
		return TaskSubmission{}, err
	}
	if err := s.stores.Players.WritePlayer(player); err != nil {
		return TaskSubmission{}, err
	}
	if statsChanged {
		if err := s.stores.Stats.WriteGameStats(stats); err != nil {
			return TaskSubmission{}, err
		}
	}

	s.pushGameUpdates(stats)
	s.pushTaskUpdates(stats, task.ID)

	log.Printf("Player %s submitted task %s (correct=%t, delta=%d, rank=%d)",
		username, task.ID, correct, pointsDelta, ranking)
	return submission, nil
}

func findTask(tasks []Task, taskID string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return Task{}, false
}

func resolveResponses(task Task, responseIDs []string) ([]TaskResponse, bool) {
	responses := make([]TaskResponse, 0, len(responseIDs))
	for _, id := range responseIDs {
		found := false
		for _, r := range task.Responses {
			if r.ID == id {
				responses = append(responses, r)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return responses, true
}

// requiredTasksSatisfied counts the distinct required tasks the player
// has answered correctly, treating current as freshly satisfied.
func requiredTasksSatisfied(player Player, current string) int {
	satisfied := map[string]bool{current: true}
	for _, sub := range player.TasksSubmitted {
		if sub.Required && sub.Correct {
			satisfied[sub.TaskID] = true
		}
	}
	return len(satisfied)
}

// timeScaledValue linearly interpolates value across [start, end].
// Rising scales from 0 up toward value as time progresses; falling
// scales from value down toward 0. The submit time is clamped to the
// window so a trigger race at the boundary cannot push the result out
// of [0, value]. Callers must guarantee end is after start.
func timeScaledValue(t time.Time, value int, start, end time.Time, rising bool) int {
	if t.Before(start) {
		t = start
	}
	if t.After(end) {
		t = end
	}
	window := float64(end.UnixMilli() - start.UnixMilli())
	elapsed := float64(t.UnixMilli() - start.UnixMilli())
	if rising {
		return int(math.Floor(float64(value) * elapsed / window))
	}
	return int(math.Floor(float64(value) * (window - elapsed) / window))
}

func (s *Service) pushTaskUpdates(stats GameStats, taskID string) {
	viewers := s.registry.TaskInfoViewers(taskID)
	if len(viewers) == 0 {
		return
	}
	if task, ok := findTask(stats.Configuration.Tasks, taskID); ok {
		s.registry.Send(wsPkg.ToUsers(viewers...), wsPkg.TaskInfo(publicTask(task)))
	}
}
