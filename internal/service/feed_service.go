package service

import (
	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/websocket"
)

// FeedService publishes problem changes to connected feed clients.
type FeedService struct {
	wsManager *websocket.Manager
}

func NewFeedService(wsManager *websocket.Manager) *FeedService {
	return &FeedService{
		wsManager: wsManager,
	}
}

func (s *FeedService) BroadcastProblemCreated(problem *domain.Problem) error {
	msg, err := websocket.NewMessage(websocket.TypeProblemCreated, &websocket.ProblemPayload{Problem: problem})
	if err != nil {
		return err
	}

	return s.wsManager.Broadcast(msg)
}

func (s *FeedService) BroadcastProblemUpdated(problem *domain.Problem) error {
	msg, err := websocket.NewMessage(websocket.TypeProblemUpdated, &websocket.ProblemPayload{Problem: problem})
	if err != nil {
		return err
	}

	return s.wsManager.Broadcast(msg)
}

func (s *FeedService) BroadcastProblemDeleted(id int) error {
	msg, err := websocket.NewMessage(websocket.TypeProblemDeleted, &websocket.ProblemDeletedPayload{ID: id})
	if err != nil {
		return err
	}

	return s.wsManager.Broadcast(msg)
}
