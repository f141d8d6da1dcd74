// Package mealshare implements meal plan share requests.
package mealshare

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mealkeeper/go-grocery-client/transport"
)

// Status of a share request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// ShareRequest is an invitation to share a meal plan with another account.
type ShareRequest struct {
	ID         string `json:"id"`
	MealPlanID string `json:"meal_plan_id"`
	FromUserID string `json:"from_user_id"`
	ToEmail    string `json:"to_email"`
	Status     Status `json:"status"`
}

// Service is the share request client.
type Service struct {
	doer transport.Doer
}

func NewService(doer transport.Doer) (*Service, error) {
	if doer == nil {
		return nil, errors.New("[mealshare.NewService] doer is required")
	}
	return &Service{doer: doer}, nil
}

// Create sends a share invitation.
func (s *Service) Create(ctx context.Context, mealPlanID, toEmail string) (*ShareRequest, error) {
	resp, err := s.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/meal-share-requests",
		Body:   map[string]string{"meal_plan_id": mealPlanID, "to_email": toEmail},
	})
	if err != nil {
		return nil, err
	}
	var req ShareRequest
	if err := resp.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Pending returns the requests awaiting an answer from the caller.
func (s *Service) Pending(ctx context.Context) ([]ShareRequest, error) {
	resp, err := s.doer.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/meal-share-requests"})
	if err != nil {
		return nil, err
	}
	var reqs []ShareRequest
	if err := resp.Decode(&reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// Accept answers a share request positively.
func (s *Service) Accept(ctx context.Context, id string) error {
	return s.answer(ctx, id, "accept")
}

// Decline rejects a share request.
func (s *Service) Decline(ctx context.Context, id string) error {
	return s.answer(ctx, id, "decline")
}

func (s *Service) answer(ctx context.Context, id, action string) error {
	_, err := s.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/meal-share-requests/" + id + "/" + action,
	})
	return err
}
