package domain

import (
	"errors"
	"time"
)

var ErrProblemNotFound = errors.New("problem not found")

type HoldType string

const (
	HoldStart HoldType = "start"
	HoldHand  HoldType = "hand"
	HoldFeet  HoldType = "feet"
	HoldTop   HoldType = "top"
)

// Hold is a point on the wall image in relative coordinates, so a problem
// renders the same at any image resolution.
type Hold struct {
	ID   int      `json:"id,omitempty"`
	X    float64  `json:"x" validate:"gte=0,lte=1"`
	Y    float64  `json:"y" validate:"gte=0,lte=1"`
	Type HoldType `json:"type,omitempty"`
}

func (h Hold) InBounds() bool {
	return h.X >= 0 && h.X <= 1 && h.Y >= 0 && h.Y <= 1
}

type Problem struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Creator   string     `json:"creator"`
	Grade     string     `json:"grade"`
	Holds     []Hold     `json:"holds"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type CreateProblemRequest struct {
	Name    string `json:"name" validate:"required"`
	Creator string `json:"creator"`
	Grade   string `json:"grade"`
	Holds   []Hold `json:"holds" validate:"dive"`
}

// UpdateProblemRequest lists the mutable fields only. id and createdAt have
// no counterpart here, so a payload carrying them cannot overwrite them.
type UpdateProblemRequest struct {
	Name    *string `json:"name"`
	Creator *string `json:"creator"`
	Grade   *string `json:"grade"`
	Holds   *[]Hold `json:"holds" validate:"omitempty,dive"`
}

type NextIDResponse struct {
	NextID int `json:"nextId"`
}

func NewProblem(id int, req *CreateProblemRequest, now time.Time) *Problem {
	return &Problem{
		ID:        id,
		Name:      req.Name,
		Creator:   req.Creator,
		Grade:     req.Grade,
		Holds:     append([]Hold{}, req.Holds...),
		CreatedAt: now,
	}
}

// ApplyUpdate returns the shallow merge of p and req with UpdatedAt set to
// now. p itself is left untouched.
func ApplyUpdate(p Problem, req *UpdateProblemRequest, now time.Time) Problem {
	merged := p
	if req.Name != nil {
		merged.Name = *req.Name
	}
	if req.Creator != nil {
		merged.Creator = *req.Creator
	}
	if req.Grade != nil {
		merged.Grade = *req.Grade
	}
	if req.Holds != nil {
		merged.Holds = append([]Hold{}, (*req.Holds)...)
	}
	updatedAt := now
	merged.UpdatedAt = &updatedAt
	return merged
}

// MaxID returns the highest id in problems, or 0 for an empty slice.
func MaxID(problems []Problem) int {
	highest := 0
	for _, p := range problems {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest
}
