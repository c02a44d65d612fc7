package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/middleware"
	"boulder-catalog/pkg/response"

	"github.com/gorilla/mux"
)

type ProblemService interface {
	Create(ctx context.Context, req *domain.CreateProblemRequest) (*domain.Problem, error)
	List(ctx context.Context) ([]*domain.Problem, error)
	GetByID(ctx context.Context, id int) (*domain.Problem, error)
	Update(ctx context.Context, id int, req *domain.UpdateProblemRequest) (*domain.Problem, error)
	Delete(ctx context.Context, id int) error
	NextID(ctx context.Context) (int, error)
}

type ProblemHandler struct {
	service ProblemService
}

func NewProblemHandler(service ProblemService) *ProblemHandler {
	return &ProblemHandler{service: service}
}

func (h *ProblemHandler) List(w http.ResponseWriter, r *http.Request) {
	problems, err := h.service.List(r.Context())
	if err != nil {
		h.logError(r, "Error fetching problems", err)
		response.InternalError(w, "Error fetching problems")
		return
	}

	if problems == nil {
		problems = []*domain.Problem{}
	}

	response.Success(w, problems)
}

func (h *ProblemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}

	problem, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProblemNotFound) {
			response.NotFound(w, "Problem not found")
			return
		}
		h.logError(r, "Error fetching problem", err)
		response.InternalError(w, "Error fetching problem")
		return
	}

	response.Success(w, problem)
}

func (h *ProblemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := domain.ValidateCreate(&req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	problem, err := h.service.Create(r.Context(), &req)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, validationErr.Error())
			return
		}
		h.logError(r, "Error creating problem", err)
		response.InternalError(w, "Error creating problem")
		return
	}

	response.Created(w, problem)
}

func (h *ProblemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := domain.ValidateUpdate(&req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	problem, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrProblemNotFound):
			response.NotFound(w, "Problem not found")
		case errors.As(err, &validationErr):
			response.BadRequest(w, validationErr.Error())
		default:
			h.logError(r, "Error updating problem", err)
			response.InternalError(w, "Error updating problem")
		}
		return
	}

	response.Success(w, problem)
}

func (h *ProblemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := problemID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrProblemNotFound) {
			response.NotFound(w, "Problem not found")
			return
		}
		h.logError(r, "Error deleting problem", err)
		response.InternalError(w, "Error deleting problem")
		return
	}

	response.Message(w, "Problem deleted")
}

func (h *ProblemHandler) NextID(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.NextID(r.Context())
	if err != nil {
		h.logError(r, "Error fetching next ID", err)
		response.InternalError(w, "Error fetching next ID")
		return
	}

	response.Success(w, domain.NextIDResponse{NextID: next})
}

func (h *ProblemHandler) logError(r *http.Request, msg string, err error) {
	log.Printf("%s (request %s): %v", msg, middleware.GetRequestID(r), err)
}

func problemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := mux.Vars(r)["id"]
	if raw == "" {
		response.BadRequest(w, "Problem ID is required")
		return 0, false
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		response.BadRequest(w, "Invalid problem ID")
		return 0, false
	}

	return id, true
}
