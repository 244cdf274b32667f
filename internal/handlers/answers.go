package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AnswerHandler struct {
	svc *forum.Service
}

func NewAnswerHandler(svc *forum.Service) *AnswerHandler {
	return &AnswerHandler{svc: svc}
}

// CreateAnswer appends an answer to the question in the path.
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.UserID(c)
	a, err := h.svc.AddAnswer(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Answer added",
		"answer":  a,
	})
}

func (h *AnswerHandler) VoteAnswer(c *gin.Context) {
	dir, ok := bindDirection(c)
	if !ok {
		return
	}

	userID, _ := middleware.UserID(c)
	res, err := h.svc.VoteAnswer(c.Request.Context(), userID, c.Param("id"), dir)
	if err != nil {
		respondError(c, err)
		return
	}
	respondVote(c, res)
}
