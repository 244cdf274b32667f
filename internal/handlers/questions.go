package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/live"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type QuestionHandler struct {
	svc     *forum.Service
	hub     *live.Hub
	origins []string
	log     logrus.FieldLogger
}

func NewQuestionHandler(svc *forum.Service, hub *live.Hub, origins []string, log logrus.FieldLogger) *QuestionHandler {
	return &QuestionHandler{svc: svc, hub: hub, origins: originPatterns(origins), log: log}
}

// originPatterns turns CORS origins into the host patterns the websocket
// origin check matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	questions, err := h.svc.ListQuestions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// GetQuestion returns the question with its author and answers.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	detail, err := h.svc.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.UserID(c)
	q, err := h.svc.CreateQuestion(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Question created successfully",
		"question": q,
	})
}

// VoteQuestion toggles the caller's vote. Repeating a vote removes it;
// voting the other way switches it.
func (h *QuestionHandler) VoteQuestion(c *gin.Context) {
	dir, ok := bindDirection(c)
	if !ok {
		return
	}

	userID, _ := middleware.UserID(c)
	res, err := h.svc.VoteQuestion(c.Request.Context(), userID, c.Param("id"), dir)
	if err != nil {
		respondError(c, err)
		return
	}
	respondVote(c, res)
}

func (h *QuestionHandler) Search(c *gin.Context) {
	results, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Live upgrades to a websocket that streams vote and answer updates for one question.
func (h *QuestionHandler) Live(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.GetQuestion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.hub.Serve(c.Request.Context(), conn, id)
}

func bindDirection(c *gin.Context) (models.Direction, bool) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return models.None, false
	}

	dir, ok := models.ParseDirection(input.Value())
	if !ok {
		respondError(c, errs.InvalidArgument("direction must be \"up\" or \"down\""))
		return models.None, false
	}
	return dir, true
}

func respondVote(c *gin.Context, res models.VoteResult) {
	msg := "Vote updated"
	if res.Outcome == models.OutcomeRetracted {
		msg = "Vote removed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": msg,
		"votes":   res.Counters,
		"outcome": res.Outcome,
		"current": res.Current,
	})
}
