package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/live"
)

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Question *QuestionHandler
	Answer   *AnswerHandler
	User     *UserHandler
	Meta     *MetaHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(svc *forum.Service, hub *live.Hub, origins []string, log logrus.FieldLogger) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(svc),
		Question: NewQuestionHandler(svc, hub, origins, log),
		Answer:   NewAnswerHandler(svc),
		User:     NewUserHandler(svc),
		Meta:     NewMetaHandler(svc),
	}
}

// respondError writes err as {"error": kind, "message": text} with the
// status its kind maps to.
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal {
		_ = c.Error(err)
	}
	c.JSON(errs.HTTPStatus(kind), gin.H{
		"error":   kind,
		"message": errs.MessageOf(err),
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, errs.Wrap(errs.KindInvalidArgument, err, err.Error()))
}
