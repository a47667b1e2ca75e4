package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/medsurvey/internal/model"
)

// PageHandler renders the survey page.
type PageHandler struct {
	def *model.Definition
}

func NewPageHandler(def *model.Definition) *PageHandler {
	return &PageHandler{def: def}
}

// Survey godoc
// GET /
func (h *PageHandler) Survey(c *gin.Context) {
	c.HTML(http.StatusOK, "survey.html", gin.H{
		"Definition": h.def,
	})
}
