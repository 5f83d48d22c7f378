package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/pkg/response"
)

type studentCache interface {
	Forget(ctx context.Context, id string) error
}

// StudentHandler exposes maintenance of the cached student directory.
type StudentHandler struct {
	students studentCache
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students studentCache) *StudentHandler {
	return &StudentHandler{students: students}
}

// ForgetCache godoc
// @Summary Evict a student's cached gate summary
// @Description The next scan or pass slip reloads name, roll number and room from the directory.
// @Tags Admin
// @Param id path string true "Student ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /admin/students/{id}/cache [delete]
func (h *StudentHandler) ForgetCache(c *gin.Context) {
	if err := h.students.Forget(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
