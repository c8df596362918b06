package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailpilot/internal/status"
)

// StatusController serves live workflow snapshots. It is mounted on the
// worker's internal port because the register is in-process state of the
// running coordinators.
type StatusController struct {
	register *status.Register
}

func NewStatusController(register *status.Register) *StatusController {
	return &StatusController{register: register}
}

// GetStatus returns the live status snapshot of one workflow instance.
func (h *StatusController) GetStatus(c *gin.Context) {
	instanceID := c.Param("id")
	snapshot, ok := h.register.Snapshot(instanceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance id"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ListInstances returns the ids of all registered workflow instances.
func (h *StatusController) ListInstances(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instances": h.register.Instances()})
}
