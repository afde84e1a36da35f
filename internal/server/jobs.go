package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetJob returns the current job snapshot. Reads go through a short
// TTL cache; jobs are single-writer so a slightly stale read is safe.
func (s *Server) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	if cached, ok := s.jobCache.Get(jobID); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	job, err := s.jobSvc.Get(c.Request.Context(), jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Terminal snapshots never change; cache them a little longer.
	ttl := jobSnapshotTTL
	if job.Status.Terminal() {
		ttl = 10 * jobSnapshotTTL
	}
	s.jobCache.Set(jobID, job, ttl)

	c.JSON(http.StatusOK, job)
}

// WaitJob runs a watch session bound to the request context and
// returns the outcome with the last observed snapshot.
func (s *Server) WaitJob(c *gin.Context) {
	jobID := c.Param("id")

	// Reject unknown jobs before committing a watch session.
	if _, err := s.jobSvc.Get(c.Request.Context(), jobID); err != nil {
		AbortWithError(c, err)
		return
	}

	session := s.trackers.Watch(c.Request.Context(), jobID)
	snapshot, err := session.Wait(c.Request.Context())
	if err != nil {
		session.Stop()
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
