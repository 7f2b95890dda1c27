package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListVersions(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	versions, err := s.versionSvc.ListVersions(c.Request.Context(), quoteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// ResolveVersion returns the version the acting user should edit, branching
// a copy when the active version belongs to someone else.
func (s *Server) ResolveVersion(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	version, err := s.versionSvc.ResolveModelForActingUser(c.Request.Context(), quoteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

func (s *Server) CreateVersion(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	version, err := s.versionSvc.PerformQuoteVersioning(c.Request.Context(), quoteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (s *Server) BranchVersion(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	version, err := s.versionSvc.PerformQuoteVersioningFromVersion(c.Request.Context(), quoteID, versionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (s *Server) SwitchActiveVersion(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.versionSvc.SwitchActiveVersion(c.Request.Context(), quoteID, versionID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteVersion(c *gin.Context) {
	quoteID, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.versionSvc.DeleteVersion(c.Request.Context(), quoteID, versionID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
