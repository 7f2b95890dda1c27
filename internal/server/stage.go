package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	stagedomain "github.com/smallbiznis/quotedesk/internal/stage/domain"
)

func (s *Server) stageIDs(c *gin.Context) (quoteID, versionID snowflake.ID, ok bool) {
	quoteID, ok = pathID(c, "id")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return 0, 0, false
	}
	versionID, ok = pathID(c, "versionId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return 0, 0, false
	}
	return quoteID, versionID, true
}

func (s *Server) ProcessSetupStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.SetupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessSetup(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ProcessImportStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.ImportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessImport(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ProcessAssetsStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.AssetsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessAssets(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ProcessMarginStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.MarginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessMargin(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stageResultResponse(result))
}

func (s *Server) ProcessDiscountStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.DiscountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessDiscount(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stageResultResponse(result))
}

func (s *Server) ProcessDetailsStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.DetailsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessDetails(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ProcessAssetsReviewStage(c *gin.Context) {
	quoteID, versionID, ok := s.stageIDs(c)
	if !ok {
		return
	}
	var payload stagedomain.AssetsReviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.stageSvc.ProcessAssetsReview(c.Request.Context(), quoteID, versionID, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// stageResultResponse renders repriced stage results with display amounts.
func stageResultResponse(result stagedomain.Result) gin.H {
	resp := gin.H{
		"stage":           result.Stage,
		"completed_stage": result.CompletedStage,
	}
	if result.Summary != nil {
		resp["summary"] = result.Summary.View()
	}
	return resp
}
