package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	groupdomain "github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
)

// scopeFromRequest builds the partition scope from the path and query. The
// kind defaults to rows; pack quotes pass kind=asset.
func scopeFromRequest(c *gin.Context) (groupdomain.Scope, bool) {
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return groupdomain.Scope{}, false
	}

	kind := lineitemdomain.ItemKind(strings.TrimSpace(c.Query("kind")))
	if kind == "" {
		kind = lineitemdomain.KindRow
	}

	scope := groupdomain.Scope{VersionID: versionID, Kind: kind}
	if raw := strings.TrimSpace(c.Query("distribution_id")); raw != "" {
		distributionID, ok := parseID(raw)
		if !ok {
			return groupdomain.Scope{}, false
		}
		scope.DistributionID = &distributionID
	}
	return scope, true
}

type groupNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) ListGroups(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	views, err := s.groupSvc.ListGroups(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": views})
}

func (s *Server) CreateGroup(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	var req groupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	group, err := s.groupSvc.CreateGroup(c.Request.Context(), scope, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (s *Server) UpdateGroup(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	groupID, ok := pathID(c, "groupId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	var req groupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	group, err := s.groupSvc.UpdateGroup(c.Request.Context(), scope, groupID, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) DeleteGroup(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	groupID, ok := pathID(c, "groupId")
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.groupSvc.DeleteGroup(c.Request.Context(), scope, groupID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveItemsRequest struct {
	FromGroupID snowflake.ID   `json:"from_group_id" binding:"required"`
	ToGroupID   snowflake.ID   `json:"to_group_id" binding:"required"`
	ItemIDs     []snowflake.ID `json:"item_ids" binding:"required"`
}

func (s *Server) MoveItems(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	var req moveItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	views, err := s.groupSvc.MoveItems(c.Request.Context(), groupdomain.MoveItemsRequest{
		Scope:       scope,
		FromGroupID: req.FromGroupID,
		ToGroupID:   req.ToGroupID,
		ItemIDs:     req.ItemIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": views})
}

func (s *Server) MarkExclusivity(c *gin.Context) {
	scope, ok := scopeFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	flagged, err := s.groupSvc.MarkExclusivity(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}
