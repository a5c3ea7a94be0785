package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/querylab/internal/member/application"
	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	sharedDomain "github.com/davicafu/querylab/internal/shared/domain"
	sharedQuery "github.com/davicafu/querylab/internal/shared/infra/platform/query"
	"github.com/davicafu/querylab/pkg/utils"
)

// MemberHandler encapsula los endpoints HTTP de Member y Team.
type MemberHandler struct {
	members *application.MemberService
	teams   *application.TeamService
	log     *zap.Logger
}

func NewMemberHandler(members *application.MemberService, teams *application.TeamService, log *zap.Logger) *MemberHandler {
	return &MemberHandler{members: members, teams: teams, log: log}
}

// ---------------- Members ----------------

// CreateMember endpoint POST /members
func (h *MemberHandler) CreateMember(c *gin.Context) {
	var req struct {
		Username string     `json:"username" binding:"required"`
		Age      *int       `json:"age" binding:"required"`
		TeamID   *uuid.UUID `json:"team_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	member, err := h.members.CreateMember(c.Request.Context(), req.Username, *req.Age, sharedDomain.OptionalOf(req.TeamID))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, member)
}

// GetMember endpoint GET /members/:id
func (h *MemberHandler) GetMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	member, err := h.members.GetMember(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, member)
}

// UpdateMember endpoint PUT /members/:id. Los campos ausentes no se modifican.
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch application.MemberPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	member, err := h.members.UpdateMember(c.Request.Context(), id, patch)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, member)
}

// DeleteMember endpoint DELETE /members/:id
func (h *MemberHandler) DeleteMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.members.DeleteMember(c.Request.Context(), id); err != nil {
		h.sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchMembers endpoint GET /members?username=&age=&team_name=&age_goe=&age_loe=
func (h *MemberHandler) SearchMembers(c *gin.Context) {
	cond, page, sort, ok := parseSearch(c)
	if !ok {
		return
	}

	views, err := h.members.SearchMembers(c.Request.Context(), cond, page, sort)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, views)
}

// SearchAboveAverageAge endpoint GET /members/above-average
func (h *MemberHandler) SearchAboveAverageAge(c *gin.Context) {
	cond, page, sort, ok := parseSearch(c)
	if !ok {
		return
	}

	result, err := h.members.SearchAboveAverageAge(c.Request.Context(), cond, page, sort)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, result)
}

// ---------------- Teams ----------------

// CreateTeam endpoint POST /teams
func (h *MemberHandler) CreateTeam(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	team, err := h.teams.CreateTeam(c.Request.Context(), req.Name)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, team)
}

// GetTeam endpoint GET /teams/:id
func (h *MemberHandler) GetTeam(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	team, err := h.teams.GetTeam(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, team)
}

// ListTeams endpoint GET /teams?limit=&offset=
func (h *MemberHandler) ListTeams(c *gin.Context) {
	page, ok := parsePagination(c)
	if !ok {
		return
	}

	teams, err := h.teams.ListTeams(c.Request.Context(), page)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, teams)
}

// TeamAgeStats endpoint GET /teams/stats
func (h *MemberHandler) TeamAgeStats(c *gin.Context) {
	stats, err := h.teams.TeamAgeStats(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}

// ---------------- Helpers ----------------

// sendError traduce los errores de dominio a códigos HTTP.
func (h *MemberHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, memberDomain.ErrInvalidMember), errors.Is(err, memberDomain.ErrInvalidTeam):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, memberDomain.ErrMemberNotFound), errors.Is(err, memberDomain.ErrTeamNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, memberDomain.ErrMemberAlreadyExists), errors.Is(err, memberDomain.ErrTeamAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, memberDomain.ErrAnalyticsUnavailable):
		utils.SendServiceUnavailable(c, err.Error())
	default:
		h.log.Error("❌ Unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// queryString: un parámetro presente, aunque sea vacío, está especificado.
func queryString(c *gin.Context, key string) sharedDomain.Optional[string] {
	if v, ok := c.GetQuery(key); ok {
		return sharedDomain.Some(v)
	}
	return sharedDomain.None[string]()
}

func queryInt(c *gin.Context, key string) (sharedDomain.Optional[int], bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return sharedDomain.None[int](), true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.SendBadRequest(c, "invalid "+key+": must be an integer")
		return sharedDomain.None[int](), false
	}
	return sharedDomain.Some(v), true
}

func parsePagination(c *gin.Context) (sharedQuery.OffsetPagination, bool) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return sharedQuery.OffsetPagination{}, false
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return sharedQuery.OffsetPagination{}, false
	}
	page := sharedQuery.OffsetPagination{Limit: limit.OrElse(0), Offset: offset.OrElse(0)}
	return page.Normalize(), true
}

// parseSearch lee los criterios, la paginación y el orden. Escribe un 400 si algo no es válido.
func parseSearch(c *gin.Context) (memberDomain.MemberSearchCondition, sharedQuery.OffsetPagination, sharedQuery.Sort, bool) {
	var cond memberDomain.MemberSearchCondition
	var sort sharedQuery.Sort

	cond.Username = queryString(c, "username")
	cond.TeamName = queryString(c, "team_name")

	for key, dst := range map[string]*sharedDomain.Optional[int]{
		"age":     &cond.Age,
		"age_goe": &cond.AgeGoe,
		"age_loe": &cond.AgeLoe,
	} {
		v, ok := queryInt(c, key)
		if !ok {
			return cond, sharedQuery.OffsetPagination{}, sort, false
		}
		*dst = v
	}

	page, ok := parsePagination(c)
	if !ok {
		return cond, page, sort, false
	}

	if field, ok := c.GetQuery("sort_field"); ok {
		if !memberDomain.IsSortable(field) {
			utils.SendBadRequest(c, "invalid sort_field: "+field)
			return cond, page, sort, false
		}
		sort.Field = field
	}
	if raw, ok := c.GetQuery("sort_desc"); ok {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid sort_desc: must be a boolean")
			return cond, page, sort, false
		}
		sort.Desc = desc
	}

	return cond, page, sort, true
}
