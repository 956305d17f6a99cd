package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/talentbay/internal/authorization"
	"github.com/smallbiznis/talentbay/internal/authsession"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/db/pagination"
)

// authorizeAction checks the signed-in viewer's profile role against the
// casbin policy for object and action.
func (s *Server) authorizeAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := viewFrom(c)
		if !ok || !view.IsAuthenticated() {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := authorization.Actor{IdentityID: view.Identity.ID}
		if view.Profile != nil {
			actor.Role = view.Profile.Role
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) GetProfile(c *gin.Context) {
	profile, err := s.profileSvc.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type listProfilesQuery struct {
	pagination.Pagination
	Role string `form:"role"`
}

func (s *Server) ListProfiles(c *gin.Context) {
	var query listProfilesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.profileSvc.List(c.Request.Context(), profiledomain.ListProfilesRequest{
		Role:      query.Role,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func viewFrom(c *gin.Context) (authsession.View, bool) {
	v, ok := c.Get(contextViewKey)
	if !ok {
		return authsession.View{}, false
	}
	view, ok := v.(authsession.View)
	return view, ok
}
