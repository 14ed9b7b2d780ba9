package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("api")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) Handler {
	return Handler{
		service,
	}
}

// Register mounts the routes on e.
func (h Handler) Register(e *echo.Echo) {
	e.GET("/authorized/:kind/:hostname", h.Authorized)

	g := e.Group("/api", ReceiveRequester)
	g.POST("/login", h.Login)
	g.GET("/stats", h.GetStats)
	g.GET("/accounts", h.GetAccounts, Restrict)
	g.POST("/add-account/:kind", h.AddAccount, Restrict)
	g.GET("/find-friends/:fid", h.GetFriends, Restrict)
	g.POST("/find-friends/:fid", h.SaveFriends, Restrict)
	g.GET("/settings/:fid", h.GetSettings, Restrict)
	g.POST("/settings/:fid", h.UpdateSettings, Restrict)
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	var (
		verr *types.ValidationError
		derr *types.DiscoveryError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &derr):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyLinked):
		return http.StatusConflict
	}
	if _, ok := types.AsLinkError(err); ok {
		return http.StatusUnauthorized
	}
	if errors.Is(err, types.ErrUnauthorized) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func fail(c echo.Context, span trace.Span, err error) error {
	span.RecordError(err)
	return c.JSON(statusOf(err), echo.Map{"status": "error", "message": err.Error()})
}

func requesterOf(c echo.Context) string {
	requester, _ := c.Request().Context().Value(RequesterCtxKey).(string)
	return requester
}

// LoginRequest carries pump.io credentials obtained by the session gateway.
type LoginRequest struct {
	Hostname string `json:"hostname"`
	Token    string `json:"token"`
	Secret   string `json:"secret"`
}

func (h Handler) Login(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Login")
	defer span.End()

	var request LoginRequest
	if err := c.Bind(&request); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.service.Login(ctx, request.Hostname, request.Token, request.Secret)
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": user})
}

// AddAccountRequest names the foreign account to link.
type AddAccountRequest struct {
	Webfinger string `json:"webfinger"`
}

// AddAccount starts the OAuth dance with a foreign host.
func (h Handler) AddAccount(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "AddAccount")
	defer span.End()

	var request AddAccountRequest
	if err := c.Bind(&request); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	authorizeURL, err := h.service.StartLink(ctx, requesterOf(c), c.Param("kind"), request.Webfinger)
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": echo.Map{"authorizeURL": authorizeURL}})
}

// Authorized is the OAuth callback. It always redirects.
func (h Handler) Authorized(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Authorized")
	defer span.End()

	fuser, err := h.service.Callback(
		ctx,
		c.Param("kind"),
		c.Param("hostname"),
		c.QueryParam("oauth_token"),
		c.QueryParam("oauth_verifier"),
	)
	if err != nil {
		span.RecordError(err)
		return c.Redirect(http.StatusSeeOther, "/error?reason="+url.QueryEscape(err.Error()))
	}
	return c.Redirect(http.StatusSeeOther, "/find-friends/"+url.PathEscape(fuser.ID))
}

func (h Handler) GetAccounts(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetAccounts")
	defer span.End()

	accounts, err := h.service.Accounts(ctx, requesterOf(c))
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": accounts})
}

func (h Handler) GetFriends(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetFriends")
	defer span.End()

	friends, err := h.service.FindFriends(ctx, requesterOf(c), c.Param("fid"))
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": friends})
}

// SaveFriendsRequest lists the local accounts to follow.
type SaveFriendsRequest struct {
	IDs []string `json:"ids"`
}

func (h Handler) SaveFriends(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SaveFriends")
	defer span.End()

	var request SaveFriendsRequest
	if err := c.Bind(&request); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	if err := h.service.SaveFriends(ctx, requesterOf(c), c.Param("fid"), request.IDs); err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h Handler) GetSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetSettings")
	defer span.End()

	fuser, err := h.service.GetSettings(ctx, requesterOf(c), c.Param("fid"))
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": fuser})
}

type SettingsRequest struct {
	Autopost bool `json:"autopost"`
}

func (h Handler) UpdateSettings(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "UpdateSettings")
	defer span.End()

	var request SettingsRequest
	if err := c.Bind(&request); err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	fuser, err := h.service.UpdateSettings(ctx, requesterOf(c), c.Param("fid"), request.Autopost)
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": fuser})
}

func (h Handler) GetStats(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetStats")
	defer span.End()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		return fail(c, span, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": stats})
}
