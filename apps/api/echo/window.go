package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/window"
)

type windowApi struct {
	svc        *window.Service
	gate       *window.Gate
	validate   *validator.Validate
	translator ut.Translator
}

func registerWindowAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *window.Service,
	gate *window.Gate,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := windowApi{
		svc:        svc,
		gate:       gate,
		validate:   validate,
		translator: translator,
	}

	wg := g.Group("/windows", jwt)

	// any authenticated principal may check whether a phase is open for them
	wg.GET("/check", api.check)
	wg.GET("/sequence", api.querySequence)

	// schedule management is coordinator territory
	wg.GET("", api.query, coordinatorMiddleware())
	wg.POST("", api.create, coordinatorMiddleware())

	dg := wg.Group("/:id", coordinatorMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *windowApi) create(ctx echo.Context) error {
	var data window.NewWindow
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWindow")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	w, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, w)
}

func (api *windowApi) query(ctx echo.Context) error {
	filter := window.QueryFilter{
		Track: strings.ToUpper(ctx.QueryParam("track")),
		Phase: strings.ToLower(ctx.QueryParam("phase")),
		Cycle: ctx.QueryParam("cycle"),
	}
	if isActive := ctx.QueryParam("is_active"); isActive != "" {
		active, err := strconv.ParseBool(isActive)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid is_active")
		}
		filter.IsActive = &active
	}

	var ordering Ordering
	ordering.Bind(ctx)
	orderings := allowedOrderings(ordering)

	ws, err := api.svc.Filter(ctx.Request().Context(), filter, orderings...)
	if err != nil {
		return errors.Wrap(err, "filtering windows")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *windowApi) retrieve(ctx echo.Context) error {
	w, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *windowApi) update(ctx echo.Context) error {
	var data window.UpdateWindow
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateWindow")
	}

	w, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *windowApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting window")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// check evaluates the enforcement gate for the caller and returns the
// decision context; portals use it to render open/closed state and remaining
// time. Targets come as repeatable `target=phase[:cycle]` query params.
// Never bypassed: even admins get the real window state here.
func (api *windowApi) check(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	targets, err := parseTargets(ctx.QueryParams()["target"])
	if err != nil {
		return err
	}

	track := resolveTrack(ctx, claims)
	dec, err := api.gate.Check(ctx.Request().Context(), track, false, targets...)
	if err != nil {
		if authErr, ok := errors.Cause(err).(*window.AuthorizationError); ok {
			// a closed window is a valid answer here, not a failure
			return ctx.JSON(http.StatusOK, window.Decision{
				Track:     authErr.Track,
				Step:      authErr.Step,
				Window:    &authErr.Window,
				CheckedAt: authErr.Now,
			})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, dec)
}

// querySequence exposes the authoritative step ordering for UX hints; clients
// must not re-derive precedence rules from it.
func (api *windowApi) querySequence(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, window.Sequence())
}

// allowedOrderings drops unknown ordering fields; they reach the SQL layer verbatim.
func allowedOrderings(ord Ordering) []core.DBOrdering {
	allowed := map[string]bool{
		"starts_at": true, "ends_at": true, "created_at": true,
		"phase": true, "track": true, "cycle": true,
	}
	var orderings []core.DBOrdering
	for _, o := range ord.Orderings {
		if allowed[o.Field] {
			orderings = append(orderings, o)
		}
	}
	return orderings
}

func parseTargets(raw []string) ([]window.Step, error) {
	if len(raw) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "at least one target is required")
	}
	targets := make([]window.Step, 0, len(raw))
	for _, v := range raw {
		parts := strings.SplitN(v, ":", 2)
		step := window.Step{Phase: strings.ToLower(strings.TrimSpace(parts[0]))}
		if len(parts) > 1 {
			step.Cycle = strings.TrimSpace(parts[1])
		}
		if !window.IsValidPhase(step.Phase) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid target phase: "+step.Phase)
		}
		if window.PhaseHasCycle(step.Phase) != (step.Cycle != "") {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid target cycle for phase: "+step.Phase)
		}
		targets = append(targets, step)
	}
	return targets, nil
}
