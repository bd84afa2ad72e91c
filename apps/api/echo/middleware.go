package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/window"
)

var contextDecisionKey = "windowDecision"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// coordinatorMiddleware allows coordinators and admins through.
func coordinatorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsCoordinator || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// BypassFunc decides whether a principal skips window enforcement for a given
// call site. Policy lives at the registration site, not in the gate.
type BypassFunc func(Claims) bool

// BypassAdmins is the usual bypass set: admin portal users.
func BypassAdmins(claims Claims) bool { return claims.IsAdmin }

// BypassNone never bypasses; for call sites that must hold even for admins.
func BypassNone(Claims) bool { return false }

// WindowGuard gates a protected call site on its phase windows: the acting
// track is resolved from the request, the gate rules on the declared targets
// (OR semantics) and, on allow, the Decision is attached to the echo.Context
// for the handler (see GetContextDecision). Denials surface as
// *window.AuthorizationError via the app error handler.
func WindowGuard(gate *window.Gate, bypass BypassFunc, targets ...window.Step) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			track := resolveTrack(ctx, claims)
			dec, err := gate.Check(ctx.Request().Context(), track, bypass(claims), targets...)
			if err != nil {
				return err
			}
			ctx.Set(contextDecisionKey, dec)
			return next(ctx)
		}
	}
}

// GetContextDecision returns the enforcement Decision attached by WindowGuard.
func GetContextDecision(ctx echo.Context) (window.Decision, bool) {
	dec, ok := ctx.Get(contextDecisionKey).(window.Decision)
	return dec, ok
}

// resolveTrack resolves the acting track: request payload, then path param,
// then query param, then the principal's eligibility hint. The first
// non-empty source wins.
func resolveTrack(ctx echo.Context, claims Claims) string {
	if track := payloadTrack(ctx); track != "" {
		return track
	}
	if track := ctx.Param("track"); track != "" {
		return strings.ToUpper(track)
	}
	if track := ctx.QueryParam("track"); track != "" {
		return strings.ToUpper(track)
	}
	return claims.DefaultTrack()
}

// payloadTrack peeks at a JSON or form body for a "track" field, leaving the
// body readable for the downstream handler.
func payloadTrack(ctx echo.Context) string {
	req := ctx.Request()
	contentType := req.Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) && req.Body != nil {
		body, err := ioutil.ReadAll(req.Body)
		if err != nil {
			return ""
		}
		req.Body = ioutil.NopCloser(bytes.NewReader(body))
		var data struct {
			Track string `json:"track"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}
		return strings.ToUpper(strings.TrimSpace(data.Track))
	}

	if strings.HasPrefix(contentType, echo.MIMEApplicationForm) ||
		strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return strings.ToUpper(ctx.FormValue("track"))
	}
	return ""
}
