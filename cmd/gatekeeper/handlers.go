package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/humancheck/gatekeeper/gate/engine"
	"github.com/humancheck/gatekeeper/gate/enforce"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/record"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type usernameRequest struct {
	Username string `json:"username"`
	Actor    string `json:"actor,omitempty"`
}

type submitRequest struct {
	Username string         `json:"username"`
	Answers  record.Answers `json:"answers"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (srv *Server) HandleContent(c echo.Context) error {
	ctx := c.Request().Context()
	var content enforce.Content
	if err := c.Bind(&content); err != nil {
		return badRequest(c, err)
	}
	dec, err := srv.engine.ProcessContent(ctx, content)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, dec)
}

func (srv *Server) HandleRequestChallenge(c echo.Context) error {
	ctx := c.Request().Context()
	var req usernameRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Actor == "" {
		return missingActor(c)
	}
	rec, err := srv.engine.RequestChallenge(ctx, req.Username, req.Actor)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, rec)
}

func (srv *Server) HandleOpenChallenge(c echo.Context) error {
	ctx := c.Request().Context()
	var req usernameRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	view, err := srv.engine.OpenChallenge(ctx, req.Username)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, view)
}

func (srv *Server) HandleSubmitChallenge(c echo.Context) error {
	ctx := c.Request().Context()
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	res, err := srv.engine.SubmitChallenge(ctx, req.Username, req.Answers)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, res)
}

func (srv *Server) HandleOverride(c echo.Context) error {
	ctx := c.Request().Context()
	var req engine.OverrideRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Actor == "" {
		return missingActor(c)
	}
	if _, err := record.ParseStatus(string(req.Target)); err != nil {
		return badRequest(c, err)
	}
	res, err := srv.engine.Override(ctx, req)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, res)
}

func (srv *Server) HandleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	view, err := srv.engine.Status(ctx, c.Param("username"))
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, view)
}

func (srv *Server) HandleBreakdown(c echo.Context) error {
	ctx := c.Request().Context()
	actor := c.QueryParam("actor")
	if actor == "" {
		return missingActor(c)
	}
	bd, err := srv.engine.AuthorBreakdown(ctx, c.Param("username"), actor)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(200, bd)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(400, GenericError{
		Error:   "InvalidRequest",
		Message: fmt.Sprintf("%s", err),
	})
}

// Moderator actions over HTTP always name the acting moderator. An empty actor is only trusted
// from the local CLI.
func missingActor(c echo.Context) error {
	return c.JSON(403, GenericError{
		Error:   "Forbidden",
		Message: "actor is required",
	})
}

// Maps engine errors to HTTP status codes. Platform failures are checked first, since they may
// wrap a platform "not found".
func (srv *Server) engineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, record.ErrValidation):
		return c.JSON(400, GenericError{Error: "InvalidRequest", Message: err.Error()})
	case errors.Is(err, record.ErrPermission):
		return c.JSON(403, GenericError{Error: "Forbidden", Message: err.Error()})
	case errors.Is(err, record.ErrExternal), errors.Is(err, platform.ErrNotFound):
		srv.logger.Warn("platform action failed", "err", err, "path", c.Path())
		return c.JSON(502, GenericError{Error: "PlatformError", Message: err.Error()})
	case errors.Is(err, record.ErrNotFound):
		return c.JSON(404, GenericError{Error: "NotFound", Message: err.Error()})
	case errors.Is(err, record.ErrVersionConflict):
		return c.JSON(409, GenericError{Error: "Conflict", Message: err.Error()})
	default:
		srv.logger.Error("gatekeeper-http-internal-error", "err", err, "path", c.Path())
		return c.JSON(500, GenericError{Error: "InternalError", Message: "internal server error"})
	}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("gatekeeper-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, GenericError{Error: http.StatusText(code), Message: errorMessage})
	}
}
