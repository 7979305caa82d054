package slogengine

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slogengine/slogengine/model"
)

func handlePing(c echo.Context) error {
	return c.String(http.StatusOK, "Pong")
}

func (a *App) handleList(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	posts, err := a.Cache.List(user)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handlePaged(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	req := model.PagedRequest{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
		Search:   c.QueryParam("search"),
		Tag:      c.QueryParam("tag"),
	}
	res, err := a.Cache.Paged(user, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *App) handleGet(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	post, err := a.Posts.Get(user, c.Param("postId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleCreate(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	var p model.Post
	if err := c.Bind(&p); err != nil {
		return err
	}
	p.Author = user
	created, err := a.Posts.Create(user, p)
	if err != nil {
		return err
	}
	a.Cache.Invalidate(user)
	return c.JSON(http.StatusCreated, created)
}

func (a *App) handleUpdate(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	var p model.Post
	if err := c.Bind(&p); err != nil {
		return err
	}
	if p.ID != c.Param("postId") {
		return echo.NewHTTPError(http.StatusBadRequest, "post id does not match the request path")
	}
	p.Author = user
	if _, err := a.Posts.Update(user, p); err != nil {
		return err
	}
	a.Cache.Invalidate(user)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleDelete(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	id := c.Param("postId")
	if !a.Posts.Exists(user, id) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if err := a.Posts.Delete(user, id); err != nil {
		return err
	}
	a.Cache.Invalidate(user)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleGetMeta(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	meta, err := a.Meta.Get(user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

func (a *App) handlePutMeta(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	var meta *model.BlogMeta
	if err := (&echo.DefaultBinder{}).BindBody(c, &meta); err != nil {
		return err
	}
	if meta == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "meta body is required")
	}
	if err := a.Meta.Set(user, *meta); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil {
		return 0
	}
	return n
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := errorStatus(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		a.Log.Error().Err(err).Str("method", c.Request().Method).Str("uri", c.Request().RequestURI).Msg("server error")
		msg = http.StatusText(code)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		a.Log.Warn().Err(err).Msg("write error response")
	}
}
