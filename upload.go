package slogengine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slogengine/slogengine/images"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// handleUpload stores a multipart "image" field in the user's temp pool.
// The returned URL is embedded in a post body and adopted when it is saved.
func (a *App) handleUpload(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	if !a.uploadLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many uploads, try again later")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, images.ErrEmpty.Error())
	}
	if !images.AllowedExtension(file.Filename) {
		return echo.NewHTTPError(http.StatusBadRequest, images.ErrUnsupportedType.Error())
	}
	if file.Size > a.Uploads.MaxSize() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("file too large (max %dMB)", a.Uploads.MaxSize()>>20))
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	url, err := a.Uploads.Save(user, file.Filename, src)
	switch {
	case errors.Is(err, images.ErrEmpty), errors.Is(err, images.ErrTooLarge),
		errors.Is(err, images.ErrUnsupportedType), errors.Is(err, images.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{URL: url})
}
