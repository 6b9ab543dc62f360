package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"serviceportal/internal/middleware"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

// RequestHandler serves the applicant's own requests
type RequestHandler struct {
	requests  *services.RequestService
	progress  *services.ProgressService
	documents *services.DocumentService
}

func NewRequestHandler(requests *services.RequestService, progress *services.ProgressService, documents *services.DocumentService) *RequestHandler {
	return &RequestHandler{requests: requests, progress: progress, documents: documents}
}

func pageFromQuery(c echo.Context) store.Page {
	number, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return store.Page{Number: number, Size: size}
}

// ownedRequest loads :id and hides requests of other applicants behind a 404
func (h *RequestHandler) ownedRequest(c echo.Context) (*models.Request, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	req, err := h.requests.Get(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if err := authorize(c, req); err != nil {
		return nil, err
	}
	return req, nil
}

func authorize(c echo.Context, req *models.Request) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	if user.IsAdmin() || req.UserID == user.ID {
		return nil
	}
	return echo.NewHTTPError(http.StatusNotFound, "Not found")
}

// Create submits a new travel or VAP/VAE request
func (h *RequestHandler) Create(c echo.Context) error {
	var in services.CreateRequestInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.UserID = middleware.CurrentUser(c).ID

	req, err := h.requests.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *RequestHandler) List(c echo.Context) error {
	reqs, err := h.requests.ListForUser(c.Request().Context(), middleware.CurrentUser(c).ID, pageFromQuery(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": reqs})
}

func (h *RequestHandler) Get(c echo.Context) error {
	req, err := h.ownedRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// Progress is the owner's view, contact details included
func (h *RequestHandler) Progress(c echo.Context) error {
	req, err := h.ownedRequest(c)
	if err != nil {
		return err
	}
	p, err := h.progress.ForRequest(c.Request().Context(), req.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// UploadDocument accepts a multipart "file" field plus a "kind"
func (h *RequestHandler) UploadDocument(c echo.Context) error {
	req, err := h.ownedRequest(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return httpError(&services.ValidationError{Fields: []string{"file"}})
	}
	if fh.Size > services.MaxDocumentSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable upload")
	}
	defer f.Close()

	doc, err := h.documents.Upload(c.Request().Context(), services.UploadInput{
		RequestID:   req.ID,
		Kind:        c.FormValue("kind"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *RequestHandler) ListDocuments(c echo.Context) error {
	req, err := h.ownedRequest(c)
	if err != nil {
		return err
	}
	docs, err := h.documents.List(c.Request().Context(), req.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": docs})
}
