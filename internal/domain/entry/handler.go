package entry

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Vlarumal/CareVault-sub000/internal/platform/auth"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
	"github.com/Vlarumal/CareVault-sub000/pkg/pagination"
)

// Handler provides HTTP handlers for the entry domain.
type Handler struct {
	svc *Service
}

// NewHandler creates a new entry Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the entry routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("physician", "nurse")

	g := api.Group("", role)
	g.POST("/patients/:patientId/entries", h.CreateEntry)
	g.GET("/patients/:patientId/entries", h.ListEntries)
	g.GET("/entries/:id", h.GetEntry)
	g.PUT("/entries/:id", h.UpdateEntry)
	g.DELETE("/entries/:id", h.DeleteEntry)
}

type createEntryRequest struct {
	Entry        *Entry `json:"entry"`
	ChangeReason string `json:"changeReason"`
}

type updateEntryRequest struct {
	Entry             *Entry    `json:"entry"`
	ChangeReason      string    `json:"changeReason"`
	LastSeenUpdatedAt time.Time `json:"lastSeenUpdatedAt"`
}

func errorResponse(c echo.Context, err error) error {
	return c.JSON(errs.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func (h *Handler) CreateEntry(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var req createEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Entry == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "entry is required")
	}
	req.Entry.PatientID = patientID

	created, err := h.svc.Create(c.Request().Context(), CreateInput{
		Entry:        req.Entry,
		EditorID:     auth.UserIDFromContext(c.Request().Context()),
		ChangeReason: req.ChangeReason,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListEntries(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req updateEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Entry == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "entry is required")
	}

	updated, err := h.svc.Update(c.Request().Context(), id, UpdateInput{
		Entry:             req.Entry,
		EditorID:          auth.UserIDFromContext(c.Request().Context()),
		ChangeReason:      req.ChangeReason,
		LastSeenUpdatedAt: req.LastSeenUpdatedAt,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
