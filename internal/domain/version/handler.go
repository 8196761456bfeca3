package version

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Vlarumal/CareVault-sub000/internal/domain/entry"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/auth"
	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// Handler provides HTTP handlers for the version-control operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new version Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the version routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("physician", "nurse")

	g := api.Group("", role)
	g.POST("/entries/:entryId/versions", h.CreateVersion)
	g.GET("/entries/:entryId/versions", h.ListVersions)
	g.GET("/entries/:entryId/versions/latest", h.GetLatestVersion)
	g.GET("/entries/:entryId/versions/:versionId", h.GetVersion)
	g.GET("/entries/:entryId/concurrency", h.CheckConcurrency)
	g.GET("/entries/:entryId/diff", h.Diff)
	g.POST("/entries/:entryId/versions/:versionId/restore", h.Restore)
}

func errorResponse(c echo.Context, err error) error {
	body := map[string]string{"error": err.Error()}
	if errs.IsConflict(err) {
		body["code"] = errs.CodeVersionConflict
	}
	return c.JSON(errs.HTTPStatus(err), body)
}

type createVersionRequest struct {
	ChangeReason  string        `json:"changeReason"`
	OperationType OperationType `json:"operationType"`
	EntryData     *entry.Entry  `json:"entryData,omitempty"`
}

func (h *Handler) CreateVersion(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}

	var req createVersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OperationType == "" {
		req.OperationType = OpUpdate
	}

	v, err := h.svc.CreateVersion(c.Request().Context(), CreateVersionInput{
		EntryID:       entryID,
		EditorID:      auth.UserIDFromContext(c.Request().Context()),
		ChangeReason:  req.ChangeReason,
		EntryData:     req.EntryData,
		OperationType: req.OperationType,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVersions(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	versions, err := h.svc.ListVersions(c.Request().Context(), entryID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, versions)
}

func (h *Handler) GetLatestVersion(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	v, err := h.svc.GetLatestVersion(c.Request().Context(), entryID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetVersion(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	versionID, err := uuid.Parse(c.Param("versionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version id")
	}
	v, err := h.svc.GetVersion(c.Request().Context(), entryID, versionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// CheckConcurrency reports whether the entry changed since the client's
// lastSeen timestamp (RFC 3339).
//
// Route: GET /entries/:entryId/concurrency?lastSeen=2026-01-02T15:04:05Z
func (h *Handler) CheckConcurrency(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}

	lastSeenStr := c.QueryParam("lastSeen")
	if lastSeenStr == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'lastSeen' is required")
	}
	lastSeen, err := time.Parse(time.RFC3339, lastSeenStr)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "'lastSeen' must be an RFC 3339 timestamp")
	}

	conflict, err := h.svc.CheckConcurrency(c.Request().Context(), entryID, lastSeen)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"conflict": conflict})
}

// Diff compares two versions of an entry; either side may be the sentinel
// "current".
//
// Route: GET /entries/:entryId/diff?from=<versionId|current>&to=<versionId|current>
func (h *Handler) Diff(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}

	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameters 'from' and 'to' are required")
	}

	diff, err := h.svc.Diff(c.Request().Context(), entryID, from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, diff)
}

type restoreRequest struct {
	ChangeReason string `json:"changeReason"`
}

func (h *Handler) Restore(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}
	versionID, err := uuid.Parse(c.Param("versionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version id")
	}

	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	restored, err := h.svc.Restore(c.Request().Context(), entryID, versionID,
		auth.UserIDFromContext(c.Request().Context()), req.ChangeReason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, restored)
}
