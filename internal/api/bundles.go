package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"flowport/backend/internal/bundle"
	"flowport/backend/internal/export"
	"flowport/backend/internal/importer"
	"flowport/backend/internal/repository"
)

// Server holds the dependencies for the bundle API.
type Server struct {
	exporter *export.Exporter
	importer *importer.Importer
	store    repository.Store

	exportCounter metric.Int64Counter
	importCounter metric.Int64Counter
}

// NewServer creates a new Server.
func NewServer(exp *export.Exporter, imp *importer.Importer, store repository.Store) *Server {
	meter := otel.Meter("flowport/backend/api")
	exportCounter, _ := meter.Int64Counter("bundles.exported",
		metric.WithDescription("Workflows exported into bundles"))
	importCounter, _ := meter.Int64Counter("bundles.imported",
		metric.WithDescription("Workflows persisted from imported bundles"))

	return &Server{
		exporter:      exp,
		importer:      imp,
		store:         store,
		exportCounter: exportCounter,
		importCounter: importCounter,
	}
}

// Register mounts the bundle routes on an echo group.
func (s *Server) Register(g *echo.Group) {
	g.POST("/bundles/export", s.ExportBundle)
	g.POST("/bundles/import", s.ImportBundle)
	g.POST("/bundles/validate", s.ValidateBundle)
	g.GET("/bundles/schema", s.BundleSchema)
}

// ExportBundle assembles the requested workflows into canonical bundle bytes.
// (POST /api/v1/bundles/export)
func (s *Server) ExportBundle(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		WorkflowIDs []string `json:"workflowIds"`
	}
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, Problem{
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	}

	raw, err := s.exporter.Export(ctx, req.WorkflowIDs)
	if err != nil {
		return bundleProblem(c, err)
	}

	s.exportCounter.Add(ctx, int64(len(req.WorkflowIDs)))
	c.Response().Header().Set("Content-Disposition", `attachment; filename="workflows.bundle.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

// ImportBundle validates bundle bytes and persists them in one transaction.
// The force query parameter selects overwrite semantics for key conflicts.
// (POST /api/v1/bundles/import)
func (s *Server) ImportBundle(c echo.Context) error {
	ctx := c.Request().Context()

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeProblem(c, Problem{
			Title:  "Failed to read request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	}

	force := false
	if v := c.QueryParam("force"); v != "" {
		force, err = strconv.ParseBool(v)
		if err != nil {
			return writeProblem(c, Problem{
				Title:  "Invalid force parameter",
				Status: http.StatusBadRequest,
				Detail: "force must be a boolean",
			})
		}
	}

	report, err := s.importer.Import(ctx, raw, importer.Options{Force: force})
	if err != nil {
		return bundleProblem(c, err)
	}

	s.importCounter.Add(ctx, int64(len(report.Workflows)))
	return c.JSON(http.StatusOK, report)
}

// ValidateBundle runs the validation pipeline as a dry run. It never opens a
// transaction, so it can be called any number of times as a preview.
// (POST /api/v1/bundles/validate)
func (s *Server) ValidateBundle(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeProblem(c, Problem{
			Title:  "Failed to read request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	}

	if err := s.importer.Validate(c.Request().Context(), raw); err != nil {
		return bundleProblem(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}

// BundleSchema serves the published schema contract for the bundle shape.
// (GET /api/v1/bundles/schema)
func (s *Server) BundleSchema(c echo.Context) error {
	schema, err := bundle.Schema()
	if err != nil {
		return writeProblem(c, Problem{
			Title:  "Failed to render bundle schema",
			Status: http.StatusInternalServerError,
			Detail: err.Error(),
		})
	}
	return c.Blob(http.StatusOK, "application/schema+json", schema)
}
