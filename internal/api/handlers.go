// Package api contains the HTTP handlers for the bundle service.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"flowport/backend/internal/export"
	"flowport/backend/internal/importer"
	"flowport/backend/internal/validate"
)

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status. It reports degraded (503) when
// the store is unreachable.
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "flowport",
		Version:   "1.0.0",
	}
	if err := s.store.Ping(c.Request().Context()); err != nil {
		status.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

// Problem is an RFC 7807 Problem Details response, extended with the
// aggregated items of the bundle error taxonomy so a caller can fix
// everything in one round-trip.
type Problem struct {
	Type            string                       `json:"type"`
	Title           string                       `json:"title"`
	Status          int                          `json:"status"`
	Detail          string                       `json:"detail"`
	Violations      []validate.Violation         `json:"violations,omitempty"`
	Missing         []validate.MissingDependency `json:"missing,omitempty"`
	ConflictingKeys []string                     `json:"conflictingKeys,omitempty"`
	UnknownIDs      []string                     `json:"unknownIds,omitempty"`
	UnkeyedIDs      []string                     `json:"unkeyedIds,omitempty"`
}

// writeProblem writes an RFC 7807 problem+json error response.
func writeProblem(c echo.Context, p Problem) error {
	p.Type = "about:blank"
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(p.Status, p)
}

// bundleProblem maps the bundle error taxonomy onto HTTP problem responses.
func bundleProblem(c echo.Context, err error) error {
	switch e := err.(type) {
	case *validate.UnsupportedFormatError:
		return writeProblem(c, Problem{
			Title:  "Unsupported bundle format",
			Status: http.StatusBadRequest,
			Detail: e.Error(),
		})
	case *validate.SchemaValidationError:
		return writeProblem(c, Problem{
			Title:      "Bundle failed schema validation",
			Status:     http.StatusUnprocessableEntity,
			Detail:     e.Error(),
			Violations: e.Violations,
		})
	case *validate.MissingDependencyError:
		return writeProblem(c, Problem{
			Title:   "Bundle has unsatisfied dependencies",
			Status:  http.StatusUnprocessableEntity,
			Detail:  e.Error(),
			Missing: e.Missing,
		})
	case *importer.KeyConflictError:
		return writeProblem(c, Problem{
			Title:           "Workflow key conflict",
			Status:          http.StatusConflict,
			Detail:          e.Error(),
			ConflictingKeys: e.Keys,
		})
	case *importer.TransactionAbortedError:
		return writeProblem(c, Problem{
			Title:  "Import transaction aborted",
			Status: http.StatusInternalServerError,
			Detail: e.Error(),
		})
	case *export.ExportError:
		return writeProblem(c, Problem{
			Title:      "Export request references invalid workflows",
			Status:     http.StatusBadRequest,
			Detail:     e.Error(),
			UnknownIDs: e.UnknownIDs,
			UnkeyedIDs: e.UnkeyedIDs,
		})
	default:
		return writeProblem(c, Problem{
			Title:  "Internal error",
			Status: http.StatusInternalServerError,
			Detail: err.Error(),
		})
	}
}
