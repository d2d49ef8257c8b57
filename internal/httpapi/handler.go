package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/metrics"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/report"
)

// DefaultMaxUpload bounds each uploaded file.
const DefaultMaxUpload = 32 << 20

// Analyzer runs and re-evaluates analyses.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Analysis, error)
	Get(id uuid.UUID) (*analysis.Analysis, error)
	MarkResolved(ctx context.Context, runID uuid.UUID, patientID, exam, markedBy string) (*model.AnalysisResult, error)
	Unresolve(ctx context.Context, runID uuid.UUID, patientID, exam string) (*model.AnalysisResult, error)
}

// Catalog is the read side of routines and profiles.
type Catalog interface {
	ListRoutines(ctx context.Context) ([]string, error)
	GetRoutine(ctx context.Context, name string) (*model.Routine, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	DefaultProfile string
	MarkedBy       string
	Comma          rune
	MaxUpload      int64
}

// Handler serves the API. db and m may be nil.
type Handler struct {
	svc     Analyzer
	catalog Catalog
	db      Pinger
	metrics *metrics.Metrics
	log     zerolog.Logger
	opts    Options
}

func NewHandler(svc Analyzer, cat Catalog, db Pinger, m *metrics.Metrics, log zerolog.Logger, opts Options) *Handler {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	if opts.MarkedBy == "" {
		opts.MarkedBy = "api"
	}
	return &Handler{svc: svc, catalog: cat, db: db, metrics: m, log: log, opts: opts}
}

// RegisterRoutes adds every endpoint to e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	g := e.Group("/api/v1")
	g.POST("/analyses", h.createAnalysis)
	g.GET("/analyses/:id", h.getAnalysis)
	g.GET("/analyses/:id/report.xlsx", h.getWorkbook)
	g.POST("/analyses/:id/overrides", h.addOverride)
	g.DELETE("/analyses/:id/overrides", h.removeOverride)
	g.GET("/routines", h.listRoutines)
	g.GET("/routines/:name", h.getRoutine)
	g.GET("/profiles", h.listProfiles)
}

type analysisForm struct {
	Period    string `form:"period" validate:"required"`
	Profile   string `form:"profile"`
	Separator string `form:"separator" validate:"omitempty,len=1"`
	Status    string `form:"status"`
	Query     string `form:"q"`
}

type overrideRequest struct {
	PatientID string `json:"patient_id" query:"patient_id" validate:"required"`
	Exam      string `json:"exam" query:"exam" validate:"required"`
	MarkedBy  string `json:"marked_by" query:"marked_by"`
}

type overrideResponse struct {
	RunID  string                `json:"run_id"`
	Result *model.AnalysisResult `json:"result"`
}

type routineList struct {
	Routines []string `json:"routines"`
}

type profileList struct {
	Profiles []model.Profile `json:"profiles"`
}

func (h *Handler) health(c echo.Context) error {
	if h.db != nil {
		if err := h.db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createAnalysis(c echo.Context) error {
	var form analysisForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	if err := c.Validate(&form); err != nil {
		return err
	}
	period, err := model.ParsePeriod(form.Period)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter, err := parseFilter(form.Status, form.Query)
	if err != nil {
		return err
	}

	req := analysis.Request{
		Period:  period,
		Profile: form.Profile,
		Import:  importer.Options{Comma: h.opts.Comma},
	}
	if req.Profile == "" {
		req.Profile = h.opts.DefaultProfile
	}
	if form.Separator != "" {
		req.Import.Comma = []rune(form.Separator)[0]
	}
	if req.Sources.Exams, err = h.upload(c, "exams", true); err != nil {
		return err
	}
	if req.Sources.Movements, err = h.upload(c, "movements", false); err != nil {
		return err
	}
	if req.Sources.Hospitalizations, err = h.upload(c, "hospitalizations", false); err != nil {
		return err
	}

	a, err := h.svc.Run(c.Request().Context(), req)
	if err != nil {
		return h.fail(err)
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/analyses/"+a.ID.String())
	return c.JSON(http.StatusCreated, report.NewDocument(report.FromAnalysis(a, filter)))
}

// upload reads the multipart file field. Missing optional files yield nil.
func (h *Handler) upload(c echo.Context, field string, required bool) (*importer.Source, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, field+" file is required")
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid upload")
	}
	if fh.Size > h.opts.MaxUpload {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, h.opts.MaxUpload))
	}
	data, err := readPart(fh)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "read "+field+": "+err.Error())
	}
	return &importer.Source{Name: fh.Filename, Data: data}, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) getAnalysis(c echo.Context) error {
	a, err := h.lookup(c)
	if err != nil {
		return err
	}
	filter, err := parseFilter(c.QueryParam("status"), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.NewDocument(report.FromAnalysis(a, filter)))
}

func (h *Handler) getWorkbook(c echo.Context) error {
	a, err := h.lookup(c)
	if err != nil {
		return err
	}
	filter, err := parseFilter(c.QueryParam("status"), c.QueryParam("q"))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("examcheck-%s-%s.xlsx", a.Summary.Period, a.ID.String()[:8])
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().WriteHeader(http.StatusOK)
	return report.WriteXLSX(c.Response(), report.FromAnalysis(a, filter))
}

func (h *Handler) addOverride(c echo.Context) error {
	return h.override(c, func(ctx context.Context, id uuid.UUID, req overrideRequest) (*model.AnalysisResult, error) {
		markedBy := req.MarkedBy
		if markedBy == "" {
			markedBy = h.opts.MarkedBy
		}
		return h.svc.MarkResolved(ctx, id, req.PatientID, req.Exam, markedBy)
	})
}

func (h *Handler) removeOverride(c echo.Context) error {
	return h.override(c, func(ctx context.Context, id uuid.UUID, req overrideRequest) (*model.AnalysisResult, error) {
		return h.svc.Unresolve(ctx, id, req.PatientID, req.Exam)
	})
}

func (h *Handler) override(c echo.Context, apply func(context.Context, uuid.UUID, overrideRequest) (*model.AnalysisResult, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid analysis id")
	}
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res, err := apply(c.Request().Context(), id, req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, overrideResponse{RunID: id.String(), Result: res})
}

func (h *Handler) listRoutines(c echo.Context) error {
	names, err := h.catalog.ListRoutines(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, routineList{Routines: names})
}

func (h *Handler) getRoutine(c echo.Context) error {
	r, err := h.catalog.GetRoutine(c.Request().Context(), c.Param("name"))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) listProfiles(c echo.Context) error {
	profiles, err := h.catalog.ListProfiles(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	return c.JSON(http.StatusOK, profileList{Profiles: profiles})
}

func (h *Handler) lookup(c echo.Context) (*analysis.Analysis, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid analysis id")
	}
	a, err := h.svc.Get(id)
	if err != nil {
		return nil, h.fail(err)
	}
	return a, nil
}

func parseFilter(status, q string) (report.Filter, error) {
	statuses, err := report.ParseStatuses(status)
	if err != nil {
		return report.Filter{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return report.Filter{Statuses: statuses, Query: strings.TrimSpace(q)}, nil
}

// fail maps service errors to HTTP errors.
func (h *Handler) fail(err error) error {
	var pe *analysis.PhaseError
	switch {
	case errors.Is(err, analysis.ErrRunNotFound),
		errors.Is(err, analysis.ErrPatientNotFound),
		errors.Is(err, catalog.ErrRoutineNotFound) && !errors.Is(err, analysis.ErrNoRoutine),
		errors.Is(err, catalog.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, analysis.ErrUnknownExam),
		errors.Is(err, analysis.ErrNoRoutine):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &pe) && (pe.Phase == analysis.PhaseInput || pe.Phase == analysis.PhaseImport):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	h.log.Error().Err(err).Msg("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
