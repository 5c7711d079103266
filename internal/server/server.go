package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"jornada/internal/access"
	"jornada/internal/config"
	"jornada/internal/domain"
	"jornada/internal/engine"
	"jornada/internal/repo"
	"jornada/internal/report"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Reports  report.Service
	Gate     access.Gate
	Registry *config.Config
	BasePath string
	Auth     AuthConfig
	Logger   zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"activity needs a catalog classification or ad-hoc text"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every failure is rendered as.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// handleError maps the domain error taxonomy to HTTP statuses. Unknown
// errors surface as an opaque 500.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var perm access.PermissionError
	if errors.As(err, &perm) {
		return newAPIError(http.StatusForbidden, "forbidden", perm.Msg, nil)
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", ve.Msg, nil)
	}
	var st engine.StateError
	if errors.As(err, &st) {
		return newAPIError(http.StatusConflict, "conflict", st.Msg, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", "not found", nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

type server struct {
	cfg Config
}

// New returns the HTTP handler exposing the portal API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Registry == nil {
		return nil, errors.New("department registry required")
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				if e != nil {
					msgs = append(msgs, e.Error())
				}
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Jornada API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &server{cfg: cfg}
	registerHealth(group)
	s.registerDepartments(group)
	s.registerWorkdays(group)
	s.registerActivities(group)
	s.registerCatalog(group)
	s.registerReports(group)
	s.registerManage(group)
	s.registerExports(router, basePath)

	return router, nil
}

// resolveDepartment maps a routing namespace to its schema and the
// backing directory row. Unknown namespaces read as missing resources.
func (s *server) resolveDepartment(ctx context.Context, ns string) (config.DepartmentSchema, domain.Department, error) {
	schema, ok := s.cfg.Registry.DepartmentByNamespace(ns)
	if !ok {
		return schema, domain.Department{}, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("unknown department %s", ns), nil)
	}
	dept, err := s.cfg.Engine.Repo.EnsureDepartment(ctx, schema.Slug, schema.Label)
	if err != nil {
		return schema, dept, err
	}
	return schema, dept, nil
}

// collaborator resolves the caller's collaborator record, provisioning
// one on first access.
func (s *server) collaborator(ctx context.Context, ns string) (config.DepartmentSchema, domain.Collaborator, error) {
	id, authErr := requireIdentity(ctx)
	if authErr != nil {
		return config.DepartmentSchema{}, domain.Collaborator{}, authErr
	}
	schema, dept, err := s.resolveDepartment(ctx, ns)
	if err != nil {
		return schema, domain.Collaborator{}, err
	}
	c, err := s.cfg.Gate.EnsureCollaborator(ctx, id, dept)
	if err != nil {
		return schema, c, err
	}
	return schema, c, nil
}

// manager resolves the caller and demands the manager flag.
func (s *server) manager(ctx context.Context, ns string) (config.DepartmentSchema, domain.Department, domain.Collaborator, error) {
	id, authErr := requireIdentity(ctx)
	if authErr != nil {
		return config.DepartmentSchema{}, domain.Department{}, domain.Collaborator{}, authErr
	}
	schema, dept, err := s.resolveDepartment(ctx, ns)
	if err != nil {
		return schema, dept, domain.Collaborator{}, err
	}
	m, err := s.cfg.Gate.RequireManager(ctx, id, dept.ID)
	if err != nil {
		return schema, dept, m, err
	}
	return schema, dept, m, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *server) registerDepartments(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DepartmentResponse `json:"body"`
	}, error) {
		out := make([]DepartmentResponse, 0, len(s.cfg.Registry.Departments))
		for _, d := range s.cfg.Registry.Departments {
			out = append(out, DepartmentResponse{
				Namespace: d.Namespace,
				Slug:      d.Slug,
				Label:     d.Label,
				Axes:      d.AxisLabels(),
			})
		}
		return &struct {
			Body []DepartmentResponse `json:"body"`
		}{Body: out}, nil
	})
}

func (s *server) registerWorkdays(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "start-workday",
		Method:      http.MethodPost,
		Path:        "/departments/{dept}/workday/start",
		Summary:     "Start or reopen the workday",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Dept string      `path:"dept"`
		Body DateRequest `json:"body"`
	}) (*struct {
		Body WorkdayResponse `json:"body"`
	}, error) {
		_, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		w, err := s.cfg.Engine.StartWorkday(ctx, c, input.Body.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkdayResponse `json:"body"`
		}{Body: WorkdayResponse{Workday: w}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-workday",
		Method:      http.MethodPost,
		Path:        "/departments/{dept}/workday/close",
		Summary:     "Close the workday",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string      `path:"dept"`
		Body DateRequest `json:"body"`
	}) (*struct {
		Body WorkdayResponse `json:"body"`
	}, error) {
		_, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		w, err := s.cfg.Engine.CloseWorkday(ctx, c, input.Body.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkdayResponse `json:"body"`
		}{Body: WorkdayResponse{Workday: w}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/dashboard",
		Summary:     "Day board",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
		Date string `query:"date" format:"date"`
	}) (*struct {
		Body engine.Dashboard `json:"body"`
	}, error) {
		_, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := s.cfg.Engine.DashboardSnapshot(ctx, c, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Dashboard `json:"body"`
		}{Body: d}, nil
	})
}

func (s *server) registerActivities(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-activity",
		Method:        http.MethodPost,
		Path:          "/departments/{dept}/activities",
		Summary:       "Create activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Dept string                `path:"dept"`
		Body CreateActivityRequest `json:"body"`
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		_, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		class, ok := input.Body.Classification.toDomain()
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("classification accepts at most %d axes", domain.MaxAxes), nil)
		}
		a, err := s.cfg.Engine.CreateActivity(ctx, c, engine.ActivityCreateOptions{
			Date:        input.Body.Date,
			ProjectID:   input.Body.ProjectID,
			Class:       class,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		st, err := s.cfg.Engine.ActivityDetail(ctx, c, a.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: ActivityResponse{Activity: st}}, nil
	})

	type activityAction func(context.Context, domain.Collaborator, int64) (domain.Activity, error)
	registerAction := func(opID, pathSuffix, summary string, act func(e engine.Engine) activityAction) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/departments/{dept}/activities/{id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			Dept string `path:"dept"`
			ID   int64  `path:"id"`
		}) (*struct {
			Body ActivityResponse `json:"body"`
		}, error) {
			_, c, err := s.collaborator(ctx, input.Dept)
			if err != nil {
				return nil, handleError(err)
			}
			if _, err := act(s.cfg.Engine)(ctx, c, input.ID); err != nil {
				return nil, handleError(err)
			}
			st, err := s.cfg.Engine.ActivityDetail(ctx, c, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body ActivityResponse `json:"body"`
			}{Body: ActivityResponse{Activity: st}}, nil
		})
	}
	registerAction("start-activity", "start", "Resume activity", func(e engine.Engine) activityAction { return e.StartActivity })
	registerAction("pause-activity", "pause", "Pause activity", func(e engine.Engine) activityAction { return e.PauseActivity })
	registerAction("finish-activity", "finish", "Finish activity", func(e engine.Engine) activityAction { return e.FinishActivity })

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/activities/{id}",
		Summary:     "Get activity",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
		ID   int64  `path:"id"`
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		_, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		st, err := s.cfg.Engine.ActivityDetail(ctx, c, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: ActivityResponse{Activity: st}}, nil
	})
}

func (s *server) registerCatalog(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-catalog-axis",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/catalog/{axis}",
		Summary:     "List catalog nodes of one axis",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept     string `path:"dept"`
		Axis     int    `path:"axis" minimum:"0"`
		ParentID int64  `query:"parent_id"`
	}) (*struct {
		Body CatalogResponse `json:"body"`
	}, error) {
		schema, dept, err := s.resolveDepartment(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Axis >= len(schema.Axes) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("department %s has %d axes", schema.Namespace, len(schema.Axes)), nil)
		}
		var nodes []domain.CatalogNode
		if input.ParentID != 0 {
			nodes, err = s.cfg.Engine.Repo.ListCatalogChildren(ctx, input.ParentID)
		} else {
			nodes, err = s.cfg.Engine.Repo.ListCatalogAxis(ctx, dept.ID, input.Axis)
		}
		if err != nil {
			return nil, handleError(err)
		}
		if nodes == nil {
			nodes = []domain.CatalogNode{}
		}
		return &struct {
			Body CatalogResponse `json:"body"`
		}{Body: CatalogResponse{Nodes: nodes}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
		Q    string `query:"q"`
	}) (*struct {
		Body ProjectsResponse `json:"body"`
	}, error) {
		_, dept, err := s.resolveDepartment(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		projects, err := s.cfg.Engine.Repo.ListProjects(ctx, dept.ID, input.Q)
		if err != nil {
			return nil, handleError(err)
		}
		if projects == nil {
			projects = []domain.Project{}
		}
		return &struct {
			Body ProjectsResponse `json:"body"`
		}{Body: ProjectsResponse{Projects: projects}}, nil
	})
}

func (s *server) registerReports(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "collaborator-report",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/report",
		Summary:     "Personal report",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
		ReportQuery
	}) (*struct {
		Body report.CollaboratorReport `json:"body"`
	}, error) {
		schema, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		rep, err := s.cfg.Reports.Collaborator(ctx, schema, c, input.options())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.CollaboratorReport `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-filters",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/report/filters",
		Summary:     "Report filter options",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
	}) (*struct {
		Body report.FilterOptions `json:"body"`
	}, error) {
		schema, c, err := s.collaborator(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		opts, err := s.cfg.Reports.Filters(ctx, schema, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.FilterOptions `json:"body"`
		}{Body: opts}, nil
	})
}

func (s *server) registerManage(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "department-report",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/manage/report",
		Summary:     "Department report",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
		ReportQuery
		CollaboratorIDs []int64 `query:"collaborator_id"`
	}) (*struct {
		Body report.DepartmentReport `json:"body"`
	}, error) {
		schema, dept, _, err := s.manager(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		rep, err := s.cfg.Reports.Department(ctx, schema, dept, input.CollaboratorIDs, input.options())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.DepartmentReport `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "realtime-board",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/manage/realtime",
		Summary:     "Activities timing right now",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept string `path:"dept"`
	}) (*struct {
		Body report.RealtimeBoard `json:"body"`
	}, error) {
		schema, dept, _, err := s.manager(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		board, err := s.cfg.Reports.Realtime(ctx, schema, dept)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.RealtimeBoard `json:"body"`
		}{Body: board}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-collaborators",
		Method:      http.MethodGet,
		Path:        "/departments/{dept}/manage/collaborators",
		Summary:     "List collaborators",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Dept            string `path:"dept"`
		IncludeInactive bool   `query:"include_inactive"`
	}) (*struct {
		Body CollaboratorsResponse `json:"body"`
	}, error) {
		_, dept, _, err := s.manager(ctx, input.Dept)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := s.cfg.Engine.Repo.ListCollaborators(ctx, dept.ID, input.IncludeInactive)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Collaborator{}
		}
		return &struct {
			Body CollaboratorsResponse `json:"body"`
		}{Body: CollaboratorsResponse{Collaborators: items}}, nil
	})
}

// registerExports serves the spreadsheet downloads straight from chi:
// binary responses stream better outside the API schema.
func (s *server) registerExports(router chi.Router, basePath string) {
	router.Get(basePath+"/departments/{dept}/report/export", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ns := chi.URLParam(r, "dept")
		schema, c, err := s.collaborator(ctx, ns)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		rep, err := s.cfg.Reports.Collaborator(ctx, schema, c, exportOptions(r))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		f, err := report.CollaboratorWorkbook(schema, rep)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		s.writeWorkbook(w, f, report.CollaboratorFilename(s.cfg.Reports.Clock, c.ID))
	})

	router.Get(basePath+"/departments/{dept}/manage/report/export", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ns := chi.URLParam(r, "dept")
		schema, dept, _, err := s.manager(ctx, ns)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		q := r.URL.Query()
		if v := q.Get("collaborator"); v != "" {
			// single-collaborator workbook on behalf of a manager
			id, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil || id <= 0 {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid collaborator id", nil))
				return
			}
			c, err := s.cfg.Engine.Repo.GetCollaborator(ctx, id)
			if err == nil && c.DepartmentID != dept.ID {
				err = repo.ErrNotFound
			}
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			rep, err := s.cfg.Reports.Collaborator(ctx, schema, c, exportOptions(r))
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			f, err := report.CollaboratorWorkbook(schema, rep)
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			s.writeWorkbook(w, f, report.CollaboratorFilename(s.cfg.Reports.Clock, c.ID))
			return
		}
		rep, err := s.cfg.Reports.Department(ctx, schema, dept, queryIDs(q["collaborator_id"]), exportOptions(r))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		f, err := report.DepartmentWorkbook(schema, rep)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		s.writeWorkbook(w, f, report.DepartmentFilename(s.cfg.Reports.Clock))
	})
}

// exportOptions mirrors the report endpoints' query parameters so a
// filtered report downloads as the same filtered workbook.
func exportOptions(r *http.Request) report.Options {
	q := r.URL.Query()
	opts := report.Options{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Order:      q.Get("order"),
		ProjectIDs: queryIDs(q["project_id"]),
	}
	for axis := 0; axis < domain.MaxAxes; axis++ {
		opts.NodeIDs[axis] = queryIDs(q[fmt.Sprintf("node%d", axis)])
	}
	return opts
}

func queryIDs(vals []string) []int64 {
	var out []int64
	for _, v := range vals {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (s *server) writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := f.WriteTo(w); err != nil {
		s.cfg.Logger.Error().Err(err).Str("file", filename).Msg("write workbook")
	}
}
