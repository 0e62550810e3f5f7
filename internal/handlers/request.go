package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/services"
)

const dateLayout = "2006-01-02"

// maxPageSize caps /api/records pages.
const maxPageSize = 1000

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("granularity", func(fl validator.FieldLevel) bool {
			_, err := models.ParseGranularity(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("kpi", func(fl validator.FieldLevel) bool {
			_, err := models.ParseKPI(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// dashboardRequest is the transport-level form of a dashboard query, shared by
// the REST endpoints (query string) and the SSE endpoint (datastar signals).
type dashboardRequest struct {
	Regions       []string `json:"regions"`
	States        []string `json:"states"`
	Categories    []string `json:"categories"`
	SubCategories []string `json:"subcategories"`
	From          string   `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To            string   `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Granularity   string   `json:"granularity" validate:"omitempty,granularity"`
	KPI           string   `json:"kpi" validate:"omitempty,kpi"`
	Top           *int     `json:"top" validate:"omitempty,gte=0,lte=1000"`
	Offset        int      `json:"offset" validate:"gte=0"`
	Limit         int      `json:"limit" validate:"gte=0,lte=1000"`
}

// parseQueryRequest reads the query string. An absent dimension parameter leaves
// that dimension unconstrained; a present but empty one (?region=) selects nothing.
func parseQueryRequest(values url.Values) (dashboardRequest, error) {
	req := dashboardRequest{
		Regions:       choiceParam(values, "region"),
		States:        choiceParam(values, "state"),
		Categories:    choiceParam(values, "category"),
		SubCategories: choiceParam(values, "subcategory"),
		From:          values.Get("from"),
		To:            values.Get("to"),
		Granularity:   values.Get("granularity"),
		KPI:           values.Get("kpi"),
	}

	var err error
	if raw := values.Get("top"); raw != "" {
		top, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return req, errors.InvalidArgumentf("top must be an integer, got %q", raw)
		}
		req.Top = &top
	}
	if req.Offset, err = intParam(values, "offset"); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(values, "limit"); err != nil {
		return req, err
	}
	return req, nil
}

func choiceParam(values url.Values, key string) []string {
	raw, ok := values[key]
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		out = append(out, strings.Split(v, ",")...)
	}
	return append([]string{}, lo.Compact(lo.Map(out, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))...)
}

func intParam(values url.Values, key string) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidArgumentf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

// query validates the request and turns it into a service query, applying the
// configured defaults for anything left blank.
func (req dashboardRequest) query(defaults config.DashboardConfig) (services.Query, error) {
	if err := validateRequest(req); err != nil {
		return services.Query{}, err
	}

	q := services.Query{
		Selection: models.FilterSelection{
			Regions:       choice(req.Regions),
			States:        choice(req.States),
			Categories:    choice(req.Categories),
			SubCategories: choice(req.SubCategories),
		},
		Granularity: models.Daily,
		KPI:         models.KPISales,
		TopN:        defaults.TopN,
	}
	if req.Granularity != "" {
		q.Granularity = models.Granularity(req.Granularity)
	}
	if req.KPI != "" {
		q.KPI = models.KPI(req.KPI)
	}
	if req.Top != nil {
		q.TopN = *req.Top
	}

	// Parse errors are impossible here: the datetime tag already checked the layout.
	from, _ := parseDay(req.From)
	to, _ := parseDay(req.To)
	q.Selection.Range = models.DateRange{From: from, To: to}
	return q, nil
}

func choice(values []string) models.Choice {
	if values == nil {
		return models.All()
	}
	return models.Choice(values)
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func validateRequest(req dashboardRequest) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) || len(ve) == 0 {
		return errors.InvalidArgument("invalid request")
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "datetime":
		return errors.InvalidArgumentf("%s must be a date in YYYY-MM-DD form, got %q", field, fe.Value())
	case "granularity":
		return errors.InvalidArgumentf("unknown granularity %q", fe.Value())
	case "kpi":
		return errors.InvalidArgumentf("unknown kpi %q", fe.Value())
	case "gte", "lte":
		return errors.InvalidArgumentf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return errors.InvalidArgument(fmt.Sprintf("invalid %s", field))
}

// page returns the records window for offset/limit. A zero limit uses fallback.
func page(records []models.Record, offset, limit, fallback int) []models.Record {
	if limit == 0 {
		limit = fallback
	}
	limit = min(limit, maxPageSize)
	if offset >= len(records) {
		return []models.Record{}
	}
	end := min(offset+limit, len(records))
	return records[offset:end]
}

func requestQuery(r *http.Request, defaults config.DashboardConfig) (dashboardRequest, services.Query, error) {
	req, err := parseQueryRequest(r.URL.Query())
	if err != nil {
		return req, services.Query{}, err
	}
	q, err := req.query(defaults)
	return req, q, err
}
