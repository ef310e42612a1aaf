package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"workout-recommender/internal/ml"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ExamplesPath is the collaborator endpoint that lists labeled examples.
const ExamplesPath = "/api/v1/training-examples"

const (
	defaultPageSize = 500
	maxPages        = 10_000
)

type examplesPage struct {
	Items    []Row `json:"items"`
	NextPage int   `json:"next_page"`
}

// HTTPSource pulls labeled examples from the application's REST service,
// following next_page until it is zero.
type HTTPSource struct {
	base     string
	pageSize int
	rest     *resty.Client
	cb       *gobreaker.CircuitBreaker[*examplesPage]
}

// NewHTTPSource creates a source for the service at base.
func NewHTTPSource(base string, timeout time.Duration) *HTTPSource {
	r := resty.New().
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}

	cb := gobreaker.NewCircuitBreaker[*examplesPage](gobreaker.Settings{
		Name:        "training-examples",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &HTTPSource{
		base:     strings.TrimRight(base, "/"),
		pageSize: defaultPageSize,
		rest:     r,
		cb:       cb,
	}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http:" + s.base }

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) ([]ml.TrainingExample, error) {
	var rows []Row
	page := 1
	for n := 0; page > 0; n++ {
		if n >= maxPages {
			return nil, fmt.Errorf("fetch examples: more than %d pages", maxPages)
		}
		p, err := s.cb.Execute(func() (*examplesPage, error) {
			return s.fetch(ctx, page)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch examples page %d: %w", page, err)
		}
		rows = append(rows, p.Items...)
		page = p.NextPage
	}

	log.Debug().Str("source", s.Name()).Int("rows", len(rows)).Msg("examples fetched")
	return ValidateRows(rows)
}

func (s *HTTPSource) fetch(ctx context.Context, page int) (*examplesPage, error) {
	result := &examplesPage{}
	resp, err := s.rest.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(s.pageSize)).
		SetResult(result).
		Get(s.base + ExamplesPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return result, nil
}
