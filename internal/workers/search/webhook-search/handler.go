// internal/workers/search/webhook-search/handler.go
package webhooksearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "webhook-search/internal/common/errors"
	"webhook-search/internal/common/logger"
	"webhook-search/internal/common/metrics"
	"webhook-search/internal/render"
	"webhook-search/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "webhook-search"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

// Searcher runs one search. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Outcome, error)
}

type Handler struct {
	config       *Config
	search       Searcher
	renderer     *render.Renderer
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, searcher Searcher, renderer *render.Renderer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		search:       searcher,
		renderer:     renderer,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	gauge := metrics.WorkerJobsActive.WithLabelValues(TaskType)
	gauge.Inc()
	defer gauge.Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("%v: %v", ErrInvalidInput, err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	out, err := h.search.Search(ctx, input.Query)
	if errors.Is(err, search.ErrEmptyQuery) {
		return nil, apperrors.NewInvalidQueryError("query is empty")
	}
	if err != nil {
		return nil, err
	}

	state := render.StateFor(out.View, nil)
	frags, err := h.renderer.Fragments(render.PageData{
		Title: h.config.PageTitle,
		Query: out.Query,
		State: state,
		View:  out.View,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	h.logger.Info("search completed", map[string]interface{}{
		"resultCount": len(out.View.Results),
		"state":       state,
		"cached":      out.Cached,
	})

	return &Output{
		SearchView:  out.View,
		SearchHTML:  frags,
		SearchState: state,
		Cached:      out.Cached,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInternalError(err))
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
	})
}

// Execute runs the search and rendering without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
