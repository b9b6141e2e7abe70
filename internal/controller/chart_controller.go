package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sigmachart/internal/metrics"
	"sigmachart/internal/render"
	"sigmachart/internal/sigma"
)

// ChartController exposes the sigma evaluation engine over HTTP: PNG
// charts with result metadata in response headers, plus a JSON-only
// evaluation endpoint.
type ChartController struct {
	evaluator *sigma.Evaluator
	renderer  *render.Renderer
	logger    *zap.Logger
}

func NewChartController(evaluator *sigma.Evaluator, renderer *render.Renderer, logger *zap.Logger) *ChartController {
	return &ChartController{
		evaluator: evaluator,
		renderer:  renderer,
		logger:    logger,
	}
}

// Chart handles GET /chart?tests=&fails=&name= for a single process. The
// response body is the chart PNG; every result field is mirrored into a
// process-* header.
func (cc *ChartController) Chart(c *gin.Context) {
	proc, err := parseQueryProcess(c)
	if err != nil {
		cc.rejectInput(c, err)
		return
	}

	result, err := cc.evaluator.Evaluate(proc)
	if err != nil {
		cc.rejectInput(c, err)
		return
	}
	metrics.ObserveEvaluation(metrics.OutcomeOK)

	png, err := cc.renderPNG(c, []sigma.Result{result})
	if err != nil {
		return
	}

	c.Header("Content-Disposition", "inline; filename=chart.png")
	c.Header("process-tests", strconv.FormatInt(result.Tests, 10))
	c.Header("process-fails", strconv.FormatInt(result.Fails, 10))
	c.Header("process-name", result.Name)
	c.Header("process-defect_rate", strconv.FormatFloat(result.DefectRate, 'g', -1, 64))
	c.Header("process-sigma", strconv.FormatFloat(result.Sigma, 'g', -1, 64))
	c.Header("process-label", string(result.Label))
	c.Data(http.StatusOK, "image/png", png)
}

// Plot handles POST /plot with a JSON array of processes. The response
// body is a composed chart PNG; the Process-List header carries the full
// result array as JSON, in input order.
func (cc *ChartController) Plot(c *gin.Context) {
	results, ok := cc.bindAndEvaluate(c)
	if !ok {
		return
	}

	png, err := cc.renderPNG(c, results)
	if err != nil {
		return
	}

	processList, err := sigma.MarshalProcessList(results)
	if err != nil {
		cc.logger.Error("Failed to serialize process list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize results"})
		return
	}

	c.Header("Content-Disposition", "inline; filename=plot.png")
	c.Header("Process-List", processList)
	c.Data(http.StatusOK, "image/png", png)
}

// Evaluate handles POST /evaluate with a JSON array of processes and
// returns the results as JSON without rendering a chart.
func (cc *ChartController) Evaluate(c *gin.Context) {
	results, ok := cc.bindAndEvaluate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, results)
}

func (cc *ChartController) bindAndEvaluate(c *gin.Context) ([]sigma.Result, bool) {
	var processes []sigma.Process
	if err := c.ShouldBindJSON(&processes); err != nil {
		if sigma.IsValidationError(err) {
			cc.rejectInput(c, err)
			return nil, false
		}
		cc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return nil, false
	}
	if len(processes) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "At least one process is required"})
		return nil, false
	}

	results, err := cc.evaluator.EvaluateAll(processes)
	if err != nil {
		cc.rejectInput(c, err)
		return nil, false
	}
	for range results {
		metrics.ObserveEvaluation(metrics.OutcomeOK)
	}
	return results, true
}

func (cc *ChartController) renderPNG(c *gin.Context, results []sigma.Result) ([]byte, error) {
	start := time.Now()
	png, err := cc.renderer.Render(results)
	metrics.ObserveRender(time.Since(start))
	if err != nil {
		cc.logger.Error("Chart rendering failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chart rendering failed"})
		return nil, err
	}
	return png, nil
}

func (cc *ChartController) rejectInput(c *gin.Context, err error) {
	metrics.ObserveEvaluation(metrics.OutcomeInvalid)
	cc.logger.Info("Rejected process input", zap.Error(err))
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
}

func parseQueryProcess(c *gin.Context) (sigma.Process, error) {
	tests, err := sigma.ParseCount("tests", c.Query("tests"))
	if err != nil {
		return sigma.Process{}, err
	}
	fails, err := sigma.ParseCount("fails", c.Query("fails"))
	if err != nil {
		return sigma.Process{}, err
	}
	return sigma.Process{Tests: tests, Fails: fails, Name: c.Query("name")}, nil
}
