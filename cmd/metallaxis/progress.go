package main

import (
	"os"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/pipeline"
)

const progressTemplate = `{{ bar . "[" "=" ">" " " "]" }} {{ percent . }} {{ string . "msg" }}`

// progressReporter renders pipeline progress on stderr.
type progressReporter struct {
	bar    *pb.ProgressBar
	logger *zap.Logger
}

// newProgress returns a bar-backed reporter, or one that logs each milestone
// when quiet is set.
func newProgress(quiet bool, logger *zap.Logger) *progressReporter {
	p := &progressReporter{logger: logger}
	if !quiet {
		p.bar = pb.ProgressBarTemplate(progressTemplate).New(100)
		p.bar.SetWriter(os.Stderr)
		p.bar.Start()
	}
	return p
}

// Func returns the callback handed to the pipeline.
func (p *progressReporter) Func() pipeline.ProgressFunc {
	return func(percent float64, message string) {
		if p.bar == nil {
			p.logger.Info(message, zap.Float64("percent", percent))
			return
		}
		p.bar.Set("msg", message)
		p.bar.SetCurrent(int64(percent))
	}
}

// Finish stops the bar.
func (p *progressReporter) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
