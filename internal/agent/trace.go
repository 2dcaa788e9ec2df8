package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/debug"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// startTrace начинает трейс операции, если запись трейсов включена.
func (o *Orchestrator) startTrace(ctx context.Context, op, input string) (context.Context, *debug.Recorder) {
	if o.traces == nil {
		return ctx, nil
	}
	rec := o.traces.Start(op, utils.Truncate(input, 200))
	return debug.WithRecorder(ctx, rec), rec
}

// finishTrace сохраняет трейс. Сбой записи только логируется.
func (o *Orchestrator) finishTrace(rec *debug.Recorder, result any, opErr error) {
	if rec == nil {
		return
	}

	var body string
	if opErr == nil {
		if raw, err := json.Marshal(result); err == nil {
			body = string(raw)
		}
	}

	path, err := rec.Finalize(body, opErr, time.Now())
	if err != nil {
		o.log.Warnw("Failed to save debug trace", "run_id", rec.RunID(), "error", err)
		return
	}
	o.log.Debugw("Debug trace saved", "path", path)
}

func recordTool(ctx context.Context, tc llm.ToolCall, result string, err error, elapsed time.Duration) {
	exec := debug.ToolExecution{
		Name:     tc.Name,
		Args:     tc.Args,
		Result:   result,
		Duration: elapsed.Milliseconds(),
		Success:  err == nil,
	}
	if err != nil {
		exec.Error = err.Error()
	}
	debug.FromContext(ctx).RecordToolExecution(exec)
}
