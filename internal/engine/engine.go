package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broker is the MQTT surface the engine needs: publish one command per
// step to an executor bridge and receive its acknowledgement on the
// run's result topic.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// StepCallbacks receive per-step progress during a run. Any callback may
// be nil.
type StepCallbacks struct {
	OnStepStart    func(index int, step automation.Step)
	OnStepComplete func(index int, step automation.Step)
	OnStepError    func(index int, step automation.Step, err error)
}

// Result is the aggregate outcome of one engine run.
type Result struct {
	Success        bool          `json:"success"`
	StepsCompleted int           `json:"steps_completed"`
	TotalSteps     int           `json:"total_steps"`
	ExecutionTime  time.Duration `json:"execution_time"`
	Err            error         `json:"-"`
}

// command is the wire payload published per step to executor bridges.
type command struct {
	ExecutionID  string         `json:"execution_id"`
	AutomationID string         `json:"automation_id"`
	StepIndex    int            `json:"step_index"`
	Kind         string         `json:"kind"`
	Config       map[string]any `json:"config,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// stepAck is the wire payload executor bridges publish on the run's
// result topic after handling one command.
type stepAck struct {
	ExecutionID string `json:"execution_id"`
	StepIndex   int    `json:"step_index"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

const (
	// maxExecutionTime is the hard limit for one run. Prevents a stalled
	// bridge or an oversized delay chain from pinning the dispatcher.
	maxExecutionTime = 60 * time.Second

	// defaultAckTimeout bounds the wait for one step's acknowledgement.
	// An un-acked command counts as a failed step: the broker accepting
	// the publish says nothing about any bridge having run it.
	defaultAckTimeout = 10 * time.Second

	// ackBuffer sizes the per-run ack channel so the result handler
	// never blocks the MQTT read loop.
	ackBuffer = 16
)

// Engine is the native automation executor: it publishes each enabled
// step as a command to the executor bridges over MQTT and waits for the
// bridge's acknowledgement before counting the step completed. Unlike
// the fallback interpreter it carries full authority, device
// configuration kinds included, because the bridges it commands run
// inside the trusted device estate.
//
// Step failures accumulate; a failed, rejected, or un-acked step never
// aborts the remaining steps.
type Engine struct {
	broker Broker
	topics mqtt.Topics
	logger Logger

	// ackTimeout is the per-step acknowledgement wait.
	ackTimeout time.Duration
}

// NewEngine creates an engine commanding bridges through broker.
func NewEngine(broker Broker, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{broker: broker, logger: logger, ackTimeout: defaultAckTimeout}
}

// Execute runs every enabled step of the automation in declared order.
//
// Delay steps are honoured in-process; every other step becomes one MQTT
// command that must be acknowledged on the run's result topic before it
// counts as completed. The result always carries per-step accounting:
// Success is true only when every step was acknowledged successfully,
// and Err holds the first failure for context.
func (e *Engine) Execute(ctx context.Context, a *automation.AutomationSummary, cb StepCallbacks) Result {
	ctx, cancel := context.WithTimeout(ctx, maxExecutionTime)
	defer cancel()

	steps := a.EnabledSteps()
	executionID := automation.GenerateID()
	started := time.Now()

	res := Result{TotalSteps: len(steps)}

	if e.broker == nil {
		res.Err = ErrBrokerUnavailable
		res.ExecutionTime = time.Since(started)
		return res
	}

	// Subscribe to this run's result topic before the first command so
	// no ack can race past us.
	acks := make(chan stepAck, ackBuffer)
	resultTopic := e.topics.EngineResult(executionID)
	err := e.broker.Subscribe(resultTopic, 1, func(_ string, payload []byte) error {
		var ack stepAck
		if err := json.Unmarshal(payload, &ack); err != nil {
			return fmt.Errorf("decoding step ack: %w", err)
		}
		select {
		case acks <- ack:
		default:
			// Buffer full means something is flooding the result topic;
			// dropping is safer than blocking the MQTT read loop.
		}
		return nil
	})
	if err != nil {
		res.Err = fmt.Errorf("subscribing to run results: %w", err)
		res.ExecutionTime = time.Since(started)
		return res
	}
	defer func() {
		if unsubErr := e.broker.Unsubscribe(resultTopic); unsubErr != nil {
			e.logger.Warn("failed to unsubscribe from run results",
				"execution_id", executionID, "error", unsubErr)
		}
	}()

	e.logger.Info("engine run started",
		"automation_id", a.ID,
		"execution_id", executionID,
		"steps", len(steps),
	)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			e.recordFailure(&res, fmt.Errorf("run cancelled: %w", err))
			break
		}

		if cb.OnStepStart != nil {
			cb.OnStepStart(i, step)
		}

		err := e.runStep(ctx, acks, executionID, a.ID, i, step)
		if err != nil {
			e.recordFailure(&res, err)
			e.logger.Warn("engine step failed",
				"execution_id", executionID, "index", i, "kind", step.Kind, "error", err)
			if cb.OnStepError != nil {
				cb.OnStepError(i, step, err)
			}
			continue
		}

		res.StepsCompleted++
		if cb.OnStepComplete != nil {
			cb.OnStepComplete(i, step)
		}
	}

	res.Success = res.StepsCompleted == res.TotalSteps && res.Err == nil
	res.ExecutionTime = time.Since(started)

	e.logger.Info("engine run complete",
		"automation_id", a.ID,
		"execution_id", executionID,
		"success", res.Success,
		"completed", res.StepsCompleted,
		"total", res.TotalSteps,
		"duration_ms", res.ExecutionTime.Milliseconds(),
	)
	return res
}

// runStep executes one step: an in-process wait for delays, an MQTT
// command plus acknowledgement wait for everything else.
func (e *Engine) runStep(ctx context.Context, acks <-chan stepAck, executionID, automationID string, index int, step automation.Step) error {
	if step.Kind == automation.KindDelay {
		d, ok := automation.ConfigDuration(step.Config, "duration_ms")
		if !ok {
			return fmt.Errorf("delay step missing duration_ms")
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return fmt.Errorf("delay interrupted: %w", ctx.Err())
		}
	}

	payload, err := json.Marshal(command{
		ExecutionID:  executionID,
		AutomationID: automationID,
		StepIndex:    index,
		Kind:         string(step.Kind),
		Config:       step.Config,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding step command: %w", err)
	}

	topic := e.topics.EngineCommand(string(step.Kind))
	if err := e.broker.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("publishing step command: %w", err)
	}

	return e.awaitAck(ctx, acks, index)
}

// awaitAck blocks until the bridge acknowledges the step, the ack
// timeout elapses, or the run is cancelled. Acks for other step indexes
// (late retries from a slow bridge) are discarded.
func (e *Engine) awaitAck(ctx context.Context, acks <-chan stepAck, index int) error {
	timer := time.NewTimer(e.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-acks:
			if ack.StepIndex != index {
				continue
			}
			if !ack.Success {
				detail := ack.Error
				if detail == "" {
					detail = "unspecified bridge error"
				}
				return fmt.Errorf("bridge rejected step: %s", detail)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("step not acknowledged within %v", e.ackTimeout)
		case <-ctx.Done():
			return fmt.Errorf("awaiting step ack: %w", ctx.Err())
		}
	}
}

// recordFailure marks the run failed, keeping the first error.
func (e *Engine) recordFailure(res *Result, err error) {
	if res.Err == nil {
		res.Err = err
	}
}
