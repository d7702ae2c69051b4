// Package warmup recognises scheduled warmup events and keeps additional
// execution environments warm by invoking the function asynchronously.
package warmup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

// Source identifies warmup events sent by a scheduler rule.
const Source = "warmup"

type Event struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

type Response struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// Parse reports whether payload is a warmup event.
func Parse(payload json.RawMessage) (*Event, bool) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, false
	}

	source, ok := fields["source"].(string)
	if !ok || source != Source {
		return nil, false
	}

	ev := &Event{Source: source}
	if concurrency, ok := fields["concurrency"].(float64); ok && concurrency > 0 {
		ev.Concurrency = int(concurrency)
	}
	return ev, true
}

// Invoker is the part of the Lambda client the Warmer uses.
type Invoker interface {
	Invoke(
		ctx context.Context,
		params *lambdasdk.InvokeInput,
		optFns ...func(*lambdasdk.Options),
	) (*lambdasdk.InvokeOutput, error)
}

type Config struct {
	// FunctionName is the function invoked for fan-out. Fan-out is disabled
	// when it is empty.
	FunctionName string
	// MaxConcurrency caps the number of self-invocations per event.
	MaxConcurrency int
	// Delay keeps this instance busy so that the fan-out lands on other
	// execution environments.
	Delay time.Duration
	// Client overrides the Lambda client; by default one is built from the
	// ambient AWS configuration on first use.
	Client Invoker
}

type Warmer struct {
	cfg Config
	log *zap.Logger

	once      sync.Once
	client    Invoker
	clientErr error
}

func New(cfg Config, log *zap.Logger) *Warmer {
	return &Warmer{
		cfg:    cfg,
		log:    log,
		client: cfg.Client,
	}
}

func (w *Warmer) invoker(ctx context.Context) (Invoker, error) {
	w.once.Do(func() {
		if w.client != nil {
			return
		}
		awscfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			w.clientErr = err
			return
		}
		w.client = lambdasdk.NewFromConfig(awscfg)
	})
	return w.client, w.clientErr
}

// Handle answers a warmup event. The calling instance counts as warmed; a
// failed fan-out is logged and not reported as an error.
func (w *Warmer) Handle(ctx context.Context, ev *Event) (map[string]any, error) {
	warmed := 1

	count := ev.Concurrency
	if count > w.cfg.MaxConcurrency {
		count = w.cfg.MaxConcurrency
	}

	if count > 0 && w.cfg.FunctionName != "" {
		if err := w.fanOut(ctx, count); err != nil {
			w.log.Warn("Warmup fan-out failed", zap.Error(err))
		} else {
			warmed += count
		}
	}

	if w.cfg.Delay > 0 {
		select {
		case <-time.After(w.cfg.Delay):
		case <-ctx.Done():
		}
	}

	return map[string]any{
		"statusCode": 200,
		"body": Response{
			Status:          "warm",
			InstancesWarmed: warmed,
		},
	}, nil
}

func (w *Warmer) fanOut(ctx context.Context, count int) error {
	client, err := w.invoker(ctx)
	if err != nil {
		return err
	}

	// Children must not fan out again.
	payload, err := json.Marshal(Event{Source: Source, Concurrency: 0})
	if err != nil {
		return err
	}

	var (
		wg        sync.WaitGroup
		errMu     sync.Mutex
		invokeErr error
	)

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.cfg.FunctionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				errMu.Lock()
				if invokeErr == nil {
					invokeErr = err
				}
				errMu.Unlock()
			}
		}()
	}

	wg.Wait()
	return invokeErr
}
