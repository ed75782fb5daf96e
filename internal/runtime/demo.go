package runtime

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/tcc"
)

//go:embed demo_responses.yaml
var demoResponsesYAML []byte

type DemoResponses struct {
	Categories []struct {
		Category string `yaml:"category"`
		Text     string `yaml:"text"`
	} `yaml:"categories"`
	Topics []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Text     string   `yaml:"text"`
	} `yaml:"topics"`
	General []string `yaml:"general"`
}

func loadDemoResponses() (*DemoResponses, error) {
	var r DemoResponses
	if err := yaml.Unmarshal(demoResponsesYAML, &r); err != nil {
		return nil, err
	}
	if len(r.General) == 0 {
		return nil, fmt.Errorf("demo responses: no general responses")
	}
	return &r, nil
}

// DemoRuntime stands in for the real runtime. It simulates generation latency
// and answers from templates chosen by the input's analysis.
type DemoRuntime struct {
	responses *DemoResponses
	minDelay  time.Duration
	maxDelay  time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(context.Context, time.Duration) error
}

type DemoOption func(*DemoRuntime)

// WithRand makes delay sampling and general-response selection reproducible.
func WithRand(rng *rand.Rand) DemoOption {
	return func(d *DemoRuntime) {
		d.rng = rng
	}
}

func WithSleeper(sleep func(context.Context, time.Duration) error) DemoOption {
	return func(d *DemoRuntime) {
		d.sleep = sleep
	}
}

func NewDemoRuntime(cfg config.DemoConfig, opts ...DemoOption) (*DemoRuntime, error) {
	responses, err := loadDemoResponses()
	if err != nil {
		return nil, err
	}

	d := &DemoRuntime{
		responses: responses,
		minDelay:  cfg.MinDelay,
		maxDelay:  cfg.MaxDelay,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *DemoRuntime) Name() string {
	return "demo"
}

func (d *DemoRuntime) ProbeVersion(ctx context.Context) error {
	return nil
}

func (d *DemoRuntime) ListModels(ctx context.Context) (string, error) {
	return "", nil
}

func (d *DemoRuntime) PullModel(ctx context.Context, model string) error {
	return nil
}

func (d *DemoRuntime) LoadModel(ctx context.Context, model string) error {
	return nil
}

func (d *DemoRuntime) Stop(ctx context.Context, model string) error {
	return nil
}

func (d *DemoRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	delay := d.sampleDelay()
	if err := d.sleep(ctx, delay); err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:     d.SelectResponse(req.Input, req.Analysis),
		Model:    fmt.Sprintf("%s (TCC demo mode)", req.Model),
		Duration: delay,
	}, nil
}

// Pause sleeps for d using the runtime's sleeper; warmup uses it.
func (d *DemoRuntime) Pause(ctx context.Context, delay time.Duration) error {
	return d.sleep(ctx, delay)
}

func (d *DemoRuntime) sampleDelay() time.Duration {
	if d.maxDelay <= d.minDelay {
		return d.minDelay
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minDelay + time.Duration(d.rng.Int63n(int64(d.maxDelay-d.minDelay)+1))
}

// SelectResponse picks the canned answer: category templates in order,
// then topic templates, then a random general response.
func (d *DemoRuntime) SelectResponse(input string, analysis tcc.Analysis) string {
	for _, c := range d.responses.Categories {
		if analysis.HasEmotion(c.Category) {
			return c.Text
		}
	}

	lower := strings.ToLower(input)
	for _, topic := range d.responses.Topics {
		for _, kw := range topic.Keywords {
			if strings.Contains(lower, kw) || analysis.HasKeyword(kw) {
				return topic.Text
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.responses.General[d.rng.Intn(len(d.responses.General))]
}
