package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/denoiser"
	"github.com/xaionaro-go/noisecancel/pkg/monitor"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
	"github.com/xaionaro-go/noisecancel/pkg/postprocess"
	"github.com/xaionaro-go/noisecancel/pkg/sink"
)

const (
	testSampleRate  = 16000
	testFrameLength = 480
	testChunkFrames = 3200
)

var testFormat = audio.Format{
	SampleRate: testSampleRate,
	Channels:   1,
	PCMFormat:  audio.PCMFormatS16LE,
}

type readStep struct {
	chunk capture.Chunk
	err   error
}

// scriptedSource returns the given steps and then io.EOF (or waits for
// the cancellation if blockAtEnd is set).
type scriptedSource struct {
	steps      []readStep
	pos        int
	blockAtEnd bool
	afterRead  func(pos int)

	locker sync.Mutex
	closed bool
}

var _ capture.Source = (*scriptedSource)(nil)

func newScriptedSource(chunks ...[]int16) *scriptedSource {
	src := &scriptedSource{}
	for _, samples := range chunks {
		src.steps = append(src.steps, readStep{chunk: capture.Chunk{Samples: samples}})
	}
	return src
}

func (s *scriptedSource) Format() audio.Format {
	return testFormat
}

func (s *scriptedSource) Read(ctx context.Context, maxFrames int, _ time.Duration) (capture.Chunk, error) {
	if s.pos >= len(s.steps) {
		if s.blockAtEnd {
			<-ctx.Done()
			return capture.Chunk{}, ctx.Err()
		}
		return capture.Chunk{}, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	if len(step.chunk.Samples) > maxFrames {
		panic(fmt.Errorf("the test chunk is larger than requested: %d > %d", len(step.chunk.Samples), maxFrames))
	}
	if s.afterRead != nil {
		s.afterRead(s.pos)
	}
	return step.chunk, step.err
}

func (s *scriptedSource) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) Closed() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.closed
}

var errEngineFailure = fmt.Errorf("the engine is on fire")

// scriptedEngine passes the audio through and can be told to be slow
// or to fail on specific frames.
type scriptedEngine struct {
	*noisesuppression.Dummy

	locker    sync.Mutex
	calls     int
	delayAt   map[int]time.Duration
	failAt    int
	voiceProb float64
	ctxErrs   []error
	firsts    []float32
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{
		Dummy: noisesuppression.NewDummy(audio.EncodingPCM{
			PCMFormat:  audio.PCMFormatFloat32LE,
			SampleRate: testSampleRate,
		}, 1, testFrameLength),
		delayAt:   map[int]time.Duration{},
		failAt:    -1,
		voiceProb: 1,
	}
}

func (e *scriptedEngine) SuppressNoise(ctx context.Context, input []float32, output []float32) (float64, error) {
	e.locker.Lock()
	idx := e.calls
	e.calls++
	e.ctxErrs = append(e.ctxErrs, ctx.Err())
	e.firsts = append(e.firsts, input[0])
	delay := e.delayAt[idx]
	e.locker.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if idx == e.failAt {
		return 0, errEngineFailure
	}
	copy(output, input)
	return e.voiceProb, nil
}

func (e *scriptedEngine) Calls() int {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.calls
}

func (e *scriptedEngine) factory() denoiser.EngineFactory {
	return func(context.Context) (noisesuppression.NoiseSuppression, error) {
		return e, nil
	}
}

type collectingReporter struct {
	locker     sync.Mutex
	errors     []error
	iterations []Iteration
}

var _ IterationObserver = (*collectingReporter)(nil)

func (r *collectingReporter) Report(_ context.Context, err error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.errors = append(r.errors, err)
}

func (r *collectingReporter) ObserveIteration(_ context.Context, it Iteration) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.iterations = append(r.iterations, it)
}

func (r *collectingReporter) Errors() []error {
	r.locker.Lock()
	defer r.locker.Unlock()
	return append([]error(nil), r.errors...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkFrames = testChunkFrames
	return cfg
}

type testDriver struct {
	*Driver
	recording *sink.Recording
	reporter  *collectingReporter
}

func newTestDriver(
	t *testing.T,
	cfg Config,
	src capture.Source,
	engine *scriptedEngine,
) *testDriver {
	ctx := context.Background()
	session, err := denoiser.New(ctx, engine.factory())
	require.NoError(t, err)
	postProcessor, err := postprocess.New(1)
	require.NoError(t, err)

	reporter := &collectingReporter{}
	recording := sink.NewRecording()
	mux := sink.NewMultiplexer(ctx, monitor.Discard, recording, sink.DefaultQueueSize, reporter.Report)
	t.Cleanup(func() {
		mux.Close()
		session.Close()
	})

	d, err := NewDriver(cfg, src, session, postProcessor, mux)
	require.NoError(t, err)
	d.Reporter = reporter
	return &testDriver{
		Driver:    d,
		recording: recording,
		reporter:  reporter,
	}
}

// ramp returns 'count' samples continuing a global sawtooth, so any
// reordering or duplication is visible.
func ramp(from, count int) []int16 {
	out := make([]int16, count)
	for idx := range out {
		out[idx] = int16((from+idx)%20000 - 10000)
	}
	return out
}

func ramps(chunks int) [][]int16 {
	var result [][]int16
	for i := 0; i < chunks; i++ {
		result = append(result, ramp(i*testChunkFrames, testChunkFrames))
	}
	return result
}
