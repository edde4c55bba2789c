package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/pavelanni/mediarec/internal/llm"
	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/recommend"
)

const (
	inTopic  = "learning.session.completed"
	outTopic = "recommendation.created"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []model.LearningContext
	errs  []error // returned in order, nil once exhausted
	seen  chan model.LearningContext
}

func newFakeRunner(errs ...error) *fakeRunner {
	return &fakeRunner{errs: errs, seen: make(chan model.LearningContext, 16)}
}

func (f *fakeRunner) Run(_ context.Context, lc model.LearningContext) (recommend.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lc)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()
	f.seen <- lc
	if err != nil {
		return recommend.Result{Stage: recommend.StageAborted}, err
	}
	return recommend.Result{Stage: recommend.StagePublished}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) await(t *testing.T) model.LearningContext {
	t.Helper()
	select {
	case lc := <-f.seen:
		return lc
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the runner")
		return model.LearningContext{}
	}
}

func testLogger() watermill.LoggerAdapter {
	return watermill.NopLogger{}
}

func startConsumer(t *testing.T, runner SessionRunner) *gochannel.GoChannel {
	t.Helper()
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, testLogger())
	cfg := model.DefaultConfig().Messaging
	cfg.MaxRetries = 0

	c, err := NewConsumer(ch, runner, recommend.NewPool(2), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
		_ = ch.Close()
	})

	select {
	case <-c.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return ch
}

func publish(t *testing.T, pub message.Publisher, payload string) {
	t.Helper()
	if err := pub.Publish(inTopic, message.NewMessage(watermill.NewUUID(), []byte(payload))); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

const validPayload = `{"sessionId": "S1", "userId": 42, "totalQuestions": 3, "correctAnswers": 1,
	"sessionCompletedAt": "2025-03-01T10:00:00", "sessionQuestions": [{"questionId": "q1", "isCorrect": false}]}`

func TestConsumerRunsPipeline(t *testing.T) {
	runner := newFakeRunner()
	ch := startConsumer(t, runner)

	publish(t, ch, validPayload)
	lc := runner.await(t)

	if lc.SessionID != "S1" || lc.UserID != "42" {
		t.Errorf("ids = %q/%q, want S1/42", lc.SessionID, lc.UserID)
	}
	if lc.TotalQuestions != 3 || len(lc.SessionQuestions) != 1 {
		t.Errorf("unexpected context %+v", lc)
	}
	if lc.SessionCompletedAt.IsZero() {
		t.Error("completion time should be parsed")
	}
}

func TestConsumerDropsMalformedPayloads(t *testing.T) {
	runner := newFakeRunner()
	ch := startConsumer(t, runner)

	publish(t, ch, "not json")
	publish(t, ch, `{"userId": "42"}`)
	publish(t, ch, validPayload)

	runner.await(t)
	if got := runner.callCount(); got != 1 {
		t.Errorf("runner calls = %d, want 1", got)
	}
}

func TestConsumerRedeliversFailedRuns(t *testing.T) {
	runner := newFakeRunner(errors.New("persist recommendations: database is locked"))
	ch := startConsumer(t, runner)

	publish(t, ch, validPayload)
	runner.await(t)
	runner.await(t)

	if got := runner.callCount(); got != 2 {
		t.Errorf("runner calls = %d, want 2", got)
	}
}

func TestConsumerDoesNotRedeliverHopelessRuns(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid trigger", recommend.ErrInvalidTrigger},
		{"unrecoverable", &llm.UnrecoverableError{Endpoint: "analysis", StatusCode: 401, Err: errors.New("denied")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(tt.err)
			ch := startConsumer(t, runner)

			publish(t, ch, validPayload)
			runner.await(t)
			publish(t, ch, `{"sessionId": "S2", "userId": "7"}`)
			second := runner.await(t)

			if second.SessionID != "S2" {
				t.Errorf("second run session = %q, the first message should not be redelivered", second.SessionID)
			}
			if got := runner.callCount(); got != 2 {
				t.Errorf("runner calls = %d, want 2", got)
			}
		})
	}
}

func TestEmitterPublishes(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, testLogger())
	t.Cleanup(func() { _ = ch.Close() })
	msgs, err := ch.Subscribe(context.Background(), outTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	session := "S1"
	recs := []model.MediaRecommendation{
		{RecommendationID: "REC_1", UserID: "42", Kind: model.KindRealTimeSession, SessionID: &session},
		{RecommendationID: "REC_2", UserID: "42", Kind: model.KindRealTimeSession, SessionID: &session},
	}
	e := NewEmitter(ch, outTopic)
	e.Emit(context.Background(), model.NewRecommendationCreatedEvent(recs, nil, time.Now()))

	select {
	case msg := <-msgs:
		msg.Ack()
		var ev model.RecommendationCreatedEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.EventType != model.EventRecommendationCreated || ev.MediaCount != 2 || ev.SessionID != "S1" {
			t.Errorf("unexpected event %+v", ev)
		}
		if msg.Metadata.Get("user_id") != "42" || msg.Metadata.Get("recommendation_type") != string(model.KindRealTimeSession) {
			t.Errorf("unexpected metadata %v", msg.Metadata)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
	}
	e.Wait()
}

type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("bus unavailable")
}

func (f *failingPublisher) Close() error { return nil }

func TestEmitterSwallowsFailures(t *testing.T) {
	pub := &failingPublisher{}
	e := NewEmitter(pub, outTopic)
	ev := model.RecommendationCreatedEvent{EventType: model.EventRecommendationCreated, UserID: "1", MediaCount: 1}

	for range 8 {
		e.Emit(context.Background(), ev)
		e.Wait()
	}
	// The breaker opens after five consecutive failures.
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.calls != 5 {
		t.Errorf("publisher calls = %d, want 5", pub.calls)
	}
}

func TestDecodeLearningContext(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"string ids", `{"sessionId": "S1", "userId": "u1"}`, false},
		{"numeric ids", `{"sessionId": 12, "userId": 34}`, false},
		{"missing session", `{"userId": "u1"}`, true},
		{"missing user", `{"sessionId": "S1"}`, true},
		{"negative count", `{"sessionId": "S1", "userId": "u1", "wrongAnswers": -1}`, true},
		{"not json", `<xml/>`, true},
		{"object session id", `{"sessionId": {}, "userId": "u1"}`, true},
		{"boolean user id", `{"sessionId": "S1", "userId": true}`, true},
		{"array session id", `{"sessionId": [1], "userId": "u1"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLearningContext([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeLearningContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(context.Background(), model.MessagingConfig{Transport: TransportGoChannel}, testLogger())
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if tr.Publisher == nil || tr.Subscriber == nil {
		t.Error("gochannel transport should provide both directions")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if _, err := NewTransport(context.Background(), model.MessagingConfig{Transport: "smoke-signals"}, testLogger()); err == nil {
		t.Error("unknown transport should fail")
	}
}
