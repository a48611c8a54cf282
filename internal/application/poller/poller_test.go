package poller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicum-bots/homework-status-bot/internal/domain/homework"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fetchResult struct {
	body any
	err  error
}

// scriptedFetcher returns queued results in order and records timestamps.
type scriptedFetcher struct {
	results    []fetchResult
	timestamps []int64
}

func (f *scriptedFetcher) Fetch(_ context.Context, ts int64) (any, error) {
	f.timestamps = append(f.timestamps, ts)
	if len(f.results) == 0 {
		return map[string]any{"homeworks": []any{}}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.body, r.err
}

// recordingNotifier records every message and fails while failing is set.
type recordingNotifier struct {
	sent    []string
	failing bool
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.sent = append(n.sent, text)
	if n.failing {
		return errors.New("telegram unavailable")
	}
	return nil
}

func body(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func newPoller(f Fetcher, n Notifier, initial int64) *Poller {
	return New(Config{Interval: time.Minute, InitialTimestamp: initial}, f, n)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCENARIOS
// ══════════════════════════════════════════════════════════════════════════════

func TestRunOnce_ApprovedVerdict(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{body: body(t, `{"homeworks": [{"homework_name": "proj1", "status": "approved"}], "current_date": 1000}`)},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	result := p.RunOnce(context.Background())

	require.NoError(t, result.Err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, `Изменился статус проверки работы "proj1". Работа проверена: ревьюеру всё понравилось. Ура!`, notifier.sent[0])
	assert.Equal(t, int64(1000), p.State().LastTimestamp)
	assert.True(t, result.Delivered)
	assert.NotEmpty(t, result.CycleID)
	assert.Equal(t, []int64{0}, fetcher.timestamps)
}

func TestRunOnce_OnlyFirstRecordIsReported(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{body: body(t, `{"homeworks": [
			{"homework_name": "proj2", "status": "rejected"},
			{"homework_name": "proj1", "status": "approved"}
		], "current_date": 2000}`)},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	p.RunOnce(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "proj2")
}

func TestRunOnce_EmptyHomeworks(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{body: body(t, `{"homeworks": []}`)}}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 500)

	result := p.RunOnce(context.Background())

	require.NoError(t, result.Err)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, int64(500), p.State().LastTimestamp)
}

func TestRunOnce_EmptyHomeworksDoesNotAdvanceEvenWithCurrentDate(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{body: body(t, `{"homeworks": [], "current_date": 9000}`)}}}
	p := newPoller(fetcher, &recordingNotifier{}, 500)

	p.RunOnce(context.Background())

	assert.Equal(t, int64(500), p.State().LastTimestamp)
}

func TestRunOnce_FailedNotificationKeepsTimestamp(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{body: body(t, `{"homeworks": [{"homework_name": "proj1", "status": "reviewing"}], "current_date": 1000}`)},
		{body: body(t, `{"homeworks": [{"homework_name": "proj1", "status": "reviewing"}], "current_date": 1100}`)},
	}}
	notifier := &recordingNotifier{failing: true}
	p := newPoller(fetcher, notifier, 100)

	result := p.RunOnce(context.Background())

	assert.False(t, result.Delivered)
	assert.NoError(t, result.Err)
	assert.Equal(t, int64(100), p.State().LastTimestamp)
	assert.Nil(t, p.State().LastError)

	// The same window is re-queried and advances once delivery works.
	notifier.failing = false
	p.RunOnce(context.Background())

	assert.Equal(t, []int64{100, 100}, fetcher.timestamps)
	assert.Equal(t, int64(1100), p.State().LastTimestamp)
}

func TestRunOnce_TimestampNeverDecreases(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{body: body(t, `{"homeworks": [{"homework_name": "proj1", "status": "approved"}], "current_date": 50}`)},
	}}
	p := newPoller(fetcher, &recordingNotifier{}, 100)

	p.RunOnce(context.Background())

	assert.Equal(t, int64(100), p.State().LastTimestamp)
}

func TestRunOnce_FailedFetchKeepsTimestamp(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.ConnectivityError{Target: "https://example.test", Err: context.DeadlineExceeded}},
	}}
	p := newPoller(fetcher, &recordingNotifier{}, 700)

	result := p.RunOnce(context.Background())

	assert.ErrorIs(t, result.Err, homework.ErrConnectivity)
	assert.Equal(t, int64(700), p.State().LastTimestamp)
}

func TestRunOnce_UnexpectedStatus(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{err: &homework.UnexpectedStatusError{Code: 503}}}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	result := p.RunOnce(context.Background())

	assert.ErrorIs(t, result.Err, homework.ErrUnexpectedStatus)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "503")
	assert.True(t, strings.HasPrefix(notifier.sent[0], "Сбой в работе программы: "))

	state := p.State()
	require.NotNil(t, state.LastError)
	assert.Equal(t, homework.Signature{Kind: "unexpected_status", Detail: "503"}, *state.LastError)
}

func TestRunOnce_RemoteErrorEnvelope(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.RemoteError{Key: "code", Value: "not_authenticated"}},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	result := p.RunOnce(context.Background())

	assert.ErrorIs(t, result.Err, homework.ErrRemote)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "code")
	assert.Contains(t, notifier.sent[0], "not_authenticated")
}

func TestRunOnce_SchemaAndStatusErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind error
	}{
		{"missing homeworks", `{"current_date": 1}`, homework.ErrSchema},
		{"homeworks not array", `{"homeworks": "nope"}`, homework.ErrSchema},
		{"record without status", `{"homeworks": [{"homework_name": "proj1"}]}`, homework.ErrSchema},
		{"unknown status", `{"homeworks": [{"homework_name": "proj1", "status": "lost"}], "current_date": 10}`, homework.ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{results: []fetchResult{{body: body(t, tt.body)}}}
			notifier := &recordingNotifier{}
			p := newPoller(fetcher, notifier, 5)

			result := p.RunOnce(context.Background())

			assert.ErrorIs(t, result.Err, tt.kind)
			assert.Len(t, notifier.sent, 1)
			assert.Equal(t, int64(5), p.State().LastTimestamp)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DUPLICATE SUPPRESSION
// ══════════════════════════════════════════════════════════════════════════════

func TestRunOnce_IdenticalErrorsNotifiedOnce(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{err: &homework.UnexpectedStatusError{Code: 503}},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	first := p.RunOnce(context.Background())
	second := p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Len(t, notifier.sent, 1)
	assert.False(t, first.Suppressed)
	assert.True(t, second.Suppressed)
}

func TestRunOnce_SameConditionDifferentWordingSuppressed(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.MalformedResponseError{Err: errors.New("invalid character '<' looking for beginning of value")}},
		{err: &homework.MalformedResponseError{Err: errors.New("unexpected EOF")}},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Len(t, notifier.sent, 1)
}

func TestRunOnce_DistinctErrorsNotifiedEach(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{err: &homework.UnexpectedStatusError{Code: 500}},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[0], "503")
	assert.Contains(t, notifier.sent[1], "500")
}

func TestRunOnce_UndeliveredErrorIsRetried(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{err: &homework.UnexpectedStatusError{Code: 503}},
	}}
	notifier := &recordingNotifier{failing: true}
	p := newPoller(fetcher, notifier, 0)

	p.RunOnce(context.Background())
	assert.Nil(t, p.State().LastError)

	notifier.failing = false
	p.RunOnce(context.Background())

	assert.Len(t, notifier.sent, 2)
	require.NotNil(t, p.State().LastError)
}

func TestRunOnce_SuccessDoesNotResetLastError(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{body: body(t, `{"homeworks": []}`)},
		{err: &homework.UnexpectedStatusError{Code: 503}},
	}}
	notifier := &recordingNotifier{}
	p := newPoller(fetcher, notifier, 0)

	for i := 0; i < 3; i++ {
		p.RunOnce(context.Background())
	}

	assert.Len(t, notifier.sent, 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOOP
// ══════════════════════════════════════════════════════════════════════════════

func TestRun_SleepsAfterEveryCycleAndStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &homework.UnexpectedStatusError{Code: 503}},
		{body: body(t, `{"homeworks": [{"homework_name": "proj1", "status": "approved"}], "current_date": 1000}`)},
	}}
	notifier := &recordingNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	p := New(Config{
		Interval:         42 * time.Second,
		InitialTimestamp: 1,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				cancel()
			}
			return ctx.Err()
		},
	}, fetcher, notifier)

	err := p.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{42 * time.Second, 42 * time.Second, 42 * time.Second}, sleeps)
	assert.Equal(t, []int64{1, 1, 1000}, fetcher.timestamps)
	assert.Len(t, notifier.sent, 2)
	assert.Equal(t, int64(1000), p.State().LastTimestamp)
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, &scriptedFetcher{}, &recordingNotifier{})

	assert.Equal(t, DefaultInterval, p.interval)
	assert.NotNil(t, p.sleep)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestState_ReturnsCopy(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{err: &homework.UnexpectedStatusError{Code: 503}}}}
	p := newPoller(fetcher, &recordingNotifier{}, 0)
	p.RunOnce(context.Background())

	state := p.State()
	state.LastError.Detail = "mutated"

	assert.Equal(t, "503", p.State().LastError.Detail)
}
