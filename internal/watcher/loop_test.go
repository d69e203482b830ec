package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/homework"
	"hwbot/internal/reviewapi"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type fetchCall struct {
	from *int64
}

type fakeFetcher struct {
	mu      sync.Mutex
	results []*homework.PollResult
	errs    []error
	calls   []fetchCall
	panicAt int // 1-based call index, 0 = never
}

func (f *fakeFetcher) FetchStatuses(_ context.Context, from *int64) (*homework.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{from: copyTS(from)})
	i := len(f.calls) - 1
	if f.panicAt == i+1 {
		panic("boom")
	}
	var (
		res *homework.PollResult
		err error
	)
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	to    []kit.ChatTarget
	fail  error
	failN int // fail the first failN sends
}

func (s *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return kit.MessageRef{}, s.fail
	}
	s.sent = append(s.sent, text)
	s.to = append(s.to, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(s.sent)}, nil
}

// recordingSleeper records requested delays and cancels after n sleeps.
type recordingSleeper struct {
	delays []time.Duration
	n      int
	cancel context.CancelFunc
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	if len(r.delays) >= r.n {
		r.cancel()
		return ctx.Err()
	}
	return nil
}

func ts(v int64) *int64 { return &v }

func name(s string) *string { return &s }

var chat = kit.ChatTarget{ChatID: 4242}

func fixedClock() time.Time { return time.Unix(1000, 0) }

func newLoop(f Fetcher, s kit.Sender, opts ...Option) *Loop {
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(Config{Chat: chat}, f, s, logx.Nop(), opts...)
}

func TestCursorStartsAtNow(t *testing.T) {
	t.Parallel()
	l := newLoop(&fakeFetcher{}, &fakeSender{})
	require.NotNil(t, l.Cursor())
	assert.Equal(t, int64(1000), *l.Cursor())
}

func TestRunOnceApprovedExample(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{
		Homeworks:   []homework.Record{{HomeworkName: name("Project 1"), Status: "approved"}},
		CurrentDate: ts(2000),
	}}}
	s := &fakeSender{}
	l := newLoop(f, s, WithStartCursor(1000))

	out, err := l.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, f.calls, 1)
	assert.Equal(t, int64(1000), *f.calls[0].from)
	require.Equal(t, []string{"У вас проверили работу \"Project 1\"!\n\nРевьюеру всё понравилось, можно приступать к следующему уроку."}, s.sent)
	assert.Equal(t, chat, s.to[0])
	assert.True(t, out.Notified)
	assert.Equal(t, "Project 1", out.Homework)
	assert.Equal(t, int64(2000), *l.Cursor())
}

func TestRunOnceUndefinedStatusKeepsCursor(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{
		Homeworks:   []homework.Record{{HomeworkName: name("Project 2"), Status: "pending"}},
		CurrentDate: ts(3000),
	}}}
	s := &fakeSender{}
	l := newLoop(f, s, WithStartCursor(2000))

	_, err := l.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageFormat, StageOf(err))

	var ue *homework.UndefinedStatusError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, homework.Status("pending"), ue.Status)
	assert.Empty(t, s.sent)
	assert.Equal(t, int64(2000), *l.Cursor())
}

func TestRunOnceEmptyListAdvancesWithoutNotify(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{Homeworks: nil, CurrentDate: ts(1500)}}}
	s := &fakeSender{}
	l := newLoop(f, s)

	out, err := l.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Empty(t, s.sent)
	assert.Equal(t, int64(1500), *l.Cursor())
}

func TestRunOnceOnlyFirstRecord(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{
		Homeworks: []homework.Record{
			{HomeworkName: name("newest"), Status: "reviewing"},
			{HomeworkName: name("older"), Status: "approved"},
			{HomeworkName: name("broken"), Status: "???"},
		},
		CurrentDate: ts(1100),
	}}}
	s := &fakeSender{}
	l := newLoop(f, s)

	_, err := l.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0], "newest")
	assert.NotContains(t, s.sent[0], "older")
}

func TestRunOnceMissingCurrentDateClearsCursor(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{}, {}}}
	l := newLoop(f, &fakeSender{})

	_, err := l.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, l.Cursor())

	_, err = l.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f.calls[1].from)
}

func TestRunOnceFetchErrorIsPollStage(t *testing.T) {
	t.Parallel()
	fe := &reviewapi.FetchError{Kind: reviewapi.KindConnection, Err: errors.New("refused")}
	f := &fakeFetcher{errs: []error{fe}}
	l := newLoop(f, &fakeSender{}, WithStartCursor(7))

	_, err := l.RunOnce(context.Background())
	assert.Equal(t, StagePoll, StageOf(err))
	assert.ErrorIs(t, err, fe)
	assert.Equal(t, int64(7), *l.Cursor())
}

func TestRunOnceNilResultIsPollError(t *testing.T) {
	t.Parallel()
	l := newLoop(&fakeFetcher{}, &fakeSender{})
	_, err := l.RunOnce(context.Background())
	assert.Equal(t, StagePoll, StageOf(err))
}

func TestRunOnceSendErrorKeepsCursor(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{{
		Homeworks:   []homework.Record{{HomeworkName: name("a"), Status: "approved"}},
		CurrentDate: ts(5000),
	}}}
	s := &fakeSender{fail: errors.New("telegram down"), failN: 1}
	l := newLoop(f, s, WithStartCursor(10))

	_, err := l.RunOnce(context.Background())
	assert.Equal(t, StageNotify, StageOf(err))
	assert.Equal(t, int64(10), *l.Cursor())
}

func TestRunSuccessWaitsInterval(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{
		{Homeworks: []homework.Record{{HomeworkName: name("a"), Status: "approved"}}, CurrentDate: ts(2000)},
		{CurrentDate: ts(2300)},
	}}
	s := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &recordingSleeper{n: 2, cancel: cancel}

	l := newLoop(f, s, WithSleeper(rs.sleep))
	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, rs.delays)
	assert.Len(t, s.sent, 1)
	assert.Equal(t, int64(2300), *l.Cursor())
}

func TestRunErrorReportsAndRetriesAfterShortDelay(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{results: []*homework.PollResult{
		{Homeworks: []homework.Record{{HomeworkName: name("Project 2"), Status: "pending"}}, CurrentDate: ts(3000)},
		{Homeworks: []homework.Record{{HomeworkName: name("Project 2"), Status: "approved"}}, CurrentDate: ts(3100)},
	}}
	s := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &recordingSleeper{n: 2, cancel: cancel}

	l := newLoop(f, s, WithStartCursor(2000), WithSleeper(rs.sleep))
	_ = l.Run(ctx)

	assert.Equal(t, []time.Duration{DefaultErrorDelay, DefaultInterval}, rs.delays)
	require.Len(t, s.sent, 2)
	assert.Equal(t, "Бот столкнулся с ошибкой: В ответе пришел неизвестный статус pending", s.sent[0])
	assert.Contains(t, s.sent[1], "Project 2")

	// The failing iteration re-polled from the unchanged cursor.
	require.Len(t, f.calls, 2)
	assert.Equal(t, int64(2000), *f.calls[1].from)
	assert.Equal(t, int64(3100), *l.Cursor())
}

func TestRunSurvivesPanicAndUnsentNotice(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{panicAt: 1, results: []*homework.PollResult{nil, {CurrentDate: ts(9)}}}
	s := &fakeSender{fail: errors.New("down"), failN: 1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &recordingSleeper{n: 2, cancel: cancel}

	var beats int
	l := newLoop(f, s, WithSleeper(rs.sleep), WithHeartbeat(func() { beats++ }))
	_ = l.Run(ctx)

	assert.Equal(t, []time.Duration{DefaultErrorDelay, DefaultInterval}, rs.delays)
	assert.Equal(t, 2, beats)
	assert.Empty(t, s.sent)
	assert.Equal(t, int64(9), *l.Cursor())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{}
	err := newLoop(f, &fakeSender{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestRunCustomSchedule(t *testing.T) {
	t.Parallel()
	sched, err := ParseSchedule("*/10 * * * *")
	require.NoError(t, err)

	f := &fakeFetcher{results: []*homework.PollResult{{CurrentDate: ts(1)}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &recordingSleeper{n: 1, cancel: cancel}

	clock := func() time.Time { return time.Date(2026, 1, 1, 10, 3, 0, 0, time.UTC) }
	l := New(Config{Chat: chat, Interval: sched}, f, &fakeSender{}, logx.Nop(), WithClock(clock), WithSleeper(rs.sleep))
	_ = l.Run(ctx)

	assert.Equal(t, []time.Duration{7 * time.Minute}, rs.delays)
}

func TestReportLogsTraceForEveryKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{"undefined status", &StageError{Stage: StageFormat, Err: &homework.UndefinedStatusError{Status: "pending"}}, "undefined homework status"},
		{"fetch", &StageError{Stage: StagePoll, Err: &reviewapi.FetchError{Kind: reviewapi.KindTimeout, Err: context.DeadlineExceeded}}, "review api request failed"},
		{"notify", &StageError{Stage: StageNotify, Err: errors.New("telegram down")}, "notification failed"},
		{"panic", &StageError{Stage: StagePanic, Err: errors.New("boom"), Stack: "main.crash()"}, "iteration panicked"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			s := &fakeSender{}
			l := New(Config{Chat: chat}, &fakeFetcher{}, s, logx.NewWriter(&buf, "debug"), WithClock(fixedClock))

			l.report(context.Background(), tc.err)

			var rec map[string]any
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), buf.String())
			assert.Equal(t, "error", rec["level"])
			assert.Equal(t, tc.msg, rec["message"])
			stack, _ := rec["stack"].(string)
			assert.NotEmpty(t, stack)
			if tc.name == "panic" {
				assert.Equal(t, "main.crash()", stack)
			} else {
				assert.Contains(t, stack, "watcher.(*Loop).report")
			}
			require.Len(t, s.sent, 1)
			assert.Equal(t, failurePrefix+cause(tc.err).Error(), s.sent[0])
		})
	}
}
