package usecase

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pacenotes/internal/clips"
	"pacenotes/internal/domain"
	"pacenotes/internal/protocol"
)

var testFormat = domain.AudioFormat{Name: "opus", Codec: "libopus", Container: "ogg", Extension: "ogg", Bitrate: "32k"}

func newTestController() (*SessionController, *fakeEventSink, *fakeDispatcher) {
	events := &fakeEventSink{}
	jobs := &fakeDispatcher{}
	controller := NewSessionController(events, jobs, nil, Config{Format: testFormat, Version: "test"})
	return controller, events, jobs
}

func handleAll(c *SessionController, text string) []domain.SideEffect {
	var effects []domain.SideEffect
	for _, command := range protocol.Parse([]byte(text)) {
		effects = append(effects, c.Handle(command))
	}
	return effects
}

func TestInitialStatus(t *testing.T) {
	t.Parallel()

	controller, _, _ := newTestController()
	status := controller.Status()
	if status.Counter != -1 || status.Recording || status.IsConnected || status.IsHosting {
		t.Fatalf("unexpected initial status: %+v", status)
	}
	if status.HostingStatus != domain.HostingStarting || status.Version != "test" {
		t.Fatalf("unexpected initial hosting/version: %+v", status)
	}
}

func TestRecordStartRequiresBothPaths(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"neither":       "record_start",
		"mission only":  "mission M\nrecord_start",
		"output only":   "data_path O\nrecord_start",
		"mission ended": "mission M\ndata_path O\nmission_end\nrecord_start",
	}
	for name, script := range cases {
		name := name
		script := script
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			controller, events, _ := newTestController()
			effects := handleAll(controller, script)

			last := effects[len(effects)-1]
			if last.Kind != domain.SideEffectStatusChanged {
				t.Fatalf("expected rejected start to only change status, got %s", last.Kind)
			}
			status := controller.Status()
			if status.Recording || status.Counter != -1 {
				t.Fatalf("rejected record_start changed state: %+v", status)
			}
			if len(events.snapshotStarts()) != 0 {
				t.Fatalf("rejected record_start must not request recording")
			}
			errs := events.snapshotErrors()
			if len(errs) == 0 || errs[len(errs)-1].code != domain.ErrorCodeCommand {
				t.Fatalf("expected command error event")
			}
		})
	}
}

func TestRecordStartIncrementsIndex(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	effects := handleAll(controller, "mission M\ndata_path O\nrecord_start\nrecord_stop\nrecord_start")

	if effects[2].Kind != domain.SideEffectStartRecordingRequested || effects[2].ClipIndex != 0 {
		t.Fatalf("unexpected first start effect: %+v", effects[2])
	}
	if effects[3].Kind != domain.SideEffectStopRecordingRequested || effects[3].ClipIndex != 0 {
		t.Fatalf("unexpected stop effect: %+v", effects[3])
	}
	if effects[4].ClipIndex != 1 {
		t.Fatalf("expected second clip index 1, got %d", effects[4].ClipIndex)
	}

	status := controller.Status()
	if !status.Recording || status.Counter != 1 || status.MissionPath != "M" || status.OutputPath != "O" {
		t.Fatalf("unexpected status: %+v", status)
	}
	got := events.snapshotStarts()
	if len(got) != 2 || got[0].ClipIndex != 0 || got[1].ClipIndex != 1 {
		t.Fatalf("unexpected start intents: %v", got)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("each recording needs its own id: %v", got)
	}
	if effects[2].RecordingID != got[0].ID || effects[3].RecordingID != got[0].ID {
		t.Fatalf("start and stop effects must name the same recording: %+v %+v", effects[2], effects[3])
	}
	if stops := events.snapshotStops(); len(stops) != 1 || stops[0] != got[0] {
		t.Fatalf("stop intent must carry the active recording: %v", stops)
	}
}

func TestResetCount(t *testing.T) {
	t.Parallel()

	controller, _, _ := newTestController()
	handleAll(controller, "mission M\ndata_path O\nrecord_start\nrecord_stop\nreset_count 5")
	if got := controller.Status().Counter; got != 4 {
		t.Fatalf("expected counter 4 after reset_count 5, got %d", got)
	}

	effects := handleAll(controller, "record_start")
	if effects[0].ClipIndex != 5 {
		t.Fatalf("expected next clip index 5, got %d", effects[0].ClipIndex)
	}

	handleAll(controller, "reset_count")
	if got := controller.Status().Counter; got != -1 {
		t.Fatalf("expected counter -1 after bare reset_count, got %d", got)
	}

	handleAll(controller, "reset_count abc")
	if got := controller.Status().Counter; got != -1 {
		t.Fatalf("expected counter -1 after invalid reset_count, got %d", got)
	}
}

func TestRecordStopIsIdempotent(t *testing.T) {
	t.Parallel()

	once, _, _ := newTestController()
	twice, _, _ := newTestController()
	handleAll(once, "mission M\ndata_path O\nrecord_start\nrecord_stop")
	handleAll(twice, "mission M\ndata_path O\nrecord_start\nrecord_stop\nrecord_stop")

	if once.Status() != twice.Status() {
		t.Fatalf("expected identical state, got %+v vs %+v", once.Status(), twice.Status())
	}
}

func TestMissionEndKeepsActiveRecording(t *testing.T) {
	t.Parallel()

	controller, events, jobs := newTestController()
	handleAll(controller, "mission M\ndata_path O\nrecord_start\nmission_end")

	status := controller.Status()
	if !status.Recording || status.MissionPath != "" {
		t.Fatalf("expected recording to continue with mission cleared: %+v", status)
	}

	handleAll(controller, "record_stop")
	if err := controller.SubmitRecording(events.snapshotStarts()[0].ID, []byte("audio")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	got := jobs.snapshot()
	if len(got) != 1 || got[0].Target.MissionPath != "M" || got[0].Target.OutputRoot != "O" {
		t.Fatalf("expected job to keep the target captured at start: %+v", got)
	}
}

func TestUnknownCommandOnlyBroadcastsStatus(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	before := controller.Status()
	effects := handleAll(controller, "launch_rockets now")
	if effects[0].Kind != domain.SideEffectStatusChanged {
		t.Fatalf("unexpected effect: %+v", effects[0])
	}

	after := controller.Status()
	after.LastCommand = before.LastCommand
	if after != before {
		t.Fatalf("unknown command changed state: %+v", after)
	}
	if len(events.snapshotStatuses()) != 1 {
		t.Fatalf("expected one status broadcast")
	}
}

func TestEveryCommandBroadcastsSnapshot(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	handleAll(controller, "mission M\ndata_path O\nrecord_start\nbogus\nrecord_stop\nreset_count 3")

	statuses := events.snapshotStatuses()
	if len(statuses) != 6 {
		t.Fatalf("expected a broadcast per command, got %d", len(statuses))
	}
	last := statuses[len(statuses)-1]
	if last != controller.Status() {
		t.Fatalf("last broadcast must reflect post-batch state: %+v", last)
	}
	if last.LastCommand != "reset_count 3" || last.Counter != 2 {
		t.Fatalf("unexpected final broadcast: %+v", last)
	}
	if statuses[2].Recording != true || statuses[2].Counter != 0 {
		t.Fatalf("unexpected broadcast after record_start: %+v", statuses[2])
	}
}

func TestApplyLineEchoesBeforeApplying(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	controller.ApplyLine("mission M")
	controller.ApplyLine("")

	log := events.snapshotLog()
	want := []string{"command:mission M", "status", "command:"}
	if len(log) != len(want) {
		t.Fatalf("unexpected event log: %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("unexpected event order: %v", log)
		}
	}
}

func TestClipIndexProperties(t *testing.T) {
	t.Parallel()

	verbs := []string{"mission M", "data_path O", "record_start", "record_stop", "mission_end", "reset_count", "reset_count 7", "noise"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		controller, _, _ := newTestController()
		prev := controller.Status()
		for step := 0; step < 200; step++ {
			line := verbs[rng.Intn(len(verbs))]
			command, _ := protocol.ParseLine(line)
			effect := controller.Handle(command)
			next := controller.Status()

			switch {
			case command.Verb == domain.VerbResetCount:
			case effect.Kind == domain.SideEffectStartRecordingRequested:
				if next.Counter != prev.Counter+1 {
					t.Fatalf("accepted start must increment by one: %d -> %d", prev.Counter, next.Counter)
				}
			default:
				if next.Counter != prev.Counter {
					t.Fatalf("%q changed counter %d -> %d", line, prev.Counter, next.Counter)
				}
			}
			if command.Verb == domain.VerbRecordStart && effect.Kind != domain.SideEffectStartRecordingRequested {
				if next.Recording != prev.Recording {
					t.Fatalf("rejected start changed recording flag")
				}
			}
			prev = next
		}
	}
}

func TestSetHostingAndConnected(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	controller.SetHosting(domain.HostingRetryingBind)
	controller.SetHosting(domain.HostingRetryingBind)
	controller.SetHosting(domain.HostingListening)
	controller.SetConnected(true)

	status := controller.Status()
	if !status.IsHosting || status.HostingStatus != domain.HostingListening || !status.IsConnected {
		t.Fatalf("unexpected status: %+v", status)
	}
	if got := len(events.snapshotStatuses()); got != 3 {
		t.Fatalf("expected 3 broadcasts (duplicate hosting status suppressed), got %d", got)
	}
}

func TestSubmitRecordingErrors(t *testing.T) {
	t.Parallel()

	controller, events, jobs := newTestController()
	if err := controller.SubmitRecording("missing", []byte("x")); !errors.Is(err, ErrUnknownRecording) {
		t.Fatalf("expected ErrUnknownRecording, got %v", err)
	}

	handleAll(controller, "mission M\ndata_path O\nrecord_start")
	id := events.snapshotStarts()[0].ID
	if err := controller.SubmitRecording(id, []byte("x")); !errors.Is(err, ErrStillRecording) {
		t.Fatalf("expected ErrStillRecording, got %v", err)
	}

	handleAll(controller, "record_stop")
	if err := controller.SubmitRecording(id, nil); !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("expected ErrEmptyRecording, got %v", err)
	}
	if err := controller.SubmitRecording(id, []byte("x")); !errors.Is(err, ErrUnknownRecording) {
		t.Fatalf("expected recording to be consumed, got %v", err)
	}
	if len(jobs.snapshot()) != 0 {
		t.Fatalf("expected no jobs")
	}
}

func TestSubmitRecordingCapturesIndexAndCopiesAudio(t *testing.T) {
	t.Parallel()

	controller, events, jobs := newTestController()
	handleAll(controller, "mission M\ndata_path O\nrecord_start\nrecord_stop\nrecord_start")

	audio := []byte("first-clip")
	if err := controller.SubmitRecording(events.snapshotStarts()[0].ID, audio); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	audio[0] = 'X'

	got := jobs.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one job, got %d", len(got))
	}
	job := got[0]
	if job.Target.ClipIndex != 0 || string(job.Input) != "first-clip" || job.ID == "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Format != testFormat {
		t.Fatalf("unexpected job format: %+v", job.Format)
	}
}

func TestLateAudioKeepsTargetAfterCounterReset(t *testing.T) {
	t.Parallel()

	controller, events, jobs := newTestController()
	handleAll(controller, "mission A\ndata_path O\nrecord_start\nrecord_stop")
	handleAll(controller, "mission_end\nmission B\nreset_count\nrecord_start")

	starts := events.snapshotStarts()
	if len(starts) != 2 || starts[0].ClipIndex != 0 || starts[1].ClipIndex != 0 {
		t.Fatalf("expected both recordings to use clip index 0: %v", starts)
	}

	// A's buffer arrives while B is still recording.
	if err := controller.SubmitRecording(starts[0].ID, []byte("A-audio")); err != nil {
		t.Fatalf("submit for mission A failed: %v", err)
	}
	handleAll(controller, "record_stop")
	if err := controller.SubmitRecording(starts[1].ID, []byte("B-audio")); err != nil {
		t.Fatalf("submit for mission B failed: %v", err)
	}

	got := jobs.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected two jobs, got %d", len(got))
	}
	wantA := domain.ClipTarget{OutputRoot: "O", MissionPath: "A", ClipIndex: 0}
	wantB := domain.ClipTarget{OutputRoot: "O", MissionPath: "B", ClipIndex: 0}
	if string(got[0].Input) != "A-audio" || got[0].Target != wantA {
		t.Fatalf("mission A audio saved to the wrong target: %+v", got[0].Target)
	}
	if string(got[1].Input) != "B-audio" || got[1].Target != wantB {
		t.Fatalf("mission B audio saved to the wrong target: %+v", got[1].Target)
	}
}

func TestLateAudioAfterResetAndSecondStop(t *testing.T) {
	t.Parallel()

	controller, events, jobs := newTestController()
	handleAll(controller, "mission A\ndata_path O\nrecord_start\nrecord_stop\nmission_end\nmission B\nreset_count\nrecord_start\nrecord_stop")

	starts := events.snapshotStarts()
	if err := controller.SubmitRecording(starts[0].ID, []byte("A-audio")); err != nil {
		t.Fatalf("submit for mission A failed: %v", err)
	}
	if err := controller.SubmitRecording(starts[1].ID, []byte("B-audio")); err != nil {
		t.Fatalf("submit for mission B failed: %v", err)
	}

	got := jobs.snapshot()
	if len(got) != 2 || got[0].Target.MissionPath != "A" || got[1].Target.MissionPath != "B" {
		t.Fatalf("unexpected job targets: %+v", got)
	}
}

func TestPendingRecordingsAreBounded(t *testing.T) {
	t.Parallel()

	controller, events, _ := newTestController()
	handleAll(controller, "mission M\ndata_path O")
	for i := 0; i < maxPendingRecordings+3; i++ {
		handleAll(controller, "record_start\nrecord_stop")
	}

	starts := events.snapshotStarts()
	for _, recording := range starts[:3] {
		if err := controller.SubmitRecording(recording.ID, []byte("x")); !errors.Is(err, ErrUnknownRecording) {
			t.Fatalf("expected oldest recording %d to be forgotten, got %v", recording.ClipIndex, err)
		}
	}
	for _, recording := range starts[3:] {
		if err := controller.SubmitRecording(recording.ID, []byte("x")); err != nil {
			t.Fatalf("recording %d should still be pending: %v", recording.ClipIndex, err)
		}
	}
}

func TestEndToEndClipPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	events := &fakeEventSink{}
	transcoder := &fakeTranscoder{prefix: "encoded:"}
	pipeline := NewPipeline(transcoder, clips.NewWriter("", "", nil), events, nil, 0)
	controller := NewSessionController(events, pipeline, nil, Config{Format: testFormat})

	handleAll(controller, "mission M\ndata_path "+root+"\nrecord_start\nrecord_stop")
	if err := controller.SubmitRecording(events.snapshotStarts()[0].ID, []byte("B")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	pipeline.Wait()

	want := filepath.Join(root, "M", "pacenotes", "pacenote_0.ogg")
	contents, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected clip at %s: %v", want, err)
	}
	if string(contents) != "encoded:B" {
		t.Fatalf("unexpected clip contents: %q", string(contents))
	}

	saved := events.snapshotSaved()
	if len(saved) != 1 || saved[0].Path != want || saved[0].ClipIndex != 0 {
		t.Fatalf("expected confirmation for saved clip: %+v", saved)
	}
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []domain.TranscodeJob
}

func (f *fakeDispatcher) Dispatch(job domain.TranscodeJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *fakeDispatcher) snapshot() []domain.TranscodeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TranscodeJob, len(f.jobs))
	copy(out, f.jobs)
	return out
}

type fakeTranscoder struct {
	prefix string
	err    error
	mu     sync.Mutex
	calls  int
}

func (f *fakeTranscoder) Transcode(_ context.Context, input []byte, _ domain.AudioFormat) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(f.prefix), input...), nil
}

type fakeStore struct {
	mu     sync.Mutex
	writes []domain.ClipTarget
	err    error
}

func (f *fakeStore) Write(_ context.Context, _ []byte, target domain.ClipTarget, ext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.writes = append(f.writes, target)
	return filepath.Join(target.OutputRoot, target.MissionPath, "pacenotes", "clip."+ext), nil
}

func (f *fakeStore) snapshot() []domain.ClipTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ClipTarget, len(f.writes))
	copy(out, f.writes)
	return out
}

type fakeEventSink struct {
	mu sync.Mutex

	log      []string
	statuses []domain.Status
	starts   []domain.Recording
	stops    []domain.Recording
	saved    []domain.ClipResult
	errors   []errEvent
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) StatusChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "status")
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) CommandReceived(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "command:"+line)
}

func (f *fakeEventSink) RecordingStartRequested(recording domain.Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "start")
	f.starts = append(f.starts, recording)
}

func (f *fakeEventSink) RecordingStopRequested(recording domain.Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "stop")
	f.stops = append(f.stops, recording)
}

func (f *fakeEventSink) ClipSaved(result domain.ClipResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "saved")
	f.saved = append(f.saved, result)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "error:"+string(code))
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeEventSink) snapshotStatuses() []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Status(nil), f.statuses...)
}

func (f *fakeEventSink) snapshotStarts() []domain.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Recording(nil), f.starts...)
}

func (f *fakeEventSink) snapshotStops() []domain.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Recording(nil), f.stops...)
}

func (f *fakeEventSink) snapshotSaved() []domain.ClipResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ClipResult(nil), f.saved...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}
