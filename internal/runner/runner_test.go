package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/a11yjobs/internal/ai"
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/posting"
)

// --- Fakes ---

// memStore is an in-memory ledger store. Save snapshots a copy and appends
// "save" to events when set.
type memStore struct {
	ledger  model.Ledger
	saves   int
	saveErr error
	events  *[]string
}

func (s *memStore) Load() (model.Ledger, error) {
	out := model.Ledger{}
	for k, v := range s.ledger {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(l model.Ledger) error {
	if s.events != nil {
		*s.events = append(*s.events, "save")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.ledger = model.Ledger{}
	for k, v := range l {
		s.ledger[k] = v
	}
	return nil
}

type fakeAnalyzer struct {
	calls []model.Posting
	err   error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, p model.Posting) (string, error) {
	a.calls = append(a.calls, p)
	if a.err != nil {
		return "", a.err
	}
	return "analysis of " + strings.SplitN(p.Text, "\n", 2)[0], nil
}

// recordingNotifier records every message and reports per-destination results.
type recordingNotifier struct {
	messages []string
	fail     map[string]bool
	dests    []string
	events   *[]string
}

func (n *recordingNotifier) Deliver(_ context.Context, text string) []model.DeliveryResult {
	if n.events != nil {
		*n.events = append(*n.events, "deliver")
	}
	n.messages = append(n.messages, text)
	dests := n.dests
	if len(dests) == 0 {
		dests = []string{"C1"}
	}
	var out []model.DeliveryResult
	for _, d := range dests {
		if n.fail[d] {
			out = append(out, model.DeliveryResult{Destination: d, Err: errors.New("channel_not_found")})
			continue
		}
		out = append(out, model.DeliveryResult{Destination: d, Delivered: true})
	}
	return out
}

type memHistory struct {
	records []model.DeliveryRecord
}

func (h *memHistory) Cleanup(time.Duration) error { return nil }

func (h *memHistory) Record(rec model.DeliveryRecord) error {
	h.records = append(h.records, rec)
	return nil
}

type fakeSummarizer struct {
	digest ai.Digest
	err    error
	day    time.Time
}

func (s *fakeSummarizer) Summarize(_ context.Context, day time.Time) (ai.Digest, error) {
	s.day = day
	return s.digest, s.err
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, refs []model.Reference) []model.Reference {
	out := make([]model.Reference, len(refs))
	for i, r := range refs {
		out[i] = model.Reference{URL: r.URL + "/final", Title: "Page " + r.URL}
	}
	return out
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}
	return loc
}

func writeSummary(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recruit.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("writing summary: %v", err)
	}
	return path
}

func newAnalysisRunner(t *testing.T, store *memStore, an *fakeAnalyzer, n *recordingNotifier, summaryPath string) *AnalysisRunner {
	t.Helper()
	id, err := posting.NewIdentifier(posting.StrategyName)
	if err != nil {
		t.Fatalf("NewIdentifier: %v", err)
	}
	r := NewAnalysisRunner(store, id, nil, an, n, &memHistory{}, summaryPath, tokyo(t), discardLogger())
	r.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

const threeCompanies = "1. Acme Corp - Data Scientist\n\n2. Globex - ML Engineer\n\n3. Initech - Analyst"

// --- Analysis tests ---

func TestAnalysis_AcmeScenario(t *testing.T) {
	store := &memStore{ledger: model.Ledger{"Acme Corp": {Analysis: "old", Timestamp: "2025-05-31T09:00:00.000000+09:00"}}}
	an := &fakeAnalyzer{}
	n := &recordingNotifier{}
	r := newAnalysisRunner(t, store, an, n, writeSummary(t, threeCompanies))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(an.calls) != 1 || !strings.HasPrefix(an.calls[0].Text, "2. Globex") {
		t.Fatalf("analyzer calls = %+v", an.calls)
	}
	if len(n.messages) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(n.messages))
	}
	if !strings.HasPrefix(n.messages[0], "analysis of 2. Globex - ML Engineer\n\n※") {
		t.Errorf("message = %q", n.messages[0])
	}
	if !strings.HasSuffix(n.messages[0], "ご自身でご確認ください。") {
		t.Errorf("message missing caution footer: %q", n.messages[0])
	}
	if len(store.ledger) != 2 {
		t.Fatalf("ledger size = %d, want 2", len(store.ledger))
	}
	entry, ok := store.ledger["Globex"]
	if !ok {
		t.Fatal("Globex not in ledger")
	}
	if entry.Analysis != "analysis of 2. Globex - ML Engineer" {
		t.Errorf("entry.Analysis = %q", entry.Analysis)
	}
	if entry.Timestamp != "2025-06-01T09:00:00.000000+09:00" {
		t.Errorf("entry.Timestamp = %q", entry.Timestamp)
	}
	if store.ledger["Acme Corp"].Analysis != "old" {
		t.Error("existing entry was modified")
	}
}

func TestAnalysis_RelistedCompanyAnalyzedOnce(t *testing.T) {
	store := &memStore{}
	an := &fakeAnalyzer{}
	n := &recordingNotifier{}
	source := "1. Acme Corp - Data Scientist\n\n2. Acme Corp - Data Scientist (再掲)"
	r := newAnalysisRunner(t, store, an, n, writeSummary(t, source))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(an.calls) != 1 {
		t.Errorf("analyses = %d, want 1", len(an.calls))
	}
	if store.saves != 1 || len(store.ledger) != 1 || !store.ledger.Has("Acme Corp") {
		t.Errorf("saves=%d ledger=%v", store.saves, store.ledger)
	}
}

func TestAnalysis_OneCompanyPerRunUntilExhausted(t *testing.T) {
	store := &memStore{}
	an := &fakeAnalyzer{}
	n := &recordingNotifier{}
	r := newAnalysisRunner(t, store, an, n, writeSummary(t, threeCompanies))

	for i := 0; i < 5; i++ {
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if len(an.calls) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(an.calls))
	}
	for i, want := range []string{"1. Acme", "2. Globex", "3. Initech"} {
		if !strings.HasPrefix(an.calls[i].Text, want) {
			t.Errorf("call %d = %q, want prefix %q", i, an.calls[i].Text, want)
		}
	}
	if store.saves != 3 {
		t.Errorf("saves = %d, want 3", store.saves)
	}
	if len(n.messages) != 3 {
		t.Errorf("deliveries = %d, want 3", len(n.messages))
	}
}

func TestAnalysis_IdempotentWhenAllSeen(t *testing.T) {
	store := &memStore{ledger: model.Ledger{"Acme Corp": {}, "Globex": {}, "Initech": {}}}
	an := &fakeAnalyzer{}
	n := &recordingNotifier{}
	r := newAnalysisRunner(t, store, an, n, writeSummary(t, threeCompanies))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(an.calls) != 0 || len(n.messages) != 0 || store.saves != 0 {
		t.Errorf("expected no work, got analyses=%d deliveries=%d saves=%d", len(an.calls), len(n.messages), store.saves)
	}
}

func TestAnalysis_DeliversBeforeSaving(t *testing.T) {
	var events []string
	store := &memStore{events: &events}
	n := &recordingNotifier{events: &events}
	r := newAnalysisRunner(t, store, &fakeAnalyzer{}, n, writeSummary(t, threeCompanies))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 2 || events[0] != "deliver" || events[1] != "save" {
		t.Errorf("events = %v, want [deliver save]", events)
	}
}

func TestAnalysis_AnalyzerFailureLeavesLedgerUntouched(t *testing.T) {
	store := &memStore{}
	an := &fakeAnalyzer{err: errors.New("model unavailable")}
	n := &recordingNotifier{}
	r := newAnalysisRunner(t, store, an, n, writeSummary(t, threeCompanies))

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Acme Corp") {
		t.Errorf("error should name the key: %v", err)
	}
	if store.saves != 0 || len(n.messages) != 0 {
		t.Errorf("saves=%d deliveries=%d, want 0/0", store.saves, len(n.messages))
	}
}

func TestAnalysis_PartialDeliveryFailureStillCommits(t *testing.T) {
	store := &memStore{}
	n := &recordingNotifier{dests: []string{"C1", "C2"}, fail: map[string]bool{"C1": true}}
	hist := &memHistory{}
	r := newAnalysisRunner(t, store, &fakeAnalyzer{}, n, writeSummary(t, threeCompanies))
	r.history = hist

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.ledger.Has("Acme Corp") {
		t.Error("ledger entry not committed")
	}
	if len(hist.records) != 2 {
		t.Fatalf("history records = %d, want 2", len(hist.records))
	}
	if hist.records[0].Delivered || hist.records[0].Error != "channel_not_found" {
		t.Errorf("records[0] = %+v", hist.records[0])
	}
	if !hist.records[1].Delivered || hist.records[1].Key != "Acme Corp" || hist.records[1].Mode != ModeAnalysis {
		t.Errorf("records[1] = %+v", hist.records[1])
	}
}

func TestAnalysis_AllDeliveriesFailStillCommits(t *testing.T) {
	store := &memStore{}
	n := &recordingNotifier{dests: []string{"C1"}, fail: map[string]bool{"C1": true}}
	r := newAnalysisRunner(t, store, &fakeAnalyzer{}, n, writeSummary(t, threeCompanies))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.ledger.Has("Acme Corp") {
		t.Error("ledger entry not committed")
	}
}

func TestAnalysis_SummaryMissing(t *testing.T) {
	r := newAnalysisRunner(t, &memStore{}, &fakeAnalyzer{}, &recordingNotifier{}, filepath.Join(t.TempDir(), "nope.txt"))

	err := r.Run(context.Background())
	if !errors.Is(err, model.ErrSummaryMissing) {
		t.Errorf("err = %v, want ErrSummaryMissing", err)
	}
}

func TestAnalysis_EmptySummaryIsNothingToDo(t *testing.T) {
	an := &fakeAnalyzer{}
	r := newAnalysisRunner(t, &memStore{}, an, &recordingNotifier{}, writeSummary(t, "  \n\n "))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(an.calls) != 0 {
		t.Error("analyzer should not be called")
	}
}

func TestAnalysis_StrategyMismatch(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	store := &memStore{ledger: model.Ledger{model.IdentityKey(digest): {}}}
	an := &fakeAnalyzer{}
	r := newAnalysisRunner(t, store, an, &recordingNotifier{}, writeSummary(t, threeCompanies))

	err := r.Run(context.Background())
	if !errors.Is(err, model.ErrStrategyMismatch) {
		t.Errorf("err = %v, want ErrStrategyMismatch", err)
	}
	if len(an.calls) != 0 {
		t.Error("analyzer should not be called on mismatch")
	}
}

func TestAnalysis_SaveFailureIsReported(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	r := newAnalysisRunner(t, store, &fakeAnalyzer{}, &recordingNotifier{}, writeSummary(t, threeCompanies))

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
}

// --- Summary tests ---

func TestSummary_WritesDigestAndDelivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "recruit.txt")
	sum := &fakeSummarizer{digest: ai.Digest{
		Text:       "1. 🏢 Acme Corp\n職種: DS",
		References: []model.Reference{{URL: "https://a.example"}},
	}}
	n := &recordingNotifier{}
	hist := &memHistory{}
	r := NewSummaryRunner(sum, fakeResolver{}, n, hist, path, tokyo(t), discardLogger())
	r.now = func() time.Time { return time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sum.day.Format("2006-01-02"); got != "2025-06-02" {
		t.Errorf("summarized day = %s, want 2025-06-02 in Tokyo", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading scratch file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "1. 🏢 Acme Corp\n職種: DS" {
		t.Errorf("scratch file = %q", data)
	}

	if len(n.messages) != 1 {
		t.Fatalf("deliveries = %d", len(n.messages))
	}
	msg := n.messages[0]
	if !strings.HasPrefix(msg, "*要約結果:*\n1. 🏢 Acme Corp") {
		t.Errorf("message header = %q", msg)
	}
	if !strings.Contains(msg, "<https://a.example/final|Page https://a.example>") {
		t.Errorf("message missing resolved reference: %q", msg)
	}
	if !strings.HasSuffix(msg, summaryCaution) {
		t.Errorf("message missing caution: %q", msg)
	}
	if len(hist.records) != 1 || hist.records[0].Mode != ModeSummary {
		t.Errorf("history = %+v", hist.records)
	}
}

func TestSummary_WithoutResolverOmitsReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recruit.txt")
	sum := &fakeSummarizer{digest: ai.Digest{Text: "1. Acme Corp", References: []model.Reference{{URL: "https://a.example"}}}}
	n := &recordingNotifier{}
	r := NewSummaryRunner(sum, nil, n, &memHistory{}, path, tokyo(t), discardLogger())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "*要約結果:*\n1. Acme Corp\n\n" + summaryCaution
	if n.messages[0] != want {
		t.Errorf("message = %q, want %q", n.messages[0], want)
	}
}

func TestSummary_SummarizerFailureWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recruit.txt")
	n := &recordingNotifier{}
	r := NewSummaryRunner(&fakeSummarizer{err: errors.New("quota")}, nil, n, &memHistory{}, path, tokyo(t), discardLogger())

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file should not exist, stat err = %v", err)
	}
	if len(n.messages) != 0 {
		t.Error("nothing should be delivered")
	}
}

func TestSummary_DeliveryFailureStillWritesScratch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recruit.txt")
	sum := &fakeSummarizer{digest: ai.Digest{Text: "1. Acme Corp - DS"}}
	n := &recordingNotifier{fail: map[string]bool{"C1": true}}
	r := NewSummaryRunner(sum, nil, n, &memHistory{}, path, tokyo(t), discardLogger())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if string(data) != "1. Acme Corp - DS\n" {
		t.Errorf("scratch = %q", data)
	}
}

func TestSummaryThenAnalysis_SharesScratchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recruit.txt")
	sum := &fakeSummarizer{digest: ai.Digest{Text: "1. 🏢 Acme Corp\n職種: DS\n\n2. 🏢 Globex\n職種: ML"}}
	if err := NewSummaryRunner(sum, nil, &recordingNotifier{}, &memHistory{}, path, tokyo(t), discardLogger()).Run(context.Background()); err != nil {
		t.Fatalf("summary Run: %v", err)
	}

	store := &memStore{}
	an := &fakeAnalyzer{}
	r := newAnalysisRunner(t, store, an, &recordingNotifier{}, path)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("analysis Run: %v", err)
	}
	if !store.ledger.Has("Acme Corp") {
		t.Errorf("ledger = %v, want Acme Corp", store.ledger)
	}
}
