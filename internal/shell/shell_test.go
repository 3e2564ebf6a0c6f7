package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/catalog/catalogtest"
	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/internal/history"
	"github.com/jfmyers9/orochi/internal/pager"
	"github.com/jfmyers9/orochi/internal/playback"
	"github.com/jfmyers9/orochi/internal/player"
	"github.com/jfmyers9/orochi/internal/player/playertest"
	"github.com/rs/zerolog"
)

type fixture struct {
	shell   *Shell
	out     *bytes.Buffer
	catalog *catalogtest.Fake
	player  *playertest.Fake
	ctrl    *playback.Controller
	cfg     *config.Config
	history *history.Store
	dataDir string
}

func tracks(mixID int64, n int) []catalog.Track {
	out := make([]catalog.Track, 0, n)
	for i := 1; i <= n; i++ {
		id := mixID*100 + int64(i)
		out = append(out, catalog.Track{
			ID:        id,
			Name:      fmt.Sprintf("Track %d", id),
			Artist:    fmt.Sprintf("Artist %d", id),
			StreamURL: fmt.Sprintf("http://cdn/%d.mp3", id),
		})
	}
	return out
}

// newFixture builds a shell over two pages of ten mixes. Mixes 1-3 have
// two tracks each.
func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	store, err := history.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cat := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 10), catalogtest.MixRange(11, 10)),
		MixTracks: map[int64][]catalog.Track{
			1: tracks(1, 2),
			2: tracks(2, 2),
			3: tracks(3, 2),
		},
		Users: map[string]string{"bob": "secret"},
	}
	p := &playertest.Fake{}
	logger := zerolog.Nop()

	pg := pager.New(cat, cfg.ResultsPerPage, logger)
	ctrl := playback.New(cat, p, pg, playback.DefaultOptions(), logger)
	t.Cleanup(ctrl.Shutdown)

	out := &bytes.Buffer{}
	dataDir := filepath.Join(dir, "data")
	sh := New(Options{
		Catalog:    cat,
		Pager:      pg,
		Controller: ctrl,
		Config:     cfg,
		History:    store,
		In:         strings.NewReader(input),
		Out:        out,
		DataDir:    dataDir,
		Logger:     logger,
	})

	return &fixture{
		shell:   sh,
		out:     out,
		catalog: cat,
		player:  p,
		ctrl:    ctrl,
		cfg:     cfg,
		history: store,
		dataDir: dataDir,
	}
}

// run dispatches lines one by one
func (f *fixture) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := f.shell.dispatch(context.Background(), line); err != nil {
			t.Fatalf("dispatch(%q) = %v", line, err)
		}
	}
}

// nextEvent waits for the controller to emit an event
func (f *fixture) nextEvent(t *testing.T) playback.Event {
	t.Helper()
	select {
	case ev := <-f.ctrl.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return playback.Event{}
	}
}

func (f *fixture) inPlayMode() bool {
	_, ok := f.shell.mode.(playMode)
	return ok
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain %q:\n%s", want, out)
	}
}

func TestRun_Session(t *testing.T) {
	f := newFixture(t, "search jazz\nplay 3\npause\npause\nstop\nexit\n")

	if err := f.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := f.out.String()
	for _, want := range []string{
		"Hello\n",
		`Results for "jazz":`,
		" 3)  Mix 3 (8 tracks, 0h 0m)\n",
		" 10) Mix 10 (8 tracks, 0h 0m)\n",
		"Press enter to show the next page.",
		`Playing mix "Mix 3"`,
		`Now playing "Track 301" by "Artist 301"...`,
		"(8tracks:Mix 3)> ",
		"Paused.",
		"Resumed.",
		"Stopped.",
		"Goodbye\n",
	} {
		assertContains(t, out, want)
	}

	proc := f.player.Last()
	if proc == nil || !proc.Closed() {
		t.Fatal("player process was not closed")
	}
	if got := f.ctrl.Snapshot().State; got != playback.StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if f.inPlayMode() {
		t.Error("shell still in play mode")
	}
}

func TestRun_EOFStopsPlayback(t *testing.T) {
	f := newFixture(t, "search jazz\nplay 1\n")

	if err := f.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if proc := f.player.Last(); proc == nil || !proc.Closed() {
		t.Fatal("player process was not closed at end of input")
	}
	assertContains(t, f.out.String(), "Goodbye\n")
}

func TestRun_ContextCancelled(t *testing.T) {
	f := newFixture(t, "")
	f.shell.rawIn = blockingReader{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.shell.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertContains(t, f.out.String(), "Goodbye\n")
}

// blockingReader never returns input
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}

func TestRun_Login(t *testing.T) {
	f := newFixture(t, "login bob\nsecret\nliked_mixes\nexit\n")

	if err := f.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := f.out.String()
	assertContains(t, out, "Password: ")
	assertContains(t, out, "Logged in as bob.")
	assertContains(t, out, `Mixes liked by "bob":`)
	if n := f.catalog.CallCount("search user_liked bob 1"); n != 1 {
		t.Errorf("liked search calls = %d, want 1", n)
	}
}

func TestRun_LoginWrongPassword(t *testing.T) {
	f := newFixture(t, "login bob\nwrong\nliked_mixes\nexit\n")

	if err := f.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := f.out.String()
	assertContains(t, out, "Login failed")
	assertContains(t, out, "You need to log in first")
	if n := f.catalog.CallCount("search"); n != 0 {
		t.Errorf("search calls = %d, want 0", n)
	}
}

func TestRun_Autologin(t *testing.T) {
	f := newFixture(t, "exit\n")
	f.cfg.Autologin = true
	f.cfg.Username = "bob"
	f.cfg.Password = "secret"

	if err := f.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.shell.auth.Token != "token-bob" {
		t.Errorf("token = %q, want token-bob", f.shell.auth.Token)
	}
}

func TestDispatch_UnknownVerb(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "pause", "frobnicate now")

	out := f.out.String()
	assertContains(t, out, "no such command: pause")
	assertContains(t, out, "no such command: frobnicate")
	if f.inPlayMode() {
		t.Error("unknown verb changed the mode")
	}
}

func TestDispatch_NextPage(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search jazz", "")
	assertContains(t, f.out.String(), `Results for "jazz" (page 2):`)
	assertContains(t, f.out.String(), " 1)  Mix 11 ")

	f.out.Reset()
	f.run(t, "")
	assertContains(t, f.out.String(), "No more results.")

	st, _ := f.shell.pager.State()
	if st.Page != 2 {
		t.Errorf("page = %d, want 2", st.Page)
	}
}

func TestDispatch_EmptyLineWithoutSearch(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "")

	if f.out.Len() != 0 {
		t.Errorf("unexpected output %q", f.out.String())
	}
	if n := len(f.catalog.Calls()); n != 0 {
		t.Errorf("catalog calls = %d, want 0", n)
	}
}

func TestDispatch_NoResults(t *testing.T) {
	f := newFixture(t, "")
	f.catalog.SearchFunc = nil

	f.run(t, "search_tags rock, 90s", "play 1")

	out := f.out.String()
	assertContains(t, out, "No mixes found.")
	assertContains(t, out, "no search results to pick from")
	if _, ok := f.shell.pager.State(); ok {
		t.Error("search state should be empty")
	}
	if f.inPlayMode() {
		t.Error("shell entered play mode")
	}
	if n := f.catalog.CallCount("search tag rock, 90s 1"); n != 1 {
		t.Errorf("tag search calls = %d, want 1", n)
	}
}

func TestDispatch_Usage(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search", "search_tags ,", "play", "history x")

	out := f.out.String()
	for _, want := range []string{
		"usage: search <keywords>",
		"usage: search_tags <tag1>, <tag2>",
		"usage: play <index|id|url>",
		"usage: history [<count>]",
	} {
		assertContains(t, out, want)
	}
}

func TestDispatch_PlayModeVerbs(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search jazz", "play 2")
	if !f.inPlayMode() {
		t.Fatal("shell not in play mode after play")
	}
	if got := f.shell.prompt(); got != "(8tracks:Mix 2)> " {
		t.Errorf("prompt = %q", got)
	}

	f.out.Reset()
	f.run(t, "search rock", "exit", "volume 150", "volume 40", "status", "mix_info")

	out := f.out.String()
	assertContains(t, out, "no such command: search")
	assertContains(t, out, "no such command: exit")
	assertContains(t, out, "invalid argument")
	assertContains(t, out, "Volume set to 40%.")
	assertContains(t, out, "[playing] Artist 201 - Track 201  0:00 / 0:00  volume 40%")
	assertContains(t, out, "Mix 2\n  by unknown\n")

	if got := f.ctrl.Snapshot().Volume; got != 40 {
		t.Errorf("volume = %d, want 40", got)
	}
}

func TestDispatch_NextSongAndMix(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search jazz", "play 1", "next_song")
	if got := f.ctrl.Snapshot().Track.ID; got != 102 {
		t.Errorf("track = %d, want 102", got)
	}

	f.run(t, "next_song")
	snap := f.ctrl.Snapshot()
	if snap.Mix.ID != 2 || snap.Track.ID != 201 {
		t.Errorf("playing mix %d track %d, want mix 2 track 201", snap.Mix.ID, snap.Track.ID)
	}
	assertContains(t, f.out.String(), `Playing mix "Mix 2"`)

	f.run(t, "next_mix")
	if got := f.ctrl.Snapshot().Mix.ID; got != 3 {
		t.Errorf("mix = %d, want 3", got)
	}
}

func TestDispatch_LikeRequiresLogin(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search jazz", "play 1", "like_mix", "fav_track")

	if got := strings.Count(f.out.String(), "You need to log in first"); got != 2 {
		t.Errorf("login notices = %d, want 2", got)
	}
	if n := f.catalog.CallCount("like") + f.catalog.CallCount("fav"); n != 0 {
		t.Errorf("catalog calls = %d, want 0", n)
	}
}

func TestDispatch_LikeAfterLogin(t *testing.T) {
	f := newFixture(t, "")
	f.shell.auth = catalog.Session{Token: "token-bob", Username: "bob"}

	f.run(t, "search jazz", "play 1", "like_mix", "fav_track", "unlike_mix", "unfav_track")

	for _, call := range []string{"like 1", "fav 101", "unlike 1", "unfav 101"} {
		if n := f.catalog.CallCount(call); n != 1 {
			t.Errorf("%s calls = %d, want 1", call, n)
		}
	}
	assertContains(t, f.out.String(), `Liked "Mix 1".`)
}

func TestDispatch_Set(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "set results_per_page 5", "set volume 300", "set sorting", "set")

	out := f.out.String()
	assertContains(t, out, "results_per_page = 5\n")
	assertContains(t, out, "invalid value for volume")
	assertContains(t, out, "sorting = hot\n")
	assertContains(t, out, "mpd_port = 6600\n")

	reloaded, err := config.Load(f.cfg.Path())
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if reloaded.ResultsPerPage != 5 {
		t.Errorf("saved results_per_page = %d, want 5", reloaded.ResultsPerPage)
	}

	f.run(t, "search jazz")
	if got := f.catalog.Calls(); len(got) == 0 {
		t.Fatal("no search issued")
	}
}

func TestDispatch_History(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "search jazz", "", "history 2")

	out := f.out.String()
	assertContains(t, out, "  search jazz\n")
	assertContains(t, out, "  history 2\n")
}

func TestDispatch_Help(t *testing.T) {
	f := newFixture(t, "")

	f.run(t, "help")
	out := f.out.String()
	assertContains(t, out, "search_tags <tag1>, <tag2>")
	if strings.Contains(out, "next_song") {
		t.Error("browse help lists play mode verbs")
	}

	f.out.Reset()
	f.run(t, "search jazz", "play 1", "help volume")
	assertContains(t, f.out.String(), "volume [<0-100>]\n    Show or change the volume.")
}

func TestHandleEvent_TrackEnded(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, "search jazz", "play 1")

	f.player.Last().Finish(player.TrackEnded)
	if printed := f.shell.handleEvent(context.Background(), f.nextEvent(t)); !printed {
		t.Error("handleEvent() = false, want true")
	}

	assertContains(t, f.out.String(), `Now playing "Track 102" by "Artist 102"...`)
	if !f.inPlayMode() {
		t.Error("shell left play mode")
	}

	plays, err := f.history.RecentPlays(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentPlays() error = %v", err)
	}
	if len(plays) != 2 || plays[0].TrackID != 102 {
		t.Errorf("plays = %+v, want two with 102 newest", plays)
	}
}

func TestHandleEvent_ProcessExited(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, "search jazz", "play 1")

	f.player.Last().Finish(player.ProcessExited)
	f.shell.handleEvent(context.Background(), f.nextEvent(t))

	assertContains(t, f.out.String(), "The player stopped unexpectedly.")
	if f.inPlayMode() {
		t.Error("shell still in play mode after the player died")
	}
	if got := f.shell.prompt(); got != "(8tracks)> " {
		t.Errorf("prompt = %q", got)
	}
}

func TestHandleEvent_Stale(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, "search jazz", "play 1")

	ev := playback.Event{Session: f.ctrl.Snapshot().Session, Generation: 99, Kind: playback.EventTrackEnded}
	if printed := f.shell.handleEvent(context.Background(), ev); printed {
		t.Error("stale event printed output")
	}
	if got := f.ctrl.Snapshot().Track.ID; got != 101 {
		t.Errorf("track = %d, want 101", got)
	}
}

func TestSideOutputs(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.TerminalTitle = true
	f.cfg.LogCurrentSong = true

	f.run(t, "search jazz", "play 1")

	assertContains(t, f.out.String(), "\x1b]2;Artist 101 - Track 101\x07")
	path := filepath.Join(f.dataDir, "currentsong")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read currentsong: %v", err)
	}
	if string(data) != "Artist 101 - Track 101\n" {
		t.Errorf("currentsong = %q", data)
	}

	f.run(t, "stop")
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read currentsong: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("currentsong after stop = %q, want empty", data)
	}
	assertContains(t, f.out.String(), "\x1b]2;\x07")
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line string
		verb string
		arg  string
	}{
		{"", "", ""},
		{"   ", "", ""},
		{"search", "search", ""},
		{"search  late night ", "search", "late night"},
		{"  play 3", "play", "3"},
		{"search\tjazz", "search", "jazz"},
		{"search_tags \t rock, 90s", "search_tags", "rock, 90s"},
	}

	for _, tt := range tests {
		verb, arg := splitLine(tt.line)
		if verb != tt.verb || arg != tt.arg {
			t.Errorf("splitLine(%q) = (%q, %q), want (%q, %q)", tt.line, verb, arg, tt.verb, tt.arg)
		}
	}
}
