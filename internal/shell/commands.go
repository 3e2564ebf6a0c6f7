package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/internal/pager"
	"github.com/jfmyers9/orochi/internal/playback"
	"github.com/jfmyers9/orochi/internal/player"
	"golang.org/x/term"
)

const defaultHistoryLimit = 10

// usageError reports a command used with the wrong arguments
type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "usage: " + e.usage
}

func (s *Shell) browseCommands() commandTable {
	return commandTable{
		"search": {
			usage: "search <keywords>",
			help:  "Search for mixes.",
			run:   s.searchFor(catalog.KindKeyword, "search <keywords>"),
		},
		"search_tags": {
			usage: "search_tags <tag1>, <tag2>",
			help:  "Search for mixes by tags.",
			run:   s.searchFor(catalog.KindTag, "search_tags <tag1>, <tag2>"),
		},
		"search_user": {
			usage: "search_user <user>",
			help:  "List the mixes of a user.",
			run:   s.searchFor(catalog.KindUser, "search_user <user>"),
		},
		"search_user_liked": {
			usage: "search_user_liked <user>",
			help:  "List the mixes a user liked. Requires login.",
			run:   s.searchFor(catalog.KindUserLiked, "search_user_liked <user>"),
		},
		"liked_mixes": {
			usage: "liked_mixes",
			help:  "List the mixes you liked. Requires login.",
			run:   s.likedMixes,
		},
		"play": {
			usage: "play <index|id|url>",
			help:  "Play a mix from the results, by ID or by URL.",
			run:   s.playMix,
		},
		"set": {
			usage: "set [<key> [<value>]]",
			help:  "List, show or change settings.",
			run:   s.set,
		},
		"login": {
			usage: "login [<user>]",
			help:  "Log in to 8tracks. Without a user the configured username is used.",
			run:   s.login,
		},
		"logout": {
			usage: "logout",
			help:  "Forget the logged in user.",
			run:   s.logout,
		},
		"history": {
			usage: "history [<count>]",
			help:  "Show recently entered commands.",
			run:   s.showHistory,
		},
		"help": {
			usage: "help [<command>]",
			help:  "Show the available commands.",
			run:   s.help,
		},
		"exit": {
			usage: "exit",
			help:  "Exit the interpreter. You can also use the Ctrl-D shortcut.",
			run:   s.exit,
		},
		"quit": {
			usage: "quit",
			help:  "Exit the interpreter. You can also use the Ctrl-D shortcut.",
			run:   s.exit,
		},
	}
}

func (s *Shell) playCommands() commandTable {
	return commandTable{
		"pause": {
			usage: "pause",
			help:  "Pause or resume playback.",
			run:   s.pause,
		},
		"stop": {
			usage: "stop",
			help:  "Stop playback and return to browsing.",
			run:   s.stop,
		},
		"next_song": {
			usage: "next_song",
			help:  "Skip to the next track.",
			run:   s.nextSong,
		},
		"next_mix": {
			usage: "next_mix",
			help:  "Skip to the next mix of the search.",
			run:   s.nextMix,
		},
		"status": {
			usage: "status",
			help:  "Show the playing track and its position.",
			run:   s.status,
		},
		"mix_info": {
			usage: "mix_info",
			help:  "Show details about the playing mix.",
			run:   s.mixInfo,
		},
		"volume": {
			usage: "volume [<0-100>]",
			help:  "Show or change the volume.",
			run:   s.volume,
		},
		"like_mix": {
			usage: "like_mix",
			help:  "Like the playing mix. Requires login.",
			run:   s.likeMix,
		},
		"unlike_mix": {
			usage: "unlike_mix",
			help:  "Remove the like from the playing mix. Requires login.",
			run:   s.unlikeMix,
		},
		"fav_track": {
			usage: "fav_track",
			help:  "Add the playing track to your favorites. Requires login.",
			run:   s.favTrack,
		},
		"unfav_track": {
			usage: "unfav_track",
			help:  "Remove the playing track from your favorites. Requires login.",
			run:   s.unfavTrack,
		},
		"help": {
			usage: "help [<command>]",
			help:  "Show the available commands.",
			run:   s.help,
		},
	}
}

// Browse mode

func (s *Shell) searchFor(kind catalog.SearchKind, usage string) func(context.Context, string) error {
	return func(ctx context.Context, arg string) error {
		if arg == "" {
			return &usageError{usage: usage}
		}
		q := pager.Query{Kind: kind, Terms: arg, Sort: s.cfg.Sorting}

		switch kind {
		case catalog.KindTag:
			tags := catalog.SplitTags(arg)
			if len(tags) == 0 {
				return &usageError{usage: usage}
			}
			q.Terms = strings.Join(tags, ", ")
		case catalog.KindUserLiked:
			if s.auth.Token == "" {
				return playback.ErrAuthRequired
			}
			q.Token = s.auth.Token
		}
		return s.search(ctx, q)
	}
}

func (s *Shell) likedMixes(ctx context.Context, arg string) error {
	if s.auth.Token == "" {
		return playback.ErrAuthRequired
	}
	return s.search(ctx, pager.Query{
		Kind:  catalog.KindUserLiked,
		Terms: s.auth.Username,
		Sort:  s.cfg.Sorting,
		Token: s.auth.Token,
	})
}

func (s *Shell) search(ctx context.Context, q pager.Query) error {
	if err := s.pager.Search(ctx, q); err != nil {
		return err
	}
	s.showPage()
	return nil
}

// showNextPage handles an empty line in browse mode
func (s *Shell) showNextPage(ctx context.Context) {
	if _, ok := s.pager.State(); !ok {
		return
	}
	advanced, err := s.pager.NextPage(ctx)
	if err != nil {
		s.notice("%s", describe(err))
		return
	}
	if !advanced {
		s.notice("No more results.")
		return
	}
	s.showPage()
}

// showPage prints the current page of the search
func (s *Shell) showPage() {
	st, ok := s.pager.State()
	if !ok {
		return
	}

	header := fmt.Sprintf("Results for %q", st.Terms)
	switch st.Kind {
	case catalog.KindTag:
		header = fmt.Sprintf("Results for tags %q", st.Terms)
	case catalog.KindUser:
		header = fmt.Sprintf("Mixes by %q", st.Terms)
	case catalog.KindUserLiked:
		header = fmt.Sprintf("Mixes liked by %q", st.Terms)
	}
	if st.Page > 1 {
		header += fmt.Sprintf(" (page %d)", st.Page)
	}

	s.printf("%s:\n", header)
	writeResults(s.out, st.Results, terminalWidth(s.out))
	if st.HasMore {
		s.printf("Press enter to show the next page.\n")
	}
}

func (s *Shell) playMix(ctx context.Context, arg string) error {
	if arg == "" {
		return &usageError{usage: "play <index|id|url>"}
	}
	mix, err := s.pager.Resolve(ctx, arg)
	if err != nil {
		return err
	}
	return s.ctrl.Play(ctx, mix)
}

func (s *Shell) set(ctx context.Context, arg string) error {
	key, value, hasValue := strings.Cut(arg, " ")

	if key == "" {
		for _, k := range config.Keys() {
			v, _ := s.cfg.Get(k)
			s.printf("%s = %s\n", k, v)
		}
		return nil
	}

	if !hasValue {
		v, err := s.cfg.Get(key)
		if err != nil {
			return err
		}
		s.printf("%s = %s\n", key, v)
		return nil
	}

	if err := s.cfg.Set(key, value); err != nil {
		return err
	}
	if err := s.cfg.Save(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	switch key {
	case "results_per_page":
		s.pager.SetPerPage(s.cfg.ResultsPerPage)
	case "volume":
		if err := s.ctrl.SetVolume(s.cfg.Volume); err != nil {
			return err
		}
	}

	v, _ := s.cfg.Get(key)
	s.printf("%s = %s\n", key, v)
	return nil
}

func (s *Shell) login(ctx context.Context, arg string) error {
	username := arg
	password := ""
	if username == "" {
		username = s.cfg.Username
		password = s.cfg.Password
	}
	if username == "" {
		return &usageError{usage: "login <user>"}
	}

	if password == "" {
		pw, err := s.readPassword(ctx)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = pw
	}

	sess, err := s.catalog.Login(ctx, username, password)
	if err != nil {
		return err
	}
	s.auth = sess
	s.logger.Info().Str("user", sess.Username).Msg("Logged in")
	s.printf("Logged in as %s.\n", sess.Username)
	return nil
}

// readPassword prompts for a password. On a terminal the input is hidden,
// otherwise the next input line is used.
func (s *Shell) readPassword(ctx context.Context) (string, error) {
	s.printf("Password: ")
	if f, ok := s.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		s.printf("\n")
		return string(pw), err
	}
	return s.in.readLine(ctx)
}

// autologin logs in with the configured credentials when enabled
func (s *Shell) autologin(ctx context.Context) {
	if !s.cfg.Autologin || s.cfg.Username == "" || s.cfg.Password == "" {
		return
	}
	if err := s.login(ctx, ""); err != nil {
		s.notice("Autologin failed: %s", describe(err))
	}
}

func (s *Shell) logout(ctx context.Context, arg string) error {
	if s.auth.Token == "" {
		s.printf("Not logged in.\n")
		return nil
	}
	s.printf("Logged out %s.\n", s.auth.Username)
	s.auth = catalog.Session{}
	return nil
}

func (s *Shell) showHistory(ctx context.Context, arg string) error {
	if s.history == nil {
		s.printf("History is disabled.\n")
		return nil
	}

	limit := defaultHistoryLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return &usageError{usage: "history [<count>]"}
		}
		limit = n
	}

	commands, err := s.history.RecentCommands(ctx, limit)
	if err != nil {
		return err
	}
	for _, c := range commands {
		s.printf("%s  %s\n", c.Timestamp.Format("2006-01-02 15:04"), c.Line)
	}
	return nil
}

func (s *Shell) help(ctx context.Context, arg string) error {
	table := s.mode.table()

	if arg != "" {
		cmd, ok := table[arg]
		if !ok {
			return fmt.Errorf("no help for %q", arg)
		}
		s.printf("%s\n    %s\n", cmd.usage, cmd.help)
		return nil
	}

	verbs := make([]string, 0, len(table))
	for verb := range table {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)

	s.printf("Commands:\n")
	for _, verb := range verbs {
		cmd := table[verb]
		s.printf("  %-28s %s\n", cmd.usage, cmd.help)
	}
	return nil
}

func (s *Shell) exit(ctx context.Context, arg string) error {
	return errExit
}

// Play mode

func (s *Shell) pause(ctx context.Context, arg string) error {
	if err := s.ctrl.TogglePause(); err != nil {
		return err
	}
	if s.ctrl.Snapshot().State == playback.StatePaused {
		s.printf("Paused.\n")
	} else {
		s.printf("Resumed.\n")
	}
	return nil
}

func (s *Shell) stop(ctx context.Context, arg string) error {
	if err := s.ctrl.Stop(); err != nil {
		return err
	}
	s.printf("Stopped.\n")
	return nil
}

func (s *Shell) nextSong(ctx context.Context, arg string) error {
	return s.ctrl.NextSong(ctx)
}

func (s *Shell) nextMix(ctx context.Context, arg string) error {
	return s.ctrl.NextMix(ctx)
}

func (s *Shell) status(ctx context.Context, arg string) error {
	st, err := s.ctrl.Status(ctx)
	if err != nil {
		return err
	}

	position := "?:??"
	if st.Known {
		position = formatClock(st.Position)
	}
	s.printf("[%s] %s  %s / %s  volume %d%%\n",
		st.State, st.Track.String(), position, formatClock(st.Duration), st.Volume)
	return nil
}

func (s *Shell) mixInfo(ctx context.Context, arg string) error {
	mix := s.ctrl.Snapshot().Mix
	width := terminalWidth(s.out)

	s.printf("%s\n", mix.Name)
	s.printf("  by %s", orUnknown(mix.Creator))
	if mix.Liked {
		s.printf(" (liked)")
	}
	s.printf("\n")
	s.printf("  %d tracks, %s, %d plays, %d likes\n",
		mix.TrackCount, formatHours(mix.Duration), mix.PlayCount, mix.LikesCount)
	if len(mix.Tags) > 0 {
		s.printf("  tags: %s\n", strings.Join(mix.Tags, ", "))
	}
	if mix.URL != "" {
		s.printf("  https://8tracks.com%s\n", mix.URL)
	}
	if mix.Description != "" {
		s.printf("\n")
		for _, line := range wrapText(mix.Description, width-2, width-2) {
			s.printf("  %s\n", line)
		}
	}
	return nil
}

func (s *Shell) volume(ctx context.Context, arg string) error {
	if arg == "" {
		s.printf("Volume is %d%%.\n", s.ctrl.Snapshot().Volume)
		return nil
	}
	v, err := strconv.Atoi(arg)
	if err != nil {
		return &usageError{usage: "volume <0-100>"}
	}
	if err := s.ctrl.SetVolume(v); err != nil {
		return err
	}
	s.printf("Volume set to %d%%.\n", v)
	return nil
}

func (s *Shell) likeMix(ctx context.Context, arg string) error {
	if err := s.ctrl.LikeMix(ctx, s.auth.Token); err != nil {
		return err
	}
	s.printf("Liked %q.\n", s.ctrl.Snapshot().Mix.Name)
	return nil
}

func (s *Shell) unlikeMix(ctx context.Context, arg string) error {
	if err := s.ctrl.UnlikeMix(ctx, s.auth.Token); err != nil {
		return err
	}
	s.printf("Removed like from %q.\n", s.ctrl.Snapshot().Mix.Name)
	return nil
}

func (s *Shell) favTrack(ctx context.Context, arg string) error {
	if err := s.ctrl.FavTrack(ctx, s.auth.Token); err != nil {
		return err
	}
	s.printf("Added %q to favorites.\n", s.ctrl.Snapshot().Track.String())
	return nil
}

func (s *Shell) unfavTrack(ctx context.Context, arg string) error {
	if err := s.ctrl.UnfavTrack(ctx, s.auth.Token); err != nil {
		return err
	}
	s.printf("Removed %q from favorites.\n", s.ctrl.Snapshot().Track.String())
	return nil
}

// describe turns an error into the notice shown to the user
func describe(err error) string {
	var usage *usageError
	var selection *pager.SelectionError
	var spawn *player.SpawnError

	switch {
	case errors.As(err, &usage):
		return usage.Error()
	case errors.As(err, &selection):
		return selection.Error()
	case errors.Is(err, pager.ErrNotFound):
		return "No mixes found."
	case errors.Is(err, playback.ErrAuthRequired):
		return "You need to log in first (see help login)."
	case errors.Is(err, catalog.ErrAuth):
		return "Login failed or session expired. Please log in again."
	case errors.Is(err, playback.ErrSkipNotAllowed):
		return "Skip limit reached; the current track keeps playing."
	case errors.Is(err, playback.ErrEmptyMix):
		return "This mix has no playable tracks."
	case errors.As(err, &spawn):
		return fmt.Sprintf("Could not start %s: %v", spawn.Player, spawn.Err)
	case errors.Is(err, player.ErrPlayerDead):
		return "The player stopped unexpectedly. Playback aborted."
	case errors.Is(err, catalog.ErrNotFound):
		return "Mix not found."
	case errors.Is(err, catalog.ErrTransport):
		return fmt.Sprintf("Could not reach 8tracks: %v", err)
	default:
		return err.Error()
	}
}
