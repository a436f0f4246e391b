package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"stattrack/pkg/logger"
)

type fakeLister struct {
	pages [][]*discordgo.Message
	calls int
	err   error
	limit int
}

func (f *fakeLister) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[len(f.pages)-1]
	if f.calls < len(f.pages) {
		page = f.pages[f.calls]
	}
	f.calls++
	return page, nil
}

func msg(id string, urls ...string) *discordgo.Message {
	m := &discordgo.Message{ID: id}
	for _, u := range urls {
		m.Attachments = append(m.Attachments, &discordgo.MessageAttachment{URL: u, Filename: FilenameFromURL(u)})
	}
	return m
}

var testEntities = EntityTable{
	"CountryState_Yiguo.png": "夷國",
	"CountryState_Yumin.png": "羽民國",
}

func TestDiscordSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	lister := &fakeLister{pages: [][]*discordgo.Message{{
		msg("5", srv.URL+"/new/CountryState_Yiguo.png?ex=1"),
		msg("4"),
		msg("3", srv.URL+"/x/Unrelated.png"),
		msg("2", srv.URL+"/old/CountryState_Yiguo.png?ex=0"),
		msg("1", srv.URL+"/a/CountryState_Yumin.png", srv.URL+"/b/ignored.png"),
	}}}
	src := NewDiscordSource(lister, DiscordOptions{ChannelID: "c"}, fastDownloader(), testEntities, logger.Discard())

	imgs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lister.limit != 10 {
		t.Errorf("default limit should be 10, got %d", lister.limit)
	}
	if len(imgs) != 2 {
		t.Fatalf("expected 2 images, got %+v", imgs)
	}
	if imgs[0].Entity != "夷國" || string(imgs[0].Data) != "/new/CountryState_Yiguo.png" {
		t.Fatalf("most recent image should win, got %+v", imgs[0])
	}
	if imgs[1].Entity != "羽民國" || imgs[1].Err != nil {
		t.Fatalf("unexpected second image %+v", imgs[1])
	}
}

func TestDiscordSourceLogsUnknownFilename(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	lister := &fakeLister{pages: [][]*discordgo.Message{{
		msg("1", "https://cdn.example/att/Unknown.png?ex=1"),
	}}}
	src := NewDiscordSource(lister, DiscordOptions{ChannelID: "c"}, fastDownloader(), EntityTable{}, logrus.NewEntry(log))

	imgs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(imgs) != 0 {
		t.Fatalf("unknown attachment should be dropped, got %+v", imgs)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Data["filename"] == "Unknown.png" && e.Level <= logrus.InfoLevel {
			found = true
		}
	}
	if !found {
		t.Fatalf("no info-or-higher log line names the dropped file; entries=%d", len(hook.AllEntries()))
	}
}

func TestDiscordSourceRelistsExpiredLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "ex=stale") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	lister := &fakeLister{pages: [][]*discordgo.Message{
		{msg("1", srv.URL+"/CountryState_Yiguo.png?ex=stale")},
		{msg("1", srv.URL+"/CountryState_Yiguo.png?ex=fresh")},
	}}
	src := NewDiscordSource(lister, DiscordOptions{ChannelID: "c"}, fastDownloader(), testEntities, logger.Discard())

	imgs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("expected one re-listing, got %d calls", lister.calls)
	}
	if imgs[0].Err != nil || string(imgs[0].Data) != "ok" || !strings.Contains(imgs[0].URL, "fresh") {
		t.Fatalf("expected fresh download, got %+v", imgs[0])
	}
}

func TestDiscordSourceDownloadFailureIsPerEntity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "Yumin") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	lister := &fakeLister{pages: [][]*discordgo.Message{{
		msg("2", srv.URL+"/CountryState_Yumin.png"),
		msg("1", srv.URL+"/CountryState_Yiguo.png"),
	}}}
	imgs, err := NewDiscordSource(lister, DiscordOptions{ChannelID: "c"}, fastDownloader(), testEntities, logger.Discard()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if imgs[0].Err == nil || imgs[1].Err != nil {
		t.Fatalf("expected only the first image to fail: %+v", imgs)
	}
}

func TestDiscordSourceListFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("HTTP 403 Forbidden")}
	_, err := NewDiscordSource(lister, DiscordOptions{ChannelID: "c"}, fastDownloader(), testEntities, logger.Discard()).Fetch(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestNewDiscordSessionToken(t *testing.T) {
	if _, err := NewDiscordSession("", 0); err == nil {
		t.Fatalf("expected error for empty token")
	}
	s, err := NewDiscordSession("abc", 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Identify.Token != "Bot abc" {
		t.Fatalf("token = %q", s.Identify.Token)
	}
}
