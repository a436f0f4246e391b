package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
)

// MessageLister is the part of *discordgo.Session the source needs.
type MessageLister interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// NewDiscordSession opens a REST-only session. Bare tokens are sent as bot
// tokens.
func NewDiscordSession(token string, timeout time.Duration) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	if !strings.HasPrefix(token, "Bot ") && !strings.HasPrefix(token, "Bearer ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if timeout > 0 {
		s.Client = &http.Client{Timeout: timeout}
	}
	return s, nil
}

// DiscordSource reads the most recent messages of one channel and downloads
// the first attachment of each.
type DiscordSource struct {
	lister     MessageLister
	channelID  string
	limit      int
	timeout    time.Duration
	downloader *Downloader
	entities   EntityTable
	log        *logrus.Entry
}

// DiscordOptions configures a DiscordSource.
type DiscordOptions struct {
	ChannelID    string
	MessageLimit int
	// FetchTimeout bounds the listing call.
	FetchTimeout time.Duration
}

// NewDiscordSource returns a source over lister.
func NewDiscordSource(lister MessageLister, opts DiscordOptions, dl *Downloader, entities EntityTable, log *logrus.Entry) *DiscordSource {
	if opts.MessageLimit <= 0 || opts.MessageLimit > 100 {
		opts.MessageLimit = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &DiscordSource{
		lister:     lister,
		channelID:  opts.ChannelID,
		limit:      opts.MessageLimit,
		timeout:    opts.FetchTimeout,
		downloader: dl,
		entities:   entities,
		log:        logger.OrDefault(log, "discord-source"),
	}
}

type candidate struct {
	entity   string
	filename string
	url      string
}

func (d *DiscordSource) list(ctx context.Context) ([]candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	msgs, err := d.lister.ChannelMessages(d.channelID, d.limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: list channel %s: %w", ErrSourceUnavailable, d.channelID, err)
	}
	seenURL := map[string]bool{}
	seenEntity := map[string]bool{}
	var out []candidate
	// Messages arrive newest first.
	for _, m := range msgs {
		if m == nil || len(m.Attachments) == 0 {
			continue
		}
		url := m.Attachments[0].URL
		if seenURL[url] {
			continue
		}
		seenURL[url] = true
		name := FilenameFromURL(url)
		entity, ok := d.entities.Lookup(name)
		if !ok {
			d.log.WithFields(logrus.Fields{"message": m.ID, "filename": name}).Warn("attachment is not a known entity screenshot; dropped")
			continue
		}
		if seenEntity[entity] {
			continue
		}
		seenEntity[entity] = true
		out = append(out, candidate{entity: entity, filename: name, url: url})
	}
	return out, nil
}

// Fetch implements Source. Listing failures abort; a download failure only
// marks that entity's Image. An expired link causes one re-listing per Fetch.
func (d *DiscordSource) Fetch(ctx context.Context) ([]Image, error) {
	cands, err := d.list(ctx)
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{"channel": d.channelID, "images": len(cands)}).Info("listed channel")

	var fresh map[string]string
	relisted := false
	out := make([]Image, 0, len(cands))
	for _, c := range cands {
		img := Image{Entity: c.entity, Filename: c.filename, URL: c.url}
		img.Data, img.Err = d.downloader.Download(ctx, c.url)
		if errors.Is(img.Err, ErrLinkExpired) {
			if !relisted {
				relisted = true
				fresh = d.relist(ctx)
			}
			if u, ok := fresh[c.entity]; ok && u != c.url {
				img.URL = u
				img.Data, img.Err = d.downloader.Download(ctx, u)
			}
		}
		out = append(out, img)
	}
	return out, nil
}

func (d *DiscordSource) relist(ctx context.Context) map[string]string {
	cands, err := d.list(ctx)
	if err != nil {
		d.log.WithError(err).Warn("re-listing after expired link failed")
		return nil
	}
	m := make(map[string]string, len(cands))
	for _, c := range cands {
		m[c.entity] = c.url
	}
	return m
}
