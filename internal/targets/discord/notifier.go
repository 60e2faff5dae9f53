package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"subdigest/internal/config"
	"subdigest/internal/types"
	"subdigest/internal/utils"
)

// Notifier announces each new digest as one embed in a channel.
type Notifier struct {
	botToken  string
	channelID string
	sleep     time.Duration
	session   *discordgo.Session
}

func New(cfg config.DiscordConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("discord: bot_token is required")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel_id is required")
	}

	return &Notifier{
		botToken:  cfg.BotToken,
		channelID: cfg.ChannelID,
		sleep:     cfg.SleepDuration(),
	}, nil
}

func (n *Notifier) Initialize(ctx context.Context) error {
	session, err := discordgo.New("Bot " + n.botToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	n.session = session
	return nil
}

func (n *Notifier) Notify(ctx context.Context, digest *types.Digest) error {
	if n.session == nil {
		return fmt.Errorf("discord notifier not initialized")
	}

	embed := n.buildEmbed(digest)

	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		return fmt.Errorf("failed to send digest message: %w", err)
	}

	time.Sleep(n.sleep)

	return nil
}

func (n *Notifier) buildEmbed(digest *types.Digest) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(digest.Posts))
	for _, p := range digest.Posts {
		// Discord caps embeds at 25 fields.
		if len(fields) == 25 {
			break
		}

		fields = append(fields, &discordgo.MessageEmbedField{
			Name: utils.Truncate(utils.CleanText(p.Title), 256),
			Value: fmt.Sprintf("[r/%s](https://www.reddit.com%s) · %d points · %d comments",
				p.Subreddit, p.Permalink, p.Score, p.CommentCount),
		})
	}

	return &discordgo.MessageEmbed{
		Title:     "Top posts of the week",
		Fields:    fields,
		Timestamp: digest.FetchedAt.Format(time.RFC3339),
	}
}

func (n *Notifier) Close(ctx context.Context) error {
	if n.session != nil {
		return n.session.Close()
	}
	return nil
}
