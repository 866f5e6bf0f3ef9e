package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hugoworkshops/workshopbot/pkg/config"
	"github.com/hugoworkshops/workshopbot/pkg/logger"
	"github.com/hugoworkshops/workshopbot/pkg/qa"
	"github.com/hugoworkshops/workshopbot/pkg/tracklog"
)

const (
	// StopTimeout bounds graceful shutdown of the channel.
	StopTimeout = 10 * time.Second

	sendTimeout           = 10 * time.Second
	typingRefreshInterval = 8 * time.Second
	answerTimeout         = 2 * time.Minute

	thumbsUp   = "👍"
	thumbsDown = "👎"

	// Feedback reactions are tracked for this many recent answers.
	recentAnswerLimit = 200
)

// DiscordChannel answers workshop questions asked via DM or bot mention.
type DiscordChannel struct {
	session   *discordgo.Session
	engine    *qa.Engine
	trail     *tracklog.Store
	allowFrom []string
	// running is read from handler goroutines.
	running atomic.Bool

	typing   map[string]*typingSession
	typingMu sync.Mutex

	// answer message id -> interaction id, for reaction feedback
	recent      map[string]string
	recentOrder []string
	recentMu    sync.Mutex
}

type typingSession struct {
	pending int
	cancel  context.CancelFunc
}

// NewDiscordChannel builds a channel. trail may be nil, which disables
// reaction feedback.
func NewDiscordChannel(cfg config.DiscordConfig, engine *qa.Engine, trail *tracklog.Store) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		session:   session,
		engine:    engine,
		trail:     trail,
		allowFrom: cfg.AllowFrom,
		typing:    make(map[string]*typingSession),
		recent:    make(map[string]string),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleReaction)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.running.Store(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.running.Store(false)
	c.stopAllTyping()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) IsRunning() bool {
	return c.running.Load()
}

// IsAllowed checks the allowlist. Empty allowlist means open access.
func (c *DiscordChannel) IsAllowed(userID, username string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	for _, allowed := range c.allowFrom {
		candidate := strings.TrimSpace(strings.TrimPrefix(allowed, "@"))
		if candidate == "" {
			continue
		}
		if candidate == userID || candidate == username {
			return true
		}
	}
	return false
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if !c.IsAllowed(m.Author.ID, m.Author.Username) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}

	question, ok := c.extractQuestion(s, m)
	if !ok {
		return
	}

	logger.DebugCF("discord", "Received question", map[string]any{
		"user_id": m.Author.ID,
		"preview": truncate(question, 50),
	})

	c.beginTyping(m.ChannelID)
	go c.answer(m.ChannelID, m.Author.ID, question)
}

// extractQuestion returns the question text for messages addressed to the
// bot: any DM, or a guild message that mentions it.
func (c *DiscordChannel) extractQuestion(s *discordgo.Session, m *discordgo.MessageCreate) (string, bool) {
	content := strings.TrimSpace(m.Content)

	if m.GuildID == "" {
		return content, content != ""
	}

	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return "", false
	}
	for _, tag := range []string{"<@" + s.State.User.ID + ">", "<@!" + s.State.User.ID + ">"} {
		content = strings.ReplaceAll(content, tag, "")
	}
	content = strings.TrimSpace(content)
	return content, content != ""
}

func (c *DiscordChannel) answer(channelID, userID, question string) {
	defer c.endTyping(channelID)

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	ans, err := c.engine.Answer(ctx, question, qa.Options{
		Channel: "discord",
		UserID:  userID,
	})
	if err != nil {
		logger.WarnCF("discord", "Failed to answer question", map[string]any{
			"error": err.Error(),
		})
		_ = c.send(ctx, channelID, qa.UserMessage(err), "")
		return
	}

	if err := c.send(ctx, channelID, formatAnswer(ans), ans.InteractionID); err != nil {
		logger.ErrorCF("discord", "Failed to send answer", map[string]any{
			"error": err.Error(),
		})
	}
}

// formatAnswer appends a sources footer listing which workshop sections the
// answer drew on.
func formatAnswer(ans qa.Answer) string {
	if len(ans.Sources) == 0 {
		return ans.Text
	}

	seen := make(map[string]struct{})
	var refs []string
	for _, src := range ans.Sources {
		ref := fmt.Sprintf("%s §%d", src.WorkshopID, src.Position+1)
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return ans.Text + "\n\n-# Sources: " + strings.Join(refs, ", ")
}

// send splits and sends a message, tagging the first part for feedback.
func (c *DiscordChannel) send(ctx context.Context, channelID, content, interactionID string) error {
	if !c.running.Load() {
		return fmt.Errorf("discord bot not running")
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var firstID string
	// Discord caps messages at 2000 characters; leave headroom so splits
	// can extend to close code blocks.
	for i, part := range splitMessage(content, 1500) {
		msg, err := c.sendPart(ctx, channelID, part)
		if err != nil {
			return err
		}
		if i == 0 {
			firstID = msg.ID
		}
	}
	if firstID != "" {
		c.offerFeedback(channelID, firstID, interactionID)
	}
	return nil
}

func (c *DiscordChannel) sendPart(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	type result struct {
		msg *discordgo.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.session.ChannelMessageSend(channelID, content)
		done <- result{msg, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to send discord message: %w", res.err)
		}
		return res.msg, nil
	case <-sendCtx.Done():
		return nil, fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) sendTyping(channelID string) {
	if channelID == "" || c.session == nil {
		return
	}
	if err := c.session.ChannelTyping(channelID); err != nil {
		logger.ErrorCF("discord", "Failed to send typing indicator", map[string]any{
			"error": err.Error(),
		})
	}
}

func (c *DiscordChannel) beginTyping(channelID string) {
	if channelID == "" {
		return
	}

	c.typingMu.Lock()
	if sess, ok := c.typing[channelID]; ok {
		sess.pending++
		c.typingMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.typing[channelID] = &typingSession{pending: 1, cancel: cancel}
	c.typingMu.Unlock()

	c.sendTyping(channelID)

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.running.Load() {
					return
				}
				c.sendTyping(channelID)
			}
		}
	}()
}

func (c *DiscordChannel) endTyping(channelID string) {
	if channelID == "" {
		return
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	sess, ok := c.typing[channelID]
	if !ok {
		return
	}
	sess.pending--
	if sess.pending > 0 {
		return
	}
	delete(c.typing, channelID)
	sess.cancel()
}

func (c *DiscordChannel) stopAllTyping() {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	for channelID, sess := range c.typing {
		sess.cancel()
		delete(c.typing, channelID)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
