package channels

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/hugoworkshops/workshopbot/pkg/logger"
)

// offerFeedback seeds thumbs reactions on an answer and remembers which
// interaction the message belongs to.
func (c *DiscordChannel) offerFeedback(channelID, messageID, interactionID string) {
	if c.trail == nil || interactionID == "" {
		return
	}
	c.rememberAnswer(messageID, interactionID)

	for _, emoji := range []string{thumbsUp, thumbsDown} {
		if err := c.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
			logger.DebugCF("discord", "Failed to add feedback reaction", map[string]any{
				"error": err.Error(),
			})
			return
		}
	}
}

func (c *DiscordChannel) handleReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r == nil || c.trail == nil {
		return
	}
	if r.UserID == s.State.User.ID {
		return
	}

	var feedback int
	switch r.Emoji.Name {
	case thumbsUp:
		feedback = 1
	case thumbsDown:
		feedback = -1
	default:
		return
	}

	c.recentMu.Lock()
	interactionID, ok := c.recent[r.MessageID]
	c.recentMu.Unlock()
	if !ok {
		return
	}

	if err := c.trail.SetFeedback(context.Background(), interactionID, feedback); err != nil {
		logger.WarnCF("discord", "Failed to record feedback", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.InfoCF("discord", "Feedback recorded", map[string]any{
		"interaction_id": interactionID,
		"feedback":       feedback,
	})
}

func (c *DiscordChannel) rememberAnswer(messageID, interactionID string) {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()

	c.recent[messageID] = interactionID
	c.recentOrder = append(c.recentOrder, messageID)
	for len(c.recentOrder) > recentAnswerLimit {
		oldest := c.recentOrder[0]
		c.recentOrder = c.recentOrder[1:]
		delete(c.recent, oldest)
	}
}
