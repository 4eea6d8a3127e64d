package bot

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// formatDuration formats a duration as "1h 5m" or "5m"
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	m := (d - h*time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// formatPercent renders a 0..1 ratio as a whole percentage.
func formatPercent(ratio float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100)))
}

// respondWithError sends an error response to the user
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + errMsg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// respondWithSuccess sends a success response to the user
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// formatLogMessage prefixes a log line with the guild it concerns.
func formatLogMessage(guildID, msg, user, serverName string) string {
	var b strings.Builder
	b.WriteString("[")
	if serverName != "" {
		b.WriteString(serverName)
	} else if guildID != "" {
		b.WriteString(guildID)
	} else {
		b.WriteString("global")
	}
	b.WriteString("]")
	if user != "" {
		b.WriteString(" " + user + ":")
	}
	b.WriteString(" " + msg)
	return b.String()
}

func getServerName(s *discordgo.Session, guildID string) string {
	if guildID == "" || s == nil {
		return ""
	}
	if g, err := s.State.Guild(guildID); err == nil {
		return g.Name
	}
	return guildID
}

func interactionUsername(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return "unknown"
}

// logCommand logs command execution to console
func logCommand(s *discordgo.Session, i *discordgo.InteractionCreate, commandName string, details ...string) {
	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			params = append(params, fmt.Sprintf("%s:%s", opt.Name, opt.StringValue()))
		case discordgo.ApplicationCommandOptionInteger:
			params = append(params, fmt.Sprintf("%s:%d", opt.Name, opt.IntValue()))
		case discordgo.ApplicationCommandOptionNumber:
			params = append(params, fmt.Sprintf("%s:%g", opt.Name, opt.FloatValue()))
		case discordgo.ApplicationCommandOptionChannel:
			params = append(params, fmt.Sprintf("%s:<#%s>", opt.Name, opt.ChannelValue(nil).ID))
		}
	}

	logMessage := fmt.Sprintf("executed /%s", commandName)
	if len(params) > 0 {
		logMessage += fmt.Sprintf(" [%s]", strings.Join(params, ", "))
	}
	if len(details) > 0 {
		logMessage += fmt.Sprintf(" (%s)", strings.Join(details, " "))
	}
	log.Print(formatLogMessage(i.GuildID, logMessage, interactionUsername(i), getServerName(s, i.GuildID)))
}

// logError logs errors with the guild they happened in
func logError(guildID, errContext, errMsg string) {
	log.Print(formatLogMessage(guildID, fmt.Sprintf("ERROR - %s: %s", errContext, errMsg), "", ""))
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s + strings.Repeat(" ", maxLen-len(r))
	}
	return string(r[:maxLen-3]) + "..."
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len([]rune(header))
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	var result strings.Builder
	result.WriteString("```\n")
	for i, header := range headers {
		result.WriteString(padRight(header, widths[i]+2))
	}
	result.WriteString("\n")

	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				result.WriteString(padRight(cell, widths[i]+2))
			}
		}
		result.WriteString("\n")
	}
	result.WriteString("```")

	return result.String()
}

func padRight(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
