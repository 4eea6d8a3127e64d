package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"attendancebot/internal/attendance"

	"github.com/bwmarrin/discordgo"
)

const customIDPrefix = "clockin"

// Component actions carried in custom ids as clockin:<action>:<shift id>.
const (
	actionJoin   = "join"
	actionLeave  = "leave"
	actionFinish = "finish"
	actionEdit   = "edit"
	actionDelete = "delete"
	actionRemove = "remove"
)

var (
	minAttendanceFloor = 0.0

	commands = []*discordgo.ApplicationCommand{
		{
			Name:        "clockincreate",
			Description: "Create a clock-in shift (high-rank members only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Shift name",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "voice",
					Description:  "Voice channel to monitor",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "min_attendance",
					Description: "Minimum presence ratio to pass (0.25 = 25%)",
					Required:    false,
					MinValue:    &minAttendanceFloor,
					MaxValue:    1,
				},
			},
		},
		{
			Name:        "clockinhistory",
			Description: "Show archived shift results",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "shift",
					Description: "Shift id (or its first characters) for a detailed breakdown",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "format",
					Description: "Output format for a shift breakdown",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Text", Value: "text"},
						{Name: "CSV", Value: "csv"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "Number of shifts to list",
					Required:    false,
				},
			},
		},
	}
)

func customID(action, shiftID string) string {
	return customIDPrefix + ":" + action + ":" + shiftID
}

func parseCustomID(id string) (action, shiftID string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// shiftComponents are the buttons of an active shift; ended shifts have none.
func shiftComponents(shift *attendance.Shift) []discordgo.MessageComponent {
	if shift.Ended() {
		return []discordgo.MessageComponent{}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "✅ Join", Style: discordgo.SuccessButton, CustomID: customID(actionJoin, shift.ID)},
				discordgo.Button{Label: "❌ Leave", Style: discordgo.SecondaryButton, CustomID: customID(actionLeave, shift.ID)},
				discordgo.Button{Label: "⛔ Finish", Style: discordgo.DangerButton, CustomID: customID(actionFinish, shift.ID)},
				discordgo.Button{Label: "🛠️ Edit", Style: discordgo.PrimaryButton, CustomID: customID(actionEdit, shift.ID)},
				discordgo.Button{Label: "🗑️ Delete", Style: discordgo.DangerButton, CustomID: customID(actionDelete, shift.ID)},
			},
		},
	}
}

func (b *Bot) handleClockInCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "clockincreate")
	ctx := context.Background()
	user := i.Member.User

	if !b.access.HasElevatedRole(ctx, i.GuildID, user.ID) {
		respondWithError(s, i, fmt.Sprintf("Only members with role `%s` can create clock-ins.", b.config.Attendance.HighRankRole))
		return
	}

	params := attendance.CreateParams{
		GuildID:       i.GuildID,
		HostID:        user.ID,
		MinAttendance: b.config.Attendance.MinAttendance(),
	}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "title":
			params.Title = opt.StringValue()
		case "voice":
			params.ChannelID = opt.ChannelValue(nil).ID
		case "min_attendance":
			params.MinAttendance = opt.FloatValue()
		}
	}
	if params.Title == "" || params.ChannelID == "" {
		respondWithError(s, i, "Missing required options")
		return
	}

	shiftID, err := b.registry.Create(ctx, params)
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	shift, err := b.registry.Shift(shiftID)
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{b.presenter.shiftEmbed(shift)},
			Components: shiftComponents(shift),
		},
	})
	if err != nil {
		logError(i.GuildID, "InteractionRespond", err.Error())
		if err := b.registry.Delete(ctx, shiftID, user.ID); err != nil {
			logError(i.GuildID, "Delete", err.Error())
		}
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		// The shift keeps working; its message just won't be refreshed.
		logError(i.GuildID, "InteractionResponse", err.Error())
		return
	}
	b.presenter.track(shiftID, messageRef{ChannelID: msg.ChannelID, MessageID: msg.ID})
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	action, shiftID, ok := parseCustomID(data.CustomID)
	if !ok {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		respondWithError(s, i, "Error identifying member.")
		return
	}

	userID := i.Member.User.ID
	log.Print(formatLogMessage(i.GuildID, fmt.Sprintf("pressed %s on shift %s", action, shiftID),
		i.Member.User.Username, getServerName(s, i.GuildID)))

	switch action {
	case actionJoin:
		b.handleJoin(s, i, shiftID, userID)
	case actionLeave:
		b.handleLeave(s, i, shiftID, userID)
	case actionFinish:
		b.handleFinish(s, i, shiftID, userID)
	case actionEdit:
		b.handleEdit(s, i, shiftID, userID)
	case actionDelete:
		b.handleDelete(s, i, shiftID, userID)
	case actionRemove:
		if len(data.Values) == 0 {
			respondWithError(s, i, "No member selected.")
			return
		}
		b.handleRemove(s, i, shiftID, userID, data.Values[0])
	default:
		respondWithError(s, i, "Unknown action")
	}
}

func (b *Bot) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID string) {
	ctx := context.Background()
	shift, err := b.registry.Shift(shiftID)
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	if shift.Ended() {
		respondWithError(s, i, errorMessage(attendance.ErrAlreadyEnded))
		return
	}
	if _, err := b.access.voiceChannel(shift.ChannelID); err != nil {
		logError(i.GuildID, "voiceChannel", err.Error())
		respondWithError(s, i, errorMessage(attendance.ErrVoiceChannelUnavailable))
		return
	}
	present, err := b.access.InVoiceChannel(ctx, shift.GuildID, shift.ChannelID, userID)
	if err != nil {
		logError(i.GuildID, "InVoiceChannel", err.Error())
	}

	err = b.registry.Join(ctx, shiftID, userID, present)
	if errors.Is(err, attendance.ErrNotPresentInChannel) {
		respondWithError(s, i, fmt.Sprintf("You need to be in <#%s> to join the shift.", shift.ChannelID))
		return
	}
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	respondWithSuccess(s, i, "✅ Registered in the shift!")
}

func (b *Bot) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID string) {
	if err := b.registry.Leave(context.Background(), shiftID, userID); err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	respondWithSuccess(s, i, "❌ You left the shift.")
}

func (b *Bot) handleFinish(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID string) {
	_, err := b.registry.Finalize(context.Background(), shiftID, userID)
	if errors.Is(err, attendance.ErrAlreadyEnded) {
		// Clean up buttons left behind by an earlier finish.
		if shift, serr := b.registry.Shift(shiftID); serr == nil && i.Message != nil {
			ref := messageRef{ChannelID: i.ChannelID, MessageID: i.Message.ID}
			if cerr := b.presenter.closeActions(ref, shift); cerr != nil {
				logError(i.GuildID, "closeActions", cerr.Error())
			}
		}
		respondWithError(s, i, "⛔ This shift is already ended.")
		return
	}
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	respondWithSuccess(s, i, "⛔ Shift finished! Attendance and results have been calculated.")
}

func (b *Bot) handleEdit(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID string) {
	ctx := context.Background()
	ok, err := b.registry.IsAuthorized(ctx, shiftID, userID)
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	if !ok {
		respondWithError(s, i, errorMessage(attendance.ErrUnauthorized))
		return
	}

	ids, err := b.registry.Attendees(shiftID)
	if err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	if len(ids) > selectOptionsMax {
		ids = ids[:selectOptionsMax]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(ids))
	for _, id := range ids {
		options = append(options, discordgo.SelectMenuOption{
			Label:       b.presenter.identity.Resolve(i.GuildID, id).DisplayName,
			Value:       id,
			Description: "Remove from shift",
		})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Select who to remove from the shift:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    customID(actionRemove, shiftID),
							Placeholder: "Select a member to remove...",
							Options:     options,
						},
					},
				},
			},
		},
	})
	if err != nil {
		logError(i.GuildID, "InteractionRespond", err.Error())
	}
}

func (b *Bot) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID, targetID string) {
	if err := b.registry.RemoveAttendee(context.Background(), shiftID, userID, targetID); err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("✅ Removed <@%s> from the shift.", targetID))
}

func (b *Bot) handleDelete(s *discordgo.Session, i *discordgo.InteractionCreate, shiftID, userID string) {
	if err := b.registry.Delete(context.Background(), shiftID, userID); err != nil {
		respondWithError(s, i, errorMessage(err))
		return
	}
	b.presenter.forget(shiftID)

	if i.Message != nil {
		if err := s.ChannelMessageDelete(i.ChannelID, i.Message.ID); err != nil {
			logError(i.GuildID, "ChannelMessageDelete", err.Error())
		}
	}
	respondWithSuccess(s, i, "🗑️ Shift deleted.")
}

// errorMessage maps core error kinds to what the user sees.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, attendance.ErrShiftNotFound):
		return "This shift was not found."
	case errors.Is(err, attendance.ErrAlreadyEnded):
		return "This shift has already ended."
	case errors.Is(err, attendance.ErrNotPresentInChannel):
		return "You need to be in the voice channel to join the shift."
	case errors.Is(err, attendance.ErrAlreadyRegistered):
		return "You are already registered in the shift."
	case errors.Is(err, attendance.ErrNotRegistered):
		return "You were not part of this shift."
	case errors.Is(err, attendance.ErrUnauthorized):
		return "No permission for this shift."
	case errors.Is(err, attendance.ErrNoAttendees):
		return "No participants to edit."
	case errors.Is(err, attendance.ErrVoiceChannelUnavailable):
		return "Voice channel not found."
	case errors.Is(err, attendance.ErrInvalidMinAttendance):
		return "Minimum attendance must be between 0 and 1."
	default:
		return "Something went wrong. Try again later."
	}
}
