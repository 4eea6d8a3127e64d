package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"attendancebot/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

const historyLimitMax = 25

func (b *Bot) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "clockinhistory")

	if b.db == nil {
		respondWithError(s, i, "Shift history is not enabled on this bot.")
		return
	}

	limit := b.config.Attendance.HistoryLimit
	shiftID := ""
	format := "text"
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "limit":
			limit = int(opt.IntValue())
		case "shift":
			shiftID = strings.TrimSpace(opt.StringValue())
		case "format":
			format = opt.StringValue()
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > historyLimitMax {
		limit = historyLimitMax
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nameOf := func(id string) string { return b.presenter.identity.Resolve(i.GuildID, id).DisplayName }

	if shiftID != "" {
		report, err := b.db.GetShiftReport(ctx, i.GuildID, shiftID)
		if err != nil {
			logError(i.GuildID, "GetShiftReport", err.Error())
			respondWithError(s, i, "Error retrieving shift history")
			return
		}
		if report == nil {
			respondWithError(s, i, "No archived shift with that id.")
			return
		}
		if format == "csv" {
			content, err := reportCSV(report, nameOf)
			if err != nil {
				logError(i.GuildID, "reportCSV", err.Error())
				respondWithError(s, i, "Error building the CSV export")
				return
			}
			respondWithFile(s, i, fmt.Sprintf("shift_%s.csv", report.ShiftID), content)
			return
		}
		respondWithSuccess(s, i, shiftDetail(report, nameOf))
		return
	}

	reports, err := b.db.GetRecentShiftReports(ctx, i.GuildID, limit)
	if err != nil {
		logError(i.GuildID, "GetRecentShiftReports", err.Error())
		respondWithError(s, i, "Error retrieving shift history")
		return
	}
	if len(reports) == 0 {
		respondWithSuccess(s, i, "No finished shifts yet.")
		return
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("# Last %d shifts\n\n", len(reports)))
	response.WriteString(formatTable(
		[]string{"ENDED", "SHIFT", "HOST", "DURATION", "PASSED", "ID"},
		historyRows(reports, nameOf),
	))
	respondWithSuccess(s, i, clipMessage(response.String()))
}

func historyRows(reports []*models.ShiftReport, nameOf func(id string) string) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		total := len(r.PassedIDs) + len(r.FailedIDs)
		rows = append(rows, []string{
			r.EndedAt.UTC().Format("2006-01-02 15:04"),
			strings.TrimSpace(truncateString(r.Title, 20)),
			strings.TrimSpace(truncateString(nameOf(r.HostID), 16)),
			formatDuration(r.Duration()),
			fmt.Sprintf("%d/%d", len(r.PassedIDs), total),
			shortID(r.ShiftID),
		})
	}
	return rows
}

func shiftDetail(r *models.ShiftReport, nameOf func(id string) string) string {
	results := sortedResults(r.Results, nameOf)

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		mark := "❌"
		if res.Passed {
			mark = "✅"
		}
		rows = append(rows, []string{
			mark,
			strings.TrimSpace(truncateString(nameOf(res.AttendeeID), 24)),
			formatDuration(time.Duration(res.PresenceSeconds) * time.Second),
			formatPercent(res.Attendance),
		})
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("# %s\n", r.Title))
	response.WriteString(fmt.Sprintf("Host: %s | Duration: %s | Minimum: %s\n\n",
		nameOf(r.HostID), formatDuration(r.Duration()), formatPercent(r.MinAttendance)))
	if len(rows) == 0 {
		response.WriteString("No participants.")
	} else {
		response.WriteString(formatTable([]string{"", "MEMBER", "PRESENT", "ATTENDANCE"}, rows))
	}
	return clipMessage(response.String())
}

func reportCSV(r *models.ShiftReport, nameOf func(id string) string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Member ID", "Member", "Presence Seconds", "Attendance", "Passed"}); err != nil {
		return nil, err
	}
	for _, res := range sortedResults(r.Results, nameOf) {
		err := w.Write([]string{
			res.AttendeeID,
			nameOf(res.AttendeeID),
			strconv.FormatInt(res.PresenceSeconds, 10),
			strconv.FormatFloat(res.Attendance, 'f', 2, 64),
			strconv.FormatBool(res.Passed),
		})
		if err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedResults(results []*models.AttendeeResult, nameOf func(id string) string) []*models.AttendeeResult {
	out := append([]*models.AttendeeResult(nil), results...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Passed != out[b].Passed {
			return out[a].Passed
		}
		return strings.ToLower(nameOf(out[a].AttendeeID)) < strings.ToLower(nameOf(out[b].AttendeeID))
	})
	return out
}

func respondWithFile(s *discordgo.Session, i *discordgo.InteractionCreate, name string, content []byte) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Files: []*discordgo.File{{
				Name:        name,
				ContentType: "text/csv",
				Reader:      bytes.NewReader(content),
			}},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logError(i.GuildID, "InteractionRespond", err.Error())
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// clipMessage keeps a reply under Discord's 2000 character limit.
func clipMessage(s string) string {
	const limit = 2000
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	clipped := string(r[:limit-8])
	if strings.Count(clipped, "```")%2 == 1 {
		return clipped + "\n…\n```"
	}
	return clipped + "\n…"
}
