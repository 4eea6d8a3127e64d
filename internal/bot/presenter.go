package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"attendancebot/internal/attendance"
	"attendancebot/internal/db"
	"attendancebot/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

const (
	colorActive = 0x57F287
	colorEnded  = 0xED4245
	colorReport = 0x3498DB

	embedFieldLimit  = 1024
	reportLineLimit  = 20
	selectOptionsMax = 25
)

// messageRef locates the interactive message of a shift.
type messageRef struct {
	ChannelID string
	MessageID string
}

// presenter renders shift events into Discord messages and archives reports.
type presenter struct {
	session  *discordgo.Session
	archive  *db.DB
	identity identityChain
	now      func() time.Time

	mu   sync.Mutex
	refs map[string]messageRef
}

var _ attendance.Sink = (*presenter)(nil)

func newPresenter(s *discordgo.Session, archive *db.DB, identity identityChain) *presenter {
	return &presenter{
		session:  s,
		archive:  archive,
		identity: identity,
		now:      time.Now,
		refs:     make(map[string]messageRef),
	}
}

func (p *presenter) track(shiftID string, ref messageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[shiftID] = ref
}

func (p *presenter) forget(shiftID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refs, shiftID)
}

func (p *presenter) ref(shiftID string) (messageRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.refs[shiftID]
	return ref, ok
}

func (p *presenter) OnStateChanged(_ context.Context, shift *attendance.Shift) error {
	ref, ok := p.ref(shift.ID)
	if !ok {
		return nil
	}
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     []*discordgo.MessageEmbed{p.shiftEmbed(shift)},
		Components: shiftComponents(shift),
	})
	if err != nil {
		return fmt.Errorf("error updating shift message: %w", err)
	}
	return nil
}

func (p *presenter) OnActionsClosed(_ context.Context, shift *attendance.Shift) error {
	ref, ok := p.ref(shift.ID)
	if !ok {
		return nil
	}
	return p.closeActions(ref, shift)
}

func (p *presenter) closeActions(ref messageRef, shift *attendance.Shift) error {
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     []*discordgo.MessageEmbed{p.shiftEmbed(shift)},
		Components: []discordgo.MessageComponent{},
	})
	if err != nil {
		return fmt.Errorf("error removing shift buttons: %w", err)
	}
	return nil
}

func (p *presenter) OnReport(ctx context.Context, shift *attendance.Shift, report *attendance.Report) error {
	host := p.identity.Resolve(shift.GuildID, report.HostID)

	log.Printf("SHIFT LOG: %s | host: %s | duration: %s | passed: %d, failed: %d",
		report.Title, host.DisplayName, formatDuration(report.Duration), len(report.Passed), len(report.Failed))

	var errs []string
	if p.archive != nil {
		if err := p.archive.SaveShiftReport(ctx, archiveRecord(report)); err != nil {
			errs = append(errs, fmt.Sprintf("archive: %v", err))
		}
	}

	if ref, ok := p.ref(shift.ID); ok {
		embed := p.reportEmbed(report, host)
		if _, err := p.session.ChannelMessageSendEmbed(ref.ChannelID, embed); err != nil {
			errs = append(errs, fmt.Sprintf("send: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("report delivery: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (p *presenter) OnGraceExpired(_ context.Context, attendeeID, shiftTitle string) error {
	ch, err := p.session.UserChannelCreate(attendeeID)
	if err != nil {
		return fmt.Errorf("error opening DM: %w", err)
	}
	_, err = p.session.ChannelMessageSend(ch.ID, fmt.Sprintf(
		"⚠️ You left the voice channel for %s and did not return in time. Your attendance has been recorded.",
		shiftTitle))
	return err
}

func (p *presenter) shiftEmbed(shift *attendance.Shift) *discordgo.MessageEmbed {
	host := p.identity.Resolve(shift.GuildID, shift.HostID)

	end := p.now()
	title := "🟢 " + shift.Title
	description := "**Active Clock-in Shift**\nUse the button to count your attendance."
	color := colorActive
	footer := "Click ✅ Join to register for the shift"
	if shift.Ended() {
		if shift.EndTime != nil {
			end = *shift.EndTime
		}
		title = "🔴 " + shift.Title
		description = "**Shift Ended**"
		color = colorEnded
		footer = "Shift Ended"
	}

	lines := attendeeLines(shift, end, func(id string) string {
		return p.identity.Resolve(shift.GuildID, id).DisplayName
	})
	present := "—"
	if len(lines) > 0 {
		present = clipField(strings.Join(lines, "\n"))
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   shift.StartTime.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Host", Value: host.Mention, Inline: true},
			{Name: "⏱️ Elapsed Time", Value: formatDuration(end.Sub(shift.StartTime)), Inline: true},
			{Name: "🎙️ Voice Channel", Value: "<#" + shift.ChannelID + ">", Inline: true},
			{Name: "📅 Start", Value: fmt.Sprintf("<t:%d:R>", shift.StartTime.Unix()), Inline: true},
			{Name: fmt.Sprintf("👥 Present (%d)", len(shift.Attendees)), Value: present, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: footer},
	}
}

// attendeeLines renders one line per attendee, sorted by display name.
// Active shifts show presence so far; ended shifts show the final grade.
func attendeeLines(shift *attendance.Shift, now time.Time, nameOf func(id string) string) []string {
	type line struct{ name, text string }
	var out []line
	for id, rec := range shift.Attendees {
		name := nameOf(id)
		var text string
		switch {
		case shift.Ended():
			end := now
			if shift.EndTime != nil {
				end = *shift.EndTime
			}
			grade := attendance.Score(rec.Sessions, shift.StartTime, end)
			mark := "❌"
			if attendance.Passes(grade, shift.MinAttendance) {
				mark = "✅"
			}
			text = fmt.Sprintf("%s %s (%s)", mark, name, formatPercent(grade))
		case rec.LeftAt != nil:
			text = fmt.Sprintf("🔴 %s (%s)", name, formatDuration(attendance.Presence(rec.Sessions, shift.StartTime, *rec.LeftAt)))
		default:
			text = fmt.Sprintf("🟢 %s (%s)", name, formatDuration(attendance.Presence(rec.Sessions, shift.StartTime, now)))
		}
		out = append(out, line{name: name, text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })

	texts := make([]string, len(out))
	for i, l := range out {
		texts[i] = l.text
	}
	return texts
}

func (p *presenter) reportEmbed(report *attendance.Report, host identity) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "👤 Host", Value: host.Mention, Inline: true},
		{
			Name:   "⏱️ Duration",
			Value:  fmt.Sprintf("%s (%.1f min)", formatDuration(report.Duration), report.Duration.Minutes()),
			Inline: true,
		},
	}

	nameOf := func(id string) string { return p.identity.Resolve(report.GuildID, id).DisplayName }
	if len(report.Passed) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("✅ Passed (%d)", len(report.Passed)),
			Value: clipField(resultList("✅", report.Passed, nameOf)),
		})
	}
	if len(report.Failed) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("❌ Failed (%d)", len(report.Failed)),
			Value: clipField(resultList("❌", report.Failed, nameOf)),
		})
	}

	return &discordgo.MessageEmbed{
		Title:     "📊 Shift Results: " + report.Title,
		Color:     colorReport,
		Timestamp: report.End.Format(time.RFC3339),
		Fields:    fields,
	}
}

// resultList lists at most reportLineLimit results, then a count of the rest.
func resultList(mark string, results []attendance.AttendeeResult, nameOf func(id string) string) string {
	var b strings.Builder
	for i, res := range results {
		if i == reportLineLimit {
			fmt.Fprintf(&b, "\n... and %d more", len(results)-reportLineLimit)
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s: %s", mark, nameOf(res.AttendeeID), formatPercent(res.Attendance))
	}
	return b.String()
}

// archiveRecord converts a report into its archived form.
func archiveRecord(report *attendance.Report) *models.ShiftReport {
	rec := &models.ShiftReport{
		ShiftID:       report.ShiftID,
		GuildID:       report.GuildID,
		Title:         report.Title,
		HostID:        report.HostID,
		MinAttendance: report.MinAttendance,
		StartedAt:     report.Start,
		EndedAt:       report.End,
		PassedIDs:     []string{},
		FailedIDs:     []string{},
	}
	add := func(res attendance.AttendeeResult) {
		rec.Results = append(rec.Results, &models.AttendeeResult{
			AttendeeID:      res.AttendeeID,
			PresenceSeconds: int64(res.Presence / time.Second),
			Attendance:      res.Attendance,
			Passed:          res.Passed,
		})
	}
	for _, res := range report.Passed {
		rec.PassedIDs = append(rec.PassedIDs, res.AttendeeID)
		add(res)
	}
	for _, res := range report.Failed {
		rec.FailedIDs = append(rec.FailedIDs, res.AttendeeID)
		add(res)
	}
	return rec
}

func clipField(s string) string {
	r := []rune(s)
	if len(r) <= embedFieldLimit {
		return s
	}
	return string(r[:embedFieldLimit-3]) + "..."
}
