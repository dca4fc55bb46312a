package status

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/voicevault/voicevault/internal/domain"
)

// SlotView is a render-ready snapshot of one save slot.
type SlotView struct {
	Info    domain.SlotInfo
	Records []domain.Record
	Mapping domain.IdentityMapping
	// Detailed is false for catalog listings, where only Info is known.
	Detailed bool
}

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
}

func renderView(slots []SlotView, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("VoiceVault Slots"),
		s.header.Render(fmt.Sprintf("slots: %d", len(slots))),
	}

	if len(slots) == 0 {
		lines = append(lines, s.empty.Render("No saved slots."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, slot := range slots {
		lines = append(lines, s.section.Render(renderSlot(slot, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSlot(slot SlotView, opts RenderOptions, s styles) string {
	savedStyle := s.detail
	saved := savedAtLine(slot.Info, opts)
	if isStale(slot.Info, opts) {
		savedStyle = s.warning
		saved += " (stale)"
	}

	parts := []string{
		s.slot.Render(slotTitle(slot.Info)),
		savedStyle.Render(saved),
	}

	if !slot.Detailed {
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	if len(slot.Records) == 0 {
		parts = append(parts, s.empty.Render("no records"))
	}
	for _, line := range ownerLines(slot.Records) {
		parts = append(parts, s.owner.Render(line))
	}

	parts = append(parts, s.faint.Render(fmt.Sprintf("identity mappings: %d", len(slot.Mapping))))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func slotTitle(info domain.SlotInfo) string {
	return fmt.Sprintf("%s (%d records)", info.ID, info.Records)
}

func savedAtLine(info domain.SlotInfo, opts RenderOptions) string {
	if info.SavedAt.IsZero() {
		return "saved: unknown"
	}
	if opts.Now.IsZero() {
		return "saved: " + info.SavedAt.Format(time.RFC3339)
	}

	age := opts.Now.Sub(info.SavedAt).Round(time.Minute)
	return fmt.Sprintf("saved: %s (%s ago)", info.SavedAt.Format(time.RFC3339), age)
}

func isStale(info domain.SlotInfo, opts RenderOptions) bool {
	if opts.StaleAfter <= 0 || opts.Now.IsZero() || info.SavedAt.IsZero() {
		return false
	}
	return opts.Now.Sub(info.SavedAt) > opts.StaleAfter
}

func ownerLines(records []domain.Record) []string {
	counts := map[domain.SessionID]int{}
	payload := map[domain.SessionID]int{}
	for _, record := range records {
		counts[record.OwnerID]++
		payload[record.OwnerID] += len(record.Payload)
	}

	owners := make([]domain.SessionID, 0, len(counts))
	for owner := range counts {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	lines := make([]string, 0, len(owners))
	for _, owner := range owners {
		label := string(owner)
		if label == "" {
			label = "(unowned)"
		}
		lines = append(lines, fmt.Sprintf("%s: %d records, %d payload bytes", label, counts[owner], payload[owner]))
	}
	return lines
}
