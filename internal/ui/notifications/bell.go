package notifications

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/theme"
)

// BellSize is the number of notifications listed in the bell dropdown.
const BellSize = 5

// BadgeCap is the largest unread count shown as a number.
const BadgeCap = 99

// Badge formats the unread counter. Zero hides the badge.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > BadgeCap:
		return strconv.Itoa(BadgeCap) + "+"
	default:
		return strconv.Itoa(unread)
	}
}

// TimeAgo renders how long ago t was, falling back to the date after a week.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2 Jan 2006")
	}
}

// TypeLabel is the short display name of a notification type.
func TypeLabel(t model.NotificationType) string {
	switch t {
	case model.NotificationApplicationUpdate:
		return "Application"
	case model.NotificationComplaintUpdate:
		return "Complaint"
	case model.NotificationReminder:
		return "Reminder"
	case model.NotificationSystem:
		return "System"
	default:
		return string(t)
	}
}

// BellSource is what the bell reads from the notification store.
type BellSource interface {
	UnreadCount() int
	Latest(n int) []model.Notification
}

// Bell is the header indicator with an optional dropdown of the latest
// notifications.
type Bell struct {
	src  BellSource
	now  func() time.Time
	open bool
}

// NewBell creates a bell over src.
func NewBell(src BellSource) Bell {
	return Bell{src: src, now: time.Now}
}

// Toggle opens or closes the dropdown.
func (b *Bell) Toggle() { b.open = !b.open }

// Close hides the dropdown.
func (b *Bell) Close() { b.open = false }

// Open reports whether the dropdown is showing.
func (b Bell) Open() bool { return b.open }

// Indicator renders the bell and its badge for the header.
func (b Bell) Indicator() string {
	badge := Badge(b.src.UnreadCount())
	if badge == "" {
		return theme.HeaderStyle.Render("🔔")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		theme.HeaderStyle.Render("🔔"),
		theme.BadgeStyle.Render(badge),
	)
}

// Dropdown renders the latest notifications, newest first.
func (b Bell) Dropdown(width int) string {
	items := b.src.Latest(BellSize)

	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("Notifications"))
	sb.WriteString("\n\n")

	if len(items) == 0 {
		sb.WriteString(theme.DimmedStyle.Render("No notifications"))
	}
	now := b.now()
	for i, n := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		title := theme.DimmedStyle.Render(n.Title)
		if !n.Read {
			title = theme.UnreadStyle.Render("• " + n.Title)
		}
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(lipgloss.NewStyle().Width(max(width-6, 10)).Render(n.Message))
		sb.WriteString("\n")
		sb.WriteString(theme.HelpStyle.Render(TimeAgo(n.CreatedAt, now)))
		sb.WriteString("\n")
	}
	if len(items) > 0 {
		sb.WriteString("\n")
		sb.WriteString(theme.HelpStyle.Render("1 view all"))
	}

	return theme.PanelStyle.Width(max(width-4, 20)).Render(sb.String())
}
