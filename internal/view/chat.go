package view

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"acplog/internal/format"
	"acplog/internal/model"
)

type alignment int

const (
	alignLeft alignment = iota
	alignCenter
	alignRight
)

func renderChatTranscript(events []model.Event, width int, useColor bool) []string {
	if width <= 0 {
		width = 80
	}
	padding := 2

	lines := make([]string, 0, len(events)*6)
	for idx, ev := range events {
		if idx > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderChatBubble(ev, width, padding, useColor)...)
	}
	return lines
}

func renderChatBubble(ev model.Event, totalWidth int, padding int, useColor bool) []string {
	bodyLines := format.RenderEventLines(ev, 0)

	maxContentWidth := totalWidth - padding*2 - 10
	if maxContentWidth < 20 {
		if totalWidth > 30 {
			maxContentWidth = totalWidth - 12
		} else {
			maxContentWidth = totalWidth - 8
		}
		if maxContentWidth < 8 {
			maxContentWidth = 8
		}
	}

	headerText, headerLabel, headerTime := chatHeader(format.Label(ev), ev.Time())
	content := wrapLines(append([]string{headerText}, bodyLines...), maxContentWidth)
	bubbleWidth := min(contentMaxWidth(content), maxContentWidth)

	leftPad := computeLeftPad(totalWidth, bubbleWidth, padding, alignmentFor(ev))

	if useColor && len(content) > 0 {
		colored := fmt.Sprintf("%s · %s",
			colorize(true, kindColor(ev), headerLabel),
			colorize(true, ansiTimestamp, headerTime),
		)
		content[0] = strings.Replace(content[0], headerText, colored, 1)
	}

	top := fmt.Sprintf("%s╭%s╮", strings.Repeat(" ", leftPad), strings.Repeat("─", bubbleWidth+2))
	bottom := fmt.Sprintf("%s╰%s╯", strings.Repeat(" ", leftPad), strings.Repeat("─", bubbleWidth+2))

	result := []string{top}
	for _, line := range content {
		result = append(result, renderBubbleBodyLine(line, bubbleWidth, leftPad, useColor))
	}
	result = append(result, bottom)
	return result
}

func renderBubbleBodyLine(line string, bubbleWidth int, leftPad int, useColor bool) string {
	displayLen := visibleWidth(line)
	if displayLen > bubbleWidth {
		line = truncateToWidth(line, bubbleWidth)
		displayLen = visibleWidth(line)
	}
	paddingRight := bubbleWidth - displayLen

	border := "│"
	if useColor {
		border = colorize(true, ansiSeparator, border)
	}

	return fmt.Sprintf("%s%s %s%s %s", strings.Repeat(" ", leftPad), border, line, strings.Repeat(" ", paddingRight), border)
}

func chatHeader(label string, ts string) (header string, title string, timeText string) {
	title = titleCase(label)
	if title == "" {
		title = "Event"
	}
	timeText = "-"
	if parsed := model.ParseTime(ts); !parsed.IsZero() {
		timeText = parsed.UTC().Format("Jan 02 15:04")
	}

	return fmt.Sprintf("%s · %s", title, timeText), title, timeText
}

// alignmentFor places user bubbles on the right, tool activity in the
// center and everything else on the left.
func alignmentFor(ev model.Event) alignment {
	switch e := ev.(type) {
	case model.MessageEvent:
		if e.Role == model.RoleUser {
			return alignRight
		}
		return alignLeft
	case model.ToolCallEvent, model.PermissionRequestEvent, model.PlanEvent:
		return alignCenter
	default:
		return alignLeft
	}
}

func computeLeftPad(totalWidth, bubbleWidth, padding int, align alignment) int {
	maxPad := max(totalWidth-bubbleWidth-4, 0)

	switch align {
	case alignRight:
		return maxPad
	case alignCenter:
		center := max(maxPad/2, padding)
		return min(center, maxPad)
	default:
		return min(padding, maxPad)
	}
}

func wrapLines(lines []string, width int) []string {
	var out []string
	for _, line := range lines {
		out = append(out, wrapText(line, width)...)
	}
	return out
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	text = strings.TrimRight(text, " ")
	if text == "" {
		return []string{""}
	}
	var out []string
	var current strings.Builder
	currentWidth := 0

	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if currentWidth+rw > width && current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			currentWidth = 0
		}
		current.WriteRune(r)
		currentWidth += rw
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func titleCase(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func contentMaxWidth(lines []string) int {
	widest := 0
	for _, line := range lines {
		widest = max(widest, visibleWidth(line))
	}
	return widest
}

func truncateToWidth(text string, width int) string {
	if visibleWidth(text) <= width {
		return text
	}
	var colored strings.Builder
	current := 0

	for i := 0; i < len(text); {
		if m := ansiPattern.FindStringIndex(text[i:]); m != nil && m[0] == 0 {
			colored.WriteString(text[i : i+m[1]])
			i += m[1]
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		colored.WriteRune(r)
		current += rw
		i += size
	}
	return colored.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func visibleWidth(text string) int {
	clean := ansiPattern.ReplaceAllString(text, "")
	return runewidth.StringWidth(clean)
}
