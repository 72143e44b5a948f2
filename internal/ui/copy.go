package ui

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/chatai/internal/clipboard"
)

const (
	COPY_SUCCESS_TITLE      = "Copied to clipboard"
	COPY_FAILED_TITLE       = "Failed to copy"
	COPY_FAILED_DESCRIPTION = "Your terminal may not support this feature."
)

type copyResultMsg struct {
	err error
}

// CopyToClipboard writes text to the clipboard in the background and reports
// the outcome as a message the panel turns into a toast.
func CopyToClipboard(writer clipboard.Writer, text string) tea.Cmd {
	return func() tea.Msg {
		if writer == nil {
			return copyResultMsg{err: clipboard.ErrUnsupported}
		}
		return copyResultMsg{err: writer.WriteAll(text)}
	}
}

func copyable(msg Message) bool {
	return msg.Origin == OriginAssistant && !msg.Pending && !msg.Failed && msg.Text != ""
}

func (m *Model) copyableReplies() []int {
	var indexes []int
	for i, msg := range m.messages {
		if copyable(msg) {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// selectReply moves the copy selection by delta replies. Moving past the
// latest reply goes back to following the latest one.
func (m *Model) selectReply(delta int) {
	replies := m.copyableReplies()
	if len(replies) == 0 {
		return
	}

	pos := len(replies) - 1
	for i, idx := range replies {
		if idx == m.selected {
			pos = i
		}
	}
	pos = min(max(pos+delta, 0), len(replies)-1)

	if pos == len(replies)-1 && delta > 0 {
		m.selected = -1
	} else {
		m.selected = replies[pos]
	}
	m.updateViewport()
}

// copySelectedReply copies the selected reply, or the latest one when none is selected.
func (m *Model) copySelectedReply() tea.Cmd {
	if m.selected >= 0 && m.selected < len(m.messages) && copyable(m.messages[m.selected]) {
		return CopyToClipboard(m.clipboard, m.messages[m.selected].Text)
	}

	replies := m.copyableReplies()
	if len(replies) == 0 {
		return nil
	}
	return CopyToClipboard(m.clipboard, m.messages[replies[len(replies)-1]].Text)
}

func (m *Model) handleCopyResult(msg copyResultMsg) tea.Cmd {
	if msg.err != nil {
		slog.Error("copy to clipboard failed", "error", msg.err)
		return m.notify(Toast{
			Title:       COPY_FAILED_TITLE,
			Description: COPY_FAILED_DESCRIPTION,
			Status:      ToastError,
		})
	}
	return m.notify(Toast{Title: COPY_SUCCESS_TITLE, Status: ToastSuccess})
}
