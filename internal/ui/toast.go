package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ToastStatus string

const (
	ToastSuccess ToastStatus = "success"
	ToastError   ToastStatus = "error"
	ToastInfo    ToastStatus = "info"
)

const (
	DEFAULT_TOAST_DURATION = 5 * time.Second
	MAX_TOASTS             = 3
)

// Toast is a transient notification shown under the input until it expires.
type Toast struct {
	id          int
	Title       string
	Description string
	Status      ToastStatus
	Duration    time.Duration
}

type toastExpiredMsg struct {
	id int
}

func (m *Model) notify(toast Toast) tea.Cmd {
	m.nextToastID++
	toast.id = m.nextToastID
	if toast.Duration <= 0 {
		toast.Duration = DEFAULT_TOAST_DURATION
	}

	m.toasts = append(m.toasts, toast)
	if len(m.toasts) > MAX_TOASTS {
		m.toasts = m.toasts[len(m.toasts)-MAX_TOASTS:]
	}

	id := toast.id
	return tea.Tick(toast.Duration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) dismissToast(id int) {
	toasts := m.toasts[:0:0]
	for _, toast := range m.toasts {
		if toast.id != id {
			toasts = append(toasts, toast)
		}
	}
	m.toasts = toasts
}

func (t Toast) render() string {
	text := t.Title
	if t.Description != "" {
		text += " " + t.Description
	}
	switch t.Status {
	case ToastSuccess:
		return toastSuccessStyle.Render("✓ " + text)
	case ToastError:
		return toastErrorStyle.Render("✗ " + text)
	default:
		return toastInfoStyle.Render("• " + text)
	}
}
