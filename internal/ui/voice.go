package ui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/chatai/internal/speech"
)

const (
	VOICE_SUBMIT_DELAY       = 500 * time.Millisecond
	VOICE_LISTENING_DURATION = 2 * time.Second

	VOICE_LISTENING_TITLE   = "Listening..."
	VOICE_BUSY_TITLE        = "Already listening..."
	VOICE_UNSUPPORTED_TITLE = "Speech recognition is not supported in this environment."
	VOICE_NO_SPEECH         = "No speech detected. Please try again."
	VOICE_AUDIO_CAPTURE     = "Microphone access is required to use voice input."
	VOICE_NOT_ALLOWED       = "Permission denied. Please enable microphone access in your system settings."
	VOICE_FAILED            = "Voice input failed. Please try again."
)

type voiceResultMsg struct {
	transcript string
	err        error
}

type voiceSubmitMsg struct{}

// voiceInput starts a single recognition session. Sessions never overlap.
func (m *Model) voiceInput() tea.Cmd {
	if m.recognizer == nil || !m.recognizer.Available() {
		return m.notify(Toast{Title: VOICE_UNSUPPORTED_TITLE, Status: ToastError})
	}
	if m.listening {
		return m.notify(Toast{Title: VOICE_BUSY_TITLE, Status: ToastInfo})
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.listening = true
	m.stopListening = cancel
	slog.Debug("speech recognition started")

	recognizer := m.recognizer
	return tea.Batch(
		m.notify(Toast{Title: VOICE_LISTENING_TITLE, Status: ToastInfo, Duration: VOICE_LISTENING_DURATION}),
		func() tea.Msg {
			transcript, err := recognizer.Recognize(ctx)
			return voiceResultMsg{transcript: transcript, err: err}
		},
	)
}

func (m *Model) handleVoiceResult(msg voiceResultMsg) tea.Cmd {
	m.listening = false
	if m.stopListening != nil {
		m.stopListening()
		m.stopListening = nil
	}

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		slog.Error("speech recognition failed", "error", msg.err, "code", speech.CodeOf(msg.err))
		return m.notify(Toast{Title: voiceErrorMessage(msg.err), Status: ToastError})
	}

	slog.Debug("speech recognized", "transcript", msg.transcript)
	m.textInput.SetValue(msg.transcript)

	return tea.Tick(m.voiceSubmitDelay, func(time.Time) tea.Msg {
		return voiceSubmitMsg{}
	})
}

func voiceErrorMessage(err error) string {
	if errors.Is(err, speech.ErrUnsupported) {
		return VOICE_UNSUPPORTED_TITLE
	}
	switch speech.CodeOf(err) {
	case speech.NoSpeech:
		return VOICE_NO_SPEECH
	case speech.AudioCapture:
		return VOICE_AUDIO_CAPTURE
	case speech.NotAllowed:
		return VOICE_NOT_ALLOWED
	default:
		return VOICE_FAILED
	}
}
