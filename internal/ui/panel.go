package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/klemjul/chatai/internal/backend"
	"github.com/klemjul/chatai/internal/clipboard"
	"github.com/klemjul/chatai/internal/format"
	"github.com/klemjul/chatai/internal/identity"
	"github.com/klemjul/chatai/internal/llm"
	"github.com/klemjul/chatai/internal/speech"
)

const (
	CHAT_INPUT_PLACEHOLDER = "Type your message here..."
	CHAT_GREETING          = "Hello! How can I help you today?"
	CHAT_TYPING_INDICATOR  = "Typing..."
	CHAT_NO_RESPONSE       = "(No response)"
	CHAT_FAILED_RESPONSE   = "(Failed to get a response)"
	CHAT_WAITING_RESPONSE  = "⏳ Waiting for response..."
	CHAT_LISTENING         = "🎤 Listening..."

	RESPONSE_ERROR_TITLE = "Something went wrong, check the logs for details."
	RESPONSE_BUSY_TITLE  = "Please wait for the current response."

	DEFAULT_REQUEST_TIMEOUT = 60 * time.Second
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	typingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Italic(true)
	titleStyle  = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true)
	avatarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	listeningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Italic(true)
	toastSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	toastErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	toastInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	selectedStyle     = lipgloss.NewStyle().
				BorderStyle(lipgloss.ThickBorder()).
				BorderLeft(true).
				BorderForeground(lipgloss.Color("212")).
				PaddingLeft(1)
)

type MarkdownRenderer func(text string, width int) (string, error)

type Options struct {
	// Context bounds every request issued by the panel.
	Context    context.Context
	Title      string
	Greeting   string
	SessionID  string
	Identity   identity.Identity
	Backend    backend.Responder
	Stream     bool
	Timeout    time.Duration
	Clipboard  clipboard.Writer
	Recognizer speech.Recognizer
	Render     MarkdownRenderer
}

type request struct {
	id     int
	index  int
	cancel context.CancelFunc
}

type renderKey struct {
	text  string
	width int
}

type responseMsg struct {
	id  int
	res *backend.Response
	err error
}

type streamMsg struct {
	id     int
	event  llm.LLMStreamEvent
	events <-chan llm.LLMStreamEvent
	closed bool
}

// Model is the conversation panel. It owns the message list, the pending
// input, the listening flag and at most one request in flight.
type Model struct {
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	messages  []Message
	// selected is the index of the reply picked for copy, -1 follows the latest one
	selected  int
	title     string
	identity  identity.Identity
	sessionID string

	backend    backend.Responder
	stream     bool
	timeout    time.Duration
	clipboard  clipboard.Writer
	recognizer speech.Recognizer
	render     MarkdownRenderer
	cache      map[renderKey]string

	ctx           context.Context
	inflight      *request
	nextRequestID int

	listening        bool
	stopListening    context.CancelFunc
	voiceSubmitDelay time.Duration

	toasts      []Toast
	nextToastID int
}

func InitialModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = CHAT_INPUT_PLACEHOLDER
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = typingStyle

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	greeting := opts.Greeting
	if greeting == "" {
		greeting = CHAT_GREETING
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DEFAULT_REQUEST_TIMEOUT
	}
	render := opts.Render
	if render == nil {
		render = format.FormatMarkdownWidth
	}

	return Model{
		textInput:        ti,
		viewport:         viewport.New(0, 0),
		spinner:          s,
		messages:         []Message{{Origin: OriginAssistant, Text: greeting}},
		selected:         -1,
		title:            opts.Title,
		identity:         opts.Identity,
		sessionID:        opts.SessionID,
		backend:          opts.Backend,
		stream:           opts.Stream,
		timeout:          timeout,
		clipboard:        opts.Clipboard,
		recognizer:       opts.Recognizer,
		render:           render,
		cache:            map[renderKey]string{},
		ctx:              ctx,
		voiceSubmitDelay: VOICE_SUBMIT_DELAY,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tea.EnableMouseCellMotion,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		titleLines := (lipgloss.Width(m.title) / max(msg.Width, 1)) + 1
		m.viewport = viewport.New(msg.Width, max(msg.Height-(5+titleLines), 0))
		m.textInput.Width = max(msg.Width-lipgloss.Width(m.avatar())-3, 0)
		m.updateViewport()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				m.viewport.ScrollUp(1)
			case tea.MouseButtonWheelDown:
				m.viewport.ScrollDown(1)
			}
		}

	case spinner.TickMsg:
		if m.inflight == nil {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd

	case responseMsg:
		cmd = m.handleResponse(msg)

	case streamMsg:
		cmd = m.handleStream(msg)

	case copyResultMsg:
		cmd = m.handleCopyResult(msg)

	case voiceResultMsg:
		cmd = m.handleVoiceResult(msg)

	case voiceSubmitMsg:
		cmd = m.submit(m.textInput.Value())

	case toastExpiredMsg:
		m.dismissToast(msg.id)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelAll()
			return m, tea.Quit
		case tea.KeyEnter:
			cmd = m.submit(m.textInput.Value())
		case tea.KeyCtrlR:
			cmd = m.voiceInput()
		case tea.KeyCtrlY:
			cmd = m.copySelectedReply()
		case tea.KeyCtrlP:
			m.selectReply(-1)
		case tea.KeyCtrlN:
			m.selectReply(1)
		}
	}

	m.textInput, _ = m.textInput.Update(msg)

	return m, cmd
}

// submit appends the user message and the pending assistant placeholder,
// then issues the request. Blank text is ignored and a second submission
// is rejected while a request is in flight.
func (m *Model) submit(text string) tea.Cmd {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if m.inflight != nil {
		return m.notify(Toast{Title: RESPONSE_BUSY_TITLE, Status: ToastInfo})
	}

	m.messages = append(m.messages,
		Message{Origin: OriginUser, Text: text},
		Message{Origin: OriginAssistant, Pending: true},
	)
	m.textInput.SetValue("")

	ctx, cancel := m.requestContext()
	m.nextRequestID++
	m.inflight = &request{id: m.nextRequestID, index: len(m.messages) - 1, cancel: cancel}
	m.updateViewport()

	req := backend.Request{PromptText: text, SessionID: m.sessionID}
	slog.Debug("sending prompt", "request_id", m.inflight.id, "session_id", m.sessionID)

	return tea.Batch(m.spinner.Tick, m.send(ctx, m.inflight.id, req))
}

func (m *Model) requestContext() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(m.ctx, m.timeout)
	}
	return context.WithCancel(m.ctx)
}

func (m *Model) send(ctx context.Context, id int, req backend.Request) tea.Cmd {
	if m.backend == nil {
		return func() tea.Msg {
			return responseMsg{id: id, err: errors.New("no backend configured")}
		}
	}

	if m.stream {
		if streamer, ok := m.backend.(backend.StreamResponder); ok {
			return waitForStream(id, streamer.RespondStream(ctx, req))
		}
	}

	responder := m.backend
	return func() tea.Msg {
		res, err := responder.Respond(ctx, req)
		return responseMsg{id: id, res: res, err: err}
	}
}

func waitForStream(id int, events <-chan llm.LLMStreamEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		return streamMsg{id: id, event: event, events: events, closed: !ok}
	}
}

func (m *Model) isCurrent(id int) bool {
	if m.inflight == nil || m.inflight.id != id {
		slog.Debug("discarding stale completion", "request_id", id)
		return false
	}
	return true
}

func (m *Model) handleResponse(msg responseMsg) tea.Cmd {
	if !m.isCurrent(msg.id) {
		return nil
	}

	if msg.err != nil {
		return m.failPending(msg.err)
	}

	var text string
	if msg.res != nil {
		text = msg.res.Message
	}
	m.resolvePending(text)
	return nil
}

func (m *Model) handleStream(msg streamMsg) tea.Cmd {
	if !m.isCurrent(msg.id) {
		if msg.closed {
			return nil
		}
		// keep reading so the producer can reach its final event
		return waitForStream(msg.id, msg.events)
	}

	idx := m.inflight.index
	if msg.closed {
		return m.failPending(errors.New("stream closed before completion"))
	}

	switch msg.event.Type {
	case llm.LLMStreamEventTypeComplete:
		m.resolvePending(m.messages[idx].Text)
		return nil
	case llm.LLMStreamEventTypeError:
		return m.failPending(errors.New(msg.event.Content))
	default:
		m.messages[idx].Text += msg.event.Content
		m.updateViewport()
		return waitForStream(msg.id, msg.events)
	}
}

func (m *Model) finishRequest() int {
	idx := m.inflight.index
	m.inflight.cancel()
	m.inflight = nil
	return idx
}

func (m *Model) resolvePending(text string) {
	idx := m.finishRequest()
	if text == "" {
		text = CHAT_NO_RESPONSE
	}
	m.messages[idx] = Message{Origin: OriginAssistant, Text: text}
	m.updateViewport()
}

func (m *Model) failPending(err error) tea.Cmd {
	idx := m.finishRequest()
	slog.Error("failed to get a response", "error", err, "session_id", m.sessionID)

	m.messages[idx] = Message{Origin: OriginAssistant, Failed: true}
	m.updateViewport()

	return m.notify(Toast{Title: RESPONSE_ERROR_TITLE, Status: ToastError})
}

// cancelAll releases the request and the recognition session in flight.
func (m *Model) cancelAll() {
	if m.inflight != nil {
		m.inflight.cancel()
	}
	if m.stopListening != nil {
		m.stopListening()
	}
}

func (m *Model) renderMarkdown(text string, width int) string {
	key := renderKey{text: text, width: width}
	if out, ok := m.cache[key]; ok {
		return out
	}
	out, err := m.render(text, width)
	if err != nil {
		slog.Warn("failed to render markdown", "error", err)
		out = text
	}
	out = strings.TrimSpace(out)
	m.cache[key] = out
	return out
}

func (m *Model) renderMessage(msg Message) string {
	switch msg.Origin {
	case OriginUser:
		return userStyle.Render(fmt.Sprintf("> %s", msg.Text))
	}

	typing := typingStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), CHAT_TYPING_INDICATOR))
	switch {
	case msg.Pending && msg.Text == "":
		return typing
	case msg.Pending:
		return botStyle.Render(msg.Text) + "\n" + typing
	case msg.Failed:
		return failedStyle.Render(CHAT_FAILED_RESPONSE)
	}

	text := msg.Text
	if text == "" {
		text = CHAT_NO_RESPONSE
	}
	return botStyle.Render(m.renderMarkdown(text, max(m.viewport.Width-2, 0)))
}

func (m *Model) updateViewport() {
	displayedMessages := make([]string, len(m.messages))
	for i, msg := range m.messages {
		displayedMessages[i] = m.renderMessage(msg)
		if i == m.selected {
			displayedMessages[i] = selectedStyle.Render(displayedMessages[i])
		}
	}

	content := strings.Join(displayedMessages, "\n\n")
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) avatar() string {
	badge := avatarStyle.Render(m.identity.Initials())
	if m.identity.AvatarURL == "" {
		return badge
	}
	// OSC 8 hyperlink, rendered as plain text by terminals without support
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", m.identity.AvatarURL, badge)
}

func (m Model) statusLine() string {
	if len(m.toasts) > 0 {
		return m.toasts[len(m.toasts)-1].render()
	}
	if m.listening {
		return listeningStyle.Render(CHAT_LISTENING)
	}
	if m.inflight != nil {
		return typingStyle.Render(CHAT_WAITING_RESPONSE)
	}
	return ""
}

func (m Model) helpLine() string {
	mic := "ctrl+r mic"
	if m.listening {
		mic = "ctrl+r mic (on)"
	}
	return helpStyle.Render(strings.Join([]string{"enter send", mic, "ctrl+p/n pick reply", "ctrl+y copy reply", "esc quit"}, " • "))
}

func (m Model) View() string {
	input := lipgloss.JoinHorizontal(lipgloss.Center, m.avatar(), " ", m.textInput.View())

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.viewport.Width).Render(m.title),
		m.viewport.View(),
		inputStyle.Width(m.viewport.Width).Render(input),
		m.statusLine(),
		m.helpLine(),
	)
}
