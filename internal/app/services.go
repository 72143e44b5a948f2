package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/chatai/internal/clipboard"
	"github.com/klemjul/chatai/internal/format"
	"github.com/klemjul/chatai/internal/identity"
	"github.com/klemjul/chatai/internal/llm"
	"github.com/klemjul/chatai/internal/speech"
	"github.com/klemjul/chatai/internal/ui"
)

type TUIService interface {
	InitialModel(opts ui.Options) ui.Model
	Run(model ui.Model) (returnModel tea.Model, returnErr error)
}

type LLMService interface {
	NewClient(provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error)
}

type TextFormatService interface {
	FormatMarkdown(text string) (string, error)
}

type SpeechService interface {
	NewRecognizer(commandLine string) speech.Recognizer
}

type IdentityService interface {
	Resolve(displayName string, avatarURL string) identity.Identity
}

type App interface {
	TUI() TUIService
	LLM() LLMService
	Format() TextFormatService
	Speech() SpeechService
	Identity() IdentityService
	Clipboard() clipboard.Writer
}

type DefaultTUIService struct{}

type DefaultLLMService struct{}

type DefaultTextFormatService struct{}

type DefaultSpeechService struct{}

type DefaultIdentityService struct{}

type DefaultApp struct {
	tui       TUIService
	llm       LLMService
	format    TextFormatService
	speech    SpeechService
	identity  IdentityService
	clipboard clipboard.Writer
}

func (a *DefaultApp) TUI() TUIService             { return a.tui }
func (a *DefaultApp) LLM() LLMService             { return a.llm }
func (a *DefaultApp) Format() TextFormatService   { return a.format }
func (a *DefaultApp) Speech() SpeechService       { return a.speech }
func (a *DefaultApp) Identity() IdentityService   { return a.identity }
func (a *DefaultApp) Clipboard() clipboard.Writer { return a.clipboard }

func (c *DefaultTUIService) InitialModel(opts ui.Options) ui.Model {
	return ui.InitialModel(opts)
}
func (c *DefaultTUIService) Run(model ui.Model) (returnModel tea.Model, returnErr error) {
	return tea.NewProgram(model, tea.WithAltScreen()).Run()
}

func (l *DefaultLLMService) NewClient(provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error) {
	return llm.NewClient(provider, opts)
}

func (l *DefaultTextFormatService) FormatMarkdown(text string) (string, error) {
	return format.FormatMarkdown(text)
}

func (s *DefaultSpeechService) NewRecognizer(commandLine string) speech.Recognizer {
	return speech.NewCommandRecognizer(commandLine)
}

func (i *DefaultIdentityService) Resolve(displayName string, avatarURL string) identity.Identity {
	return identity.Resolve(displayName, avatarURL)
}

func NewDefaultApp() App {
	return &DefaultApp{
		tui:       &DefaultTUIService{},
		llm:       &DefaultLLMService{},
		format:    &DefaultTextFormatService{},
		speech:    &DefaultSpeechService{},
		identity:  &DefaultIdentityService{},
		clipboard: clipboard.System{},
	}
}
