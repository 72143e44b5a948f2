package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/klemjul/chatai/internal/app"
	"github.com/klemjul/chatai/internal/backend"
	"github.com/klemjul/chatai/internal/clipboard"
	"github.com/klemjul/chatai/internal/config"
	"github.com/klemjul/chatai/internal/identity"
	"github.com/klemjul/chatai/internal/llm"
	"github.com/klemjul/chatai/internal/speech"
	"github.com/klemjul/chatai/internal/ui"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTUIService struct {
	mock.Mock
}

func (m *MockTUIService) InitialModel(opts ui.Options) ui.Model {
	args := m.Called(opts)
	return args.Get(0).(ui.Model)
}

func (m *MockTUIService) Run(model ui.Model) (returnModel tea.Model, returnErr error) {
	args := m.Called(model)
	return args.Get(0).(tea.Model), args.Error(1)
}

type MockLLMService struct {
	mock.Mock
}

func (m *MockLLMService) NewClient(provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error) {
	args := m.Called(provider, opts)
	return args.Get(0).(llm.LLMClient), args.Error(1)
}

type MockLLMClient struct {
	mock.Mock
}

func (c *MockLLMClient) Send(ctx context.Context, messages []llm.Message) (*llm.LLMSendResponse, error) {
	args := c.Called(ctx, messages)
	return args.Get(0).(*llm.LLMSendResponse), args.Error(1)
}

func (c *MockLLMClient) Stream(ctx context.Context, messages []llm.Message) <-chan llm.LLMStreamEvent {
	args := c.Called(ctx, messages)
	return args.Get(0).(<-chan llm.LLMStreamEvent)
}

type MockFormatClient struct {
	mock.Mock
}

func (l *MockFormatClient) FormatMarkdown(text string) (string, error) {
	args := l.Called(text)
	return args.Get(0).(string), args.Error(1)
}

type MockSpeechService struct {
	mock.Mock
}

func (s *MockSpeechService) NewRecognizer(commandLine string) speech.Recognizer {
	args := s.Called(commandLine)
	return args.Get(0).(speech.Recognizer)
}

type MockIdentityService struct {
	mock.Mock
}

func (i *MockIdentityService) Resolve(displayName string, avatarURL string) identity.Identity {
	args := i.Called(displayName, avatarURL)
	return args.Get(0).(identity.Identity)
}

type MockClipboard struct {
	mock.Mock
}

func (c *MockClipboard) WriteAll(text string) error {
	args := c.Called(text)
	return args.Error(0)
}

type MockApp struct {
	tui       *MockTUIService
	llm       *MockLLMService
	format    *MockFormatClient
	speech    *MockSpeechService
	identity  *MockIdentityService
	clipboard *MockClipboard
}

func (a *MockApp) TUI() app.TUIService           { return a.tui }
func (a *MockApp) LLM() app.LLMService           { return a.llm }
func (a *MockApp) Format() app.TextFormatService { return a.format }
func (a *MockApp) Speech() app.SpeechService     { return a.speech }
func (a *MockApp) Identity() app.IdentityService { return a.identity }
func (a *MockApp) Clipboard() clipboard.Writer   { return a.clipboard }

func NewMockApp() app.App {
	return &MockApp{
		tui:       &MockTUIService{},
		llm:       &MockLLMService{},
		format:    &MockFormatClient{},
		speech:    &MockSpeechService{},
		identity:  &MockIdentityService{},
		clipboard: &MockClipboard{},
	}
}

func TestMain(m *testing.M) {
	clearEnvWithPrefix(config.ENV_PREFIX)
	os.Exit(m.Run())
}

func clearEnvWithPrefix(prefix string) {
	for _, env := range os.Environ() {
		kv := strings.SplitN(env, "=", 2)
		key := kv[0]
		if strings.HasPrefix(key, prefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func executeRootCommand(app app.App, args ...string) (string, error) {
	viper.Reset()
	cmd := RootCommand(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
	})

	_, err := cmd.ExecuteC()
	return buf.String(), err
}

type chatRequest struct {
	PromptMessage string `json:"prompt_message"`
	SessionID     string `json:"session_id"`
}

func newChatServer(t *testing.T, reply string, received *chatRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if received != nil {
			_ = json.NewDecoder(r.Body).Decode(received)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"message": %q}`, reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRun_WithMessage_ShouldAskHTTPBackend(t *testing.T) {
	app := NewMockApp()
	var received chatRequest
	server := newChatServer(t, "aires", &received)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)

	output, err := executeRootCommand(app, "--endpoint", server.URL, "--session-id=abc", "-m", "What is Go?")

	require.NoError(t, err)
	assert.Equal(t, "formated res", output)
	assert.Equal(t, chatRequest{PromptMessage: "What is Go?", SessionID: "abc"}, received)
	app.Format().(*MockFormatClient).AssertExpectations(t)
}

func TestRun_WithMessage_ShouldGenerateSessionID(t *testing.T) {
	app := NewMockApp()
	var received chatRequest
	server := newChatServer(t, "aires", &received)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)

	_, err := executeRootCommand(app, "--endpoint", server.URL, "-m", "Hello")

	require.NoError(t, err)
	_, parseErr := uuid.Parse(received.SessionID)
	assert.NoError(t, parseErr)
}

func TestRun_WithEmptyReply_ShouldPrintPlaceholder(t *testing.T) {
	app := NewMockApp()
	server := newChatServer(t, "", nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", ui.CHAT_NO_RESPONSE).Return("no response", nil)

	output, err := executeRootCommand(app, "--endpoint", server.URL, "-m", "Hello")

	require.NoError(t, err)
	assert.Equal(t, "no response", output)
}

func TestRun_WithMessage_ShouldAskLLM(t *testing.T) {
	testCases := []struct {
		name           string
		provider       string
		args           []string
		expectedModel  string
		expectedPrompt string
	}{
		{
			name:           "ollama with default prompt",
			provider:       "ollama",
			args:           []string{"--model=model"},
			expectedModel:  "model",
			expectedPrompt: backend.DefaultPrompt(backend.DEFAULT_BOT_NAME),
		},
		{
			name:           "openai with custom prompt and bot name",
			provider:       "openai",
			args:           []string{"-p=prompt", "--bot-name", "Aqiq"},
			expectedModel:  "",
			expectedPrompt: "prompt",
		},
		{
			name:           "default prompt names the bot",
			provider:       "openai",
			args:           []string{"--bot-name", "Aqiq"},
			expectedModel:  "",
			expectedPrompt: backend.DefaultPrompt("Aqiq"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := NewMockApp()
			mockLLMClient := MockLLMClient{}
			app.LLM().(*MockLLMService).
				On("NewClient", llm.LLMProvider(tc.provider), llm.LLMClientOptions{
					Model: tc.expectedModel,
				}).
				Return(&mockLLMClient, nil)
			mockLLMClient.
				On("Send", mock.Anything, []llm.Message{
					{Role: llm.System, Content: tc.expectedPrompt},
					{Role: llm.User, Content: "What is Go?"},
				}).
				Return(&llm.LLMSendResponse{Content: "aires"}, nil)
			app.Format().(*MockFormatClient).
				On("FormatMarkdown", "aires").Return("formated res", nil)

			args := append([]string{"--provider", tc.provider, "-m", "What is Go?"}, tc.args...)
			output, err := executeRootCommand(app, args...)

			require.NoError(t, err)
			assert.Equal(t, "formated res", output)
			app.LLM().(*MockLLMService).AssertExpectations(t)
			mockLLMClient.AssertExpectations(t)
			app.Format().(*MockFormatClient).AssertExpectations(t)
		})
	}
}

func TestRun_WithDynamicPrompt_ShouldUseFromEnv(t *testing.T) {
	app := NewMockApp()
	t.Setenv("CHATAI_PROMPT_5", "dynamic prompt 5")
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", llm.LLMProvider("ollama"), llm.LLMClientOptions{
			Model: "model",
		}).
		Return(&mockLLMClient, nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)
	mockLLMClient.
		On("Send", mock.Anything, []llm.Message{
			{Role: llm.System, Content: "dynamic prompt 5"},
			{Role: llm.User, Content: "Hello"},
		}).
		Return(&llm.LLMSendResponse{Content: "aires"}, nil)

	_, err := executeRootCommand(app, "--provider", "ollama", "--model=model", "--prompt", "5", "-m", "Hello")
	if err != nil {
		t.Error(err)
	}
	app.LLM().(*MockLLMService).AssertExpectations(t)
	mockLLMClient.AssertExpectations(t)
	app.Format().(*MockFormatClient).AssertExpectations(t)
}

func TestRun_WithContextFile_ShouldAddContextData(t *testing.T) {
	app := NewMockApp()
	contextFile := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(contextFile, []byte("Doppio is a coffee."), 0o644))
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", llm.LLMProvider("ollama"), mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)
	mockLLMClient.
		On("Send", mock.Anything, []llm.Message{
			{Role: llm.System, Content: "prompt\n\nContext data:\nDoppio is a coffee."},
			{Role: llm.User, Content: "What is Doppio?"},
		}).
		Return(&llm.LLMSendResponse{Content: "aires"}, nil)

	_, err := executeRootCommand(app, "--provider", "ollama", "--model=model", "-p=prompt",
		"--context-file", contextFile, "-m", "What is Doppio?")

	require.NoError(t, err)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithMissingContextFile_ShouldReturnError(t *testing.T) {
	app := NewMockApp()

	_, err := executeRootCommand(app, "--provider", "ollama", "--model=model",
		"--context-file", filepath.Join(t.TempDir(), "missing.md"), "-m", "Hello")

	assert.ErrorContains(t, err, "failed to read context file")
}

func TestRun_WithEnvFile_ShouldLoadConfig(t *testing.T) {
	app := NewMockApp()
	var received chatRequest
	server := newChatServer(t, "aires", &received)
	envFile := filepath.Join(t.TempDir(), ".env")
	content := fmt.Sprintf("CHATAI_ENDPOINT=%s\nCHATAI_SESSION_ID=from-env-file\n", server.URL)
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("CHATAI_ENDPOINT")
		os.Unsetenv("CHATAI_SESSION_ID")
	})
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)

	_, err := executeRootCommand(app, "--env-file", envFile, "-m", "Hello")

	require.NoError(t, err)
	assert.Equal(t, "from-env-file", received.SessionID)
}

func TestRun_WithInteractive_ShouldOpenChatMode(t *testing.T) {
	app := NewMockApp()
	server := newChatServer(t, "aires", nil)
	recognizer := speech.NewCommandRecognizer("whisper-cli --once")
	app.Identity().(*MockIdentityService).
		On("Resolve", "Ada Lovelace", "https://example.com/ada.png").
		Return(identity.Identity{DisplayName: "Ada Lovelace", AvatarURL: "https://example.com/ada.png"})
	app.Speech().(*MockSpeechService).
		On("NewRecognizer", "whisper-cli --once").
		Return(recognizer)
	app.TUI().(*MockTUIService).
		On("InitialModel", mock.MatchedBy(func(opts ui.Options) bool {
			_, err := uuid.Parse(opts.SessionID)
			return err == nil &&
				opts.Title == "Ask DoppioBot" &&
				opts.Greeting == "Salam!" &&
				opts.Identity.DisplayName == "Ada Lovelace" &&
				opts.Recognizer == recognizer &&
				opts.Clipboard != nil &&
				opts.Backend != nil &&
				opts.Stream &&
				opts.Timeout == 30*time.Second
		})).
		Return(ui.Model{})
	app.TUI().(*MockTUIService).
		On("Run", mock.AnythingOfType("ui.Model")).
		Return(ui.Model{}, nil)

	_, err := executeRootCommand(app, "--endpoint", server.URL, "--greeting", "Salam!", "--stream",
		"--timeout", "30s", "--user-name", "Ada Lovelace", "--user-avatar", "https://example.com/ada.png",
		"--voice-command", "whisper-cli --once")

	require.NoError(t, err)
	app.Identity().(*MockIdentityService).AssertExpectations(t)
	app.Speech().(*MockSpeechService).AssertExpectations(t)
	app.TUI().(*MockTUIService).AssertExpectations(t)
}

func TestRun_WithTitle_ShouldOverrideDefault(t *testing.T) {
	app := NewMockApp()
	server := newChatServer(t, "aires", nil)
	t.Setenv("CHATAI_TITLE", "Coffee corner")
	app.Identity().(*MockIdentityService).On("Resolve", "", "").Return(identity.Identity{})
	app.Speech().(*MockSpeechService).On("NewRecognizer", "").Return(speech.NewCommandRecognizer(""))
	app.TUI().(*MockTUIService).
		On("InitialModel", mock.MatchedBy(func(opts ui.Options) bool {
			return opts.Title == "Coffee corner"
		})).
		Return(ui.Model{})
	app.TUI().(*MockTUIService).
		On("Run", mock.AnythingOfType("ui.Model")).
		Return(ui.Model{}, fmt.Errorf("no tty"))

	_, err := executeRootCommand(app, "--endpoint", server.URL)

	assert.ErrorContains(t, err, "error running interactive mode")
	app.TUI().(*MockTUIService).AssertExpectations(t)
}

func TestRun_WithLogFile_ShouldWriteLogs(t *testing.T) {
	app := NewMockApp()
	server := newChatServer(t, "aires", nil)
	logFile := filepath.Join(t.TempDir(), "chatai.log")
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "aires").Return("formated res", nil)

	_, err := executeRootCommand(app, "--endpoint", server.URL, "--log-file", logFile, "-m", "Hello")

	require.NoError(t, err)
	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "starting chat")
}

func TestRun_WithInvalidLogLevel_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	logFile := filepath.Join(t.TempDir(), "chatai.log")

	_, err := executeRootCommand(app, "--endpoint", "http://localhost", "--log-file", logFile, "--log-level", "loud", "-m", "Hello")

	assert.ErrorContains(t, err, "invalid log level")
}

func TestRun_WithInvalidProvider_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--provider", "invalidprovider", "--model=model", "-p=prompt")
	assert.ErrorContains(t, err, "invalid provider")
}

func TestRun_WithNoEndpoint_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "-m", "Hello")
	assert.ErrorContains(t, err, "endpoint must be specified")
}

func TestRun_WithNoModel_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--provider", "ollama", "-p=prompt")
	assert.ErrorContains(t, err, "model must be specified")
}

func TestRun_WithInvalidTimeout_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--endpoint", "http://localhost", "--timeout", "0s")
	assert.ErrorContains(t, err, "timeout must be positive")
}

func TestRun_WithInvalidDynamicPrompt_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--provider", "ollama", "--model=model", "--prompt", "1", "-m", "Hello")
	assert.ErrorContains(t, err, "invalid prompt no, env variable not found PROMPT_1")
}

func TestRun_WithLLMNewClientError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	app.LLM().(*MockLLMService).
		On("NewClient", llm.LLMProvider("ollama"), mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&MockLLMClient{}, fmt.Errorf("NewClient error"))

	_, err := executeRootCommand(app, "--provider", "ollama", "--model=ollamam", "-p=prompt3", "-m", "Hello")

	assert.ErrorContains(t, err, "failed to create LLM client")
	app.LLM().(*MockLLMService).AssertExpectations(t)
}

func TestRun_WithLLMSendError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", llm.LLMProvider("ollama"), mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	mockLLMClient.On("Send", mock.Anything, mock.AnythingOfType("[]llm.Message")).
		Return(&llm.LLMSendResponse{}, fmt.Errorf("Send error"))

	_, err := executeRootCommand(app, "--provider", "ollama", "--model=ollamam", "-p=prompt3", "-m", "Hello")

	assert.ErrorContains(t, err, "failed to generate response")
	app.LLM().(*MockLLMService).AssertExpectations(t)
}

func TestRun_WithHTTPError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := executeRootCommand(app, "--endpoint", server.URL, "-m", "Hello")

	assert.ErrorContains(t, err, "failed to generate response")
}

func TestRun_WithFormatError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	server := newChatServer(t, "content", nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "content").
		Return("", fmt.Errorf("FormatMarkdownError"))

	_, err := executeRootCommand(app, "--endpoint", server.URL, "-m", "Hello")

	assert.ErrorContains(t, err, "failed to format response")
	app.Format().(*MockFormatClient).AssertExpectations(t)
}
