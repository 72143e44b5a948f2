package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/klemjul/chatai/internal/app"
	"github.com/klemjul/chatai/internal/backend"
	"github.com/klemjul/chatai/internal/config"
	"github.com/klemjul/chatai/internal/llm"
	"github.com/klemjul/chatai/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func RootCommand(app app.App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatai",
		Short: "Chat with an AI assistant in the command line.",
		Args:  cobra.NoArgs,
		Example: `
chatai --endpoint http://localhost:8000/chat   # Chat with an HTTP chat backend
chatai --provider openai --stream   # Chat with OpenAI, replies streamed
chatai --provider ollama --model llama3 --context-file notes.md   # Chat about a file with Ollama
chatai --endpoint http://localhost:8000/chat -m "Hello"   # Ask a single question
	`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(cmd); err != nil {
				return err
			}
			return validate(cmd, args)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().SortFlags = false

	rootCmd.Flags().StringP("message", "m", "", "Send a single message, print the reply and exit.")
	rootCmd.Flags().String("provider", config.DEFAULT_PROVIDER,
		fmt.Sprintf("Chat backend to use: %v. (env: %s)", backend.Providers, config.GetEnvWithPrefix(config.ENV_PROVIDER)))
	rootCmd.Flags().String("endpoint", "",
		fmt.Sprintf("URL of the chat backend, required by the http provider. (env: %s)", config.GetEnvWithPrefix(config.ENV_ENDPOINT)))
	rootCmd.Flags().String("model", "",
		fmt.Sprintf("LLM model to use, depends on the provider. (env: %s)", config.GetEnvWithPrefix(config.ENV_MODEL)))
	rootCmd.Flags().StringP("prompt", "p", "",
		fmt.Sprintf(
			`System prompt of the openai and ollama providers. (env: %s)
- If <value> is a string, it will override the default and be used directly as the instructions.
- If <value> is a number, it will look for the environment variable %s_<number> instead.
`, config.GetEnvWithPrefix(config.ENV_PROMPT), config.GetEnvWithPrefix(config.ENV_PROMPT)))
	rootCmd.Flags().Int("prompt-token-limit", config.DEFAULT_PROMPT_TOKEN_LIMIT,
		fmt.Sprintf("Maximum number of tokens of a single message. (env: %s)", config.GetEnvWithPrefix(config.ENV_PROMPT_TOKEN_LIMIT)))
	rootCmd.Flags().String("bot-name", backend.DEFAULT_BOT_NAME,
		fmt.Sprintf("Name of the assistant. (env: %s)", config.GetEnvWithPrefix(config.ENV_BOT_NAME)))
	rootCmd.Flags().String("context-file", "",
		fmt.Sprintf("File whose content is given to the assistant as context data. (env: %s)", config.GetEnvWithPrefix(config.ENV_CONTEXT_FILE)))
	rootCmd.Flags().Bool("stream", false,
		fmt.Sprintf("Render replies while they are generated. (env: %s)", config.GetEnvWithPrefix(config.ENV_STREAM)))
	rootCmd.Flags().Duration("timeout", config.DEFAULT_TIMEOUT,
		fmt.Sprintf("Maximum time to wait for a reply. (env: %s)", config.GetEnvWithPrefix(config.ENV_TIMEOUT)))
	rootCmd.Flags().String("session-id", "",
		fmt.Sprintf("Conversation session id, generated when empty. (env: %s)", config.GetEnvWithPrefix(config.ENV_SESSION_ID)))
	rootCmd.Flags().String("user-name", "",
		fmt.Sprintf("Your display name, defaults to the system user. (env: %s)", config.GetEnvWithPrefix(config.ENV_USER_NAME)))
	rootCmd.Flags().String("user-avatar", "",
		fmt.Sprintf("URL of your avatar picture. (env: %s)", config.GetEnvWithPrefix(config.ENV_USER_AVATAR)))
	rootCmd.Flags().String("voice-command", "",
		fmt.Sprintf("Speech-to-text command printing the transcript on stdout. (env: %s)", config.GetEnvWithPrefix(config.ENV_VOICE_COMMAND)))
	rootCmd.Flags().String("title", "",
		fmt.Sprintf("Title of the chat window, defaults to \"Ask <bot name>\". (env: %s)", config.GetEnvWithPrefix(config.ENV_TITLE)))
	rootCmd.Flags().String("greeting", "",
		fmt.Sprintf("First message of the assistant. (env: %s)", config.GetEnvWithPrefix(config.ENV_GREETING)))
	rootCmd.Flags().String("log-file", "",
		fmt.Sprintf("Write logs to this file, logs are discarded when empty. (env: %s)", config.GetEnvWithPrefix(config.ENV_LOG_FILE)))
	rootCmd.Flags().String("log-level", config.DEFAULT_LOG_LEVEL,
		fmt.Sprintf("Log level: debug, info, warn or error. (env: %s)", config.GetEnvWithPrefix(config.ENV_LOG_LEVEL)))
	rootCmd.Flags().String("env-file", config.DEFAULT_ENV_FILE, "Load environment variables from this file when it exists.")

	viper.BindPFlag(config.ENV_PROVIDER, rootCmd.Flags().Lookup("provider"))
	viper.BindPFlag(config.ENV_ENDPOINT, rootCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag(config.ENV_MODEL, rootCmd.Flags().Lookup("model"))
	viper.BindPFlag(config.ENV_PROMPT, rootCmd.Flags().Lookup("prompt"))
	viper.BindPFlag(config.ENV_PROMPT_TOKEN_LIMIT, rootCmd.Flags().Lookup("prompt-token-limit"))
	viper.BindPFlag(config.ENV_BOT_NAME, rootCmd.Flags().Lookup("bot-name"))
	viper.BindPFlag(config.ENV_CONTEXT_FILE, rootCmd.Flags().Lookup("context-file"))
	viper.BindPFlag(config.ENV_STREAM, rootCmd.Flags().Lookup("stream"))
	viper.BindPFlag(config.ENV_TIMEOUT, rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag(config.ENV_SESSION_ID, rootCmd.Flags().Lookup("session-id"))
	viper.BindPFlag(config.ENV_USER_NAME, rootCmd.Flags().Lookup("user-name"))
	viper.BindPFlag(config.ENV_USER_AVATAR, rootCmd.Flags().Lookup("user-avatar"))
	viper.BindPFlag(config.ENV_VOICE_COMMAND, rootCmd.Flags().Lookup("voice-command"))
	viper.BindPFlag(config.ENV_TITLE, rootCmd.Flags().Lookup("title"))
	viper.BindPFlag(config.ENV_GREETING, rootCmd.Flags().Lookup("greeting"))
	viper.BindPFlag(config.ENV_LOG_FILE, rootCmd.Flags().Lookup("log-file"))
	viper.BindPFlag(config.ENV_LOG_LEVEL, rootCmd.Flags().Lookup("log-level"))

	viper.SetEnvPrefix(config.ENV_PREFIX)
	viper.AutomaticEnv()

	return rootCmd
}

// loadEnvFile exports the variables of the env file, variables already set
// in the environment win.
func loadEnvFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("env-file")
	if err != nil || path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %v", path, err)
	}
	return nil
}

func validate(cmd *cobra.Command, args []string) error {
	provider := viper.GetString(config.ENV_PROVIDER)
	if !slices.Contains(backend.Providers, backend.Provider(provider)) {
		return fmt.Errorf("invalid provider '%s'. Valid providers are: %v", provider, backend.Providers)
	}

	switch backend.Provider(provider) {
	case backend.ProviderHTTP:
		if viper.GetString(config.ENV_ENDPOINT) == "" {
			return fmt.Errorf("endpoint must be specified for the %s provider", provider)
		}
	case backend.ProviderOllama:
		if viper.GetString(config.ENV_MODEL) == "" {
			return fmt.Errorf("model must be specified for the %s provider", provider)
		}
	}

	if viper.GetDuration(config.ENV_TIMEOUT) <= 0 {
		return fmt.Errorf("timeout must be positive '%s'", viper.GetString(config.ENV_TIMEOUT))
	}

	return nil
}

func run(cmd *cobra.Command, args []string, app app.App) error {
	closeLogs, err := setupLogging(viper.GetString(config.ENV_LOG_FILE), viper.GetString(config.ENV_LOG_LEVEL))
	if err != nil {
		return err
	}
	defer closeLogs()

	responder, err := newResponder(app)
	if err != nil {
		return err
	}

	sessionID := viper.GetString(config.ENV_SESSION_ID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	timeout := viper.GetDuration(config.ENV_TIMEOUT)
	slog.Info("starting chat", "provider", viper.GetString(config.ENV_PROVIDER), "session_id", sessionID)

	message, err := cmd.Flags().GetString("message")
	if err != nil {
		message = ""
	}

	if strings.TrimSpace(message) != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		res, err := responder.Respond(ctx, backend.Request{PromptText: message, SessionID: sessionID})
		if err != nil {
			return fmt.Errorf("failed to generate response: %v", err)
		}
		reply := res.Message
		if reply == "" {
			reply = ui.CHAT_NO_RESPONSE
		}
		formattedRes, err := app.Format().FormatMarkdown(reply)
		if err != nil {
			return fmt.Errorf("failed to format response: %v", err)
		}
		cmd.OutOrStdout().Write([]byte(formattedRes))
		return nil
	}

	botName := viper.GetString(config.ENV_BOT_NAME)
	title := viper.GetString(config.ENV_TITLE)
	if title == "" {
		title = fmt.Sprintf("Ask %s", botName)
	}

	TUIModel := app.TUI().InitialModel(ui.Options{
		Context:    cmd.Context(),
		Title:      title,
		Greeting:   viper.GetString(config.ENV_GREETING),
		SessionID:  sessionID,
		Identity:   app.Identity().Resolve(viper.GetString(config.ENV_USER_NAME), viper.GetString(config.ENV_USER_AVATAR)),
		Backend:    responder,
		Stream:     viper.GetBool(config.ENV_STREAM),
		Timeout:    timeout,
		Clipboard:  app.Clipboard(),
		Recognizer: app.Speech().NewRecognizer(viper.GetString(config.ENV_VOICE_COMMAND)),
	})
	if _, err := app.TUI().Run(TUIModel); err != nil {
		return fmt.Errorf("error running interactive mode: %v", err)
	}
	return nil
}

func newResponder(app app.App) (backend.Responder, error) {
	provider := backend.Provider(viper.GetString(config.ENV_PROVIDER))
	if provider == backend.ProviderHTTP {
		return backend.NewHTTPResponder(viper.GetString(config.ENV_ENDPOINT), nil), nil
	}

	prompt, err := resolvePrompt()
	if err != nil {
		return nil, err
	}

	var contextData string
	if contextFile := viper.GetString(config.ENV_CONTEXT_FILE); contextFile != "" {
		data, err := os.ReadFile(contextFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read context file: %v", err)
		}
		contextData = string(data)
	}

	client, err := app.LLM().NewClient(llm.LLMProvider(provider), llm.LLMClientOptions{
		Model: viper.GetString(config.ENV_MODEL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %v", err)
	}

	return backend.NewLLMResponder(client, backend.LLMResponderOptions{
		Prompt:           prompt,
		ContextData:      contextData,
		PromptTokenLimit: viper.GetInt(config.ENV_PROMPT_TOKEN_LIMIT),
	}), nil
}

func resolvePrompt() (string, error) {
	prompt := viper.GetString(config.ENV_PROMPT)
	promptNo, err := strconv.Atoi(prompt)
	if err == nil {
		promptEnv := fmt.Sprintf("%s_%v", config.ENV_PROMPT, promptNo)
		prompt = viper.GetString(promptEnv)
		if prompt == "" {
			return "", fmt.Errorf("invalid prompt no, env variable not found %s", promptEnv)
		}
	}
	if prompt == "" {
		prompt = backend.DefaultPrompt(viper.GetString(config.ENV_BOT_NAME))
	}
	return prompt, nil
}

// setupLogging routes slog to path. The terminal belongs to the chat window,
// so logs are discarded when no file is configured.
func setupLogging(path string, level string) (func(), error) {
	discard := func() { slog.SetDefault(slog.New(slog.DiscardHandler)) }
	if path == "" {
		discard()
		return func() {}, nil
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", level)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: logLevel})))

	return func() {
		discard()
		file.Close()
	}, nil
}
