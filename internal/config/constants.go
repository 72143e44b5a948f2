package config

import (
	"fmt"
	"time"
)

const (
	ENV_PREFIX = "CHATAI"

	ENV_PROVIDER           = "PROVIDER"
	ENV_MODEL              = "MODEL"
	ENV_ENDPOINT           = "ENDPOINT"
	ENV_PROMPT             = "PROMPT"
	ENV_PROMPT_TOKEN_LIMIT = "PROMPT_TOKEN_LIMIT"
	ENV_BOT_NAME           = "BOT_NAME"
	ENV_CONTEXT_FILE       = "CONTEXT_FILE"
	ENV_SESSION_ID         = "SESSION_ID"
	ENV_USER_NAME          = "USER_NAME"
	ENV_USER_AVATAR        = "USER_AVATAR"
	ENV_TIMEOUT            = "TIMEOUT"
	ENV_STREAM             = "STREAM"
	ENV_VOICE_COMMAND      = "VOICE_COMMAND"
	ENV_LOG_FILE           = "LOG_FILE"
	ENV_LOG_LEVEL          = "LOG_LEVEL"
	ENV_TITLE              = "TITLE"
	ENV_GREETING           = "GREETING"

	DEFAULT_PROVIDER           = "http"
	DEFAULT_ENV_FILE           = ".env"
	DEFAULT_PROMPT_TOKEN_LIMIT = 4_000
	DEFAULT_TIMEOUT            = 60 * time.Second
	DEFAULT_LOG_LEVEL          = "info"
)

func GetEnvWithPrefix(env string) string {
	return fmt.Sprintf("%s_%s", ENV_PREFIX, env)
}
