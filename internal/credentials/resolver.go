package credentials

import (
	"fmt"

	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/vault"
)

// ConfigError indicates missing or incomplete application credentials.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "credentials: " + e.Message
}

// GlobalCredentials are the shared platform application credentials,
// sourced from the environment.
type GlobalCredentials struct {
	ClientID     string
	ClientSecret string
	BotToken     string
}

// CustomCredentials are a tenant's own application credentials as stored,
// with secrets encrypted at rest. The Enc*Legacy fields carry the historic
// column names still present in older tenant rows.
type CustomCredentials struct {
	ClientID             string
	EncClientSecret      string
	EncClientSecretLegacy string
	EncBotToken          string
	EncBotTokenLegacy    string
}

// ResolvedCredentials is the decrypted credential set handed to the OAuth
// and bot API calls. Plaintext secrets live only for the duration of the
// operation that resolved them.
type ResolvedCredentials struct {
	ClientID     string
	ClientSecret string
	BotToken     string
}

// Resolve selects and decrypts the active application credentials for a
// tenant. Pure function: no I/O, no caching.
func Resolve(botMode constants.BotMode, global GlobalCredentials, custom CustomCredentials, keyMaterial string) (*ResolvedCredentials, error) {
	switch botMode {
	case constants.BotModeGlobal:
		if global.ClientID == "" || global.ClientSecret == "" || global.BotToken == "" {
			return nil, &ConfigError{Message: "missing global credentials"}
		}
		return &ResolvedCredentials{
			ClientID:     global.ClientID,
			ClientSecret: global.ClientSecret,
			BotToken:     global.BotToken,
		}, nil

	case constants.BotModeCustom:
		if keyMaterial == "" {
			return nil, &ConfigError{Message: "missing vault key material"}
		}

		encSecret := firstNonEmpty(custom.EncClientSecret, custom.EncClientSecretLegacy)
		encToken := firstNonEmpty(custom.EncBotToken, custom.EncBotTokenLegacy)

		if custom.ClientID == "" || encSecret == "" || encToken == "" {
			return nil, &ConfigError{Message: "incomplete custom credentials"}
		}

		clientSecret, err := vault.Decrypt(encSecret, keyMaterial)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
		}

		botToken, err := vault.Decrypt(encToken, keyMaterial)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt bot token: %w", err)
		}

		return &ResolvedCredentials{
			ClientID:     custom.ClientID,
			ClientSecret: clientSecret,
			BotToken:     botToken,
		}, nil

	default:
		return nil, &ConfigError{Message: fmt.Sprintf("unknown bot mode %q", botMode)}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
