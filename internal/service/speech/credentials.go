package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
)

// ErrMissingCredentials is returned when AppID or AccessToken is empty.
var ErrMissingCredentials = errors.New("speech config is missing AppID or AccessToken")

func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrMissingCredentials
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", ErrMissingCredentials
	}
	return appID, token, nil
}
