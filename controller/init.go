package controller

import (
	"finchat/platform"
	"finchat/service"
)

var (
	settingsService *service.SettingsService
	chatService     *service.ChatService
)

// InitServices wires the controller-level services. Must run after the env
// file is loaded because the key sealer reads SETTINGS_ENC_KEY.
func InitServices() error {
	sealer, err := platform.NewKeySealerFromEnv()
	if err != nil {
		return err
	}
	settingsService = service.NewSettingsService(sealer)
	chatService = service.NewChatService(settingsService)
	return nil
}
