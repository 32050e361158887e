package auth

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	profileName = "azureProfile.json"
	// EnvConfigDir overrides where the Azure CLI keeps its state
	EnvConfigDir = "AZURE_CONFIG_DIR"
)

// Subscription is an entry in the Azure CLI's profile.
type Subscription struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TenantID  string `json:"tenantId"`
	IsDefault bool   `json:"isDefault"`
}

type profile struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

// ProfilePath is where the Azure CLI keeps its list of subscriptions.
func ProfilePath() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, profileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".azure", profileName)
	}
	return filepath.Join(home, ".azure", profileName)
}

// DefaultSubscription returns the subscription the Azure CLI profile
// at path marks as default.
func DefaultSubscription(path string) (Subscription, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Subscription{}, errors.Wrap(err, "reading Azure CLI profile")
	}
	// The CLI writes the file with a byte order mark.
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	var p profile
	if err := json.Unmarshal(b, &p); err != nil {
		return Subscription{}, errors.Wrapf(err, "parsing %s", path)
	}
	for _, s := range p.Subscriptions {
		if s.IsDefault {
			return s, nil
		}
	}
	return Subscription{}, errors.Errorf("no default subscription in %s, run \"az account set\"", path)
}
