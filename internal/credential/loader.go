package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LoadDir reads every *.json file in dir and returns the credentials it
// could parse. A file may hold a single credential object or an array of
// them. Malformed or incomplete entries are skipped with a warning so one
// bad file does not block an import batch.
func LoadDir(dir string) ([]GoogleCredential, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("credential directory not configured")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read credential directory: %w", err)
	}

	var creds []GoogleCredential
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		parsed, err := loadFile(path)
		if err != nil {
			log.WithError(err).Warnf("skipping credential file %s", path)
			continue
		}
		creds = append(creds, parsed...)
	}
	return creds, nil
}

func loadFile(path string) ([]GoogleCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	var batch []GoogleCredential
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse credential array: %w", err)
		}
	} else {
		var single GoogleCredential
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parse credential: %w", err)
		}
		batch = append(batch, single)
	}

	valid := batch[:0]
	for _, c := range batch {
		if err := validate(c); err != nil {
			log.WithError(err).Warnf("ignoring credential entry in %s", path)
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

func validate(c GoogleCredential) error {
	switch {
	case strings.TrimSpace(c.RefreshToken) == "":
		return fmt.Errorf("missing refresh_token")
	case strings.TrimSpace(c.ClientID) == "":
		return fmt.Errorf("missing client_id")
	case strings.TrimSpace(c.ClientSecret) == "":
		return fmt.Errorf("missing client_secret")
	case strings.TrimSpace(c.ProjectID) == "":
		return fmt.Errorf("missing project_id")
	}
	return nil
}
