package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const installationFile = "installation_id"

// InstallationId returns the id stored in dir, creating one on first use.
func InstallationId(dir string) (string, error) {
	path := filepath.Join(dir, installationFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id.String(), nil
		}
		log.WithField("path", path).Warning("Invalid installation id, generating a new one")
	} else if !os.IsNotExist(err) {
		return "", errors.Wrap(err, 0)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, 0)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", errors.Wrap(err, 0)
	}
	return id, nil
}
