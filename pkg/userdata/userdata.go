// Package userdata loads the cloud-init boot scripts attached to machines
// at create time. The engine treats scripts as opaque payloads; it only
// base64-encodes them for the deploy call and never re-applies them to
// machines that already exist.
package userdata

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

type Script struct {
	encoded string
}

// Load reads a boot script from disk. An empty path or a missing file
// yields an empty script, which matches deployments that boot bare.
func Load(path string) (Script, error) {
	if path == "" {
		return Script{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Script{}, nil
		}

		return Script{}, fmt.Errorf("failed to read userdata script: %w", err)
	}

	return New(content), nil
}

func New(content []byte) Script {
	if len(content) == 0 {
		return Script{}
	}

	return Script{encoded: base64.StdEncoding.EncodeToString(content)}
}

// Base64 returns the wire form expected by the deploy API, empty when there
// is no script.
func (s Script) Base64() string { return s.encoded }

func (s Script) Empty() bool { return s.encoded == "" }
