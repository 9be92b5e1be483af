package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"google.golang.org/api/option"
)

type CredentialSource string

const (
	SourceAPIKey CredentialSource = "api_key"
	SourceFile   CredentialSource = "service_account_file"
)

// Credentials is resolved once at startup and injected into the client.
type Credentials struct {
	Source CredentialSource
	APIKey string
	File   string
}

func (c Credentials) ClientOptions() []option.ClientOption {
	switch c.Source {
	case SourceAPIKey:
		return []option.ClientOption{option.WithAPIKey(c.APIKey)}
	case SourceFile:
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}

// ResolveCredentials returns the first usable credential: the explicit API
// key, then the first candidate path that is an existing regular file.
func ResolveCredentials(fs afero.Fs, apiKey string, candidates []string) (Credentials, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return Credentials{Source: SourceAPIKey, APIKey: key}, nil
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		path := expandHome(strings.TrimSpace(candidate))
		if path == "" {
			continue
		}
		tried = append(tried, path)
		info, err := fs.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return Credentials{Source: SourceFile, File: path}, nil
	}

	msg := "No Google Cloud Vision credentials found. Set vision.api_key (env PRIVLENS_VISION_API_KEY or GOOGLE_VISION_API_KEY)"
	if len(tried) > 0 {
		msg += fmt.Sprintf(" or place a service account key file at one of: %s", strings.Join(tried, ", "))
	} else {
		msg += " or configure vision.credential_files"
	}
	return Credentials{}, &ConfigurationError{Message: msg}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
