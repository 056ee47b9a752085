// Package audit logs one structured record per CLI command invocation: the
// command, the config file it resolved, and the backend settings in effect.
// Secrets are recorded as "set" or "unset", endpoint URLs lose any embedded
// credentials, and paths under the home directory are shortened to "~".
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/54b3r/ragdesk/internal/version"
)

// kind selects how a value is sanitised.
type kind int

const (
	plain kind = iota
	secret
	endpoint
	path
)

// auditEntry is one env var included in the audit record.
type auditEntry struct {
	key  string
	kind kind
}

// auditKeys is the ordered list of env vars included in every audit record.
var auditKeys = []auditEntry{
	{"MODEL_PROVIDER", plain},
	{"MODEL_CONTEXT_TOKENS", plain},
	{"OLLAMA_HOST", endpoint},
	{"OLLAMA_MODEL", plain},
	{"OPENAI_API_KEY", secret},
	{"OPENAI_MODEL", plain},
	{"OPENAI_BASE_URL", endpoint},
	{"AZURE_OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", endpoint},
	{"AZURE_OPENAI_DEPLOYMENT", plain},
	{"GROQ_API_KEY", secret},
	{"GROQ_MODEL", plain},
	{"ARK_API_KEY", secret},
	{"ARK_MODEL", plain},
	{"GOOGLE_API_KEY", secret},
	{"GEMINI_MODEL", plain},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_API_KEY", secret},
	{"EMBEDDING_BATCH_SIZE", plain},
	{"VECTOR_STORE", plain},
	{"QDRANT_HOST", endpoint},
	{"QDRANT_PORT", plain},
	{"QDRANT_COLLECTION", plain},
	{"QDRANT_API_KEY", secret},
	{"RERANK_PROVIDER", plain},
	{"COHERE_API_KEY", secret},
	{"CHUNK_UNIT", plain},
	{"CHUNK_SIZE", plain},
	{"CHUNK_OVERLAP", plain},
	{"RETRIEVE_TOP_K", plain},
	{"RETRIEVE_MIN_SCORE", plain},
	{"RERANK_TOP_K", plain},
	{"RAGDESK_API_KEY", secret},
	{"RAGDESK_QUERY_RPS", plain},
	{"RAGDESK_UPLOAD_RPS", plain},
	{"RAGDESK_LEDGER_DB", path},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
	{"LANGFUSE_HOST", endpoint},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// LogCommandStart emits the audit record for command. configPath is the YAML
// file that was loaded, or empty.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+3)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("version", version.Version),
		slog.String("config_file", shortenHome(configPath, "none")),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, sanitise(e.kind, os.Getenv(e.key))))
	}

	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the loggable form of an audited env var. Keys not in
// the audit list are treated as secrets.
func SanitiseKey(key, value string) string {
	for _, e := range auditKeys {
		if e.key == key {
			return sanitise(e.kind, value)
		}
	}
	return presence(value)
}

// sanitise renders value according to k. Empty values are "unset".
func sanitise(k kind, value string) string {
	switch k {
	case secret:
		return presence(value)
	case endpoint:
		return stripCredentials(value)
	case path:
		return shortenHome(value, "unset")
	default:
		return valOrUnset(value)
	}
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// stripCredentials removes the userinfo and query string from a URL.
// Values that do not parse as URLs with a host are returned unchanged.
func stripCredentials(v string) string {
	if v == "" {
		return "unset"
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return v
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// shortenHome replaces a home-directory prefix with "~". Empty paths render
// as empty.
func shortenHome(p, empty string) string {
	if p == "" {
		return empty
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
