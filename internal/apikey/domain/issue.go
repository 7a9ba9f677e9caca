package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const keyPrefix = "gh_"

// HashAPIKey hashes the raw API key using the same strategy as key creation.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue mints a new org-scoped key. The raw value is returned once and only
// its hash is persisted.
func Issue(genID *snowflake.Node, orgID snowflake.ID, name string, scopes []string) (*APIKey, string) {
	raw := keyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := &APIKey{
		ID:        genID.Generate(),
		OrgID:     orgID,
		KeyID:     uuid.NewString(),
		Name:      name,
		Scopes:    pq.StringArray(scopes),
		KeyHash:   HashAPIKey(raw),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	return key, raw
}
