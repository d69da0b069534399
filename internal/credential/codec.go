package credential

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Persistence codec for credential records. The on-disk/in-redis format is
// forward-compatible: unknown fields are ignored on load and preserved
// across rewrites (read-modify-write via gjson/sjson rather than a struct
// round-trip).

const recordTimeFormat = time.RFC3339Nano

var secretFields = []string{"api_key", "session_token", "issued_at", "expires_at"}

func encodeRecord(cred Credential) ([]byte, error) {
	return mergeRecord([]byte(`{}`), cred)
}

// mergeRecord writes cred's fields into an existing raw record, keeping any
// fields this version of the code does not know about.
func mergeRecord(existing []byte, cred Credential) ([]byte, error) {
	out := existing
	var err error
	if out, err = sjson.SetBytes(out, "kind", string(cred.Kind)); err != nil {
		return nil, fmt.Errorf("encode credential record: %w", err)
	}

	// Drop variant fields first so a kind switch leaves no stale secret.
	for _, field := range secretFields {
		if out, err = sjson.DeleteBytes(out, field); err != nil {
			return nil, fmt.Errorf("encode credential record: %w", err)
		}
	}

	switch cred.Kind {
	case KindAPIKey:
		if out, err = sjson.SetBytes(out, "api_key", cred.APIKey); err != nil {
			return nil, fmt.Errorf("encode credential record: %w", err)
		}
	case KindSession:
		if out, err = sjson.SetBytes(out, "session_token", cred.SessionToken); err != nil {
			return nil, fmt.Errorf("encode credential record: %w", err)
		}
		if out, err = sjson.SetBytes(out, "issued_at", cred.IssuedAt.UTC().Format(recordTimeFormat)); err != nil {
			return nil, fmt.Errorf("encode credential record: %w", err)
		}
		if out, err = sjson.SetBytes(out, "expires_at", cred.ExpiresAt.UTC().Format(recordTimeFormat)); err != nil {
			return nil, fmt.Errorf("encode credential record: %w", err)
		}
	}
	return out, nil
}

func decodeRecord(data []byte) (Credential, error) {
	if !gjson.ValidBytes(data) {
		return None(), fmt.Errorf("credential record is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	kind := Kind(root.Get("kind").String())
	switch kind {
	case KindAPIKey:
		return NewAPIKey(root.Get("api_key").String()), nil
	case KindSession:
		issued, err := parseRecordTime(root.Get("issued_at"))
		if err != nil {
			return None(), fmt.Errorf("credential record issued_at: %w", err)
		}
		expires, err := parseRecordTime(root.Get("expires_at"))
		if err != nil {
			return None(), fmt.Errorf("credential record expires_at: %w", err)
		}
		return NewSession(root.Get("session_token").String(), issued, expires), nil
	case KindNone, "":
		return None(), nil
	}
	return None(), fmt.Errorf("credential record has unknown kind %q", kind)
}

func parseRecordTime(v gjson.Result) (time.Time, error) {
	if !v.Exists() || v.String() == "" {
		return time.Time{}, nil
	}
	return time.Parse(recordTimeFormat, v.String())
}
