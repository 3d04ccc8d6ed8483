package settings

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Load reads an INI-shaped settings file and overlays it onto Default().
// This is the "external collaborator" the spec calls out: every other
// package only ever sees the Settings value Load returns, never the file
// itself or the ini.File it was parsed from.
func Load(path string) (Settings, error) {
	s := Default()

	f, err := ini.Load(path)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: loading %s: %w", path, err)
	}

	sec := f.Section("sdkget")

	if k, err := sec.GetKey("concurrency"); err == nil {
		v, err := k.Int()
		if err != nil {
			return Settings{}, fmt.Errorf("settings: concurrency: %w", err)
		}
		if v <= 0 {
			return Settings{}, fmt.Errorf("settings: concurrency must be positive, got %d", v)
		}
		s.Concurrency = v
	}

	if err := setDuration(sec, "connection_timeout", &s.ConnectionTimeout); err != nil {
		return Settings{}, err
	}
	if err := setDuration(sec, "response_timeout", &s.ResponseTimeout); err != nil {
		return Settings{}, err
	}
	if err := setDuration(sec, "retry_backoff", &s.RetryBackoff); err != nil {
		return Settings{}, err
	}

	if err := setInt(sec, "max_retries_on_connection_error", &s.MaxRetriesOnConnectionError); err != nil {
		return Settings{}, err
	}
	if err := setInt(sec, "max_retries_on_checksum_error", &s.MaxRetriesOnChecksumError); err != nil {
		return Settings{}, err
	}
	if err := setInt(sec, "max_retries_to_retrieve_hash", &s.MaxRetriesToRetrieveHash); err != nil {
		return Settings{}, err
	}

	if k, err := sec.GetKey("hash_algorithm"); err == nil {
		alg := HashAlgorithm(strings.ToLower(k.String()))
		switch alg {
		case HashSHA256, HashMD5, HashSHA1:
			s.HashAlgorithm = alg
		default:
			return Settings{}, fmt.Errorf("settings: unrecognized hash_algorithm %q", k.String())
		}
	}

	// ignore_hash is guarded: it is only readable from this file-backed
	// loader. cmd/sdkget never exposes a CLI flag that can set it.
	if k, err := sec.GetKey("ignore_hash"); err == nil {
		v, err := k.Bool()
		if err != nil {
			return Settings{}, fmt.Errorf("settings: ignore_hash: %w", err)
		}
		s.IgnoreHash = v
	}

	if k, err := sec.GetKey("base_url"); err == nil {
		s.BaseURL = k.String()
	}
	if k, err := sec.GetKey("external_extractor_command"); err == nil {
		s.ExternalExtractorCommand = k.String()
	}

	s.TrustedMirrors = stringList(sec, "trusted_mirrors", s.TrustedMirrors)
	s.BlacklistMirrors = stringList(sec, "blacklist_mirrors", s.BlacklistMirrors)
	s.FallbackMirrors = stringList(sec, "fallback_mirrors", s.FallbackMirrors)

	if k, err := sec.GetKey("always_keep_archives"); err == nil {
		v, err := k.Bool()
		if err != nil {
			return Settings{}, fmt.Errorf("settings: always_keep_archives: %w", err)
		}
		s.AlwaysKeepArchives = v
	}
	if k, err := sec.GetKey("archive_download_location"); err == nil {
		s.ArchiveDownloadLocation = k.String()
	}
	if k, err := sec.GetKey("min_module_size"); err == nil {
		v, err := k.Int64()
		if err != nil {
			return Settings{}, fmt.Errorf("settings: min_module_size: %w", err)
		}
		s.MinModuleSize = v
	}

	return s, nil
}

func setDuration(sec *ini.Section, key string, dst *time.Duration) error {
	k, err := sec.GetKey(key)
	if err != nil {
		return nil
	}
	secs, err := k.Float64()
	if err != nil {
		return fmt.Errorf("settings: %s: %w", key, err)
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}

func setInt(sec *ini.Section, key string, dst *int) error {
	k, err := sec.GetKey(key)
	if err != nil {
		return nil
	}
	v, err := k.Int()
	if err != nil {
		return fmt.Errorf("settings: %s: %w", key, err)
	}
	*dst = v
	return nil
}

func stringList(sec *ini.Section, key string, fallback []string) []string {
	k, err := sec.GetKey(key)
	if err != nil {
		return fallback
	}
	raw := strings.Split(k.String(), ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
