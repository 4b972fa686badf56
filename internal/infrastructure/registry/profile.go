package registry

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"xihong/internal/errs"
)

type profileFile struct {
	Version   int                                       `toml:"version"`
	Header    profileHeader                             `toml:"header"`
	Platforms map[string]map[string]map[string][]string `toml:"platforms"`
}

type profileHeader struct {
	Tokens []string `toml:"tokens"`
}

// Profile carries per-platform column keyword overrides for field detection:
// platforms.<platform>.<domain>.<canonical field> = ["keyword", ...].
type Profile struct {
	headerTokens []string
	keywords     map[string][]string
}

func LoadProfile(path string) (*Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ParseProfile(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ParseProfile(nil)
		}
		return nil, errs.Wrapf(err, "read ingest profile %s", path)
	}
	return ParseProfile(raw)
}

func ParseProfile(raw []byte) (*Profile, error) {
	var file profileFile
	if len(raw) > 0 {
		if err := toml.Unmarshal(raw, &file); err != nil {
			return nil, errs.Wrap(err, "decode ingest profile")
		}
		if file.Version != 0 && file.Version != 1 {
			return nil, errors.New("unsupported ingest profile version: expected version = 1")
		}
	}

	p := &Profile{keywords: make(map[string][]string)}
	for _, tok := range file.Header.Tokens {
		if tok = strings.ToLower(strings.TrimSpace(tok)); tok != "" {
			p.headerTokens = append(p.headerTokens, tok)
		}
	}
	for platform, domains := range file.Platforms {
		for domain, fields := range domains {
			for field, keywords := range fields {
				key := profileKey(platform, domain, field)
				for _, kw := range keywords {
					if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
						p.keywords[key] = append(p.keywords[key], kw)
					}
				}
			}
		}
	}
	return p, nil
}

// Keywords returns the override keywords for one canonical field, nil when
// the profile says nothing about it.
func (p *Profile) Keywords(platform string, domain string, field string) []string {
	if p == nil {
		return nil
	}
	return p.keywords[profileKey(platform, domain, field)]
}

// HeaderTokens are extra tokens scored during header row inference.
func (p *Profile) HeaderTokens() []string {
	if p == nil {
		return nil
	}
	return p.headerTokens
}

func profileKey(platform string, domain string, field string) string {
	return strings.ToLower(strings.TrimSpace(platform)) + "/" +
		strings.ToLower(strings.TrimSpace(domain)) + "/" +
		strings.ToLower(strings.TrimSpace(field))
}
