package registry

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
)

type shopEntry struct {
	ShopID  string   `yaml:"shop_id"`
	Alias   string   `yaml:"alias"`
	Aliases []string `yaml:"aliases"`
}

type accountEntry struct {
	Platform string      `yaml:"platform"`
	Name     string      `yaml:"name"`
	Shops    []shopEntry `yaml:"shops"`
}

type registryFile struct {
	Platforms  map[string][]string `yaml:"platforms"`
	Currencies map[string]string   `yaml:"currencies"`
	Rates      map[string]string   `yaml:"rates"`
	Accounts   []accountEntry      `yaml:"accounts"`
}

type shopAlias struct {
	platform string
	alias    string
	shopID   string
}

// Registry is the static alias registry: platform aliases, account shop
// aliases, per-platform default currency and fallback exchange rates.
type Registry struct {
	platforms  map[string][]string
	currencies map[string]string
	rates      map[string]string
	shops      []shopAlias
}

// Load reads a registry YAML file. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Parse(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Parse(nil)
		}
		return nil, errs.Wrapf(err, "read registry %s", path)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var file registryFile
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, errs.Wrap(err, "decode registry yaml")
		}
	}

	r := &Registry{
		platforms:  make(map[string][]string),
		currencies: make(map[string]string),
		rates:      make(map[string]string),
	}
	for code, aliases := range file.Platforms {
		code = strings.ToLower(strings.TrimSpace(code))
		r.platforms[code] = append(r.platforms[code], aliases...)
	}
	for platform, currency := range file.Currencies {
		r.currencies[strings.ToLower(strings.TrimSpace(platform))] = strings.ToUpper(strings.TrimSpace(currency))
	}
	for currency, rate := range file.Rates {
		r.rates[strings.ToUpper(strings.TrimSpace(currency))] = strings.TrimSpace(rate)
	}

	for _, account := range file.Accounts {
		platform := strings.ToLower(strings.TrimSpace(account.Platform))
		for _, shop := range account.Shops {
			shopID := strings.TrimSpace(shop.ShopID)
			if shopID == "" {
				continue
			}
			aliases := append([]string{shop.Alias}, shop.Aliases...)
			for _, alias := range aliases {
				alias = strings.ToLower(strings.TrimSpace(alias))
				if alias == "" {
					continue
				}
				r.shops = append(r.shops, shopAlias{platform: platform, alias: alias, shopID: shopID})
			}
		}
	}
	// longest alias first so "main sg 2" beats "main sg"
	sort.SliceStable(r.shops, func(i, j int) bool {
		return len(r.shops[i].alias) > len(r.shops[j].alias)
	})
	return r, nil
}

// PlatformAliases returns extra aliases for NewPlatformResolver.
func (r *Registry) PlatformAliases() map[string][]string {
	out := make(map[string][]string, len(r.platforms))
	for code, aliases := range r.platforms {
		out[code] = append([]string(nil), aliases...)
	}
	return out
}

func (r *Registry) PlatformResolver() *ingest.PlatformResolver {
	return ingest.NewPlatformResolver(r.PlatformAliases())
}

// ShopForFile matches configured shop aliases as substrings of the file name
// and the account label. Entries without a platform match any platform.
func (r *Registry) ShopForFile(platform string, fileName string, account string) (string, string, bool) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	haystacks := []string{strings.ToLower(fileName), strings.ToLower(strings.TrimSpace(account))}
	for _, entry := range r.shops {
		if entry.platform != "" && entry.platform != platform {
			continue
		}
		for _, h := range haystacks {
			if h != "" && strings.Contains(h, entry.alias) {
				return entry.shopID, entry.alias, true
			}
		}
	}
	return "", "", false
}

// PlatformCurrency is the configured default currency, "" when unset.
func (r *Registry) PlatformCurrency(platform string) string {
	return r.currencies[strings.ToLower(strings.TrimSpace(platform))]
}

func (r *Registry) StaticRate(currency string) (string, bool) {
	rate, ok := r.rates[strings.ToUpper(strings.TrimSpace(currency))]
	return rate, ok && rate != ""
}
