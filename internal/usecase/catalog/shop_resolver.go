package catalog

import (
	"path/filepath"
	"strings"

	"xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

// ShopAliasSource is the static registry lookup used after DB aliases.
type ShopAliasSource interface {
	ShopForFile(platform string, fileName string, account string) (shopID string, alias string, ok bool)
}

// ShopQuery is everything the resolver may look at for one file.
type ShopQuery struct {
	RelPath     string
	Platform    string
	Domain      string
	Account     string
	Sidecar     *Sidecar
	LegacyShop  string
	LegacyMatch bool
}

// ShopResolver runs the ownership chain: sidecar, legacy name token, path
// layout, alias tables, file name. It is built once per scan.
type ShopResolver struct {
	aliases  []ports.AccountAlias
	registry ShopAliasSource
}

func NewShopResolver(aliases []ports.AccountAlias, registry ShopAliasSource) *ShopResolver {
	return &ShopResolver{aliases: aliases, registry: registry}
}

func (r *ShopResolver) Resolve(q ShopQuery) ingest.ShopResolution {
	platform := strings.ToLower(strings.TrimSpace(q.Platform))
	domain := strings.ToLower(strings.TrimSpace(q.Domain))
	fileName := filepath.Base(q.RelPath)

	if q.Sidecar != nil {
		if res, ok := q.Sidecar.Resolution(); ok {
			// the sidecar is final even when its id has to be discarded
			if ingest.DiscardDatedShopID(res.ShopID, platform, domain) == ingest.UnresolvedShopID {
				return ingest.Unresolved("sidecar shop id " + res.ShopID + " names a dated export")
			}
			return res
		}
	}

	if q.LegacyMatch && q.LegacyShop != "" {
		if shopID := ingest.DiscardDatedShopID(q.LegacyShop, platform, domain); shopID != ingest.UnresolvedShopID {
			return ingest.ShopResolution{
				ShopID:     shopID,
				Confidence: ingest.ConfidenceLegacyName,
				Source:     ingest.ShopSourceFilename,
				Detail:     "shop token of legacy file name",
			}
		}
	}

	if shopID, ok := ingest.ShopFromPath(q.RelPath, platform); ok {
		return ingest.ShopResolution{
			ShopID:     shopID,
			Confidence: ingest.ConfidencePathRule,
			Source:     ingest.ShopSourcePathRule,
			Detail:     "<platform>/<account>/<shop_id> directory layout",
		}
	}

	if res, ok := r.fromAliases(platform, fileName, q.Account); ok {
		return res
	}

	return ingest.ShopFromFilename(fileName, platform)
}

func (r *ShopResolver) fromAliases(platform string, fileName string, account string) (ingest.ShopResolution, bool) {
	lowerName := strings.ToLower(fileName)
	lowerAccount := strings.ToLower(strings.TrimSpace(account))

	var best ports.AccountAlias
	bestLen := 0
	for _, alias := range r.aliases {
		if !alias.Active || alias.TargetID == "" {
			continue
		}
		if alias.Platform != "" && !strings.EqualFold(alias.Platform, platform) {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(alias.StoreLabelRaw))
		matched := label != "" && (strings.Contains(lowerName, label) || label == lowerAccount)
		if !matched && lowerAccount != "" && strings.EqualFold(alias.Account, lowerAccount) && label == "" {
			matched = true
		}
		if matched && len(label) >= bestLen {
			best, bestLen = alias, len(label)
		}
	}
	if best.TargetID != "" {
		return ingest.ShopResolution{
			ShopID:     best.TargetID,
			Confidence: ingest.ConfidenceConfigAlias,
			Source:     ingest.ShopSourceConfigAlias,
			Detail:     "account_aliases: " + best.StoreLabelRaw,
		}, true
	}

	if r.registry != nil {
		if shopID, alias, ok := r.registry.ShopForFile(platform, fileName, account); ok {
			return ingest.ShopResolution{
				ShopID:     shopID,
				Confidence: ingest.ConfidenceConfigAlias,
				Source:     ingest.ShopSourceConfigAlias,
				Detail:     "registry alias: " + alias,
			}, true
		}
	}
	return ingest.ShopResolution{}, false
}
