package crawler

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	crawlerrors "sjsage522/dealwatch/pkg/errors"
	"sjsage522/dealwatch/pkg/validate"
)

type profileFile struct {
	Profiles []SiteProfile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile table from path
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, crawlerrors.NewConfiguration("failed to read profiles "+path, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates a YAML profile table
func ParseProfiles(data []byte) (Profiles, error) {
	var file profileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, crawlerrors.NewConfiguration("failed to decode profiles", err)
	}
	if len(file.Profiles) == 0 {
		return nil, crawlerrors.NewConfiguration("no profiles defined", nil)
	}

	names := make(map[string]bool, len(file.Profiles))
	for _, p := range file.Profiles {
		if err := ValidateProfile(p); err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if names[key] {
			return nil, crawlerrors.NewConfiguration(fmt.Sprintf("duplicate profile name %q", p.Name), nil)
		}
		names[key] = true
	}
	return Profiles(file.Profiles), nil
}

// ValidateProfile checks struct tags, the rule thresholds and that flag rules have a selector to read
func ValidateProfile(p SiteProfile) error {
	if err := validate.Struct(p); err != nil {
		return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q", p.Name), err)
	}
	for _, u := range p.PageURLs() {
		if !isAbsoluteHTTP(u) {
			return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q: url %q is not absolute", p.Name, u), nil)
		}
	}
	if p.HasRule(RuleFlashSale) && p.Selectors.FlashBadge == "" {
		return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q: flash_sale rule needs a flash_badge selector", p.Name), nil)
	}
	if p.HasRule(RuleMultiCoupon) && p.Selectors.MultiCoupon == "" {
		return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q: multi_coupon rule needs a multi_coupon selector", p.Name), nil)
	}
	for _, r := range p.Rules {
		switch r.Kind {
		case RuleMinDiscount:
			if r.Threshold <= 0 || r.Threshold > 100 {
				return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q: min_discount threshold %v outside (0,100]", p.Name, r.Threshold), nil)
			}
		case RuleMaxPrice:
			if r.Threshold <= 0 {
				return crawlerrors.NewConfiguration(fmt.Sprintf("profile %q: max_price threshold must be positive", p.Name), nil)
			}
		}
	}
	return nil
}
