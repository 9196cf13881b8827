// Package policy filters extracted URLs against a hostname denylist before
// any task reaches the capture stage.
package policy

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/corpusworks/harvester/pkg/logging"
)

// Denylist holds the excluded hostnames. A URL is denied when its host equals
// an entry or is a subdomain of one.
type Denylist struct {
	domains []string
	log     zerolog.Logger
}

// denylistFile mirrors the on-disk YAML layout: named groups of domains.
type denylistFile struct {
	DomainExclusionList []struct {
		Name    string   `yaml:"name"`
		Domains []string `yaml:"domains"`
	} `yaml:"domain_exclusion_list"`
}

// New builds a denylist from explicit hostnames.
func New(domains []string) *Denylist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Denylist{
		domains: normalized,
		log:     logging.GetLogger("denylist"),
	}
}

// Load reads a denylist YAML file. A missing file yields an empty denylist
// with a warning; a malformed file is an error.
func Load(path string) (*Denylist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log := logging.GetLogger("denylist")
			log.Warn().
				Str("path", path).
				Msg("Denylist file not found, no domains will be excluded")
			return New(nil), nil
		}
		return nil, fmt.Errorf("reading denylist %s: %w", path, err)
	}

	var file denylistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing denylist %s: %w", path, err)
	}

	var domains []string
	for _, group := range file.DomainExclusionList {
		domains = append(domains, group.Domains...)
	}
	return New(domains), nil
}

// Len returns the number of denied hostnames.
func (d *Denylist) Len() int { return len(d.domains) }

// Denied reports whether rawURL's host is excluded. Malformed URLs are not
// denied (fail-open) but logged, matching the policy that validation already
// happened upstream.
func (d *Denylist) Denied(rawURL string) bool {
	if len(d.domains) == 0 {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		d.log.Debug().Str("url", rawURL).Msg("Unparseable URL in denylist check")
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, entry := range d.domains {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			d.log.Debug().
				Str("url", rawURL).
				Str("matched_domain", entry).
				Msg("URL denied by policy")
			return true
		}
	}
	return false
}
