package registry

import (
	"encoding/json"
	"time"

	"github.com/depstale/depstale/pkg/errors"
)

// PackageMetadata is the normalized registry view of one package: its
// version publish history, deprecation markers, and latest dist-tag.
type PackageMetadata struct {
	Name   string
	Latest string

	// Time maps each published version to its publish timestamp.
	Time map[string]time.Time

	// Deprecated maps deprecated versions to their deprecation message
	// (possibly empty when the registry used a bare boolean marker).
	Deprecated map[string]string

	// versions records every version present in the registry document's
	// versions map, deprecated or not.
	versions map[string]bool
}

// PublishedAt returns the publish timestamp for a specific version.
func (m *PackageMetadata) PublishedAt(version string) (time.Time, bool) {
	t, ok := m.Time[version]
	return t, ok
}

// LatestPublishedAt returns the publish timestamp of the latest dist-tag.
func (m *PackageMetadata) LatestPublishedAt() (time.Time, bool) {
	if m.Latest == "" {
		return time.Time{}, false
	}
	return m.PublishedAt(m.Latest)
}

// IsDeprecated reports whether a specific version is deprecated. The
// version-level marker is authoritative for versions the registry knows;
// for unknown versions the latest version's marker stands in as the
// package-level signal.
func (m *PackageMetadata) IsDeprecated(version string) bool {
	if m.versions[version] {
		_, deprecated := m.Deprecated[version]
		return deprecated
	}
	if m.Latest != "" {
		_, deprecated := m.Deprecated[m.Latest]
		return deprecated
	}
	return false
}

// DeprecationMessage returns the registry's deprecation message for a
// version, or the latest version's message when the version is unknown.
func (m *PackageMetadata) DeprecationMessage(version string) string {
	if m.versions[version] {
		return m.Deprecated[version]
	}
	return m.Deprecated[m.Latest]
}

// registryDocument is the decoded subset of an npm package document.
type registryDocument struct {
	Name     string                    `json:"name"`
	DistTags distTags                  `json:"dist-tags"`
	Time     map[string]string         `json:"time"`
	Versions map[string]versionDetails `json:"versions"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	// Deprecated is a message string on most packages, but some older
	// documents carry a bare boolean.
	Deprecated any `json:"deprecated"`
}

// ParseMetadata decodes a raw registry document into PackageMetadata.
func ParseMetadata(data []byte) (*PackageMetadata, error) {
	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidResponse, err, "failed to parse registry response")
	}

	meta := &PackageMetadata{
		Name:       doc.Name,
		Latest:     doc.DistTags.Latest,
		Time:       make(map[string]time.Time, len(doc.Time)),
		Deprecated: make(map[string]string),
		versions:   make(map[string]bool, len(doc.Versions)),
	}

	for version, stamp := range doc.Time {
		// The time map carries "created" and "modified" alongside versions.
		if version == "created" || version == "modified" {
			continue
		}
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			continue
		}
		meta.Time[version] = t
	}

	for version, details := range doc.Versions {
		meta.versions[version] = true
		if msg, deprecated := deprecationMarker(details.Deprecated); deprecated {
			meta.Deprecated[version] = msg
		}
	}

	return meta, nil
}

// deprecationMarker interprets the deprecated field: a non-empty string is a
// deprecation message (npm clears deprecation by setting it to ""), a bool
// is taken literally.
func deprecationMarker(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case bool:
		return "", val
	}
	return "", false
}
