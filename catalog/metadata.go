package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// MetadataFile is the release metadata document expected in a catalog root.
const MetadataFile = "mapping_file.json"

// Release is one entry of the metadata document's tdx_module_releases array.
type Release struct {
	Version                         string          `json:"version"`
	MinModuleVersionForTDPreserving string          `json:"min_module_version_for_td_preserving"`
	MinSeamldrVersions              []string        `json:"min_seamldr_versions"`
	TDXFeature0                     json.RawMessage `json:"tdx_feature0"`
}

// complete reports whether the release supplies every field a Module record
// requires. A JSON null counts as missing.
func (r *Release) complete() bool {
	return r.MinModuleVersionForTDPreserving != "" &&
		r.MinSeamldrVersions != nil &&
		len(r.TDXFeature0) != 0 &&
		!bytes.Equal(r.TDXFeature0, []byte("null"))
}

type metadataDocument struct {
	Releases []Release `json:"tdx_module_releases"`
}

// loadMetadata parses the metadata document and indexes releases by their
// exact version string.
func loadMetadata(fsys afero.Fs, path string) (map[string]Release, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata document %s: %w", path, err)
	}

	var doc metadataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document %s: %w", path, err)
	}

	releases := make(map[string]Release, len(doc.Releases))
	for _, r := range doc.Releases {
		releases[r.Version] = r
	}
	return releases, nil
}
