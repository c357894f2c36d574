package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/tdxtools/tdxmodule/sigstruct"
	"github.com/tdxtools/tdxmodule/version"
)

var log = logrus.WithField("service", "catalog")

// BlobDir is the subdirectory of a catalog root holding the blob tree.
const BlobDir = "joined_files"

var (
	groupDirPattern = regexp.MustCompile(`^\d+\.\d+$`)
	blobPattern     = regexp.MustCompile(`^tdx_module_(\d+\.\d+\.\d+)\.blob$`)
)

// Build discovers the module blobs under the given catalog root and joins
// them with the release metadata document, producing one validated Module
// per usable blob.
//
// Candidates with a malformed sigstruct or without a complete release record
// are dropped with a diagnostic; an unreadable root, an unreadable or
// malformed metadata document, or two blobs declaring the same version fail
// the build as a whole.
func Build(fsys afero.Fs, root string) ([]*Module, error) {
	releases, err := loadMetadata(fsys, filepath.Join(root, MetadataFile))
	if err != nil {
		return nil, err
	}

	groupDirs, err := findGroupDirs(fsys, filepath.Join(root, BlobDir))
	if err != nil {
		return nil, err
	}

	var modules []*Module
	byVersion := make(map[version.Version]*Module)

	for _, dir := range groupDirs {
		entries, err := afero.ReadDir(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			m := blobPattern.FindStringSubmatch(entry.Name())
			if m == nil {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			mod, err := buildModule(fsys, path, m[1], releases)
			if err != nil {
				log.Warnf("Skipping module %s: %v", m[1], err)
				continue
			}

			if prev, ok := byVersion[mod.Version]; ok {
				return nil, &DuplicateVersionError{
					Version:  mod.Version,
					Path:     mod.Path,
					Existing: prev.Path,
				}
			}
			byVersion[mod.Version] = mod
			modules = append(modules, mod)
		}
	}

	return modules, nil
}

// findGroupDirs collects all major.minor grouping directories anywhere under
// the blob tree root.
func findGroupDirs(fsys afero.Fs, root string) ([]string, error) {
	var dirs []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && groupDirPattern.MatchString(info.Name()) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate blob tree %s: %w", root, err)
	}
	return dirs, nil
}

// buildModule validates one candidate blob against the sigstruct and the
// release metadata, enforcing that no partially populated record is ever
// produced.
func buildModule(fsys afero.Fs, path, versionStr string, releases map[string]Release) (*Module, error) {
	v, err := version.Parse(versionStr)
	if err != nil {
		return nil, err
	}

	hdr, err := sigstruct.Parse(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("unusable sigstruct: %w", err)
	}

	release, ok := releases[versionStr]
	if !ok {
		return nil, fmt.Errorf("missing release information in metadata document")
	}
	if !release.complete() {
		return nil, fmt.Errorf("incomplete release information in metadata document")
	}

	minPreserving, err := version.Parse(release.MinModuleVersionForTDPreserving)
	if err != nil {
		return nil, fmt.Errorf("malformed min_module_version_for_td_preserving: %w", err)
	}

	return &Module{
		Version:                v,
		Path:                   path,
		SupportedCPUs:          hdr.SupportedCPUs,
		Type:                   hdr.Type,
		MinTDPreservingVersion: minPreserving,
		MinSeamldrVersions:     release.MinSeamldrVersions,
		TDXFeature0:            release.TDXFeature0,
	}, nil
}
