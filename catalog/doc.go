// Package catalog discovers TDX module blobs on disk and joins them with
// their release metadata to produce validated module records.
//
// # Directory Layout
//
// A catalog root contains the release metadata document and the blob tree:
//
//	<root>/mapping_file.json
//	<root>/joined_files/<major>.<minor>/tdx_module_<major>.<minor>.<update>.blob
//
// The major.minor grouping directories may appear anywhere under
// joined_files; discovery order is not significant.
//
// # Metadata Document
//
// mapping_file.json is a JSON object with a tdx_module_releases array keyed
// by exact version string:
//
//	{
//	  "tdx_module_releases": [
//	    {
//	      "version": "1.5.12",
//	      "min_module_version_for_td_preserving": "1.5.8",
//	      "min_seamldr_versions": ["2.1.3", "2.0.9"],
//	      "tdx_feature0": "0x1"
//	    }
//	  ]
//	}
//
// # Validation
//
// A Module record is only constructed when the blob filename carries a
// parseable version, the sigstruct yields a valid header, and a release
// record supplies all three metadata fields. Candidates failing any of these
// are dropped with a logged diagnostic; the build as a whole still succeeds.
// An unreadable root or metadata document fails the whole build, as do two
// blobs declaring the same version.
package catalog
