// Package registry provides access to the font registry checkout, the
// repository that tracks one METADATA.pb record per font family.
//
// # Obtaining a checkout
//
// Open either uses an existing local checkout or makes a shallow clone of the
// registry URL into a temporary directory, retrying transient clone failures
// with exponential backoff:
//
//	checkout, err := registry.Open(ctx, gitClient,
//	    registry.WithLocalPath("/src/google-fonts"))
//	if err != nil {
//	    return err
//	}
//	defer checkout.Cleanup()
//
// A local checkout must contain at least one license directory (ofl, apache
// or ufl); anything else is rejected with ErrNotARegistry.
//
// # Loading metadata
//
// LoadMetadata globs '<license>/*/METADATA.pb' below the checkout root and
// parses each record. Records that cannot be read or parsed are logged and
// skipped, so one broken family never stops a run.
//
// # Test utilities
//
// NewTestRegistry builds a registry tree on disk using the options pattern:
//
//	root := registry.NewTestRegistry(t,
//	    registry.WithFamily("ofl", "alpha", "Alpha Sans",
//	        registry.WithRepoURL("https://github.com/fontorg/alpha"),
//	        registry.WithCommit("abc123")),
//	)
package registry
