// Package engine provides the core types, collaborator interfaces and the
// reconciliation driver for kzwarden.
//
// # Overview
//
// kzwarden drives an installation's on-disk state toward what two manifests
// declare. A run has two phases, each safe to repeat:
//
//  1. Plugins - resolve the latest release of each plugin, install it when
//     the tag differs from the recorded one, and persist the new tags
//  2. Configs - patch each target file with its manifest entries through
//     the adapter for its format
//
// # Collaborators
//
// The driver does no I/O of its own beyond reading manifests. Everything
// else is delegated through small interfaces:
//
//   - Adapter: patches one file syntax (gi, cfg, jsonc, kv3, ini)
//   - Resolver: finds the latest release of a plugin for one origin
//   - Installer: downloads an artifact and relocates it into a destination
//   - Fetcher and Unpacker: the download and archive primitives the
//     installer is built from
//
// # Error Handling
//
// Failures are classified with *Error (not_found, format_mismatch,
// transport, integrity, unknown_kind, filesystem, invalid). The driver
// catches every item failure, turns it into an ItemResult and moves on to
// the next item, so no error or panic escapes a run. A failed plugin keeps
// its previous tag and is retried on the next run.
//
// # Example Usage
//
//	r := engine.NewReconciler(logger, engine.Options{
//	    Root:      "/home/steam/cs2",
//	    Adapters:  formats.NewRegistry(logger),
//	    Resolvers: resolvers,
//	    Installer: inst,
//	})
//
//	report := r.RunPlugins(ctx, "/server-config/plugins.json", false)
//	report = r.RunConfigs(ctx, "/server-config/configs.json")
//	fmt.Println(report.Summary())
package engine
