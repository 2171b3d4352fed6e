// Package urls holds the documentation links printed by the CLI and the
// dashboard, so they can be updated in one place.
//
//	fmt.Printf("See %s\n", urls.TroubleshootingGuide)
package urls
