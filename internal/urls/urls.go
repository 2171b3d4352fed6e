package urls

// Repository is the project home, shown in the dashboard header.
const Repository = "github.com/muurk/vesclink"

// Documentation pages live under the project site.
const docsBase = "https://muurk.github.io/vesclink/"

// DeviceSetup covers registering serial ports and WebSocket bridges
// with 'vesclink device add'.
const DeviceSetup = docsBase + "setup/devices/"

// Serving describes 'vesclink serve', its HTTP endpoints and the
// mDNS advertisement.
const Serving = docsBase + "guide/serve/"

// TroubleshootingGuide lists fixes for links that never connect, frames
// that fail CRC checks and servers that cannot be reached.
const TroubleshootingGuide = docsBase + "troubleshooting/"
