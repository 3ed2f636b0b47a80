package app

import "time"

// DefaultTokenTTL bounds how long a decision token is accepted by the
// transport. Decisions themselves close when their turn ends.
const DefaultTokenTTL = 24 * time.Hour

// DefaultTokenIssuer is the iss claim of decision tokens when none is configured.
const DefaultTokenIssuer = "dragonsea"
