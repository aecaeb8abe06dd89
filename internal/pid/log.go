package pid

import "github.com/banshee-data/flightcore/internal/monitoring"

var logger = monitoring.NewLogger("[pid] ")
