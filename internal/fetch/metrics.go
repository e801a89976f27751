package fetch

import "expvar"

var (
	metricVerified = expvar.NewInt("fetch_pieces_verified_total")
	metricMismatch = expvar.NewInt("fetch_pieces_mismatch_total")
)
